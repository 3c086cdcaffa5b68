package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const submissionColumns = "assignment_id, payload_json, enqueued_at, retry_count, needs_attention, last_error"

// SaveSubmission upserts the outstanding submission for an assignment. The
// newest finalize intent always replaces an older unsent one; the draft
// remains the source of truth for content, so overwriting is safe. Retry
// bookkeeping resets with the new payload.
func (s *Store) SaveSubmission(ctx context.Context, assignmentID string, payload json.RawMessage) error {
	if assignmentID == "" {
		return errors.New("assignment id is required")
	}
	if len(payload) == 0 {
		return errors.New("submission payload is required")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO submissions (`+submissionColumns+`)
         VALUES (?, ?, ?, 0, 0, NULL)
         ON CONFLICT(assignment_id) DO UPDATE SET
             payload_json = excluded.payload_json,
             enqueued_at = excluded.enqueued_at,
             retry_count = 0,
             needs_attention = 0,
             last_error = NULL`,
		assignmentID,
		string(payload),
		formatTime(time.Now().UTC()),
	)
	if err != nil {
		return fmt.Errorf("save submission: %w", err)
	}
	return nil
}

// GetSubmission fetches the outstanding submission for an assignment, or nil.
func (s *Store) GetSubmission(ctx context.Context, assignmentID string) (*Submission, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE assignment_id = ?`, assignmentID)
	submission, err := scanSubmission(row)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return submission, nil
}

// ListSubmissions returns all outstanding submissions, oldest first.
func (s *Store) ListSubmissions(ctx context.Context) ([]*Submission, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+submissionColumns+` FROM submissions ORDER BY enqueued_at, assignment_id`)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var submissions []*Submission
	for rows.Next() {
		submission, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		submissions = append(submissions, submission)
	}
	return submissions, rows.Err()
}

// DeleteSubmission removes the submission entry for an assignment. The only
// caller is acknowledgment after a confirmed server success.
func (s *Store) DeleteSubmission(ctx context.Context, assignmentID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM submissions WHERE assignment_id = ?`, assignmentID)
	if err != nil {
		return false, fmt.Errorf("delete submission: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// UpdateSubmissionState persists retry bookkeeping after a failed send.
func (s *Store) UpdateSubmissionState(ctx context.Context, assignmentID string, retryCount int, needsAttention bool, lastError string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE submissions SET retry_count = ?, needs_attention = ?, last_error = ? WHERE assignment_id = ?`,
		retryCount,
		boolToInt(needsAttention),
		nullableString(lastError),
		assignmentID,
	)
	if err != nil {
		return fmt.Errorf("update submission state: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("submission for assignment %s not found", assignmentID)
	}
	return nil
}

func scanSubmission(scanner interface{ Scan(dest ...any) error }) (*Submission, error) {
	var (
		assignmentID   string
		payload        string
		enqueuedRaw    string
		retryCount     int
		needsAttention sql.NullInt64
		lastError      sql.NullString
	)

	if err := scanner.Scan(
		&assignmentID,
		&payload,
		&enqueuedRaw,
		&retryCount,
		&needsAttention,
		&lastError,
	); err != nil {
		return nil, err
	}

	submission := &Submission{
		AssignmentID:   assignmentID,
		Payload:        json.RawMessage(payload),
		RetryCount:     retryCount,
		NeedsAttention: needsAttention.Valid && needsAttention.Int64 != 0,
		LastError:      lastError.String,
	}
	if enqueued, err := parseTimeString(enqueuedRaw); err == nil {
		submission.EnqueuedAt = enqueued
	}
	return submission, nil
}
