package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SaveDraft writes or overwrites the draft for an assignment with a fresh
// timestamp. There is no merge; the later write wins.
func (s *Store) SaveDraft(ctx context.Context, assignmentID string, answers json.RawMessage) error {
	if assignmentID == "" {
		return errors.New("assignment id is required")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO drafts (assignment_id, answers_json, updated_at)
         VALUES (?, ?, ?)
         ON CONFLICT(assignment_id) DO UPDATE SET
             answers_json = excluded.answers_json,
             updated_at = excluded.updated_at`,
		assignmentID,
		nullableString(string(answers)),
		formatTime(time.Now().UTC()),
	)
	if err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

// GetDraft returns the draft for an assignment, or nil when none exists.
// Callers treat absence as "start from template defaults".
func (s *Store) GetDraft(ctx context.Context, assignmentID string) (*Draft, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT assignment_id, answers_json, updated_at FROM drafts WHERE assignment_id = ?`,
		assignmentID,
	)

	var (
		id         string
		answers    sql.NullString
		updatedRaw string
	)
	err := row.Scan(&id, &answers, &updatedRaw)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get draft: %w", err)
	}

	draft := &Draft{AssignmentID: id}
	if answers.Valid && answers.String != "" {
		draft.Answers = json.RawMessage(answers.String)
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		draft.UpdatedAt = updated
	}
	return draft, nil
}

// DeleteDraft removes the draft for an assignment. Used after a submission
// has been acknowledged by the server.
func (s *Store) DeleteDraft(ctx context.Context, assignmentID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE assignment_id = ?`, assignmentID)
	if err != nil {
		return false, fmt.Errorf("delete draft: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}
