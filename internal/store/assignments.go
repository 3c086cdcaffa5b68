package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const assignmentColumns = "id, application_id, location, work_type, scheduled_for, detail_json, template_id, status, synced, created_at, updated_at"

// SaveAssignment upserts an assignment by identifier, overwriting wholesale.
// The synced flag is persisted as given; server-sourced records arrive with
// it already set and local mutations never clear it.
func (s *Store) SaveAssignment(ctx context.Context, assignment *Assignment) error {
	if assignment == nil {
		return errors.New("assignment is nil")
	}
	if assignment.ID == "" {
		return errors.New("assignment id is required")
	}
	now := time.Now().UTC()
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = now
	}
	assignment.UpdatedAt = now

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO assignments (`+assignmentColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
             application_id = excluded.application_id,
             location = excluded.location,
             work_type = excluded.work_type,
             scheduled_for = excluded.scheduled_for,
             detail_json = excluded.detail_json,
             template_id = excluded.template_id,
             status = excluded.status,
             synced = excluded.synced,
             updated_at = excluded.updated_at`,
		assignment.ID,
		nullableString(assignment.ApplicationID),
		nullableString(assignment.Location),
		nullableString(assignment.WorkType),
		nullableTimeString(assignment.ScheduledFor),
		nullableString(string(assignment.Detail)),
		nullableString(assignment.TemplateID),
		string(assignment.Status),
		boolToInt(assignment.Synced),
		formatTime(assignment.CreatedAt),
		formatTime(assignment.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save assignment: %w", err)
	}
	return nil
}

// GetAssignment fetches an assignment by identifier. A missing assignment is
// a normal result, not an error.
func (s *Store) GetAssignment(ctx context.Context, id string) (*Assignment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE id = ?`, id)
	assignment, err := scanAssignment(row)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	return assignment, nil
}

// ListAssignments returns all assignments ordered by scheduled date, then
// creation time.
func (s *Store) ListAssignments(ctx context.Context) ([]*Assignment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+assignmentColumns+` FROM assignments ORDER BY scheduled_for, created_at`)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*Assignment
	for rows.Next() {
		assignment, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, assignment)
	}
	return assignments, rows.Err()
}

// DeleteAssignment removes an assignment record. Used only by explicit
// eviction; normal operation never deletes assignments.
func (s *Store) DeleteAssignment(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM assignments WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete assignment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func scanAssignment(scanner interface{ Scan(dest ...any) error }) (*Assignment, error) {
	var (
		id            string
		applicationID sql.NullString
		location      sql.NullString
		workType      sql.NullString
		scheduledRaw  sql.NullString
		detail        sql.NullString
		templateID    sql.NullString
		statusStr     string
		synced        sql.NullInt64
		createdRaw    string
		updatedRaw    string
	)

	if err := scanner.Scan(
		&id,
		&applicationID,
		&location,
		&workType,
		&scheduledRaw,
		&detail,
		&templateID,
		&statusStr,
		&synced,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	assignment := &Assignment{
		ID:            id,
		ApplicationID: applicationID.String,
		Location:      location.String,
		WorkType:      workType.String,
		TemplateID:    templateID.String,
		Status:        AssignmentStatus(statusStr),
		Synced:        synced.Valid && synced.Int64 != 0,
	}
	if detail.Valid && detail.String != "" {
		assignment.Detail = json.RawMessage(detail.String)
	}
	if scheduledRaw.Valid {
		if scheduled, err := parseTimeString(scheduledRaw.String); err == nil {
			assignment.ScheduledFor = scheduled
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		assignment.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		assignment.UpdatedAt = updated
	}
	return assignment, nil
}

func nullableTimeString(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return formatTime(value)
}
