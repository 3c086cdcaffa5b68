package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const mediaColumns = "id, assignment_id, slot_id, content, mime_type, caption, status, retry_count, last_error, created_at"

// InsertMedia persists a newly captured media item. Inserts only; media
// content is immutable after creation.
func (s *Store) InsertMedia(ctx context.Context, item *MediaItem) error {
	if item == nil {
		return errors.New("media item is nil")
	}
	if item.ID == "" {
		return errors.New("media item id is required")
	}
	if item.AssignmentID == "" {
		return errors.New("media assignment id is required")
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	if item.Status == "" {
		item.Status = MediaPending
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO media_items (`+mediaColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.AssignmentID,
		item.SlotID,
		item.Content,
		item.MimeType,
		nullableString(item.Caption),
		string(item.Status),
		item.RetryCount,
		nullableString(item.LastError),
		formatTime(item.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert media item: %w", err)
	}
	return nil
}

// GetMedia fetches a media item by identifier.
func (s *Store) GetMedia(ctx context.Context, id string) (*MediaItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+mediaColumns+` FROM media_items WHERE id = ?`, id)
	item, err := scanMedia(row)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get media item: %w", err)
	}
	return item, nil
}

// MediaByAssignment returns every media item for an assignment, oldest first.
func (s *Store) MediaByAssignment(ctx context.Context, assignmentID string) ([]*MediaItem, error) {
	return s.queryMedia(
		ctx,
		`SELECT `+mediaColumns+` FROM media_items WHERE assignment_id = ? ORDER BY created_at, id`,
		assignmentID,
	)
}

// OutstandingMediaByAssignment returns items for an assignment that have not
// been confirmed uploaded (any status), oldest first. Presence of any such
// item blocks the assignment's submission from being sent.
func (s *Store) OutstandingMediaByAssignment(ctx context.Context, assignmentID string) ([]*MediaItem, error) {
	return s.MediaByAssignment(ctx, assignmentID)
}

// MediaByStatus returns all media items in the given statuses, oldest first.
func (s *Store) MediaByStatus(ctx context.Context, statuses ...MediaStatus) ([]*MediaItem, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := make([]byte, 0, len(statuses)*2)
	args := make([]any, 0, len(statuses))
	for i, status := range statuses {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args = append(args, string(status))
	}
	return s.queryMedia(
		ctx,
		`SELECT `+mediaColumns+` FROM media_items WHERE status IN (`+string(placeholders)+`) ORDER BY created_at, id`,
		args...,
	)
}

// AssignmentIDsWithMedia returns the distinct assignments that still hold
// media items, in oldest-item-first order.
func (s *Store) AssignmentIDsWithMedia(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT assignment_id FROM media_items GROUP BY assignment_id ORDER BY MIN(created_at)`,
	)
	if err != nil {
		return nil, fmt.Errorf("assignments with media: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateMediaState persists a status transition for a media item. Only
// status, retry count, and the failure detail mutate.
func (s *Store) UpdateMediaState(ctx context.Context, id string, status MediaStatus, retryCount int, lastError string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE media_items SET status = ?, retry_count = ?, last_error = ? WHERE id = ?`,
		string(status),
		retryCount,
		nullableString(lastError),
		id,
	)
	if err != nil {
		return fmt.Errorf("update media state: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("media item %s not found", id)
	}
	return nil
}

// DeleteMedia removes a media item. Called only after a confirmed upload.
func (s *Store) DeleteMedia(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM media_items WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete media item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// DeleteMediaByAssignment removes all media for an assignment. Eviction only.
func (s *Store) DeleteMediaByAssignment(ctx context.Context, assignmentID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM media_items WHERE assignment_id = ?`, assignmentID)
	if err != nil {
		return 0, fmt.Errorf("delete media for assignment: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) queryMedia(ctx context.Context, query string, args ...any) ([]*MediaItem, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query media items: %w", err)
	}
	defer rows.Close()

	var items []*MediaItem
	for rows.Next() {
		item, err := scanMedia(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanMedia(scanner interface{ Scan(dest ...any) error }) (*MediaItem, error) {
	var (
		id           string
		assignmentID string
		slotID       string
		content      []byte
		mimeType     string
		caption      sql.NullString
		statusStr    string
		retryCount   int
		lastError    sql.NullString
		createdRaw   string
	)

	if err := scanner.Scan(
		&id,
		&assignmentID,
		&slotID,
		&content,
		&mimeType,
		&caption,
		&statusStr,
		&retryCount,
		&lastError,
		&createdRaw,
	); err != nil {
		return nil, err
	}

	item := &MediaItem{
		ID:           id,
		AssignmentID: assignmentID,
		SlotID:       slotID,
		Content:      content,
		MimeType:     mimeType,
		Caption:      caption.String,
		Status:       MediaStatus(statusStr),
		RetryCount:   retryCount,
		LastError:    lastError.String,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		item.CreatedAt = created
	}
	return item, nil
}
