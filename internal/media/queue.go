package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"fieldsync/internal/backend"
	"fieldsync/internal/logging"
	"fieldsync/internal/store"
)

// DefaultRetryCeiling is the number of upload attempts before an item needs
// user action.
const DefaultRetryCeiling = 5

// Queue manages captured media evidence awaiting upload.
type Queue struct {
	store   *store.Store
	logger  *slog.Logger
	ceiling int
}

// NewQueue constructs a media queue with the given retry ceiling.
func NewQueue(st *store.Store, logger *slog.Logger, ceiling int) *Queue {
	if ceiling < 1 {
		ceiling = DefaultRetryCeiling
	}
	return &Queue{
		store:   st,
		logger:  logging.NewComponentLogger(logger, "media-queue"),
		ceiling: ceiling,
	}
}

// Ceiling returns the configured retry ceiling.
func (q *Queue) Ceiling() int {
	return q.ceiling
}

// Enqueue stores a newly captured media item as pending. The item is durable
// and visible to the assignment's pending-upload set immediately, so it
// survives an app close before any upload happens.
func (q *Queue) Enqueue(ctx context.Context, assignmentID, slotID string, content []byte, mimeType, caption string) (*store.MediaItem, error) {
	if assignmentID == "" {
		return nil, errors.New("assignment id is required")
	}
	if slotID == "" {
		return nil, errors.New("slot id is required")
	}
	if len(content) == 0 {
		return nil, errors.New("media content is required")
	}
	item := &store.MediaItem{
		ID:           uuid.NewString(),
		AssignmentID: assignmentID,
		SlotID:       slotID,
		Content:      content,
		MimeType:     mimeType,
		Caption:      caption,
		Status:       store.MediaPending,
		CreatedAt:    time.Now().UTC(),
	}
	if err := q.store.InsertMedia(ctx, item); err != nil {
		return nil, err
	}
	q.logger.Info("media captured",
		logging.String(logging.FieldMediaID, item.ID),
		logging.String(logging.FieldAssignmentID, assignmentID),
		logging.String(logging.FieldSlotID, slotID),
		logging.Int("bytes", len(content)),
	)
	return item, nil
}

// ListPending returns the items for an assignment still needing an upload
// attempt or user action (pending and terminal error), oldest first.
func (q *Queue) ListPending(ctx context.Context, assignmentID string) ([]*store.MediaItem, error) {
	items, err := q.store.MediaByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	pending := items[:0]
	for _, item := range items {
		if item.Status == store.MediaPending || item.Status == store.MediaError {
			pending = append(pending, item)
		}
	}
	return pending, nil
}

// Outstanding reports whether any media for an assignment has not been
// confirmed uploaded. While true, the assignment's submission must not be
// sent.
func (q *Queue) Outstanding(ctx context.Context, assignmentID string) (bool, error) {
	items, err := q.store.OutstandingMediaByAssignment(ctx, assignmentID)
	if err != nil {
		return false, err
	}
	return len(items) > 0, nil
}

// MarkUploading moves a pending item into the uploading state for the
// duration of one attempt.
func (q *Queue) MarkUploading(ctx context.Context, itemID string) error {
	item, err := q.store.GetMedia(ctx, itemID)
	if err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("media item %s not found", itemID)
	}
	if item.Status != store.MediaPending {
		return fmt.Errorf("media item %s is %s, not pending", itemID, item.Status)
	}
	return q.store.UpdateMediaState(ctx, itemID, store.MediaUploading, item.RetryCount, item.LastError)
}

// MarkUploaded removes the item after a confirmed upload; success means it no
// longer needs local storage.
func (q *Queue) MarkUploaded(ctx context.Context, itemID string) error {
	removed, err := q.store.DeleteMedia(ctx, itemID)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("media item %s not found", itemID)
	}
	return nil
}

// MarkFailed records a failed upload attempt. Retryable failures return the
// item to pending with the retry count incremented; reaching the ceiling, or
// a terminal server rejection, parks it in error until a manual retry. The
// returned flag reports whether the item is now terminal.
func (q *Queue) MarkFailed(ctx context.Context, itemID string, cause error) (bool, error) {
	item, err := q.store.GetMedia(ctx, itemID)
	if err != nil {
		return false, err
	}
	if item == nil {
		return false, fmt.Errorf("media item %s not found", itemID)
	}

	retryCount := item.RetryCount + 1
	message := ""
	if cause != nil {
		message = cause.Error()
	}

	terminal := retryCount >= q.ceiling || backend.IsTerminal(cause)
	status := store.MediaPending
	if terminal {
		status = store.MediaError
	}
	if err := q.store.UpdateMediaState(ctx, itemID, status, retryCount, message); err != nil {
		return false, err
	}
	if terminal {
		q.logger.Warn("media upload needs attention",
			logging.String(logging.FieldMediaID, itemID),
			logging.String(logging.FieldAssignmentID, item.AssignmentID),
			logging.Int(logging.FieldRetryCount, retryCount),
			logging.String(logging.FieldEventType, "media_upload_exhausted"),
			logging.String(logging.FieldErrorHint, "retry manually with 'fieldsync media retry'"),
		)
	}
	return terminal, nil
}

// Retry is the manual path out of the terminal error state: retry count
// resets to zero and the item returns to pending.
func (q *Queue) Retry(ctx context.Context, itemID string) error {
	item, err := q.store.GetMedia(ctx, itemID)
	if err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("media item %s not found", itemID)
	}
	if item.Status != store.MediaError {
		return fmt.Errorf("media item %s is %s, not error", itemID, item.Status)
	}
	return q.store.UpdateMediaState(ctx, itemID, store.MediaPending, 0, "")
}

// ReleaseStuck returns items left in uploading (an aborted sync pass) to
// pending without counting an attempt, so the next pass retries them.
func (q *Queue) ReleaseStuck(ctx context.Context) (int, error) {
	items, err := q.store.MediaByStatus(ctx, store.MediaUploading)
	if err != nil {
		return 0, err
	}
	released := 0
	for _, item := range items {
		if err := q.store.UpdateMediaState(ctx, item.ID, store.MediaPending, item.RetryCount, item.LastError); err != nil {
			return released, err
		}
		released++
	}
	return released, nil
}

// Snapshot returns every queued item across assignments, grouped by state.
func (q *Queue) Snapshot(ctx context.Context) ([]*store.MediaItem, error) {
	var all []*store.MediaItem
	for _, status := range []store.MediaStatus{store.MediaPending, store.MediaUploading, store.MediaError} {
		items, err := q.store.MediaByStatus(ctx, status)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
	}
	return all, nil
}

// NeedsAttention returns items parked in the terminal error state.
func (q *Queue) NeedsAttention(ctx context.Context) ([]*store.MediaItem, error) {
	return q.store.MediaByStatus(ctx, store.MediaError)
}
