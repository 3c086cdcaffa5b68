package submission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"fieldsync/internal/backend"
	"fieldsync/internal/logging"
	"fieldsync/internal/store"
)

// DefaultRetryCeiling matches the media queue's attempt ceiling.
const DefaultRetryCeiling = 5

// Queue manages finalized submissions awaiting server acknowledgment.
type Queue struct {
	store   *store.Store
	logger  *slog.Logger
	ceiling int
}

// NewQueue constructs a submission queue with the given retry ceiling.
func NewQueue(st *store.Store, logger *slog.Logger, ceiling int) *Queue {
	if ceiling < 1 {
		ceiling = DefaultRetryCeiling
	}
	return &Queue{
		store:   st,
		logger:  logging.NewComponentLogger(logger, "submission-queue"),
		ceiling: ceiling,
	}
}

// Enqueue records the finalize intent for an assignment, replacing any prior
// unsent entry. Calling it twice in a row leaves exactly one entry.
func (q *Queue) Enqueue(ctx context.Context, assignmentID string, payload json.RawMessage) error {
	if assignmentID == "" {
		return errors.New("assignment id is required")
	}
	if err := q.store.SaveSubmission(ctx, assignmentID, payload); err != nil {
		return err
	}
	q.logger.Info("submission queued",
		logging.String(logging.FieldAssignmentID, assignmentID),
	)
	return nil
}

// ListOutstanding returns every queued submission, oldest first.
func (q *Queue) ListOutstanding(ctx context.Context) ([]*store.Submission, error) {
	return q.store.ListSubmissions(ctx)
}

// Get returns the outstanding submission for an assignment, or nil.
func (q *Queue) Get(ctx context.Context, assignmentID string) (*store.Submission, error) {
	return q.store.GetSubmission(ctx, assignmentID)
}

// Acknowledge removes the entry after an explicit server-confirmed success.
// It is the only path by which an entry disappears; network errors and
// timeouts leave the entry in place for retry.
func (q *Queue) Acknowledge(ctx context.Context, assignmentID string) error {
	removed, err := q.store.DeleteSubmission(ctx, assignmentID)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("no outstanding submission for assignment %s", assignmentID)
	}
	q.logger.Info("submission acknowledged",
		logging.String(logging.FieldAssignmentID, assignmentID),
	)
	return nil
}

// RecordAttemptFailure increments the retry count after a failed send. An
// entry that exceeds the ceiling, or was rejected outright by the server, is
// retained but flagged as needing user attention; finalized submissions are
// never silently dropped.
func (q *Queue) RecordAttemptFailure(ctx context.Context, assignmentID string, cause error) (bool, error) {
	entry, err := q.store.GetSubmission(ctx, assignmentID)
	if err != nil {
		return false, err
	}
	if entry == nil {
		return false, fmt.Errorf("no outstanding submission for assignment %s", assignmentID)
	}

	retryCount := entry.RetryCount + 1
	message := ""
	if cause != nil {
		message = cause.Error()
	}

	terminal := retryCount >= q.ceiling || backend.IsTerminal(cause)
	if err := q.store.UpdateSubmissionState(ctx, assignmentID, retryCount, terminal, message); err != nil {
		return false, err
	}
	if terminal {
		q.logger.Warn("submission needs attention",
			logging.String(logging.FieldAssignmentID, assignmentID),
			logging.Int(logging.FieldRetryCount, retryCount),
			logging.String(logging.FieldEventType, "submission_exhausted"),
			logging.String(logging.FieldErrorHint, "inspect with 'fieldsync status' and resolve before re-finalizing"),
		)
	}
	return terminal, nil
}

// NeedsAttention returns entries flagged for user action.
func (q *Queue) NeedsAttention(ctx context.Context) ([]*store.Submission, error) {
	entries, err := q.store.ListSubmissions(ctx)
	if err != nil {
		return nil, err
	}
	flagged := entries[:0]
	for _, entry := range entries {
		if entry.NeedsAttention {
			flagged = append(flagged, entry)
		}
	}
	return flagged, nil
}
