package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fieldsync/internal/backend"
	"fieldsync/internal/logging"
	"fieldsync/internal/media"
	"fieldsync/internal/store"
	"fieldsync/internal/submission"
)

// Coordinator orchestrates pull and push synchronization against the
// inspections backend.
type Coordinator struct {
	client      backend.Client
	store       *store.Store
	media       *media.Queue
	submissions *submission.Queue
	logger      *slog.Logger

	mu         sync.Mutex
	status     Status
	online     bool
	lastSyncAt time.Time
	lastErr    error

	wake chan struct{}
}

// New constructs a sync coordinator. The device starts out presumed offline
// until the connectivity monitor reports otherwise.
func New(client backend.Client, st *store.Store, mediaQueue *media.Queue, submissionQueue *submission.Queue, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		client:      client,
		store:       st,
		media:       mediaQueue,
		submissions: submissionQueue,
		logger:      logging.NewComponentLogger(logger, "sync"),
		status:      StatusIdle,
		wake:        make(chan struct{}, 1),
	}
}

// Summary snapshots the coordinator state for status surfaces.
func (c *Coordinator) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	summary := Summary{
		Status:     c.status,
		Online:     c.online,
		LastSyncAt: c.lastSyncAt,
	}
	if c.lastErr != nil {
		summary.LastError = c.lastErr.Error()
	}
	return summary
}

// Online reports the last known connectivity state.
func (c *Coordinator) Online() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online
}

// SetOnline records a connectivity transition. Regaining connectivity wakes
// the sync loop so queued work is pushed promptly.
func (c *Coordinator) SetOnline(online bool) {
	c.mu.Lock()
	wasOnline := c.online
	c.online = online
	c.mu.Unlock()

	if online && !wasOnline {
		c.logger.Info("connectivity regained", logging.String(logging.FieldEventType, "connectivity_online"))
		c.Wake()
	}
	if !online && wasOnline {
		c.logger.Info("connectivity lost", logging.String(logging.FieldEventType, "connectivity_offline"))
	}
}

// Wake nudges the sync loop to run a pass soon.
func (c *Coordinator) Wake() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// WakeChan exposes the wake signal for the daemon's select loop.
func (c *Coordinator) WakeChan() <-chan struct{} {
	return c.wake
}

// DownloadAssignments pulls the current assignment set and referenced
// templates into the local store. Safe to call repeatedly; a failed pull
// leaves everything already cached untouched.
func (c *Coordinator) DownloadAssignments(ctx context.Context) error {
	if !c.Online() {
		return backend.ErrOffline
	}

	c.setStatus(StatusDownloading)
	batch, err := c.client.FetchAssignments(ctx)
	if err != nil {
		c.fail(fmt.Errorf("download assignments: %w", err))
		return err
	}

	// Templates first so an assignment never references a schema the store
	// has not seen.
	for _, remote := range batch.Templates {
		template := &store.Template{
			ID:      remote.ID,
			Name:    remote.Name,
			Version: remote.Version,
			Schema:  remote.Schema,
		}
		if err := c.store.SaveTemplate(ctx, template); err != nil {
			c.fail(err)
			return err
		}
	}
	for _, remote := range batch.Assignments {
		status, ok := store.ParseAssignmentStatus(remote.Status)
		if !ok {
			status = store.AssignmentScheduled
		}
		assignment := &store.Assignment{
			ID:            remote.ID,
			ApplicationID: remote.ApplicationID,
			Location:      remote.Location,
			WorkType:      remote.WorkType,
			ScheduledFor:  remote.ScheduledFor,
			Detail:        remote.Detail,
			TemplateID:    remote.TemplateID,
			Status:        status,
			Synced:        true,
		}
		if err := c.store.SaveAssignment(ctx, assignment); err != nil {
			c.fail(err)
			return err
		}
	}

	c.finish()
	c.logger.Info("assignments downloaded",
		logging.Int("assignments", len(batch.Assignments)),
		logging.Int("templates", len(batch.Templates)),
	)
	return nil
}

// SyncPendingWork pushes queued media and submissions. Each assignment's
// media drains oldest first, one attempt per item per pass; its submission is
// sent only once no media for it remains outstanding. Failures on one
// assignment never block another.
func (c *Coordinator) SyncPendingWork(ctx context.Context) (Report, error) {
	if !c.Online() {
		return Report{}, backend.ErrOffline
	}

	c.setStatus(StatusUploading)

	// Items stranded in uploading by an aborted pass go back to pending
	// before anything else, so no item is ever stuck there indefinitely.
	if _, err := c.media.ReleaseStuck(ctx); err != nil {
		c.fail(err)
		return Report{}, err
	}

	assignmentIDs, err := c.assignmentsWithWork(ctx)
	if err != nil {
		c.fail(err)
		return Report{}, err
	}

	var report Report
	for _, assignmentID := range assignmentIDs {
		if ctx.Err() != nil {
			c.abort(ctx.Err())
			return report, ctx.Err()
		}
		if err := c.syncAssignment(ctx, assignmentID, &report); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				c.abort(err)
				return report, err
			}
			// Store-level failure: record and move on to the next assignment.
			c.logger.Error("assignment sync failed",
				logging.Error(err),
				logging.String(logging.FieldAssignmentID, assignmentID),
				logging.String(logging.FieldEventType, "assignment_sync_failed"),
			)
			c.setLastError(err)
		}
	}

	if report.Clean() {
		c.finish()
	} else {
		c.setStatus(StatusError)
	}
	return report, nil
}

func (c *Coordinator) syncAssignment(ctx context.Context, assignmentID string, report *Report) error {
	items, err := c.media.ListPending(ctx, assignmentID)
	if err != nil {
		return err
	}

	for _, item := range items {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Terminal items wait for a manual retry; they still block the
		// submission below.
		if item.Status != store.MediaPending {
			continue
		}
		if err := c.uploadOne(ctx, item, report); err != nil {
			return err
		}
	}

	return c.maybeSubmit(ctx, assignmentID, report)
}

func (c *Coordinator) uploadOne(ctx context.Context, item *store.MediaItem, report *Report) error {
	if err := c.media.MarkUploading(ctx, item.ID); err != nil {
		return err
	}

	ref, err := c.client.UploadMedia(ctx, backend.MediaUpload{
		ItemID:       item.ID,
		AssignmentID: item.AssignmentID,
		SlotID:       item.SlotID,
		Content:      item.Content,
		MimeType:     item.MimeType,
		Caption:      item.Caption,
	})
	if ctx.Err() != nil {
		// Pass aborted before a definitive outcome: the item returns to
		// pending without an attempt counted.
		return ctx.Err()
	}
	if err != nil {
		report.MediaFailed++
		if _, failErr := c.media.MarkFailed(ctx, item.ID, err); failErr != nil {
			return failErr
		}
		c.logger.Warn("media upload failed",
			logging.Error(err),
			logging.String(logging.FieldMediaID, item.ID),
			logging.String(logging.FieldAssignmentID, item.AssignmentID),
			logging.String(logging.FieldEventType, "media_upload_failed"),
		)
		return nil
	}

	report.MediaUploaded++
	c.logger.Info("media uploaded",
		logging.String(logging.FieldMediaID, item.ID),
		logging.String(logging.FieldAssignmentID, item.AssignmentID),
		logging.String("media_ref", ref.Ref),
	)
	return c.media.MarkUploaded(ctx, item.ID)
}

func (c *Coordinator) maybeSubmit(ctx context.Context, assignmentID string, report *Report) error {
	entry, err := c.submissions.Get(ctx, assignmentID)
	if err != nil {
		return err
	}
	if entry == nil {
		return nil
	}

	outstanding, err := c.media.Outstanding(ctx, assignmentID)
	if err != nil {
		return err
	}
	if outstanding {
		// Referenced media has not all landed; the submission stays queued.
		report.Blocked++
		return nil
	}

	err = c.client.SubmitInspection(ctx, assignmentID, entry.Payload)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		report.SubmissionsFailed++
		if _, failErr := c.submissions.RecordAttemptFailure(ctx, assignmentID, err); failErr != nil {
			return failErr
		}
		c.logger.Warn("submission send failed",
			logging.Error(err),
			logging.String(logging.FieldAssignmentID, assignmentID),
			logging.String(logging.FieldEventType, "submission_send_failed"),
		)
		return nil
	}

	report.SubmissionsSent++
	return c.submissions.Acknowledge(ctx, assignmentID)
}

// assignmentsWithWork returns the union of assignments holding media and
// assignments holding a queued submission, preserving oldest-first order.
func (c *Coordinator) assignmentsWithWork(ctx context.Context) ([]string, error) {
	withMedia, err := c.store.AssignmentIDsWithMedia(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := c.submissions.ListOutstanding(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(withMedia)+len(entries))
	ids := make([]string, 0, len(withMedia)+len(entries))
	for _, id := range withMedia {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, entry := range entries {
		if _, ok := seen[entry.AssignmentID]; ok {
			continue
		}
		seen[entry.AssignmentID] = struct{}{}
		ids = append(ids, entry.AssignmentID)
	}
	return ids, nil
}

func (c *Coordinator) setStatus(status Status) {
	c.mu.Lock()
	c.status = status
	c.mu.Unlock()
}

func (c *Coordinator) setLastError(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

func (c *Coordinator) finish() {
	c.mu.Lock()
	c.status = StatusIdle
	c.lastSyncAt = time.Now().UTC()
	c.lastErr = nil
	c.mu.Unlock()
}

func (c *Coordinator) fail(err error) {
	c.mu.Lock()
	c.status = StatusError
	c.lastErr = err
	c.mu.Unlock()
}

func (c *Coordinator) abort(err error) {
	// A cancelled pass is not an error state; remaining work simply waits
	// for the next pass. Items caught mid-upload are released on entry to
	// the next pass.
	c.mu.Lock()
	c.status = StatusIdle
	if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		c.lastErr = err
	}
	c.mu.Unlock()
}
