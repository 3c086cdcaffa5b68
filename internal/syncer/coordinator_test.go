package syncer_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"fieldsync/internal/backend"
	"fieldsync/internal/logging"
	"fieldsync/internal/media"
	"fieldsync/internal/store"
	"fieldsync/internal/submission"
	"fieldsync/internal/syncer"
	"fieldsync/internal/testsupport"
)

type harness struct {
	store       *store.Store
	backend     *testsupport.FakeBackend
	media       *media.Queue
	submissions *submission.Queue
	coordinator *syncer.Coordinator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	fake := testsupport.NewFakeBackend()
	mediaQueue := media.NewQueue(st, logging.NewNop(), cfg.Sync.RetryCeiling)
	submissionQueue := submission.NewQueue(st, logging.NewNop(), cfg.Sync.RetryCeiling)
	coordinator := syncer.New(fake, st, mediaQueue, submissionQueue, logging.NewNop())
	coordinator.SetOnline(true)
	return &harness{
		store:       st,
		backend:     fake,
		media:       mediaQueue,
		submissions: submissionQueue,
		coordinator: coordinator,
	}
}

func remoteAssignment(id string) backend.RemoteAssignment {
	return backend.RemoteAssignment{
		ID:            id,
		ApplicationID: "app-" + id,
		Location:      "12 Harbor St",
		WorkType:      "plumbing",
		ScheduledFor:  time.Now().UTC().Add(time.Hour),
		Detail:        json.RawMessage(`{"unit":"4B"}`),
		TemplateID:    "tpl-1",
		Status:        "scheduled",
	}
}

func TestDownloadAssignmentsCachesBatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.backend.Batch = testsupport.AssignmentBatch{
		Assignments: []backend.RemoteAssignment{remoteAssignment("a-1"), remoteAssignment("a-2")},
		Templates: []backend.RemoteTemplate{{
			ID:      "tpl-1",
			Name:    "Plumbing Inspection",
			Version: 1,
			Schema:  json.RawMessage(`{"fields":[]}`),
		}},
	}

	if err := h.coordinator.DownloadAssignments(ctx); err != nil {
		t.Fatalf("DownloadAssignments failed: %v", err)
	}

	assignments, err := h.store.ListAssignments(ctx)
	if err != nil {
		t.Fatalf("ListAssignments failed: %v", err)
	}
	if len(assignments) != 2 {
		t.Fatalf("expected 2 cached assignments, got %d", len(assignments))
	}
	for _, a := range assignments {
		if !a.Synced {
			t.Fatalf("expected assignment %s marked synced", a.ID)
		}
	}

	template, err := h.store.GetTemplate(ctx, "tpl-1")
	if err != nil {
		t.Fatalf("GetTemplate failed: %v", err)
	}
	if template == nil {
		t.Fatal("expected cached template")
	}

	summary := h.coordinator.Summary()
	if summary.Status != syncer.StatusIdle {
		t.Fatalf("expected idle after download, got %s", summary.Status)
	}
	if summary.LastSyncAt.IsZero() {
		t.Fatal("expected last sync time recorded")
	}
}

func TestDownloadFailureLeavesCacheUntouched(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	testsupport.SeedAssignment(t, h.store, "a-1")
	h.backend.FetchErr = fmt.Errorf("%w: gateway timeout", backend.ErrTransient)

	if err := h.coordinator.DownloadAssignments(ctx); err == nil {
		t.Fatal("expected download error")
	}

	assignments, err := h.store.ListAssignments(ctx)
	if err != nil {
		t.Fatalf("ListAssignments failed: %v", err)
	}
	if len(assignments) != 1 || assignments[0].ID != "a-1" {
		t.Fatalf("expected cache untouched, got %#v", assignments)
	}
	if h.coordinator.Summary().Status != syncer.StatusError {
		t.Fatalf("expected error status, got %s", h.coordinator.Summary().Status)
	}
}

func TestOfflineNeverTouchesNetwork(t *testing.T) {
	h := newHarness(t)
	h.coordinator.SetOnline(false)
	ctx := context.Background()

	if err := h.coordinator.DownloadAssignments(ctx); !errors.Is(err, backend.ErrOffline) {
		t.Fatalf("expected ErrOffline, got %v", err)
	}
	if _, err := h.coordinator.SyncPendingWork(ctx); !errors.Is(err, backend.ErrOffline) {
		t.Fatalf("expected ErrOffline, got %v", err)
	}
	if h.backend.UploadCount() != 0 {
		t.Fatal("expected no network activity while offline")
	}
}

func TestSyncDrainsMediaThenSubmission(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	testsupport.SeedAssignment(t, h.store, "a-1")
	first, err := h.media.Enqueue(ctx, "a-1", "slot-1", []byte{0x1}, "image/jpeg", "")
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	second, err := h.media.Enqueue(ctx, "a-1", "slot-2", []byte{0x2}, "image/jpeg", "")
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := h.submissions.Enqueue(ctx, "a-1", json.RawMessage(`{"answers":{}}`)); err != nil {
		t.Fatalf("Enqueue submission failed: %v", err)
	}

	report, err := h.coordinator.SyncPendingWork(ctx)
	if err != nil {
		t.Fatalf("SyncPendingWork failed: %v", err)
	}
	if report.MediaUploaded != 2 || report.SubmissionsSent != 1 {
		t.Fatalf("unexpected report: %#v", report)
	}

	// Media uploads oldest first.
	if len(h.backend.Uploads) != 2 || h.backend.Uploads[0].ItemID != first.ID || h.backend.Uploads[1].ItemID != second.ID {
		t.Fatalf("unexpected upload order: %#v", h.backend.Uploads)
	}
	if !h.backend.Submitted("a-1") {
		t.Fatal("expected submission sent")
	}

	entries, err := h.submissions.ListOutstanding(ctx)
	if err != nil {
		t.Fatalf("ListOutstanding failed: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected submission queue drained, got %d entries", len(entries))
	}
	outstanding, err := h.media.Outstanding(ctx, "a-1")
	if err != nil {
		t.Fatalf("Outstanding failed: %v", err)
	}
	if outstanding {
		t.Fatal("expected media queue drained")
	}
}

func TestPartialMediaFailureBlocksSubmission(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	testsupport.SeedAssignment(t, h.store, "a-1")
	if _, err := h.media.Enqueue(ctx, "a-1", "slot-1", []byte{0x1}, "image/jpeg", ""); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	failing, err := h.media.Enqueue(ctx, "a-1", "slot-2", []byte{0x2}, "image/jpeg", "")
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := h.submissions.Enqueue(ctx, "a-1", json.RawMessage(`{}`)); err != nil {
		t.Fatalf("Enqueue submission failed: %v", err)
	}

	h.backend.UploadErr = func(upload backend.MediaUpload) error {
		if upload.ItemID == failing.ID {
			return fmt.Errorf("%w: connection reset", backend.ErrTransient)
		}
		return nil
	}

	report, err := h.coordinator.SyncPendingWork(ctx)
	if err != nil {
		t.Fatalf("SyncPendingWork failed: %v", err)
	}
	if report.MediaUploaded != 1 || report.MediaFailed != 1 {
		t.Fatalf("unexpected report: %#v", report)
	}
	if report.SubmissionsSent != 0 || report.Blocked != 1 {
		t.Fatalf("submission should be blocked, got %#v", report)
	}
	if h.backend.Submitted("a-1") {
		t.Fatal("submission must not be sent while media is outstanding")
	}

	// Once the failing item succeeds, the next pass sends the submission.
	h.backend.UploadErr = nil
	report, err = h.coordinator.SyncPendingWork(ctx)
	if err != nil {
		t.Fatalf("SyncPendingWork failed: %v", err)
	}
	if report.MediaUploaded != 1 || report.SubmissionsSent != 1 {
		t.Fatalf("unexpected second-pass report: %#v", report)
	}
	if !h.backend.Submitted("a-1") {
		t.Fatal("expected submission sent after media drained")
	}
}

func TestAssignmentFailuresAreIndependent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	testsupport.SeedAssignment(t, h.store, "a-1")
	testsupport.SeedAssignment(t, h.store, "a-2")
	if err := h.submissions.Enqueue(ctx, "a-1", json.RawMessage(`{}`)); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := h.submissions.Enqueue(ctx, "a-2", json.RawMessage(`{}`)); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	h.backend.SubmitErr = func(assignmentID string) error {
		if assignmentID == "a-1" {
			return fmt.Errorf("%w: service unavailable", backend.ErrTransient)
		}
		return nil
	}

	report, err := h.coordinator.SyncPendingWork(ctx)
	if err != nil {
		t.Fatalf("SyncPendingWork failed: %v", err)
	}
	if report.SubmissionsSent != 1 || report.SubmissionsFailed != 1 {
		t.Fatalf("unexpected report: %#v", report)
	}
	if !h.backend.Submitted("a-2") {
		t.Fatal("expected the healthy assignment to sync")
	}

	entries, err := h.submissions.ListOutstanding(ctx)
	if err != nil {
		t.Fatalf("ListOutstanding failed: %v", err)
	}
	if len(entries) != 1 || entries[0].AssignmentID != "a-1" {
		t.Fatalf("expected only the failed entry retained, got %#v", entries)
	}
	if entries[0].RetryCount != 1 {
		t.Fatalf("expected one recorded attempt, got %d", entries[0].RetryCount)
	}
}

func TestTerminalMediaBlocksSubmissionUntilManualRetry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	testsupport.SeedAssignment(t, h.store, "a-1")
	item, err := h.media.Enqueue(ctx, "a-1", "slot-1", []byte{0x1}, "image/jpeg", "")
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := h.submissions.Enqueue(ctx, "a-1", json.RawMessage(`{}`)); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	h.backend.UploadErr = func(backend.MediaUpload) error {
		return fmt.Errorf("%w: unsupported media type", backend.ErrRejected)
	}

	report, err := h.coordinator.SyncPendingWork(ctx)
	if err != nil {
		t.Fatalf("SyncPendingWork failed: %v", err)
	}
	if report.MediaFailed != 1 || report.Blocked != 1 {
		t.Fatalf("unexpected report: %#v", report)
	}

	// Parked items get no automatic attempts on later passes.
	report, err = h.coordinator.SyncPendingWork(ctx)
	if err != nil {
		t.Fatalf("SyncPendingWork failed: %v", err)
	}
	if report.MediaFailed != 0 || report.Blocked != 1 {
		t.Fatalf("expected parked item skipped, got %#v", report)
	}

	h.backend.UploadErr = nil
	if err := h.media.Retry(ctx, item.ID); err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	report, err = h.coordinator.SyncPendingWork(ctx)
	if err != nil {
		t.Fatalf("SyncPendingWork failed: %v", err)
	}
	if report.MediaUploaded != 1 || report.SubmissionsSent != 1 {
		t.Fatalf("expected full drain after manual retry, got %#v", report)
	}
}

func TestSyncReleasesStuckUploads(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	testsupport.SeedAssignment(t, h.store, "a-1")
	item, err := h.media.Enqueue(ctx, "a-1", "slot-1", []byte{0x1}, "image/jpeg", "")
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	// Simulate a pass that died mid-upload.
	if err := h.media.MarkUploading(ctx, item.ID); err != nil {
		t.Fatalf("MarkUploading failed: %v", err)
	}

	report, err := h.coordinator.SyncPendingWork(ctx)
	if err != nil {
		t.Fatalf("SyncPendingWork failed: %v", err)
	}
	if report.MediaUploaded != 1 {
		t.Fatalf("expected stuck item released and uploaded, got %#v", report)
	}
}

func TestRegainedConnectivityWakesLoop(t *testing.T) {
	h := newHarness(t)
	h.coordinator.SetOnline(false)

	h.coordinator.SetOnline(true)
	select {
	case <-h.coordinator.WakeChan():
	default:
		t.Fatal("expected wake signal on offline to online transition")
	}
}
