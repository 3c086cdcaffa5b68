package media_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"fieldsync/internal/backend"
	"fieldsync/internal/logging"
	"fieldsync/internal/media"
	"fieldsync/internal/store"
	"fieldsync/internal/testsupport"
)

func newQueue(t *testing.T, ceiling int) (*media.Queue, *store.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	return media.NewQueue(st, logging.NewNop(), ceiling), st
}

func TestEnqueueIsDurableImmediately(t *testing.T) {
	queue, st := newQueue(t, 5)
	ctx := context.Background()

	item, err := queue.Enqueue(ctx, "a-1", "photo_panel", []byte{0xFF}, "image/jpeg", "panel")
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if item.Status != store.MediaPending {
		t.Fatalf("expected pending, got %s", item.Status)
	}

	fetched, err := st.GetMedia(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetMedia failed: %v", err)
	}
	if fetched == nil {
		t.Fatal("expected item persisted")
	}

	outstanding, err := queue.Outstanding(ctx, "a-1")
	if err != nil {
		t.Fatalf("Outstanding failed: %v", err)
	}
	if !outstanding {
		t.Fatal("expected outstanding media for assignment")
	}
}

func TestEnqueueValidatesInput(t *testing.T) {
	queue, _ := newQueue(t, 5)
	ctx := context.Background()

	if _, err := queue.Enqueue(ctx, "", "slot", []byte{0x1}, "", ""); err == nil {
		t.Fatal("expected error for missing assignment id")
	}
	if _, err := queue.Enqueue(ctx, "a-1", "", []byte{0x1}, "", ""); err == nil {
		t.Fatal("expected error for missing slot id")
	}
	if _, err := queue.Enqueue(ctx, "a-1", "slot", nil, "", ""); err == nil {
		t.Fatal("expected error for empty content")
	}
}

func TestMarkFailedBelowCeilingStaysPending(t *testing.T) {
	queue, _ := newQueue(t, 5)
	ctx := context.Background()

	item, err := queue.Enqueue(ctx, "a-1", "slot", []byte{0x1}, "image/jpeg", "")
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	terminal, err := queue.MarkFailed(ctx, item.ID, errors.New("connection reset"))
	if err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}
	if terminal {
		t.Fatal("first failure should not be terminal")
	}

	pending, err := queue.ListPending(ctx, "a-1")
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(pending) != 1 || pending[0].Status != store.MediaPending || pending[0].RetryCount != 1 {
		t.Fatalf("unexpected state after failure: %#v", pending[0])
	}
}

func TestMarkFailedReachesCeilingAndManualRetryResets(t *testing.T) {
	const ceiling = 3
	queue, _ := newQueue(t, ceiling)
	ctx := context.Background()

	item, err := queue.Enqueue(ctx, "a-1", "slot", []byte{0x1}, "image/jpeg", "")
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	var terminal bool
	for i := 0; i < ceiling; i++ {
		terminal, err = queue.MarkFailed(ctx, item.ID, fmt.Errorf("attempt %d", i+1))
		if err != nil {
			t.Fatalf("MarkFailed failed: %v", err)
		}
	}
	if !terminal {
		t.Fatalf("expected terminal after %d failures", ceiling)
	}

	flagged, err := queue.NeedsAttention(ctx)
	if err != nil {
		t.Fatalf("NeedsAttention failed: %v", err)
	}
	if len(flagged) != 1 || flagged[0].Status != store.MediaError {
		t.Fatalf("expected one errored item, got %#v", flagged)
	}

	if err := queue.Retry(ctx, item.ID); err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	pending, err := queue.ListPending(ctx, "a-1")
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(pending) != 1 || pending[0].Status != store.MediaPending || pending[0].RetryCount != 0 {
		t.Fatalf("expected reset to pending with zero retries, got %#v", pending[0])
	}
}

func TestMarkFailedTerminalRejectionSkipsRemainingRetries(t *testing.T) {
	queue, _ := newQueue(t, 5)
	ctx := context.Background()

	item, err := queue.Enqueue(ctx, "a-1", "slot", []byte{0x1}, "image/jpeg", "")
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	cause := fmt.Errorf("%w: unsupported media type", backend.ErrRejected)
	terminal, err := queue.MarkFailed(ctx, item.ID, cause)
	if err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}
	if !terminal {
		t.Fatal("server rejection should be terminal on the first failure")
	}
}

func TestRetryRequiresErrorState(t *testing.T) {
	queue, _ := newQueue(t, 5)
	ctx := context.Background()

	item, err := queue.Enqueue(ctx, "a-1", "slot", []byte{0x1}, "image/jpeg", "")
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := queue.Retry(ctx, item.ID); err == nil {
		t.Fatal("expected error retrying a pending item")
	}
}

func TestMarkUploadingRequiresPending(t *testing.T) {
	queue, st := newQueue(t, 5)
	ctx := context.Background()

	item, err := queue.Enqueue(ctx, "a-1", "slot", []byte{0x1}, "image/jpeg", "")
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := queue.MarkUploading(ctx, item.ID); err != nil {
		t.Fatalf("MarkUploading failed: %v", err)
	}
	if err := queue.MarkUploading(ctx, item.ID); err == nil {
		t.Fatal("expected error marking an uploading item again")
	}

	fetched, err := st.GetMedia(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetMedia failed: %v", err)
	}
	if fetched.Status != store.MediaUploading {
		t.Fatalf("expected uploading, got %s", fetched.Status)
	}
}

func TestReleaseStuckReturnsUploadingToPending(t *testing.T) {
	queue, _ := newQueue(t, 5)
	ctx := context.Background()

	item, err := queue.Enqueue(ctx, "a-1", "slot", []byte{0x1}, "image/jpeg", "")
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := queue.MarkUploading(ctx, item.ID); err != nil {
		t.Fatalf("MarkUploading failed: %v", err)
	}

	released, err := queue.ReleaseStuck(ctx)
	if err != nil {
		t.Fatalf("ReleaseStuck failed: %v", err)
	}
	if released != 1 {
		t.Fatalf("expected one released item, got %d", released)
	}

	pending, err := queue.ListPending(ctx, "a-1")
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	// No attempt happened, so the retry count must not move.
	if len(pending) != 1 || pending[0].RetryCount != 0 {
		t.Fatalf("expected pending item with zero retries, got %#v", pending)
	}
}

func TestMarkUploadedRemovesItem(t *testing.T) {
	queue, _ := newQueue(t, 5)
	ctx := context.Background()

	item, err := queue.Enqueue(ctx, "a-1", "slot", []byte{0x1}, "image/jpeg", "")
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := queue.MarkUploading(ctx, item.ID); err != nil {
		t.Fatalf("MarkUploading failed: %v", err)
	}
	if err := queue.MarkUploaded(ctx, item.ID); err != nil {
		t.Fatalf("MarkUploaded failed: %v", err)
	}

	outstanding, err := queue.Outstanding(ctx, "a-1")
	if err != nil {
		t.Fatalf("Outstanding failed: %v", err)
	}
	if outstanding {
		t.Fatal("expected no outstanding media after upload")
	}
}
