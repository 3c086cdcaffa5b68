package forms_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"fieldsync/internal/draft"
	"fieldsync/internal/forms"
	"fieldsync/internal/logging"
	"fieldsync/internal/media"
	"fieldsync/internal/store"
	"fieldsync/internal/submission"
	"fieldsync/internal/testsupport"
)

type fixture struct {
	store       *store.Store
	service     *forms.Service
	media       *media.Queue
	submissions *submission.Queue
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	drafts := draft.New(st, logging.NewNop(), time.Duration(cfg.Sync.DraftFlushMillis)*time.Millisecond)
	t.Cleanup(func() {
		drafts.Close()
	})
	mediaQueue := media.NewQueue(st, logging.NewNop(), cfg.Sync.RetryCeiling)
	submissionQueue := submission.NewQueue(st, logging.NewNop(), cfg.Sync.RetryCeiling)
	service := forms.NewService(st, drafts, mediaQueue, submissionQueue, logging.NewNop())
	return &fixture{
		store:       st,
		service:     service,
		media:       mediaQueue,
		submissions: submissionQueue,
	}
}

func TestOpenLoadsSessionAndMarksInProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	testsupport.SeedAssignment(t, f.store, "a-1")
	testsupport.SeedTemplate(t, f.store, "tpl-1", 1)

	session, err := f.service.Open(ctx, "a-1")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if session.Assignment == nil || session.Assignment.ID != "a-1" {
		t.Fatalf("unexpected assignment: %#v", session.Assignment)
	}
	if session.Template == nil || session.Template.ID != "tpl-1" {
		t.Fatalf("expected template loaded, got %#v", session.Template)
	}
	if session.Draft != nil {
		t.Fatalf("expected no draft for a fresh assignment, got %#v", session.Draft)
	}

	fetched, err := f.store.GetAssignment(ctx, "a-1")
	if err != nil {
		t.Fatalf("GetAssignment failed: %v", err)
	}
	if fetched.Status != store.AssignmentInProgress {
		t.Fatalf("expected in_progress after open, got %s", fetched.Status)
	}
}

func TestOpenToleratesMissingTemplate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	testsupport.SeedAssignment(t, f.store, "a-1")

	session, err := f.service.Open(ctx, "a-1")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if session.Template != nil {
		t.Fatalf("expected nil template when not cached, got %#v", session.Template)
	}
}

func TestOpenMissingAssignmentFails(t *testing.T) {
	f := newFixture(t)

	if _, err := f.service.Open(context.Background(), "no-such"); err == nil {
		t.Fatal("expected error for unknown assignment")
	}
}

func TestSeedAssignmentAllowsDirectOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assignment := &store.Assignment{
		ID:            "a-9",
		ApplicationID: "app-a-9",
		Location:      "4 Mill Rd",
		WorkType:      "plumbing",
		ScheduledFor:  time.Now().UTC().Add(2 * time.Hour),
		TemplateID:    "tpl-9",
		Status:        store.AssignmentScheduled,
	}
	template := &store.Template{
		ID:      "tpl-9",
		Name:    "Plumbing Inspection",
		Version: 3,
		Schema:  json.RawMessage(`{"fields":[]}`),
	}
	if err := f.service.SeedAssignment(ctx, assignment, template); err != nil {
		t.Fatalf("SeedAssignment failed: %v", err)
	}

	session, err := f.service.Open(ctx, "a-9")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if session.Template == nil || session.Template.Version != 3 {
		t.Fatalf("expected seeded template, got %#v", session.Template)
	}

	// Seeding with a stale template keeps the newer cached version.
	stale := &store.Template{ID: "tpl-9", Name: "Plumbing Inspection", Version: 2, Schema: json.RawMessage(`{}`)}
	if err := f.service.SeedAssignment(ctx, assignment, stale); err != nil {
		t.Fatalf("SeedAssignment failed: %v", err)
	}
	cached, err := f.store.GetTemplate(ctx, "tpl-9")
	if err != nil {
		t.Fatalf("GetTemplate failed: %v", err)
	}
	if cached.Version != 3 {
		t.Fatalf("expected version 3 retained, got %d", cached.Version)
	}
}

func TestFinalizeQueuesSubmissionWithMediaRefs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	testsupport.SeedAssignment(t, f.store, "a-1")
	item, err := f.service.AttachMedia(ctx, "a-1", "photo_panel", []byte{0xAB}, "image/jpeg", "main panel")
	if err != nil {
		t.Fatalf("AttachMedia failed: %v", err)
	}

	answers := json.RawMessage(`{"panel_ok":true}`)
	if err := f.service.Finalize(ctx, "a-1", answers); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	entry, err := f.submissions.Get(ctx, "a-1")
	if err != nil {
		t.Fatalf("Get submission failed: %v", err)
	}
	if entry == nil {
		t.Fatal("expected queued submission")
	}
	var payload forms.Payload
	if err := json.Unmarshal(entry.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.AssignmentID != "a-1" || string(payload.Answers) != `{"panel_ok":true}` {
		t.Fatalf("unexpected payload: %#v", payload)
	}
	if len(payload.Media) != 1 || payload.Media[0].ItemID != item.ID || payload.Media[0].SlotID != "photo_panel" {
		t.Fatalf("expected media ref by item id, got %#v", payload.Media)
	}

	// The final draft mirrors the submitted answers.
	record, err := f.store.GetDraft(ctx, "a-1")
	if err != nil {
		t.Fatalf("GetDraft failed: %v", err)
	}
	if record == nil || string(record.Answers) != string(answers) {
		t.Fatalf("expected final draft saved, got %#v", record)
	}

	fetched, err := f.store.GetAssignment(ctx, "a-1")
	if err != nil {
		t.Fatalf("GetAssignment failed: %v", err)
	}
	if fetched.Status != store.AssignmentCompleted {
		t.Fatalf("expected completed status, got %s", fetched.Status)
	}
}

func TestDoubleFinalizeKeepsSingleEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	testsupport.SeedAssignment(t, f.store, "a-1")
	if err := f.service.Finalize(ctx, "a-1", json.RawMessage(`{"v":1}`)); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if err := f.service.Finalize(ctx, "a-1", json.RawMessage(`{"v":2}`)); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	entries, err := f.submissions.ListOutstanding(ctx)
	if err != nil {
		t.Fatalf("ListOutstanding failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected single queued submission, got %d", len(entries))
	}
	var payload forms.Payload
	if err := json.Unmarshal(entries[0].Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if string(payload.Answers) != `{"v":2}` {
		t.Fatalf("expected newest answers, got %s", payload.Answers)
	}
}

func TestEvictBlockedByOutstandingWork(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	testsupport.SeedAssignment(t, f.store, "a-1")
	if _, err := f.service.AttachMedia(ctx, "a-1", "slot", []byte{0x1}, "image/jpeg", ""); err != nil {
		t.Fatalf("AttachMedia failed: %v", err)
	}
	if err := f.service.Evict(ctx, "a-1"); err == nil {
		t.Fatal("expected eviction blocked by outstanding media")
	}

	if err := f.service.Finalize(ctx, "a-1", json.RawMessage(`{}`)); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if err := f.service.Evict(ctx, "a-1"); err == nil {
		t.Fatal("expected eviction blocked by unsent submission")
	}
}

func TestEvictRemovesAllLocalState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	testsupport.SeedAssignment(t, f.store, "a-1")
	if err := f.store.SaveDraft(ctx, "a-1", json.RawMessage(`{}`)); err != nil {
		t.Fatalf("SaveDraft failed: %v", err)
	}

	if err := f.service.Evict(ctx, "a-1"); err != nil {
		t.Fatalf("Evict failed: %v", err)
	}

	assignment, err := f.store.GetAssignment(ctx, "a-1")
	if err != nil {
		t.Fatalf("GetAssignment failed: %v", err)
	}
	if assignment != nil {
		t.Fatal("expected assignment removed")
	}
	record, err := f.store.GetDraft(ctx, "a-1")
	if err != nil {
		t.Fatalf("GetDraft failed: %v", err)
	}
	if record != nil {
		t.Fatal("expected draft removed")
	}
}
