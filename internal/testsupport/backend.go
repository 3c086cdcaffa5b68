package testsupport

import (
	"context"
	"encoding/json"
	"sync"

	"fieldsync/internal/backend"
)

// FakeBackend is an in-memory backend.Client for tests. Per-call hooks allow
// injecting failures; unset hooks succeed.
type FakeBackend struct {
	mu sync.Mutex

	Batch AssignmentBatch

	FetchErr  error
	UploadErr func(upload backend.MediaUpload) error
	SubmitErr func(assignmentID string) error
	PingErr   error

	Uploads     []backend.MediaUpload
	Submissions map[string]json.RawMessage
}

// AssignmentBatch mirrors the pull payload served by the fake.
type AssignmentBatch = backend.AssignmentBatch

// NewFakeBackend returns a fake that accepts everything.
func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		Submissions: make(map[string]json.RawMessage),
	}
}

func (f *FakeBackend) FetchAssignments(ctx context.Context) (*backend.AssignmentBatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FetchErr != nil {
		return nil, f.FetchErr
	}
	batch := f.Batch
	return &batch, nil
}

func (f *FakeBackend) UploadMedia(ctx context.Context, upload backend.MediaUpload) (*backend.MediaRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.UploadErr != nil {
		if err := f.UploadErr(upload); err != nil {
			return nil, err
		}
	}
	f.Uploads = append(f.Uploads, upload)
	return &backend.MediaRef{Ref: "remote-" + upload.ItemID}, nil
}

func (f *FakeBackend) SubmitInspection(ctx context.Context, assignmentID string, payload json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SubmitErr != nil {
		if err := f.SubmitErr(assignmentID); err != nil {
			return err
		}
	}
	f.Submissions[assignmentID] = payload
	return nil
}

func (f *FakeBackend) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.PingErr
}

// UploadCount returns the number of accepted uploads.
func (f *FakeBackend) UploadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Uploads)
}

// Submitted reports whether a submission for the assignment was accepted.
func (f *FakeBackend) Submitted(assignmentID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.Submissions[assignmentID]
	return ok
}
