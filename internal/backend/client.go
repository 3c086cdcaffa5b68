package backend

import (
	"context"
	"encoding/json"
	"time"
)

// RemoteAssignment is one unit of field work as delivered by the backend.
type RemoteAssignment struct {
	ID            string          `json:"id"`
	ApplicationID string          `json:"applicationId"`
	Location      string          `json:"location"`
	WorkType      string          `json:"workType"`
	ScheduledFor  time.Time       `json:"scheduledFor"`
	Detail        json.RawMessage `json:"detail"`
	TemplateID    string          `json:"templateId"`
	Status        string          `json:"status"`
}

// RemoteTemplate is a versioned form schema as delivered by the backend.
type RemoteTemplate struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Version int64           `json:"version"`
	Schema  json.RawMessage `json:"schema"`
}

// AssignmentBatch is the result of one assignment pull: the inspector's
// current work plus every template those assignments reference.
type AssignmentBatch struct {
	Assignments []RemoteAssignment `json:"assignments"`
	Templates   []RemoteTemplate   `json:"templates"`
}

// MediaUpload describes one media upload attempt. ItemID is the locally
// generated identifier and doubles as the idempotency key, so a retry after
// an ambiguous outcome cannot create a duplicate server-side artifact.
type MediaUpload struct {
	ItemID       string
	AssignmentID string
	SlotID       string
	Content      []byte
	MimeType     string
	Caption      string
}

// MediaRef is the server-side handle for an uploaded media item. Submission
// payloads reference media by ref, never by raw binary.
type MediaRef struct {
	Ref string `json:"mediaRef"`
}

// Client is the surface the sync engine needs from the inspections backend.
type Client interface {
	// FetchAssignments pulls the current assignment set and referenced
	// templates for this device profile.
	FetchAssignments(ctx context.Context) (*AssignmentBatch, error)
	// UploadMedia sends one captured media item and returns its server ref.
	UploadMedia(ctx context.Context, upload MediaUpload) (*MediaRef, error)
	// SubmitInspection sends a finalized inspection result. A nil error means
	// the server explicitly acknowledged receipt.
	SubmitInspection(ctx context.Context, assignmentID string, payload json.RawMessage) error
	// Ping probes backend reachability without side effects.
	Ping(ctx context.Context) error
}
