package store

import (
	"encoding/json"
	"strings"
	"time"
)

// AssignmentStatus represents the lifecycle of a field assignment.
type AssignmentStatus string

const (
	AssignmentScheduled  AssignmentStatus = "scheduled"
	AssignmentInProgress AssignmentStatus = "in_progress"
	AssignmentCompleted  AssignmentStatus = "completed"
)

// ParseAssignmentStatus converts a string into a known AssignmentStatus.
func ParseAssignmentStatus(value string) (AssignmentStatus, bool) {
	normalized := AssignmentStatus(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case AssignmentScheduled, AssignmentInProgress, AssignmentCompleted:
		return normalized, true
	default:
		return "", false
	}
}

// Assignment is one unit of field work received from the backend.
type Assignment struct {
	ID            string
	ApplicationID string
	Location      string
	WorkType      string
	ScheduledFor  time.Time
	Detail        json.RawMessage
	TemplateID    string
	Status        AssignmentStatus
	Synced        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Template is an immutable (per version) form schema.
type Template struct {
	ID        string
	Name      string
	Version   int64
	Schema    json.RawMessage
	UpdatedAt time.Time
}

// Draft is the latest in-progress answer set for an assignment. At most one
// draft exists per assignment; the later write always wins.
type Draft struct {
	AssignmentID string
	Answers      json.RawMessage
	UpdatedAt    time.Time
}

// MediaStatus represents the upload lifecycle of a captured media item.
//
// pending -> uploading -> removed on success. A retryable failure returns the
// item to pending; exceeding the retry ceiling parks it in error until a
// manual retry resets it.
type MediaStatus string

const (
	MediaPending   MediaStatus = "pending"
	MediaUploading MediaStatus = "uploading"
	MediaError     MediaStatus = "error"
)

// MediaItem is one captured piece of binary evidence awaiting upload.
// Content, owning assignment, and slot are immutable after creation; only
// Status, RetryCount, and LastError mutate.
type MediaItem struct {
	ID           string
	AssignmentID string
	SlotID       string
	Content      []byte
	MimeType     string
	Caption      string
	Status       MediaStatus
	RetryCount   int
	LastError    string
	CreatedAt    time.Time
}

// Submission is one finalized inspection result awaiting server
// acknowledgment. One outstanding submission exists per assignment; a newer
// finalize intent overwrites an older unsent one.
type Submission struct {
	AssignmentID   string
	Payload        json.RawMessage
	EnqueuedAt     time.Time
	RetryCount     int
	NeedsAttention bool
	LastError      string
}

// HealthSummary aggregates queue counts for diagnostic output.
type HealthSummary struct {
	Assignments    int
	Templates      int
	Drafts         int
	PendingMedia   int
	ErroredMedia   int
	Submissions    int
	NeedsAttention int
}

// DatabaseHealth captures diagnostic information about the local database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	TablesPresent    []string
	MissingTables    []string
	IntegrityCheck   bool
	Error            string
}
