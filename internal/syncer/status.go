package syncer

import "time"

// Status is the single high-level sync state exposed to user interfaces.
type Status string

const (
	StatusIdle        Status = "idle"
	StatusDownloading Status = "downloading"
	StatusUploading   Status = "uploading"
	StatusError       Status = "error"
)

// Summary snapshots coordinator state for status surfaces.
type Summary struct {
	Status     Status
	Online     bool
	LastSyncAt time.Time
	LastError  string
}

// Report tallies the outcome of one push pass.
type Report struct {
	MediaUploaded     int
	MediaFailed       int
	SubmissionsSent   int
	SubmissionsFailed int
	Blocked           int
}

// Clean reports whether the pass completed without any failed attempt.
func (r Report) Clean() bool {
	return r.MediaFailed == 0 && r.SubmissionsFailed == 0
}
