// Package syncer drives both directions of synchronization with the
// inspections backend and is the only component aware of connectivity.
//
// The pull direction caches assignments and form templates locally; the push
// direction drains each assignment's media queue and then its submission
// entry. Assignments are processed independently so one assignment's
// exhausted retries never block another's sync. While the device is known to
// be offline no network calls are attempted.
package syncer
