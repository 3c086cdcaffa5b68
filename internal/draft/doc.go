// Package draft keeps the most recent answer set for each assignment durable
// without an explicit user save.
//
// Rapid edits coalesce in memory for a short quiet window before being
// flushed to the store; the draft on disk is always the latest queued value.
// There is no merge across sessions: the later write wins.
package draft
