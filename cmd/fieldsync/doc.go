// Command fieldsync is the inspector-facing CLI for the offline
// field-inspection engine: pulling assignments, working drafts and media
// while disconnected, and pushing queued work back to the backend.
package main
