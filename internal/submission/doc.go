// Package submission owns the single outstanding "finalize this inspection"
// intent per assignment until the server confirms receipt.
//
// Enqueue is an overwrite-upsert: the newest finalize intent supersedes an
// older unsent one, which is safe because the draft remains the source of
// truth for content. Entries leave the queue only through an explicit server
// acknowledgment; exhausted retries flag the entry for user attention but
// never drop it.
package submission
