// Package store provides the durable local database backing offline field
// inspections.
//
// Five collections live in one SQLite file: assignments, form templates,
// drafts, media items, and queued submissions. The store is the only
// component that touches SQL; lifecycle policy (retry ceilings, status
// transitions, what may be deleted when) belongs to the queue packages built
// on top of it. Writes are wholesale upserts by primary key so the contract
// stays simple and auditable.
package store
