// Package media owns the lifecycle of locally captured binary evidence until
// it is durably on the server.
//
// Items enter as pending, move to uploading for the duration of one attempt,
// and are deleted on confirmed upload. A retryable failure returns the item
// to pending with its retry count incremented; hitting the retry ceiling (or
// a server rejection) parks it in a terminal error state that only a manual
// retry can leave. Failed items are surfaced, never silently dropped.
package media
