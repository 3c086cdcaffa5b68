package store

import "errors"

// ErrStorageUnavailable indicates the local database could not be opened or
// initialized. Offline capability cannot be offered on this device; callers
// surface it immediately instead of retrying.
var ErrStorageUnavailable = errors.New("local storage unavailable")
