package draft

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"fieldsync/internal/logging"
	"fieldsync/internal/store"
)

// Autosave persists in-progress form answers per assignment, coalescing
// rapid edits into one durable write per quiet window.
type Autosave struct {
	store    *store.Store
	logger   *slog.Logger
	interval time.Duration

	mu      sync.Mutex
	pending map[string]json.RawMessage
	timers  map[string]*time.Timer
	closed  bool
}

// New constructs an Autosave flushing coalesced edits after the given quiet
// interval.
func New(st *store.Store, logger *slog.Logger, interval time.Duration) *Autosave {
	if interval <= 0 {
		interval = 750 * time.Millisecond
	}
	return &Autosave{
		store:    st,
		logger:   logging.NewComponentLogger(logger, "draft-autosave"),
		interval: interval,
		pending:  make(map[string]json.RawMessage),
		timers:   make(map[string]*time.Timer),
	}
}

// Save writes the draft immediately, bypassing coalescing. Any queued edit
// for the assignment is superseded.
func (a *Autosave) Save(ctx context.Context, assignmentID string, answers json.RawMessage) error {
	a.mu.Lock()
	delete(a.pending, assignmentID)
	if timer, ok := a.timers[assignmentID]; ok {
		timer.Stop()
		delete(a.timers, assignmentID)
	}
	a.mu.Unlock()

	return a.store.SaveDraft(ctx, assignmentID, answers)
}

// Queue records an edit for later flushing. The first edit in a quiet window
// arms a flush timer; later edits within the window replace the queued value
// without rearming, so a burst of keystrokes costs one write.
func (a *Autosave) Queue(assignmentID string, answers json.RawMessage) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return errors.New("autosave is closed")
	}
	a.pending[assignmentID] = answers
	if _, armed := a.timers[assignmentID]; !armed {
		a.timers[assignmentID] = time.AfterFunc(a.interval, func() {
			a.flushOne(assignmentID)
		})
	}
	return nil
}

// Load returns the draft for an assignment, or nil when none exists. A queued
// but unflushed edit is flushed first so readers never observe a stale draft.
func (a *Autosave) Load(ctx context.Context, assignmentID string) (*store.Draft, error) {
	a.mu.Lock()
	answers, dirty := a.pending[assignmentID]
	a.mu.Unlock()
	if dirty {
		if err := a.Save(ctx, assignmentID, answers); err != nil {
			return nil, err
		}
	}
	return a.store.GetDraft(ctx, assignmentID)
}

// Flush writes every queued edit immediately.
func (a *Autosave) Flush(ctx context.Context) error {
	a.mu.Lock()
	queued := make(map[string]json.RawMessage, len(a.pending))
	for id, answers := range a.pending {
		queued[id] = answers
		delete(a.pending, id)
		if timer, ok := a.timers[id]; ok {
			timer.Stop()
			delete(a.timers, id)
		}
	}
	a.mu.Unlock()

	var firstErr error
	for id, answers := range queued {
		if err := a.store.SaveDraft(ctx, id, answers); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close flushes queued edits and stops accepting new ones.
func (a *Autosave) Close() error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	return a.Flush(context.Background())
}

func (a *Autosave) flushOne(assignmentID string) {
	a.mu.Lock()
	answers, ok := a.pending[assignmentID]
	delete(a.pending, assignmentID)
	if timer, armed := a.timers[assignmentID]; armed {
		timer.Stop()
		delete(a.timers, assignmentID)
	}
	a.mu.Unlock()
	if !ok {
		return
	}
	if err := a.store.SaveDraft(context.Background(), assignmentID, answers); err != nil {
		a.logger.Error("draft flush failed",
			logging.Error(err),
			logging.String(logging.FieldAssignmentID, assignmentID),
			logging.String(logging.FieldEventType, "draft_flush_failed"),
		)
	}
}
