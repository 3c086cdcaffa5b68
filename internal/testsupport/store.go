package testsupport

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"fieldsync/internal/config"
	"fieldsync/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// SeedAssignment saves a minimal assignment for tests and returns it.
func SeedAssignment(t testing.TB, st *store.Store, id string) *store.Assignment {
	t.Helper()

	assignment := &store.Assignment{
		ID:            id,
		ApplicationID: "app-" + id,
		Location:      "12 Harbor St",
		WorkType:      "electrical",
		ScheduledFor:  time.Now().UTC().Add(24 * time.Hour),
		Detail:        json.RawMessage(`{"floor":2}`),
		TemplateID:    "tpl-1",
		Status:        store.AssignmentScheduled,
	}
	if err := st.SaveAssignment(context.Background(), assignment); err != nil {
		t.Fatalf("store.SaveAssignment: %v", err)
	}
	return assignment
}

// SeedTemplate saves a minimal form template for tests and returns it.
func SeedTemplate(t testing.TB, st *store.Store, id string, version int64) *store.Template {
	t.Helper()

	template := &store.Template{
		ID:      id,
		Name:    "Electrical Inspection",
		Version: version,
		Schema:  json.RawMessage(`{"fields":[{"id":"panel_ok","type":"bool"}]}`),
	}
	if err := st.SaveTemplate(context.Background(), template); err != nil {
		t.Fatalf("store.SaveTemplate: %v", err)
	}
	return template
}
