package backend_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"fieldsync/internal/backend"
	"fieldsync/internal/testsupport"
)

func newClient(t *testing.T, handler http.Handler) *backend.HTTPClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	cfg := testsupport.NewConfig(t, testsupport.WithBackendURL(server.URL))
	return backend.NewHTTPClient(cfg)
}

func TestFetchAssignmentsSendsAuthHeaders(t *testing.T) {
	var gotAuth, gotProfile string
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/assignments" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotProfile = r.Header.Get("X-Device-Profile")
		json.NewEncoder(w).Encode(backend.AssignmentBatch{
			Assignments: []backend.RemoteAssignment{{ID: "a-1"}},
		})
	}))

	batch, err := client.FetchAssignments(context.Background())
	if err != nil {
		t.Fatalf("FetchAssignments failed: %v", err)
	}
	if len(batch.Assignments) != 1 || batch.Assignments[0].ID != "a-1" {
		t.Fatalf("unexpected batch: %#v", batch)
	}
	if gotAuth != "Bearer test" {
		t.Fatalf("expected bearer token, got %q", gotAuth)
	}
	if gotProfile == "" {
		t.Fatal("expected device profile header")
	}
}

func TestUploadMediaCarriesIdempotencyKey(t *testing.T) {
	var gotKey string
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if r.FormValue("slotId") != "photo_panel" {
			t.Errorf("unexpected slotId %q", r.FormValue("slotId"))
		}
		json.NewEncoder(w).Encode(backend.MediaRef{Ref: "remote-1"})
	}))

	ref, err := client.UploadMedia(context.Background(), backend.MediaUpload{
		ItemID:       "item-1",
		AssignmentID: "a-1",
		SlotID:       "photo_panel",
		Content:      []byte{0x1, 0x2},
		MimeType:     "image/jpeg",
	})
	if err != nil {
		t.Fatalf("UploadMedia failed: %v", err)
	}
	if ref.Ref != "remote-1" {
		t.Fatalf("unexpected ref: %#v", ref)
	}
	if gotKey != "item-1" {
		t.Fatalf("expected item id as idempotency key, got %q", gotKey)
	}
}

func TestUploadMediaClassifiesRejection(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unsupported media type", http.StatusUnsupportedMediaType)
	}))

	_, err := client.UploadMedia(context.Background(), backend.MediaUpload{
		ItemID:       "item-1",
		AssignmentID: "a-1",
		SlotID:       "slot",
		Content:      []byte{0x1},
	})
	if !errors.Is(err, backend.ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
}

func TestSubmitInspectionRequiresAcknowledgment(t *testing.T) {
	acknowledged := false
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]bool{"acknowledged": acknowledged})
	}))

	err := client.SubmitInspection(context.Background(), "a-1", json.RawMessage(`{}`))
	if !errors.Is(err, backend.ErrTransient) {
		t.Fatalf("expected transient error without acknowledgment, got %v", err)
	}

	acknowledged = true
	if err := client.SubmitInspection(context.Background(), "a-1", json.RawMessage(`{}`)); err != nil {
		t.Fatalf("SubmitInspection failed: %v", err)
	}
}

func TestTransportFailureIsTransient(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()
	cfg := testsupport.NewConfig(t, testsupport.WithBackendURL(url))
	client := backend.NewHTTPClient(cfg)

	if err := client.Ping(context.Background()); !errors.Is(err, backend.ErrTransient) {
		t.Fatalf("expected ErrTransient for refused connection, got %v", err)
	}
}
