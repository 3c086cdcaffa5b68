package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"fieldsync/internal/config"
	"fieldsync/internal/logging"
	"fieldsync/internal/store"
)

type apiServer struct {
	bind   string
	token  string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

type statusResponse struct {
	Running      bool                `json:"running"`
	SyncStatus   string              `json:"sync_status"`
	Online       bool                `json:"online"`
	LastSyncAt   string              `json:"last_sync_at,omitempty"`
	LastError    string              `json:"last_error,omitempty"`
	Health       store.HealthSummary `json:"health"`
	DBPath       string              `json:"db_path"`
	LockFilePath string              `json:"lock_file_path"`
}

type queueResponse struct {
	Media       []mediaEntry      `json:"media"`
	Submissions []submissionEntry `json:"submissions"`
}

type mediaEntry struct {
	ID           string `json:"id"`
	AssignmentID string `json:"assignment_id"`
	SlotID       string `json:"slot_id"`
	Status       string `json:"status"`
	RetryCount   int    `json:"retry_count"`
	LastError    string `json:"last_error,omitempty"`
	CreatedAt    string `json:"created_at"`
}

type submissionEntry struct {
	AssignmentID   string `json:"assignment_id"`
	EnqueuedAt     string `json:"enqueued_at"`
	RetryCount     int    `json:"retry_count"`
	NeedsAttention bool   `json:"needs_attention"`
	LastError      string `json:"last_error,omitempty"`
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		token:  cfg.Paths.APIToken,
		logger: logger,
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", authMiddleware(srv.token, srv.handleStatus))
	mux.HandleFunc("/api/queue", authMiddleware(srv.token, srv.handleQueue))
	mux.HandleFunc("/api/attention", authMiddleware(srv.token, srv.handleAttention))
	mux.HandleFunc("/api/sync", authMiddleware(srv.token, srv.handleSync))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	payload := statusResponse{
		Running:      status.Running,
		SyncStatus:   string(status.Sync.Status),
		Online:       status.Sync.Online,
		LastError:    status.Sync.LastError,
		Health:       status.Health,
		DBPath:       status.DBPath,
		LockFilePath: status.LockFilePath,
	}
	if !status.Sync.LastSyncAt.IsZero() {
		payload.LastSyncAt = status.Sync.LastSyncAt.Format(time.RFC3339)
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	resp, err := s.collectQueues(r.Context(), false)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleAttention(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	resp, err := s.collectQueues(r.Context(), true)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.daemon.SyncNow()
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "sync requested"})
}

func (s *apiServer) collectQueues(ctx context.Context, attentionOnly bool) (queueResponse, error) {
	var (
		items       []*store.MediaItem
		submissions []*store.Submission
		err         error
	)
	if attentionOnly {
		items, err = s.daemon.MediaNeedingAttention(ctx)
		if err != nil {
			return queueResponse{}, err
		}
		submissions, err = s.daemon.SubmissionsNeedingAttention(ctx)
	} else {
		items, err = s.daemon.media.Snapshot(ctx)
		if err != nil {
			return queueResponse{}, err
		}
		submissions, err = s.daemon.submissions.ListOutstanding(ctx)
	}
	if err != nil {
		return queueResponse{}, err
	}

	resp := queueResponse{
		Media:       make([]mediaEntry, 0, len(items)),
		Submissions: make([]submissionEntry, 0, len(submissions)),
	}
	for _, item := range items {
		resp.Media = append(resp.Media, mediaEntry{
			ID:           item.ID,
			AssignmentID: item.AssignmentID,
			SlotID:       item.SlotID,
			Status:       string(item.Status),
			RetryCount:   item.RetryCount,
			LastError:    item.LastError,
			CreatedAt:    item.CreatedAt.Format(time.RFC3339),
		})
	}
	for _, entry := range submissions {
		resp.Submissions = append(resp.Submissions, submissionEntry{
			AssignmentID:   entry.AssignmentID,
			EnqueuedAt:     entry.EnqueuedAt.Format(time.RFC3339),
			RetryCount:     entry.RetryCount,
			NeedsAttention: entry.NeedsAttention,
			LastError:      entry.LastError,
		})
	}
	return resp, nil
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return logging.NewComponentLogger(s.logger, "api-server")
	}
	return logging.NewNop()
}
