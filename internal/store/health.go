package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

var expectedTables = []string{"assignments", "templates", "drafts", "media_items", "submissions", "schema_migrations"}

// Health aggregates collection counts for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	health := HealthSummary{}

	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(1) FROM assignments", &health.Assignments},
		{"SELECT COUNT(1) FROM templates", &health.Templates},
		{"SELECT COUNT(1) FROM drafts", &health.Drafts},
		{"SELECT COUNT(1) FROM media_items WHERE status IN ('pending', 'uploading')", &health.PendingMedia},
		{"SELECT COUNT(1) FROM media_items WHERE status = 'error'", &health.ErroredMedia},
		{"SELECT COUNT(1) FROM submissions", &health.Submissions},
		{"SELECT COUNT(1) FROM submissions WHERE needs_attention = 1", &health.NeedsAttention},
	}
	for _, count := range counts {
		row := s.db.QueryRowContext(ctx, count.query)
		if err := row.Scan(count.dest); err != nil {
			return HealthSummary{}, fmt.Errorf("store health: %w", err)
		}
	}
	health.NeedsAttention += health.ErroredMedia
	return health, nil
}

// CheckHealth returns diagnostic information about the local database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}

	if s.path == "" {
		return health, errors.New("database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			health.DatabaseExists = false
			return health, nil
		}
		return health, fmt.Errorf("stat database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping database: %w", err)
	}
	health.DatabaseReadable = true

	rows, err := s.db.QueryContext(connCtx, "SELECT name FROM sqlite_master WHERE type = 'table'")
	if err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("query table info: %w", err)
	}
	defer rows.Close()

	present := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("scan table info: %w", err)
		}
		present[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("iterate table info: %w", err)
	}

	for _, table := range expectedTables {
		if _, ok := present[table]; ok {
			health.TablesPresent = append(health.TablesPresent, table)
		} else {
			health.MissingTables = append(health.MissingTables, table)
		}
	}

	row := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check")
	var integrityResult string
	if err := row.Scan(&integrityResult); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrityResult, "ok")

	return health, nil
}
