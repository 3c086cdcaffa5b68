package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const templateColumns = "id, name, version, schema_json, updated_at"

// SaveTemplate upserts a template by identifier. Versions are
// last-write-wins: a record only replaces the stored one when its version is
// equal or newer, so a stale pull can never clobber a newer schema.
func (s *Store) SaveTemplate(ctx context.Context, template *Template) error {
	if template == nil {
		return errors.New("template is nil")
	}
	if template.ID == "" {
		return errors.New("template id is required")
	}
	if template.Version < 1 {
		template.Version = 1
	}
	template.UpdatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO templates (`+templateColumns+`)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
             name = excluded.name,
             version = excluded.version,
             schema_json = excluded.schema_json,
             updated_at = excluded.updated_at
         WHERE excluded.version >= templates.version`,
		template.ID,
		nullableString(template.Name),
		template.Version,
		nullableString(string(template.Schema)),
		formatTime(template.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save template: %w", err)
	}
	return nil
}

// GetTemplate fetches a template by identifier. Absence is a normal result;
// form rendering tolerates a missing template.
func (s *Store) GetTemplate(ctx context.Context, id string) (*Template, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM templates WHERE id = ?`, id)
	template, err := scanTemplate(row)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return template, nil
}

// ListTemplates returns all cached templates ordered by identifier.
func (s *Store) ListTemplates(ctx context.Context) ([]*Template, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+templateColumns+` FROM templates ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var templates []*Template
	for rows.Next() {
		template, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, template)
	}
	return templates, rows.Err()
}

func scanTemplate(scanner interface{ Scan(dest ...any) error }) (*Template, error) {
	var (
		id         string
		name       sql.NullString
		version    int64
		schema     sql.NullString
		updatedRaw string
	)

	if err := scanner.Scan(&id, &name, &version, &schema, &updatedRaw); err != nil {
		return nil, err
	}

	template := &Template{
		ID:      id,
		Name:    name.String,
		Version: version,
	}
	if schema.Valid && schema.String != "" {
		template.Schema = json.RawMessage(schema.String)
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		template.UpdatedAt = updated
	}
	return template, nil
}
