package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store keeps imported project records in a local SQLite file.
type Store struct {
	conn *sql.DB
}

// Summary is a listing row.
type Summary struct {
	ID           string
	Title        string
	CategorySlug string
	UpdatedAt    time.Time
}

// OpenStore opens (or creates) the SQLite file at dbPath.
func OpenStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// single writer
	conn.SetMaxOpenConns(1)

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			category_slug TEXT NOT NULL DEFAULT '',
			variant_id TEXT NOT NULL DEFAULT '',
			designs_data TEXT,
			pages_data TEXT,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_projects_category ON projects(category_slug)`,
	}
	for _, m := range migrations {
		if _, err := s.conn.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// Put inserts or replaces a record. The record must carry an id.
func (s *Store) Put(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		return errors.New("project id is required")
	}
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO projects (id, title, category_slug, variant_id, designs_data, pages_data, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			category_slug = excluded.category_slug,
			variant_id = excluded.variant_id,
			designs_data = excluded.designs_data,
			pages_data = excluded.pages_data,
			updated_at = excluded.updated_at`,
		rec.ID, rec.Title, rec.CategorySlug, rec.VariantID,
		nullableJSON(rec.DesignsData), nullableJSON(rec.PagesData), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save project %s: %w", rec.ID, err)
	}
	return nil
}

// Fetch implements Source.
func (s *Store) Fetch(ctx context.Context, id string) (*Record, error) {
	var (
		rec            Record
		designs, pages sql.NullString
	)
	err := s.conn.QueryRowContext(ctx,
		`SELECT id, title, category_slug, variant_id, designs_data, pages_data FROM projects WHERE id = ?`, id).
		Scan(&rec.ID, &rec.Title, &rec.CategorySlug, &rec.VariantID, &designs, &pages)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load project %s: %w", id, err)
	}
	if designs.Valid {
		rec.DesignsData = []byte(designs.String)
	}
	if pages.Valid {
		rec.PagesData = []byte(pages.String)
	}
	return &rec, nil
}

// List returns all stored projects, most recently updated first.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, title, category_slug, updated_at FROM projects ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sm Summary
		if err := rows.Scan(&sm.ID, &sm.Title, &sm.CategorySlug, &sm.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, sm)
	}
	return out, rows.Err()
}

// Delete removes a project. Deleting an unknown id is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete project %s: %w", id, err)
	}
	return nil
}

func nullableJSON(raw []byte) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}
