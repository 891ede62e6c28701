// Package catalog implements the document catalog: a small SQLite
// index of known documents by id, so they can be listed and located
// without reading their content files.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"dockeep/internal/catalog/migrations"
	"dockeep/internal/docstore"
	"dockeep/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteCatalog implements the Catalog interface using SQLite.
type SQLiteCatalog struct {
	db *sql.DB
}

var _ docstore.Catalog = (*SQLiteCatalog)(nil)

// NewSQLiteCatalog opens (or creates) the catalog database at path
// and migrates its schema to the latest version.
// path can be a file path or ":memory:" for in-memory database.
func NewSQLiteCatalog(path string) (*SQLiteCatalog, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating catalog schema: %w", err)
	}

	return &SQLiteCatalog{db: db}, nil
}

// OpenConnection opens and configures a SQLite database connection.
// This is exported for tools and tests that need a properly
// configured connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign key constraints (SQLite default is OFF for backward compatibility)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

func (c *SQLiteCatalog) Upsert(ctx context.Context, entry *model.CatalogEntry) error {
	var lastSave sql.NullTime
	if entry.LastSaveTime != nil {
		lastSave = sql.NullTime{Time: *entry.LastSaveTime, Valid: true}
	}

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO documents (id, title, file_path, created_at, updated_at, last_save_time)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			file_path = excluded.file_path,
			updated_at = excluded.updated_at,
			last_save_time = excluded.last_save_time`,
		entry.ID, entry.Title, entry.FilePath, entry.CreatedAt, entry.UpdatedAt, lastSave)
	if err != nil {
		return fmt.Errorf("upserting catalog entry: %w", err)
	}
	return nil
}

func (c *SQLiteCatalog) Get(ctx context.Context, id string) (*model.CatalogEntry, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, title, file_path, created_at, updated_at, last_save_time
		FROM documents WHERE id = ?`, id)

	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding catalog entry: %w", err)
	}
	return entry, nil
}

func (c *SQLiteCatalog) List(ctx context.Context) ([]*model.CatalogEntry, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, title, file_path, created_at, updated_at, last_save_time
		FROM documents ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing catalog entries: %w", err)
	}
	defer rows.Close()

	var entries []*model.CatalogEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning catalog entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating catalog entries: %w", err)
	}
	return entries, nil
}

func (c *SQLiteCatalog) Delete(ctx context.Context, id string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting catalog entry: %w", err)
	}
	return nil
}

func (c *SQLiteCatalog) Close() error {
	return c.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*model.CatalogEntry, error) {
	var entry model.CatalogEntry
	var lastSave sql.NullTime
	if err := row.Scan(&entry.ID, &entry.Title, &entry.FilePath, &entry.CreatedAt, &entry.UpdatedAt, &lastSave); err != nil {
		return nil, err
	}
	if lastSave.Valid {
		entry.LastSaveTime = &lastSave.Time
	}
	return &entry, nil
}
