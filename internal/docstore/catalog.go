package docstore

import (
	"context"

	"dockeep/internal/model"
)

// Catalog indexes known documents by id so they can be listed and
// located without reading their content files.
type Catalog interface {
	// Upsert records or refreshes the catalog entry for a document.
	Upsert(ctx context.Context, entry *model.CatalogEntry) error

	// Get returns the entry for id, or nil when unknown.
	Get(ctx context.Context, id string) (*model.CatalogEntry, error)

	// List returns all entries ordered by most recent update first.
	List(ctx context.Context) ([]*model.CatalogEntry, error)

	// Delete removes the entry for id. Absence is not an error.
	Delete(ctx context.Context, id string) error

	Close() error
}
