package catalog

import (
	"fmt"
	"path/filepath"

	"dockeep/internal/config"
	"dockeep/internal/docstore"
	"dockeep/internal/fs"
)

// NewCatalogFromConfig creates a Catalog implementation based on the
// catalog config type.
func NewCatalogFromConfig(cfg config.CatalogConfig) (docstore.Catalog, error) {
	switch cfg.Type {
	case "memory":
		return NewSQLiteCatalog(":memory:")
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("sqlite catalog requires data_dir to be set")
		}
		if err := fs.EnsureDir(cfg.DataDir); err != nil {
			return nil, err
		}
		return NewSQLiteCatalog(filepath.Join(cfg.DataDir, "catalog.db"))
	default:
		return nil, fmt.Errorf("unknown catalog type: %s", cfg.Type)
	}
}
