package testutil

import (
	"testing"

	"dockeep/internal/catalog"
)

// NewTestCatalog returns an in-memory SQLite catalog with the schema
// migrated, closed automatically when the test finishes.
func NewTestCatalog(t *testing.T) *catalog.SQLiteCatalog {
	t.Helper()

	c, err := catalog.NewSQLiteCatalog(":memory:")
	if err != nil {
		t.Fatalf("creating test catalog: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}
