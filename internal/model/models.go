package model

import (
	"encoding/json"
	"time"
)

// DocumentVersion is one retained content state of a document.
// CreatedAt is set once at creation; Timestamp moves forward whenever
// a later save re-hits this version's content.
type DocumentVersion struct {
	ID         string          `json:"id"`
	Content    json.RawMessage `json:"content"`
	CreatedAt  time.Time       `json:"created_at"`
	IsAutoSave bool            `json:"is_auto_save"`
	Size       int             `json:"size"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Document is a single document together with its bounded version
// history. Versions preserves insertion order; index 0 always holds
// the permanent empty baseline version.
type Document struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	Content      json.RawMessage   `json:"content"`
	FilePath     string            `json:"file_path,omitempty"`
	Versions     []DocumentVersion `json:"versions"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	IsDirty      bool              `json:"is_dirty"`
	LastAutoSave *time.Time        `json:"last_auto_save,omitempty"`
	LastSaveTime *time.Time        `json:"last_save_time,omitempty"`
}

// Clone returns a deep copy of the document. The copy shares no
// mutable state with the original, so it is safe to hand out across
// goroutine boundaries.
func (d *Document) Clone() *Document {
	c := *d
	c.Content = append(json.RawMessage(nil), d.Content...)
	c.Versions = make([]DocumentVersion, len(d.Versions))
	for i, v := range d.Versions {
		v.Content = append(json.RawMessage(nil), v.Content...)
		c.Versions[i] = v
	}
	if d.LastAutoSave != nil {
		t := *d.LastAutoSave
		c.LastAutoSave = &t
	}
	if d.LastSaveTime != nil {
		t := *d.LastSaveTime
		c.LastSaveTime = &t
	}
	return &c
}

// CatalogEntry is the catalog's view of a document: identity and
// location without content or history.
type CatalogEntry struct {
	ID           string
	Title        string
	FilePath     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastSaveTime *time.Time
}
