package docstore

import (
	"encoding/json"

	"dockeep/internal/model"
)

// MaxVersions is the number of distinct content versions retained
// per document, not counting the permanent baseline at index 0.
const MaxVersions = 10

// Store implements the in-memory version history of a document:
// adding versions with content deduplication and bounded-size
// eviction. It never touches durable storage and never fails; content
// reaching it has already been validated and canonicalized by
// ParseContent.
type Store struct {
	clock Clock
	idgen IDGenerator
}

// NewStore creates a version store using the given time and ID sources.
func NewStore(clock Clock, idgen IDGenerator) *Store {
	return &Store{clock: clock, idgen: idgen}
}

// NewDocument creates a document with the empty baseline version at
// index 0. Non-empty initial content is added as one manual version.
func (s *Store) NewDocument(title string, content json.RawMessage) *model.Document {
	now := s.clock.Now()

	doc := &model.Document{
		ID:        s.idgen.New(),
		Title:     title,
		Content:   EmptyContent(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	doc.Versions = append(doc.Versions, s.newVersion(EmptyContent(), false))

	if len(content) > 0 && !ContentEqual(content, EmptyContent()) {
		s.AddVersion(doc, content, false)
	}

	return doc
}

// AddVersion records content as a version of doc and returns the
// version holding it.
//
// If a non-baseline version with structurally equal content already
// exists, no version is inserted: the matching version's Timestamp is
// refreshed and it is returned. Manual saves are authoritative even
// on a match — they update the document's current content, clear the
// dirty flag and advance the save time. Auto saves on a match only
// advance LastAutoSave.
//
// Otherwise a new version is appended and the oldest non-baseline
// versions are evicted until at most MaxVersions content versions
// remain alongside the baseline.
func (s *Store) AddVersion(doc *model.Document, content json.RawMessage, isAutoSave bool) *model.DocumentVersion {
	now := s.clock.Now()

	// The baseline at index 0 is exempt from deduplication.
	for i := 1; i < len(doc.Versions); i++ {
		if !ContentEqual(doc.Versions[i].Content, content) {
			continue
		}
		doc.Versions[i].Timestamp = now
		if isAutoSave {
			doc.LastAutoSave = &now
		} else {
			doc.Content = content
			doc.UpdatedAt = now
			doc.LastSaveTime = &now
			doc.IsDirty = false
		}
		return &doc.Versions[i]
	}

	doc.Versions = append(doc.Versions, s.newVersion(content, isAutoSave))

	for len(doc.Versions) > MaxVersions+1 && len(doc.Versions) > 1 {
		doc.Versions = append(doc.Versions[:1], doc.Versions[2:]...)
	}

	doc.Content = content
	doc.UpdatedAt = now
	if isAutoSave {
		doc.LastAutoSave = &now
	} else {
		doc.LastSaveTime = &now
		doc.IsDirty = false
	}

	return &doc.Versions[len(doc.Versions)-1]
}

// GetVersion returns the version of doc with the given ID, baseline
// included. Fails with ErrNotFound when absent.
func (s *Store) GetVersion(doc *model.Document, versionID string) (*model.DocumentVersion, error) {
	for i := range doc.Versions {
		if doc.Versions[i].ID == versionID {
			return &doc.Versions[i], nil
		}
	}
	return nil, ErrNotFound
}

func (s *Store) newVersion(content json.RawMessage, isAutoSave bool) model.DocumentVersion {
	now := s.clock.Now()
	return model.DocumentVersion{
		ID:         s.idgen.New(),
		Content:    content,
		CreatedAt:  now,
		IsAutoSave: isAutoSave,
		Size:       len(content),
		Timestamp:  now,
	}
}
