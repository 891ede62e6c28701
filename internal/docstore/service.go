package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"dockeep/internal/fs"
	"dockeep/internal/model"
)

// Defaults for the save cadence and snapshot retention. Both can be
// overridden through configuration.
const (
	// AutoSaveInterval is the minimum spacing between successive
	// auto-save versions of one document.
	AutoSaveInterval = 30 * time.Second

	// RecoveryRetention is how long orphaned recovery snapshots are
	// kept before startup cleanup removes them.
	RecoveryRetention = 7 * 24 * time.Hour
)

// Service coordinates the version store, the open-document registry,
// the recovery snapshot store and the catalog to perform the
// high-level document operations.
//
// Foreground operations (save, load, recover, delete) surface typed
// errors to the caller. The background auto-save path records
// failures and swallows them: auto-save must never break an editing
// session, and losing a recovery snapshot only degrades
// crash-resilience.
type Service struct {
	store     *Store
	registry  *Registry
	snapshots SnapshotStore
	catalog   Catalog
	logger    Logger
	clock     Clock
	interval  time.Duration
	retention time.Duration
}

// NewService creates a Service. interval is the per-document
// auto-save gate and retention the snapshot retention window; zero
// values select the package defaults.
func NewService(store *Store, registry *Registry, snapshots SnapshotStore, catalog Catalog, logger Logger, clock Clock, interval, retention time.Duration) *Service {
	if interval <= 0 {
		interval = AutoSaveInterval
	}
	if retention <= 0 {
		retention = RecoveryRetention
	}
	return &Service{
		store:     store,
		registry:  registry,
		snapshots: snapshots,
		catalog:   catalog,
		logger:    logger,
		clock:     clock,
		interval:  interval,
		retention: retention,
	}
}

// Registry exposes the open-document registry, primarily for the
// auto-save scheduler.
func (s *Service) Registry() *Registry { return s.registry }

// Initialize prepares the recovery subsystem for this process: it
// removes every snapshot older than the retention window. Runs once
// at startup.
func (s *Service) Initialize(ctx context.Context) error {
	cutoff := s.clock.Now().Add(-s.retention)
	removed, err := s.snapshots.Purge(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("purging expired recovery snapshots: %w", err)
	}
	if removed > 0 {
		s.logger.Info("expired recovery snapshots removed", "count", removed)
	}
	return nil
}

// Create builds a new in-memory document and opens it in the
// registry. raw may be nil for an empty document; otherwise it must
// be valid JSON. Nothing is persisted until the first save.
func (s *Service) Create(title string, raw []byte) (*model.Document, error) {
	content := EmptyContent()
	if len(raw) > 0 {
		var err error
		content, err = ParseContent(raw)
		if err != nil {
			return nil, err
		}
	}

	doc := s.store.NewDocument(title, content)
	h := s.registry.Open(doc)
	s.logger.Info("document created", "doc", doc.ID, "title", title)
	return h.Snapshot(), nil
}

// Open loads a document from its primary save file, registers it and
// records it in the catalog. Loading supersedes any recovery snapshot
// for the document's id.
func (s *Service) Open(ctx context.Context, path string) (*model.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("document file %s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("reading document file %s: %w", path, err)
	}

	doc, err := decodeDocument(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	doc.FilePath = path
	doc.UpdatedAt = s.clock.Now()
	h := s.registry.Open(doc)

	if err := s.catalog.Upsert(ctx, catalogEntry(doc)); err != nil {
		return nil, fmt.Errorf("updating catalog: %w", err)
	}
	if err := s.snapshots.Delete(ctx, doc.ID); err != nil {
		s.logger.Warn("recovery snapshot cleanup failed", "doc", doc.ID, "error", err)
	}

	s.logger.Info("document loaded", "doc", doc.ID, "path", path)
	return h.Snapshot(), nil
}

// UpdateContent applies a manual edit to an open document: the
// current content changes and the document becomes dirty. No version
// is recorded until the next save.
func (s *Service) UpdateContent(id string, raw []byte) error {
	content, err := ParseContent(raw)
	if err != nil {
		return err
	}
	h, err := s.registry.Get(id)
	if err != nil {
		return err
	}
	return h.With(func(doc *model.Document) error {
		doc.Content = content
		doc.IsDirty = true
		doc.UpdatedAt = s.clock.Now()
		return nil
	})
}

// Save records the document's current content as a manual version and
// writes the full document to its primary save file. path overrides
// the document's remembered location when non-empty; a document that
// has neither fails before any state changes. A failed write leaves
// the in-memory document unchanged, so its content stays dirty and
// keeps auto-saving.
func (s *Service) Save(ctx context.Context, id string, path string) (*model.Document, error) {
	h, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}

	err = h.With(func(doc *model.Document) error {
		staged := doc.Clone()
		if path != "" {
			staged.FilePath = path
		}
		if staged.FilePath == "" {
			return fmt.Errorf("document %s has no save location", id)
		}
		s.store.AddVersion(staged, staged.Content, false)
		if err := s.persistLocked(ctx, staged); err != nil {
			return err
		}
		*doc = *staged
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("document saved", "doc", id)
	return h.Snapshot(), nil
}

// SaveContent is a combined edit-and-save: it records raw as a manual
// version and persists the document. This is the path a "save" action
// in an editor takes.
func (s *Service) SaveContent(ctx context.Context, id string, raw []byte, path string) (*model.Document, error) {
	content, err := ParseContent(raw)
	if err != nil {
		return nil, err
	}
	h, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}

	err = h.With(func(doc *model.Document) error {
		staged := doc.Clone()
		if path != "" {
			staged.FilePath = path
		}
		if staged.FilePath == "" {
			return fmt.Errorf("document %s has no save location", id)
		}
		s.store.AddVersion(staged, content, false)
		if err := s.persistLocked(ctx, staged); err != nil {
			return err
		}
		*doc = *staged
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("document saved", "doc", id)
	return h.Snapshot(), nil
}

// AutoSave runs the gated auto-save path for one open document: if
// the document is dirty and at least the auto-save interval has
// passed since its last auto-save, a new auto-save version is
// recorded and a recovery snapshot written. Snapshot write failures
// are logged, never returned.
func (s *Service) AutoSave(ctx context.Context, id string) error {
	h, err := s.registry.Get(id)
	if err != nil {
		return err
	}
	s.autoSaveHandle(ctx, h)
	return nil
}

// AutoSaveAll gives every open document a chance to auto-save. All
// failures are recorded and swallowed.
func (s *Service) AutoSaveAll(ctx context.Context) {
	s.registry.ForEach(func(h *Handle) {
		s.autoSaveHandle(ctx, h)
	})
}

func (s *Service) autoSaveHandle(ctx context.Context, h *Handle) {
	_ = h.With(func(doc *model.Document) error {
		if !doc.IsDirty {
			return nil
		}
		if doc.LastAutoSave != nil && s.clock.Now().Sub(*doc.LastAutoSave) < s.interval {
			return nil
		}

		s.store.AddVersion(doc, doc.Content, true)
		if err := s.snapshots.Save(ctx, doc); err != nil {
			s.logger.Warn("recovery snapshot write failed", "doc", doc.ID, "error", err)
			return nil
		}
		s.logger.Debug("document auto-saved", "doc", doc.ID)
		return nil
	})
}

// Recover loads the recovery snapshot for the given document id and
// opens it. The returned document is marked dirty: it represents
// unsaved state the user still has to confirm with a manual save. The
// snapshot itself is kept until that save commits.
func (s *Service) Recover(ctx context.Context, id string) (*model.Document, error) {
	doc, err := s.snapshots.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	doc.IsDirty = true
	h := s.registry.Open(doc)
	s.logger.Info("document recovered", "doc", id)
	return h.Snapshot(), nil
}

// ListSnapshots enumerates all stored recovery snapshots.
func (s *Service) ListSnapshots(ctx context.Context) ([]SnapshotInfo, error) {
	return s.snapshots.List(ctx)
}

// ListRecoverable loads every stored recovery snapshot. Snapshots
// that fail to decode are skipped with a warning so one corrupt file
// cannot hide the rest.
func (s *Service) ListRecoverable(ctx context.Context) ([]*model.Document, error) {
	infos, err := s.snapshots.List(ctx)
	if err != nil {
		return nil, err
	}

	docs := make([]*model.Document, 0, len(infos))
	for _, info := range infos {
		doc, err := s.snapshots.Load(ctx, info.DocumentID)
		if err != nil {
			s.logger.Warn("skipping unreadable recovery snapshot", "doc", info.DocumentID, "error", err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Delete removes a document: its primary file (when a location is
// known), its recovery snapshot and its catalog entry. A path that is
// explicitly given but does not exist fails with ErrNotFound.
func (s *Service) Delete(ctx context.Context, id string, path string) error {
	if path == "" {
		if h, err := s.registry.Get(id); err == nil {
			path = h.Snapshot().FilePath
		} else if entry, err := s.catalog.Get(ctx, id); err != nil {
			return fmt.Errorf("looking up document %s: %w", id, err)
		} else if entry != nil {
			path = entry.FilePath
		}
	} else if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("document file %s: %w", path, ErrNotFound)
	}

	if path != "" {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing document file: %w", err)
		}
	}

	if err := s.snapshots.Delete(ctx, id); err != nil {
		s.logger.Warn("recovery snapshot cleanup failed", "doc", id, "error", err)
	}
	if err := s.catalog.Delete(ctx, id); err != nil {
		return fmt.Errorf("removing catalog entry: %w", err)
	}
	s.registry.Close(id)

	s.logger.Info("document deleted", "doc", id)
	return nil
}

// RestoreVersion re-adds the content of an older version as a manual
// save, making it the document's current content. When the document
// has a primary save location the restored state is persisted.
func (s *Service) RestoreVersion(ctx context.Context, id string, versionID string) (*model.Document, error) {
	h, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}

	err = h.With(func(doc *model.Document) error {
		v, err := s.store.GetVersion(doc, versionID)
		if err != nil {
			return fmt.Errorf("version %s of document %s: %w", versionID, id, err)
		}
		content := append(json.RawMessage(nil), v.Content...)
		staged := doc.Clone()
		s.store.AddVersion(staged, content, false)
		if staged.FilePath != "" {
			if err := s.persistLocked(ctx, staged); err != nil {
				return err
			}
		}
		*doc = *staged
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("version restored", "doc", id, "version", versionID)
	return h.Snapshot(), nil
}

// Versions returns a copy of the document's version history, baseline
// first.
func (s *Service) Versions(id string) ([]model.DocumentVersion, error) {
	h, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}
	return h.Snapshot().Versions, nil
}

// Version returns one version of an open document by its id.
func (s *Service) Version(id string, versionID string) (*model.DocumentVersion, error) {
	h, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}
	doc := h.Snapshot()
	v, err := s.store.GetVersion(doc, versionID)
	if err != nil {
		return nil, fmt.Errorf("version %s of document %s: %w", versionID, id, err)
	}
	return v, nil
}

// Document returns a copy of an open document.
func (s *Service) Document(id string) (*model.Document, error) {
	h, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}
	return h.Snapshot(), nil
}

// ListDocuments returns the catalog entries of all known documents.
func (s *Service) ListDocuments(ctx context.Context) ([]*model.CatalogEntry, error) {
	return s.catalog.List(ctx)
}

// persistLocked writes the document to its primary save file,
// refreshes the catalog and drops any recovery snapshot the save
// supersedes. The caller holds the document's handle lock.
func (s *Service) persistLocked(ctx context.Context, doc *model.Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}
	if err := fs.WriteAtomic(doc.FilePath, data); err != nil {
		return fmt.Errorf("writing document file: %w", err)
	}
	if err := s.catalog.Upsert(ctx, catalogEntry(doc)); err != nil {
		return fmt.Errorf("updating catalog: %w", err)
	}
	if err := s.snapshots.Delete(ctx, doc.ID); err != nil {
		s.logger.Warn("recovery snapshot cleanup failed", "doc", doc.ID, "error", err)
	}
	return nil
}

func catalogEntry(doc *model.Document) *model.CatalogEntry {
	return &model.CatalogEntry{
		ID:           doc.ID,
		Title:        doc.Title,
		FilePath:     doc.FilePath,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
		LastSaveTime: doc.LastSaveTime,
	}
}

// decodeDocument parses persisted document bytes, re-canonicalizing
// every content value so structural equality stays byte equality even
// for files written by hand.
func decodeDocument(data []byte) (*model.Document, error) {
	var doc model.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if len(doc.Versions) == 0 {
		return nil, fmt.Errorf("%w: missing version history", ErrInvalidFormat)
	}

	content, err := ParseContent(doc.Content)
	if err != nil {
		return nil, err
	}
	doc.Content = content
	for i := range doc.Versions {
		c, err := ParseContent(doc.Versions[i].Content)
		if err != nil {
			return nil, err
		}
		doc.Versions[i].Content = c
	}
	return &doc, nil
}

// DecodeDocument is the exported decoding entry point used by
// snapshot store implementations.
func DecodeDocument(data []byte) (*model.Document, error) {
	return decodeDocument(data)
}
