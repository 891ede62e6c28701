package recovery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dockeep/internal/docstore"
	"dockeep/internal/fs"
	"dockeep/internal/model"
)

// FileSystemStore keeps recovery snapshots as files in a dedicated
// directory, one recovery_<id>.json per document. Writes are atomic
// (temp file + rename), so a crash mid-write leaves the prior
// snapshot intact.
type FileSystemStore struct {
	dir       string
	encryptor docstore.Encryptor
}

// NewFileSystemStore creates the store, ensuring the snapshot
// directory exists.
func NewFileSystemStore(dir string, encryptor docstore.Encryptor) (*FileSystemStore, error) {
	if err := fs.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("creating recovery directory: %w", err)
	}
	return &FileSystemStore{dir: dir, encryptor: encryptor}, nil
}

func (s *FileSystemStore) path(documentID string) string {
	return filepath.Join(s.dir, snapshotName(documentID))
}

// Save writes the document's snapshot, overwriting any prior one.
func (s *FileSystemStore) Save(_ context.Context, doc *model.Document) error {
	data, err := encodeSnapshot(doc, s.encryptor)
	if err != nil {
		return err
	}
	if err := fs.WriteAtomic(s.path(doc.ID), data); err != nil {
		return fmt.Errorf("writing snapshot for %s: %w", doc.ID, err)
	}
	return nil
}

// Load reads and decodes the snapshot for a document id.
func (s *FileSystemStore) Load(_ context.Context, documentID string) (*model.Document, error) {
	data, err := os.ReadFile(s.path(documentID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no recovery snapshot for document %s: %w", documentID, docstore.ErrNotFound)
		}
		return nil, fmt.Errorf("reading snapshot for %s: %w", documentID, err)
	}
	return decodeSnapshot(data, s.encryptor)
}

// Delete removes the snapshot for a document id if present.
func (s *FileSystemStore) Delete(_ context.Context, documentID string) error {
	if err := os.Remove(s.path(documentID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing snapshot for %s: %w", documentID, err)
	}
	return nil
}

// List enumerates all stored snapshots.
func (s *FileSystemStore) List(_ context.Context) ([]docstore.SnapshotInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading recovery directory: %w", err)
	}

	var infos []docstore.SnapshotInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		id, ok := parseSnapshotName(entry.Name())
		if !ok {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		infos = append(infos, docstore.SnapshotInfo{
			DocumentID: id,
			ModifiedAt: fi.ModTime(),
			Size:       fi.Size(),
		})
	}
	return infos, nil
}

// Purge removes every snapshot last modified before cutoff.
func (s *FileSystemStore) Purge(ctx context.Context, cutoff time.Time) (int, error) {
	infos, err := s.List(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, info := range infos {
		if !info.ModifiedAt.Before(cutoff) {
			continue
		}
		if err := os.Remove(s.path(info.DocumentID)); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("removing expired snapshot for %s: %w", info.DocumentID, err)
		}
		removed++
	}
	return removed, nil
}

var _ docstore.SnapshotStore = (*FileSystemStore)(nil)
