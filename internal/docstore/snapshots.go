package docstore

import (
	"context"
	"time"

	"dockeep/internal/model"
)

// SnapshotInfo describes one stored recovery snapshot without
// decoding it.
type SnapshotInfo struct {
	DocumentID string
	ModifiedAt time.Time
	Size       int64
}

// SnapshotStore persists crash-recovery snapshots, one per document
// id, independent of the document's primary save location.
type SnapshotStore interface {
	// Save serializes the full document and stores it under its id,
	// overwriting any prior snapshot for that id. The write must be
	// atomic from a reader's perspective.
	Save(ctx context.Context, doc *model.Document) error

	// Load reads and decodes the snapshot for the given document id.
	// Fails with ErrNotFound when no snapshot exists for that id.
	Load(ctx context.Context, documentID string) (*model.Document, error)

	// Delete removes the snapshot for the given document id. Absence
	// is not an error.
	Delete(ctx context.Context, documentID string) error

	// List enumerates all currently stored snapshots.
	List(ctx context.Context) ([]SnapshotInfo, error)

	// Purge deletes every snapshot last modified before cutoff and
	// returns how many were removed.
	Purge(ctx context.Context, cutoff time.Time) (int, error)
}
