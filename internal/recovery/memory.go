package recovery

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"dockeep/internal/docstore"
	"dockeep/internal/model"
)

// MemoryStore is an in-memory implementation of the snapshot store,
// useful for testing. It is safe for concurrent use.
type MemoryStore struct {
	mu        sync.RWMutex
	clock     docstore.Clock
	snapshots map[string]memorySnapshot
}

type memorySnapshot struct {
	doc     *model.Document
	savedAt time.Time
	size    int64
}

// NewMemoryStore creates an empty in-memory snapshot store. The clock
// stamps each snapshot's modification time.
func NewMemoryStore(clock docstore.Clock) *MemoryStore {
	return &MemoryStore{
		clock:     clock,
		snapshots: make(map[string]memorySnapshot),
	}
}

func (m *MemoryStore) Save(_ context.Context, doc *model.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[doc.ID] = memorySnapshot{
		doc:     doc.Clone(),
		savedAt: m.clock.Now(),
		size:    int64(len(data)),
	}
	return nil
}

func (m *MemoryStore) Load(_ context.Context, documentID string) (*model.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap, ok := m.snapshots[documentID]
	if !ok {
		return nil, fmt.Errorf("no recovery snapshot for document %s: %w", documentID, docstore.ErrNotFound)
	}
	return snap.doc.Clone(), nil
}

func (m *MemoryStore) Delete(_ context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snapshots, documentID)
	return nil
}

func (m *MemoryStore) List(_ context.Context) ([]docstore.SnapshotInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]docstore.SnapshotInfo, 0, len(m.snapshots))
	for id, snap := range m.snapshots {
		infos = append(infos, docstore.SnapshotInfo{
			DocumentID: id,
			ModifiedAt: snap.savedAt,
			Size:       snap.size,
		})
	}
	return infos, nil
}

func (m *MemoryStore) Purge(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, snap := range m.snapshots {
		if snap.savedAt.Before(cutoff) {
			delete(m.snapshots, id)
			removed++
		}
	}
	return removed, nil
}

var _ docstore.SnapshotStore = (*MemoryStore)(nil)
