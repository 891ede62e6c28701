package docstore

import (
	"fmt"
	"sync"

	"dockeep/internal/model"
)

// Handle is the single shared in-memory instance of an open document.
// All mutation goes through With, which serializes access, so two
// concurrent operations on the same document id cannot interleave
// inside the version algorithm.
type Handle struct {
	mu  sync.Mutex
	doc *model.Document
}

// With runs fn while holding the handle's lock. The document pointer
// must not escape fn.
func (h *Handle) With(fn func(doc *model.Document) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return fn(h.doc)
}

// Snapshot returns a deep copy of the document taken under the lock.
func (h *Handle) Snapshot() *model.Document {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.doc.Clone()
}

// Registry maps document ids to their exclusively owned handles. A
// document is opened once and every subsequent operation for its id
// routes through the same handle for the lifetime of the session.
type Registry struct {
	mu      sync.RWMutex
	handles map[string]*Handle
}

func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]*Handle)}
}

// Open registers doc and returns its handle. Reopening an id (for
// example a load that replaces in-memory state) replaces the tracked
// document under a fresh handle.
func (r *Registry) Open(doc *model.Document) *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := &Handle{doc: doc}
	r.handles[doc.ID] = h
	return h
}

// Get returns the handle for id. Fails with ErrNotFound when the
// document is not open.
func (r *Registry) Get(id string) (*Handle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[id]
	if !ok {
		return nil, fmt.Errorf("document %s is not open: %w", id, ErrNotFound)
	}
	return h, nil
}

// Close drops the handle for id. Closing an unknown id is a no-op.
func (r *Registry) Close(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handles, id)
}

// ForEach calls fn for every open handle. Iteration works on a
// snapshot of the handle set, so fn may open and close documents.
func (r *Registry) ForEach(fn func(h *Handle)) {
	r.mu.RLock()
	handles := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		handles = append(handles, h)
	}
	r.mu.RUnlock()

	for _, h := range handles {
		fn(h)
	}
}

// Len returns the number of open documents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}
