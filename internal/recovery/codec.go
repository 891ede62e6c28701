// Package recovery implements crash-recovery snapshot stores: one
// full-document snapshot per document id, kept outside the primary
// save location and removed once a committed save supersedes it.
package recovery

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"dockeep/internal/docstore"
	"dockeep/internal/model"
)

const (
	snapshotPrefix = "recovery_"
	snapshotSuffix = ".json"
)

// snapshotName returns the storage name for a document's snapshot.
func snapshotName(documentID string) string {
	return snapshotPrefix + documentID + snapshotSuffix
}

// parseSnapshotName extracts the document id from a storage name.
func parseSnapshotName(name string) (string, bool) {
	if !strings.HasPrefix(name, snapshotPrefix) || !strings.HasSuffix(name, snapshotSuffix) {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(name, snapshotPrefix), snapshotSuffix)
	if id == "" {
		return "", false
	}
	return id, true
}

// encodeSnapshot serializes the document and runs it through the
// encryptor.
func encodeSnapshot(doc *model.Document, enc docstore.Encryptor) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	var buf bytes.Buffer
	if err := enc.Encrypt(&buf, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("encrypting snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeSnapshot decrypts and parses stored snapshot bytes.
func decodeSnapshot(data []byte, enc docstore.Encryptor) (*model.Document, error) {
	var buf bytes.Buffer
	if err := enc.Decrypt(&buf, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("decrypting snapshot: %w", err)
	}
	return docstore.DecodeDocument(buf.Bytes())
}
