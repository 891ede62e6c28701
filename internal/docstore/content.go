package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Document content is an opaque structured JSON value. It is
// validated and canonicalized once at the boundary; inside the store
// every content value is in canonical form, so structural equality
// reduces to byte equality.

// ParseContent validates raw bytes as JSON and returns the canonical
// encoding (compact, object keys sorted). Malformed input fails with
// ErrInvalidFormat.
func ParseContent(raw []byte) (json.RawMessage, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	canonical, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return canonical, nil
}

// EmptyContent returns the canonical empty document body. It is the
// content of the permanent baseline version at index 0.
func EmptyContent() json.RawMessage {
	return json.RawMessage(`{"content":""}`)
}

// ContentEqual reports structural equality of two canonical content
// values.
func ContentEqual(a, b json.RawMessage) bool {
	return bytes.Equal(a, b)
}
