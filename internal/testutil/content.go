package testutil

import (
	"encoding/json"
	"fmt"
)

// Content returns a canonical document body holding s, matching the
// shape the editor produces.
func Content(s string) json.RawMessage {
	data, err := json.Marshal(map[string]string{"content": s})
	if err != nil {
		panic(fmt.Sprintf("encoding test content: %v", err))
	}
	return data
}
