package encryption

import (
	"fmt"

	"dockeep/internal/config"
	"dockeep/internal/docstore"
)

// NewEncryptorFromConfig creates an Encryptor implementation based on
// the encryption config type.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (docstore.Encryptor, error) {
	switch cfg.Type {
	case "", "none":
		return NewNopEncryptor(), nil
	case "age":
		if cfg.IdentityPath == "" {
			return nil, fmt.Errorf("age encryption requires identity_path to be set")
		}
		return NewAgeEncryptor(cfg.IdentityPath), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %s", cfg.Type)
	}
}
