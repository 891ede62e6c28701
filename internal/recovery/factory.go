package recovery

import (
	"context"
	"fmt"

	"dockeep/internal/config"
	"dockeep/internal/docstore"
)

// NewStoreFromConfig creates a SnapshotStore implementation based on
// the recovery config type.
func NewStoreFromConfig(ctx context.Context, cfg config.RecoveryConfig, encryptor docstore.Encryptor, clock docstore.Clock) (docstore.SnapshotStore, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(clock), nil
	case "s3":
		return NewS3Store(ctx, S3Options{
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		}, encryptor)
	case "filesystem":
		if cfg.Dir == "" {
			return nil, fmt.Errorf("filesystem snapshot store requires dir to be set")
		}
		return NewFileSystemStore(cfg.Dir, encryptor)
	default:
		return nil, fmt.Errorf("unknown recovery store type: %s", cfg.Type)
	}
}
