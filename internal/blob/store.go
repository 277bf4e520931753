// Package blob stores ingested email records as opaque objects.
package blob

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/znz-systems/mailbrief/internal/config"
)

var ErrObjectNotFound = errors.New("blob object not found")

// Store is the durable record store. Keys are slash separated paths; an
// object is written once and read back by the storage event processor.
type Store interface {
	Put(ctx context.Context, key, contentType string, body []byte, metadata map[string]string) error
	Get(ctx context.Context, key string) ([]byte, error)
}

func NewFromConfig(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = "s3"
	}

	switch backend {
	case "filesystem", "fs", "local":
		return NewFilesystemStore(cfg.FSRoot)
	case "s3", "r2":
		return NewS3Store(ctx, S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			ForcePathStyle:  cfg.S3ForcePathStyle,
		})
	default:
		return nil, fmt.Errorf("unsupported blob backend: %s", backend)
	}
}

func normalizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("blob key is required")
	}
	return key, nil
}
