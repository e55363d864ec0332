package storage

import (
	"context"
	"errors"

	"github.com/kasnerz/letax/internal/config"
)

// ErrNotExist is returned when the requested path holds no file. Callers are
// expected to degrade (placeholder image, skipped row) rather than abort.
var ErrNotExist = errors.New("file does not exist")

// Storage is the file backend behind post media, photos and exports. Paths
// are slash-separated and relative to the backend root.
type Storage interface {
	Read(ctx context.Context, path string) ([]byte, error)
	Write(ctx context.Context, path string, content []byte) error
	Delete(ctx context.Context, path string) error
}

// New selects the backend from the deployment settings.
func New(kind, bucket string, cfg *config.Config) (Storage, error) {
	switch kind {
	case "local":
		return NewLocal(cfg.DataDir), nil
	case "s3":
		return NewS3(cfg.AWSRegion, cfg.AWSAccessKey, cfg.AWSSecretKey, bucket)
	default:
		return nil, errors.New("unknown file system: " + kind + ", use s3 or local")
	}
}
