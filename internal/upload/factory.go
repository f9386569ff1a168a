package upload

import (
	"context"
	"fmt"

	"fieldsync/internal/backend"
	"fieldsync/internal/config"
	"fieldsync/internal/engine"
)

// NewUploaderFromConfig creates the uploader selected by the media config.
// The "backend" type relays media through the REST API; "s3" writes to a
// bucket directly and only reports the resulting URLs to the backend.
func NewUploaderFromConfig(ctx context.Context, cfg config.MediaConfig, client *backend.Client, idgen engine.IDGenerator, clock engine.Clock) (engine.Uploader, error) {
	switch cfg.Uploader {
	case "", "backend":
		if client == nil {
			return nil, fmt.Errorf("backend uploader requires a backend client")
		}
		return backend.NewUploader(client), nil
	case "s3":
		return NewS3Uploader(ctx, cfg.S3, idgen, clock)
	case "memory":
		return NewMemoryUploader(idgen, clock), nil
	default:
		return nil, fmt.Errorf("unknown uploader type: %s", cfg.Uploader)
	}
}
