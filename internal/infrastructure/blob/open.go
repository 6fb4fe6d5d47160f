package blob

import (
	"context"
	"fmt"

	"github.com/oksasatya/go-post-feed/config"
	"github.com/oksasatya/go-post-feed/internal/application"
	"github.com/oksasatya/go-post-feed/pkg/helpers"
)

// Store is a BlobStore that holds a client to release on shutdown.
type Store interface {
	application.BlobStore
	Close() error
}

// Open builds the driver named by cfg.BlobDriver.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.BlobDriver {
	case "gcs":
		if cfg.GCSBucket == "" {
			return nil, fmt.Errorf("GCS_BUCKET is required for the gcs blob driver")
		}
		client, err := helpers.NewGCSClient(ctx, cfg.GCSCredentialsJSONPath)
		if err != nil {
			return nil, err
		}
		return NewGCS(client, cfg.GCSBucket, cfg.BlobPrefix, cfg.BlobTimeout), nil
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("S3_BUCKET is required for the s3 blob driver")
		}
		return NewS3(cfg.S3Region, cfg.S3Endpoint, cfg.S3Bucket, cfg.BlobPrefix, cfg.S3PublicBaseURL, cfg.BlobTimeout)
	case "local", "":
		return NewLocal(cfg.BlobLocalDir, cfg.BlobPrefix, cfg.BlobLocalURL)
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.BlobDriver)
	}
}
