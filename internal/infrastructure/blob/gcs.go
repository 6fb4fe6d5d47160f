package blob

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"

	"github.com/oksasatya/go-post-feed/pkg/helpers"
)

// GCS stores post media in a Google Cloud Storage bucket.
type GCS struct {
	client  *storage.Client
	bucket  string
	prefix  string
	timeout time.Duration
}

func NewGCS(client *storage.Client, bucket, prefix string, timeout time.Duration) *GCS {
	return &GCS{client: client, bucket: bucket, prefix: prefix, timeout: timeout}
}

func (g *GCS) Upload(ctx context.Context, raw string) (string, error) {
	img, err := DecodeImage(raw)
	if err != nil {
		return "", err
	}
	c, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	key := objectKey(g.prefix, uuid.NewString(), img.Ext)
	url, err := helpers.UploadObject(c, g.client, g.bucket, key, img.ContentType, bytes.NewReader(img.Data))
	if err != nil {
		return "", fmt.Errorf("gcs upload %s: %w", key, err)
	}
	return url, nil
}

// Delete removes every extension variant of objectID under the prefix.
func (g *GCS) Delete(ctx context.Context, objectID string) error {
	if !validID(objectID) {
		return fmt.Errorf("invalid object id %q", objectID)
	}
	c, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if _, err := helpers.DeleteByPrefix(c, g.client, g.bucket, objectKey(g.prefix, objectID, "")); err != nil {
		return fmt.Errorf("gcs delete %s: %w", objectID, err)
	}
	return nil
}

func (g *GCS) ObjectID(url string) string { return ObjectIDFromURL(url) }

func (g *GCS) Close() error { return g.client.Close() }
