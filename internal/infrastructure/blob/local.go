package blob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Local writes post media to a directory served by the API itself. Meant
// for development.
type Local struct {
	dir     string
	prefix  string
	baseURL string
}

func NewLocal(dir, prefix, baseURL string) (*Local, error) {
	if err := os.MkdirAll(filepath.Join(dir, prefix), 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{dir: dir, prefix: prefix, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

func (l *Local) Upload(ctx context.Context, raw string) (string, error) {
	img, err := DecodeImage(raw)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key := objectKey(l.prefix, uuid.NewString(), img.Ext)
	if err := os.WriteFile(filepath.Join(l.dir, filepath.FromSlash(key)), img.Data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	return l.baseURL + "/" + key, nil
}

func (l *Local) Delete(ctx context.Context, objectID string) error {
	if !validID(objectID) {
		return fmt.Errorf("invalid object id %q", objectID)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	matches, err := filepath.Glob(filepath.Join(l.dir, l.prefix, objectID+".*"))
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", m, err)
		}
	}
	return nil
}

func (l *Local) ObjectID(url string) string { return ObjectIDFromURL(url) }

func (l *Local) Close() error { return nil }
