package application

import (
	"context"

	"github.com/oksasatya/go-post-feed/internal/domain/entity"
)

// BlobStore stores post media. Upload accepts the raw client payload (a
// base64 data URI) and returns the public URL of the stored object.
type BlobStore interface {
	Upload(ctx context.Context, raw string) (string, error)
	// Delete removes the object; an object that is already gone is not an error.
	Delete(ctx context.Context, objectID string) error
	// ObjectID derives the object id (file name without extension) from a URL.
	ObjectID(url string) string
}

// PostHit is a single search result.
type PostHit struct {
	ID        string  `json:"id"`
	PostedBy  string  `json:"postedBy"`
	Text      string  `json:"text"`
	Img       string  `json:"img,omitempty"`
	CreatedAt string  `json:"createdAt"`
	Score     float64 `json:"score"`
}

// PostIndexer keeps a full-text index of posts.
type PostIndexer interface {
	Index(ctx context.Context, p *entity.Post) error
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, q string, size int) ([]PostHit, error)
}

// EventPublisher ships post events to a broker.
type EventPublisher interface {
	PublishJSON(ctx context.Context, body any) error
}

// Mailer sends a single email.
type Mailer interface {
	Send(ctx context.Context, to, subject, text, html string) error
}
