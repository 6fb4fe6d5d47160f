package repository

import (
	"context"

	"github.com/oksasatya/go-post-feed/internal/domain/entity"
)

// PostRepository persists Post aggregates.
//
// AddLike, RemoveLike and AppendReply are atomic on a single post and never
// read the aggregate first. All methods return ErrNotFound when the post
// does not exist.
type PostRepository interface {
	// Insert assigns ID, CreatedAt and UpdatedAt on p.
	Insert(ctx context.Context, p *entity.Post) error
	GetByID(ctx context.Context, id string) (*entity.Post, error)
	DeleteByID(ctx context.Context, id string) error

	AddLike(ctx context.Context, id, userID string) error
	RemoveLike(ctx context.Context, id, userID string) error
	// AppendReply prepends r and re-sorts replies newest first.
	AppendReply(ctx context.Context, id string, r entity.Reply) error

	// ListByOwners returns posts of any owner in ownerIDs, newest first.
	ListByOwners(ctx context.Context, ownerIDs []string) ([]*entity.Post, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*entity.Post, error)
}
