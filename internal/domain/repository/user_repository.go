package repository

import (
	"context"
	"errors"

	"github.com/oksasatya/go-post-feed/internal/domain/entity"
)

// ErrNotFound is returned by repositories when the requested record does not exist.
var ErrNotFound = errors.New("not found")

// UserRepository is the read-only view of user accounts and the follow graph.
type UserRepository interface {
	// GetByID returns the user with its Following set populated.
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByUsername(ctx context.Context, username string) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
}
