package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oksasatya/go-post-feed/internal/domain/entity"
	"github.com/oksasatya/go-post-feed/internal/domain/repository"
)

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const selectUser = `
	SELECT u.id::text, u.email, u.password_hash, u.name, u.username, u.profile_pic,
	       u.created_at, u.updated_at
	FROM users u
`

func (r *UserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	if !isUUID(id) {
		return nil, repository.ErrNotFound
	}
	u := &entity.User{}

	row := r.pool.QueryRow(ctx, `
		SELECT u.id::text, u.email, u.password_hash, u.name, u.username, u.profile_pic,
		       u.created_at, u.updated_at,
		       COALESCE((SELECT array_agg(f.followee_id::text) FROM follows f WHERE f.follower_id = u.id), '{}')
		FROM users u
		WHERE u.id = $1::uuid
	`, id)

	if err := row.Scan(&u.ID, &u.Email, &u.Password, &u.Name, &u.Username, &u.ProfilePic,
		&u.CreatedAt, &u.UpdatedAt, &u.Following); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return u, nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	return r.getOne(ctx, selectUser+`WHERE u.username = $1`, username)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.getOne(ctx, selectUser+`WHERE u.email = $1`, email)
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg string) (*entity.User, error) {
	u := &entity.User{}

	row := r.pool.QueryRow(ctx, query, arg)
	if err := row.Scan(&u.ID, &u.Email, &u.Password, &u.Name, &u.Username, &u.ProfilePic,
		&u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return u, nil
}

var _ repository.UserRepository = (*UserRepository)(nil)
