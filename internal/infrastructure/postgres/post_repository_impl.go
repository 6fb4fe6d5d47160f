package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oksasatya/go-post-feed/internal/domain/entity"
	"github.com/oksasatya/go-post-feed/internal/domain/repository"
)

// replyDTO is the JSONB shape of an embedded reply.
type replyDTO struct {
	UserID         string    `json:"userId"`
	Text           string    `json:"text"`
	Username       string    `json:"username"`
	UserProfilePic string    `json:"userProfilePic"`
	CreatedAt      time.Time `json:"createdAt"`
}

type PostRepository struct {
	pool *pgxpool.Pool
}

func NewPostRepository(pool *pgxpool.Pool) *PostRepository {
	return &PostRepository{pool: pool}
}

const selectPost = `
	SELECT id::text, posted_by::text, text, img, likes::text[], replies, created_at, updated_at
	FROM posts
`

func (r *PostRepository) Insert(ctx context.Context, p *entity.Post) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO posts (posted_by, text, img)
		VALUES ($1::uuid, $2, $3)
		RETURNING id::text, created_at, updated_at
	`, p.PostedBy, p.Text, p.Img)

	if err := row.Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return fmt.Errorf("failed to insert post: %w", err)
	}
	p.Likes = []string{}
	p.Replies = []entity.Reply{}
	return nil
}

func (r *PostRepository) GetByID(ctx context.Context, id string) (*entity.Post, error) {
	if !isUUID(id) {
		return nil, repository.ErrNotFound
	}
	row := r.pool.QueryRow(ctx, selectPost+`WHERE id = $1::uuid`, id)

	p, err := scanPost(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return p, nil
}

func (r *PostRepository) DeleteByID(ctx context.Context, id string) error {
	return r.execOne(ctx, `DELETE FROM posts WHERE id = $1::uuid`, id)
}

// AddLike removes then appends userID in one statement, so the set never
// holds a duplicate regardless of concurrent callers.
func (r *PostRepository) AddLike(ctx context.Context, id, userID string) error {
	return r.execOne(ctx, `
		UPDATE posts
		SET likes = array_append(array_remove(likes, $2::uuid), $2::uuid),
		    updated_at = GREATEST(updated_at, clock_timestamp())
		WHERE id = $1::uuid
	`, id, userID)
}

func (r *PostRepository) RemoveLike(ctx context.Context, id, userID string) error {
	return r.execOne(ctx, `
		UPDATE posts
		SET likes = array_remove(likes, $2::uuid),
		    updated_at = GREATEST(updated_at, clock_timestamp())
		WHERE id = $1::uuid
	`, id, userID)
}

// AppendReply computes the new replies array from the locked row value, so
// concurrent appends serialize on the row instead of overwriting each other.
func (r *PostRepository) AppendReply(ctx context.Context, id string, reply entity.Reply) error {
	b, err := json.Marshal(replyDTO{
		UserID:         reply.UserID,
		Text:           reply.Text,
		Username:       reply.Username,
		UserProfilePic: reply.UserProfilePic,
		CreatedAt:      reply.CreatedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal reply: %w", err)
	}

	return r.execOne(ctx, `
		UPDATE posts
		SET replies = (
		        SELECT COALESCE(jsonb_agg(r.elem ORDER BY (r.elem->>'createdAt')::timestamptz DESC, r.pos), '[]'::jsonb)
		        FROM jsonb_array_elements(jsonb_build_array($2::jsonb) || replies) WITH ORDINALITY AS r(elem, pos)
		    ),
		    updated_at = GREATEST(updated_at, clock_timestamp())
		WHERE id = $1::uuid
	`, id, string(b))
}

func (r *PostRepository) ListByOwners(ctx context.Context, ownerIDs []string) ([]*entity.Post, error) {
	if len(ownerIDs) == 0 {
		return []*entity.Post{}, nil
	}
	return r.list(ctx, selectPost+`WHERE posted_by = ANY($1::uuid[]) ORDER BY created_at DESC`, ownerIDs)
}

func (r *PostRepository) ListByOwner(ctx context.Context, ownerID string) ([]*entity.Post, error) {
	return r.list(ctx, selectPost+`WHERE posted_by = $1::uuid ORDER BY created_at DESC`, ownerID)
}

func (r *PostRepository) list(ctx context.Context, query string, arg any) ([]*entity.Post, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	posts := make([]*entity.Post, 0)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate posts: %w", err)
	}
	return posts, nil
}

// execOne runs a statement keyed by a post id in args[0] and maps zero
// affected rows to ErrNotFound.
func (r *PostRepository) execOne(ctx context.Context, query string, args ...any) error {
	if id, _ := args[0].(string); !isUUID(id) {
		return repository.ErrNotFound
	}
	res, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to exec: %w", err)
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanPost(row pgx.Row) (*entity.Post, error) {
	var (
		p       entity.Post
		replies []byte
	)
	if err := row.Scan(&p.ID, &p.PostedBy, &p.Text, &p.Img, &p.Likes, &replies, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if p.Likes == nil {
		p.Likes = []string{}
	}

	var dtos []replyDTO
	if err := json.Unmarshal(replies, &dtos); err != nil {
		return nil, fmt.Errorf("failed to decode replies: %w", err)
	}
	p.Replies = make([]entity.Reply, len(dtos))
	for i, d := range dtos {
		p.Replies[i] = entity.Reply{
			UserID:         d.UserID,
			Text:           d.Text,
			Username:       d.Username,
			UserProfilePic: d.UserProfilePic,
			CreatedAt:      d.CreatedAt,
		}
	}
	return &p, nil
}

var _ repository.PostRepository = (*PostRepository)(nil)
