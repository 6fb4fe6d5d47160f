package application

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/oksasatya/go-post-feed/internal/domain/entity"
	repo "github.com/oksasatya/go-post-feed/internal/domain/repository"
)

// memPosts is an in-memory PostRepository with the same atomicity as the
// postgres implementation: every mutation happens under one lock.
type memPosts struct {
	mu    sync.Mutex
	seq   int
	clock time.Time
	posts map[string]*entity.Post
}

func newMemPosts() *memPosts {
	return &memPosts{posts: map[string]*entity.Post{}, clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (m *memPosts) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func clonePost(p *entity.Post) *entity.Post {
	c := *p
	c.Likes = append([]string{}, p.Likes...)
	c.Replies = append([]entity.Reply{}, p.Replies...)
	return &c
}

func (m *memPosts) Insert(_ context.Context, p *entity.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	p.ID = fmt.Sprintf("post-%d", m.seq)
	p.CreatedAt = m.tick()
	p.UpdatedAt = p.CreatedAt
	p.Likes = []string{}
	p.Replies = []entity.Reply{}
	m.posts[p.ID] = clonePost(p)
	return nil
}

func (m *memPosts) GetByID(_ context.Context, id string) (*entity.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return clonePost(p), nil
}

func (m *memPosts) DeleteByID(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[id]; !ok {
		return repo.ErrNotFound
	}
	delete(m.posts, id)
	return nil
}

func (m *memPosts) AddLike(_ context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return repo.ErrNotFound
	}
	if !p.LikedBy(userID) {
		p.Likes = append(p.Likes, userID)
	}
	p.UpdatedAt = m.tick()
	return nil
}

func (m *memPosts) RemoveLike(_ context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return repo.ErrNotFound
	}
	out := p.Likes[:0]
	for _, l := range p.Likes {
		if l != userID {
			out = append(out, l)
		}
	}
	p.Likes = out
	p.UpdatedAt = m.tick()
	return nil
}

func (m *memPosts) AppendReply(_ context.Context, id string, r entity.Reply) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return repo.ErrNotFound
	}
	p.Replies = append([]entity.Reply{r}, p.Replies...)
	entity.SortRepliesDesc(p.Replies)
	p.UpdatedAt = m.tick()
	return nil
}

func (m *memPosts) ListByOwners(_ context.Context, ownerIDs []string) ([]*entity.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := map[string]bool{}
	for _, id := range ownerIDs {
		set[id] = true
	}
	out := []*entity.Post{}
	for _, p := range m.posts {
		if set[p.PostedBy] {
			out = append(out, clonePost(p))
		}
	}
	return out, nil
}

func (m *memPosts) ListByOwner(ctx context.Context, ownerID string) ([]*entity.Post, error) {
	return m.ListByOwners(ctx, []string{ownerID})
}

type memUsers struct {
	byID map[string]*entity.User
}

func newMemUsers(users ...*entity.User) *memUsers {
	m := &memUsers{byID: map[string]*entity.User{}}
	for _, u := range users {
		m.byID[u.ID] = u
	}
	return m
}

func (m *memUsers) GetByID(_ context.Context, id string) (*entity.User, error) {
	if u, ok := m.byID[id]; ok {
		c := *u
		return &c, nil
	}
	return nil, repo.ErrNotFound
}

func (m *memUsers) GetByUsername(_ context.Context, username string) (*entity.User, error) {
	for _, u := range m.byID {
		if u.Username == username {
			c := *u
			return &c, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*entity.User, error) {
	for _, u := range m.byID {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, repo.ErrNotFound
}

type memBlobs struct {
	mu        sync.Mutex
	objects   map[string]bool
	deleted   []string
	uploadErr error
	deleteErr error
}

func newMemBlobs() *memBlobs { return &memBlobs{objects: map[string]bool{}} }

func (b *memBlobs) Upload(_ context.Context, raw string) (string, error) {
	if b.uploadErr != nil {
		return "", b.uploadErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	id := fmt.Sprintf("obj%d", len(b.objects)+1)
	b.objects[id] = true
	return "https://cdn.test/posts/" + id + ".png", nil
}

func (b *memBlobs) Delete(_ context.Context, objectID string) error {
	if b.deleteErr != nil {
		return b.deleteErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, objectID)
	b.deleted = append(b.deleted, objectID)
	return nil
}

func (b *memBlobs) ObjectID(url string) string {
	name := url[strings.LastIndex(url, "/")+1:]
	if i := strings.LastIndex(name, "."); i > 0 {
		name = name[:i]
	}
	return name
}

type memEvents struct {
	mu     sync.Mutex
	events []entity.PostEvent
	err    error
}

func (e *memEvents) PublishJSON(_ context.Context, body any) error {
	if e.err != nil {
		return e.err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, body.(entity.PostEvent))
	return nil
}

func (e *memEvents) types() []entity.PostEventType {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]entity.PostEventType, len(e.events))
	for i, evt := range e.events {
		out[i] = evt.Type
	}
	return out
}

// mockPosts is used where a test needs a store failure.
type mockPosts struct {
	mock.Mock
}

func (m *mockPosts) Insert(ctx context.Context, p *entity.Post) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockPosts) GetByID(ctx context.Context, id string) (*entity.Post, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*entity.Post)
	return p, args.Error(1)
}

func (m *mockPosts) DeleteByID(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockPosts) AddLike(ctx context.Context, id, userID string) error {
	return m.Called(ctx, id, userID).Error(0)
}

func (m *mockPosts) RemoveLike(ctx context.Context, id, userID string) error {
	return m.Called(ctx, id, userID).Error(0)
}

func (m *mockPosts) AppendReply(ctx context.Context, id string, r entity.Reply) error {
	return m.Called(ctx, id, r).Error(0)
}

func (m *mockPosts) ListByOwners(ctx context.Context, ownerIDs []string) ([]*entity.Post, error) {
	args := m.Called(ctx, ownerIDs)
	p, _ := args.Get(0).([]*entity.Post)
	return p, args.Error(1)
}

func (m *mockPosts) ListByOwner(ctx context.Context, ownerID string) ([]*entity.Post, error) {
	args := m.Called(ctx, ownerID)
	p, _ := args.Get(0).([]*entity.Post)
	return p, args.Error(1)
}

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) Send(ctx context.Context, to, subject, text, html string) error {
	return m.Called(ctx, to, subject, text, html).Error(0)
}

type mockIndexer struct {
	mock.Mock
}

func (m *mockIndexer) Index(ctx context.Context, p *entity.Post) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockIndexer) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockIndexer) Search(ctx context.Context, q string, size int) ([]PostHit, error) {
	args := m.Called(ctx, q, size)
	h, _ := args.Get(0).([]PostHit)
	return h, args.Error(1)
}
