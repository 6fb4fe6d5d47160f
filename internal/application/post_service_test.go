package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/go-post-feed/internal/domain/entity"
	"github.com/oksasatya/go-post-feed/pkg/helpers"
)

var (
	alice = &entity.User{ID: "u-alice", Email: "alice@example.com", Name: "Alice", Username: "alice", ProfilePic: "https://cdn.test/alice.png", Following: []string{"u-bob", "u-dave"}}
	bob   = &entity.User{ID: "u-bob", Email: "bob@example.com", Name: "Bob", Username: "bob", ProfilePic: "https://cdn.test/bob.png"}
	carol = &entity.User{ID: "u-carol", Email: "carol@example.com", Name: "Carol", Username: "carol"}
	dave  = &entity.User{ID: "u-dave", Email: "dave@example.com", Name: "Dave", Username: "dave"}
)

type fixture struct {
	svc    *PostService
	posts  *memPosts
	blobs  *memBlobs
	events *memEvents
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{posts: newMemPosts(), blobs: newMemBlobs(), events: &memEvents{}}
	f.svc = NewPostService(f.posts, newMemUsers(alice, bob, carol, dave), f.blobs, nil, f.events, helpers.NewNopLogger())

	var tick atomic.Int64
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time {
		return base.Add(time.Duration(tick.Add(1)) * time.Millisecond)
	}
	return f
}

func (f *fixture) create(t *testing.T, owner *entity.User, text string) *entity.Post {
	t.Helper()
	p, err := f.svc.CreatePost(context.Background(), owner.ID, CreatePostInput{PostedBy: owner.ID, Text: text})
	require.NoError(t, err)
	return p
}

func TestPostService_CreatePost(t *testing.T) {
	tt := []struct {
		name   string
		caller string
		in     CreatePostInput
		err    error
	}{
		{
			name:   "success",
			caller: alice.ID,
			in:     CreatePostInput{PostedBy: alice.ID, Text: "hello"},
		},
		{
			name:   "exactly max length",
			caller: alice.ID,
			in:     CreatePostInput{PostedBy: alice.ID, Text: strings.Repeat("a", entity.MaxPostTextLength)},
		},
		{
			name:   "max length counted in characters",
			caller: alice.ID,
			in:     CreatePostInput{PostedBy: alice.ID, Text: strings.Repeat("é", entity.MaxPostTextLength)},
		},
		{
			name:   "missing postedBy",
			caller: alice.ID,
			in:     CreatePostInput{Text: "hello"},
			err:    ErrInvalidInput,
		},
		{
			name:   "missing text",
			caller: alice.ID,
			in:     CreatePostInput{PostedBy: alice.ID},
			err:    ErrInvalidInput,
		},
		{
			name:   "unknown user",
			caller: "u-ghost",
			in:     CreatePostInput{PostedBy: "u-ghost", Text: "hello"},
			err:    ErrNotFound,
		},
		{
			name:   "unknown user checked before ownership",
			caller: alice.ID,
			in:     CreatePostInput{PostedBy: "u-ghost", Text: "hello"},
			err:    ErrNotFound,
		},
		{
			name:   "other user",
			caller: bob.ID,
			in:     CreatePostInput{PostedBy: alice.ID, Text: "hello"},
			err:    ErrUnauthorized,
		},
		{
			name:   "ownership checked before length",
			caller: bob.ID,
			in:     CreatePostInput{PostedBy: alice.ID, Text: strings.Repeat("a", entity.MaxPostTextLength+1)},
			err:    ErrUnauthorized,
		},
		{
			name:   "too long",
			caller: alice.ID,
			in:     CreatePostInput{PostedBy: alice.ID, Text: strings.Repeat("a", entity.MaxPostTextLength+1)},
			err:    ErrInvalidInput,
		},
	}

	for i := range tt {
		tc := tt[i]

		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)

			p, err := f.svc.CreatePost(context.Background(), tc.caller, tc.in)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				require.Nil(t, p)
				require.Empty(t, f.posts.posts)
				require.Empty(t, f.events.events)
				return
			}

			require.NoError(t, err)
			require.NotEmpty(t, p.ID)
			assert.Equal(t, tc.in.PostedBy, p.PostedBy)
			assert.Equal(t, tc.in.Text, p.Text)
			assert.Empty(t, p.Img)
			assert.NotNil(t, p.Likes)
			assert.Empty(t, p.Likes)
			assert.NotNil(t, p.Replies)
			assert.Empty(t, p.Replies)
			assert.False(t, p.CreatedAt.IsZero())
			assert.Equal(t, []entity.PostEventType{entity.PostCreated}, f.events.types())
		})
	}
}

func TestPostService_CreatePost_TooLongMessageNamesLimit(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreatePost(context.Background(), alice.ID, CreatePostInput{PostedBy: alice.ID, Text: strings.Repeat("x", 501)})
	require.ErrorIs(t, err, ErrInvalidInput)
	require.Contains(t, err.Error(), "500")
}

func TestPostService_CreatePost_Image(t *testing.T) {
	t.Run("uploaded url replaces raw input", func(t *testing.T) {
		f := newFixture(t)

		p, err := f.svc.CreatePost(context.Background(), alice.ID, CreatePostInput{PostedBy: alice.ID, Text: "pic", Img: "data:image/png;base64,AAAA"})
		require.NoError(t, err)
		require.Equal(t, "https://cdn.test/posts/obj1.png", p.Img)

		stored, err := f.svc.GetPost(context.Background(), p.ID)
		require.NoError(t, err)
		require.Equal(t, p.Img, stored.Img)
	})

	t.Run("upload failure persists nothing", func(t *testing.T) {
		f := newFixture(t)
		f.blobs.uploadErr = errors.New("bucket unavailable")

		p, err := f.svc.CreatePost(context.Background(), alice.ID, CreatePostInput{PostedBy: alice.ID, Text: "pic", Img: "data:image/png;base64,AAAA"})
		require.ErrorIs(t, err, ErrStorage)
		require.Nil(t, p)
		require.Empty(t, f.posts.posts)
	})

	t.Run("rejected payload is invalid input", func(t *testing.T) {
		f := newFixture(t)
		f.blobs.uploadErr = fmt.Errorf("%w: not an image", ErrInvalidInput)

		_, err := f.svc.CreatePost(context.Background(), alice.ID, CreatePostInput{PostedBy: alice.ID, Text: "pic", Img: "data:text/plain;base64,AAAA"})
		require.ErrorIs(t, err, ErrInvalidInput)
		require.Empty(t, f.posts.posts)
	})
}

func TestPostService_GetPost(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, alice, "hello")

	p, err := f.svc.GetPost(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, created, p)

	_, err = f.svc.GetPost(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPostService_DeletePost(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		f := newFixture(t)
		require.ErrorIs(t, f.svc.DeletePost(context.Background(), alice.ID, "missing"), ErrNotFound)
	})

	t.Run("non owner leaves post and media unchanged", func(t *testing.T) {
		f := newFixture(t)
		p, err := f.svc.CreatePost(context.Background(), alice.ID, CreatePostInput{PostedBy: alice.ID, Text: "mine", Img: "data:image/png;base64,AAAA"})
		require.NoError(t, err)

		require.ErrorIs(t, f.svc.DeletePost(context.Background(), bob.ID, p.ID), ErrUnauthorized)

		_, err = f.svc.GetPost(context.Background(), p.ID)
		require.NoError(t, err)
		require.True(t, f.blobs.objects["obj1"])
		require.Empty(t, f.blobs.deleted)
	})

	t.Run("owner removes media then post", func(t *testing.T) {
		f := newFixture(t)
		p, err := f.svc.CreatePost(context.Background(), alice.ID, CreatePostInput{PostedBy: alice.ID, Text: "mine", Img: "data:image/png;base64,AAAA"})
		require.NoError(t, err)

		require.NoError(t, f.svc.DeletePost(context.Background(), alice.ID, p.ID))

		_, err = f.svc.GetPost(context.Background(), p.ID)
		require.ErrorIs(t, err, ErrNotFound)
		require.Equal(t, []string{"obj1"}, f.blobs.deleted)
		require.Equal(t, []entity.PostEventType{entity.PostCreated, entity.PostDeleted}, f.events.types())
	})

	t.Run("media failure aborts delete", func(t *testing.T) {
		f := newFixture(t)
		p, err := f.svc.CreatePost(context.Background(), alice.ID, CreatePostInput{PostedBy: alice.ID, Text: "mine", Img: "data:image/png;base64,AAAA"})
		require.NoError(t, err)
		f.blobs.deleteErr = errors.New("timeout")

		require.ErrorIs(t, f.svc.DeletePost(context.Background(), alice.ID, p.ID), ErrStorage)

		_, err = f.svc.GetPost(context.Background(), p.ID)
		require.NoError(t, err)
	})

	t.Run("post without media skips blob store", func(t *testing.T) {
		f := newFixture(t)
		p := f.create(t, alice, "text only")

		require.NoError(t, f.svc.DeletePost(context.Background(), alice.ID, p.ID))
		require.Empty(t, f.blobs.deleted)
	})
}

func TestPostService_LikeUnlikePost(t *testing.T) {
	f := newFixture(t)
	p := f.create(t, alice, "like me")
	ctx := context.Background()

	_, err := f.svc.LikeUnlikePost(ctx, bob.ID, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	action, err := f.svc.LikeUnlikePost(ctx, bob.ID, p.ID)
	require.NoError(t, err)
	require.Equal(t, Liked, action)

	got, err := f.svc.GetPost(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, []string{bob.ID}, got.Likes)

	action, err = f.svc.LikeUnlikePost(ctx, bob.ID, p.ID)
	require.NoError(t, err)
	require.Equal(t, Unliked, action)

	got, err = f.svc.GetPost(ctx, p.ID)
	require.NoError(t, err)
	require.Empty(t, got.Likes)

	require.Equal(t, []entity.PostEventType{entity.PostCreated, entity.PostLiked, entity.PostUnliked}, f.events.types())
}

func TestPostService_LikeUnlikePost_Concurrent(t *testing.T) {
	t.Run("different users never lose a like", func(t *testing.T) {
		f := newFixture(t)
		p := f.create(t, alice, "popular")

		const n = 50
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := f.svc.LikeUnlikePost(context.Background(), fmt.Sprintf("u-%d", i), p.ID)
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		got, err := f.svc.GetPost(context.Background(), p.ID)
		require.NoError(t, err)
		require.Len(t, got.Likes, n)
	})

	t.Run("same user never duplicates", func(t *testing.T) {
		f := newFixture(t)
		p := f.create(t, alice, "contested")

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = f.svc.LikeUnlikePost(context.Background(), bob.ID, p.ID)
			}()
		}
		wg.Wait()

		got, err := f.svc.GetPost(context.Background(), p.ID)
		require.NoError(t, err)
		require.LessOrEqual(t, len(got.Likes), 1)
	})
}

func TestPostService_ReplyToPost(t *testing.T) {
	f := newFixture(t)
	p := f.create(t, alice, "talk to me")
	ctx := context.Background()

	_, err := f.svc.ReplyToPost(ctx, bob.ID, p.ID, "")
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.ReplyToPost(ctx, bob.ID, "missing", "hi")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.ReplyToPost(ctx, "u-ghost", p.ID, "hi")
	require.ErrorIs(t, err, ErrNotFound)

	r, err := f.svc.ReplyToPost(ctx, bob.ID, p.ID, "hi")
	require.NoError(t, err)
	require.Equal(t, bob.ID, r.UserID)
	require.Equal(t, "hi", r.Text)
	require.Equal(t, bob.Username, r.Username)
	require.Equal(t, bob.ProfilePic, r.UserProfilePic)
	require.False(t, r.CreatedAt.IsZero())

	got, err := f.svc.GetPost(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, []entity.Reply{*r}, got.Replies)
}

func TestPostService_ReplyToPost_OrderedNewestFirst(t *testing.T) {
	f := newFixture(t)
	p := f.create(t, alice, "thread")

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	t1, t2, t3 := base.Add(time.Second), base.Add(2*time.Second), base.Add(3*time.Second)

	// inserted out of order: t2, t3, t1
	times := []time.Time{t2, t3, t1}
	var i int
	f.svc.now = func() time.Time {
		ts := times[i%len(times)]
		i++
		return ts
	}

	for _, text := range []string{"second", "third", "first"} {
		_, err := f.svc.ReplyToPost(context.Background(), bob.ID, p.ID, text)
		require.NoError(t, err)
	}

	got, err := f.svc.GetPost(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, got.Replies, 3)
	assert.Equal(t, []time.Time{t3, t2, t1}, []time.Time{got.Replies[0].CreatedAt, got.Replies[1].CreatedAt, got.Replies[2].CreatedAt})
	assert.Equal(t, "third", got.Replies[0].Text)
	assert.Equal(t, "first", got.Replies[2].Text)
}

func TestPostService_ReplyToPost_ConcurrentKeepsAll(t *testing.T) {
	f := newFixture(t)
	p := f.create(t, alice, "busy thread")

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.ReplyToPost(context.Background(), carol.ID, p.ID, fmt.Sprintf("reply %d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := f.svc.GetPost(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, got.Replies, n)
	for i := 1; i < len(got.Replies); i++ {
		require.False(t, got.Replies[i].CreatedAt.After(got.Replies[i-1].CreatedAt))
	}
}

func TestPostService_ReplyToPost_SnapshotNotResynced(t *testing.T) {
	users := newMemUsers(alice, &entity.User{ID: "u-eve", Username: "eve", ProfilePic: "old.png"})
	posts := newMemPosts()
	svc := NewPostService(posts, users, nil, nil, nil, nil)
	ctx := context.Background()

	p, err := svc.CreatePost(ctx, alice.ID, CreatePostInput{PostedBy: alice.ID, Text: "hi"})
	require.NoError(t, err)
	_, err = svc.ReplyToPost(ctx, "u-eve", p.ID, "hello")
	require.NoError(t, err)

	users.byID["u-eve"] = &entity.User{ID: "u-eve", Username: "eve2", ProfilePic: "new.png"}

	got, err := svc.GetPost(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, "eve", got.Replies[0].Username)
	require.Equal(t, "old.png", got.Replies[0].UserProfilePic)
}

func TestPostService_GetFeedPosts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b1 := f.create(t, bob, "bob 1")
	c1 := f.create(t, carol, "carol 1")
	d1 := f.create(t, dave, "dave 1")
	b2 := f.create(t, bob, "bob 2")

	feed, err := f.svc.GetFeedPosts(ctx, alice.ID)
	require.NoError(t, err)

	ids := make([]string, len(feed))
	for i, p := range feed {
		ids[i] = p.ID
	}
	require.Equal(t, []string{b2.ID, d1.ID, b1.ID}, ids)
	require.NotContains(t, ids, c1.ID)

	feed, err = f.svc.GetFeedPosts(ctx, carol.ID)
	require.NoError(t, err)
	require.NotNil(t, feed)
	require.Empty(t, feed)

	_, err = f.svc.GetFeedPosts(ctx, "u-ghost")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPostService_GetUserPosts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b1 := f.create(t, bob, "bob 1")
	f.create(t, carol, "carol 1")
	b2 := f.create(t, bob, "bob 2")

	posts, err := f.svc.GetUserPosts(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, posts, 2)
	require.Equal(t, b2.ID, posts[0].ID)
	require.Equal(t, b1.ID, posts[1].ID)

	posts, err = f.svc.GetUserPosts(ctx, "alice")
	require.NoError(t, err)
	require.Empty(t, posts)

	_, err = f.svc.GetUserPosts(ctx, "nobody")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPostService_StoreFailures(t *testing.T) {
	boom := errors.New("connection reset")
	ctx := context.Background()

	t.Run("get", func(t *testing.T) {
		posts := &mockPosts{}
		posts.On("GetByID", mock.Anything, "p1").Return(nil, boom)
		svc := NewPostService(posts, newMemUsers(alice), nil, nil, nil, nil)

		_, err := svc.GetPost(ctx, "p1")
		require.ErrorIs(t, err, ErrStorage)
		require.ErrorIs(t, err, boom)
		posts.AssertExpectations(t)
	})

	t.Run("insert", func(t *testing.T) {
		posts := &mockPosts{}
		posts.On("Insert", mock.Anything, mock.AnythingOfType("*entity.Post")).Return(boom)
		svc := NewPostService(posts, newMemUsers(alice), nil, nil, nil, nil)

		_, err := svc.CreatePost(ctx, alice.ID, CreatePostInput{PostedBy: alice.ID, Text: "x"})
		require.ErrorIs(t, err, ErrStorage)
	})

	t.Run("like uses atomic add", func(t *testing.T) {
		posts := &mockPosts{}
		posts.On("GetByID", mock.Anything, "p1").Return(&entity.Post{ID: "p1", PostedBy: alice.ID, Likes: []string{}}, nil)
		posts.On("AddLike", mock.Anything, "p1", bob.ID).Return(boom)
		svc := NewPostService(posts, newMemUsers(alice, bob), nil, nil, nil, nil)

		_, err := svc.LikeUnlikePost(ctx, bob.ID, "p1")
		require.ErrorIs(t, err, ErrStorage)
		posts.AssertNotCalled(t, "RemoveLike", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("delete record after media removal", func(t *testing.T) {
		posts := &mockPosts{}
		posts.On("GetByID", mock.Anything, "p1").Return(&entity.Post{ID: "p1", PostedBy: alice.ID, Img: "https://cdn.test/posts/abc.png"}, nil)
		posts.On("DeleteByID", mock.Anything, "p1").Return(boom)
		blobs := newMemBlobs()
		svc := NewPostService(posts, newMemUsers(alice), blobs, nil, nil, nil)

		require.ErrorIs(t, svc.DeletePost(ctx, alice.ID, "p1"), ErrStorage)
		require.Equal(t, []string{"abc"}, blobs.deleted)
	})

	t.Run("feed listing", func(t *testing.T) {
		posts := &mockPosts{}
		posts.On("ListByOwners", mock.Anything, alice.Following).Return(nil, boom)
		svc := NewPostService(posts, newMemUsers(alice), nil, nil, nil, nil)

		_, err := svc.GetFeedPosts(ctx, alice.ID)
		require.ErrorIs(t, err, ErrStorage)
	})
}

func TestPostService_BestEffortSideEffects(t *testing.T) {
	ctx := context.Background()

	idx := &mockIndexer{}
	idx.On("Index", mock.Anything, mock.AnythingOfType("*entity.Post")).Return(errors.New("es down"))
	idx.On("Delete", mock.Anything, mock.AnythingOfType("string")).Return(errors.New("es down"))
	events := &memEvents{err: errors.New("broker down")}

	svc := NewPostService(newMemPosts(), newMemUsers(alice), newMemBlobs(), idx, events, helpers.NewNopLogger())

	p, err := svc.CreatePost(ctx, alice.ID, CreatePostInput{PostedBy: alice.ID, Text: "still works"})
	require.NoError(t, err)
	require.NoError(t, svc.DeletePost(ctx, alice.ID, p.ID))
	idx.AssertExpectations(t)
}

func TestPostService_SearchPosts(t *testing.T) {
	ctx := context.Background()

	svc := NewPostService(newMemPosts(), newMemUsers(), nil, nil, nil, nil)
	_, err := svc.SearchPosts(ctx, "   ")
	require.ErrorIs(t, err, ErrInvalidInput)

	hits, err := svc.SearchPosts(ctx, "hello")
	require.NoError(t, err)
	require.Empty(t, hits)

	idx := &mockIndexer{}
	idx.On("Search", mock.Anything, "hello", SearchSize).Return([]PostHit{{ID: "p1", Text: "hello world"}}, nil).Once()
	idx.On("Search", mock.Anything, "boom", SearchSize).Return(nil, errors.New("es down")).Once()
	svc.Index = idx

	hits, err = svc.SearchPosts(ctx, " hello ")
	require.NoError(t, err)
	require.Equal(t, []PostHit{{ID: "p1", Text: "hello world"}}, hits)

	_, err = svc.SearchPosts(ctx, "boom")
	require.ErrorIs(t, err, ErrStorage)
}

func TestPostService_EndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.CreatePost(ctx, alice.ID, CreatePostInput{PostedBy: alice.ID, Text: "hello"})
	require.NoError(t, err)
	require.Empty(t, p.Img)

	got, err := f.svc.GetPost(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, p, got)

	_, err = f.svc.LikeUnlikePost(ctx, bob.ID, p.ID)
	require.NoError(t, err)
	got, _ = f.svc.GetPost(ctx, p.ID)
	require.Equal(t, []string{bob.ID}, got.Likes)

	_, err = f.svc.LikeUnlikePost(ctx, bob.ID, p.ID)
	require.NoError(t, err)
	got, _ = f.svc.GetPost(ctx, p.ID)
	require.Empty(t, got.Likes)

	_, err = f.svc.ReplyToPost(ctx, carol.ID, p.ID, "hi")
	require.NoError(t, err)
	got, _ = f.svc.GetPost(ctx, p.ID)
	require.Len(t, got.Replies, 1)
	require.Equal(t, carol.ID, got.Replies[0].UserID)
	require.Equal(t, "hi", got.Replies[0].Text)

	require.ErrorIs(t, f.svc.DeletePost(ctx, bob.ID, p.ID), ErrUnauthorized)
	require.NoError(t, f.svc.DeletePost(ctx, alice.ID, p.ID))

	_, err = f.svc.GetPost(ctx, p.ID)
	require.ErrorIs(t, err, ErrNotFound)
}
