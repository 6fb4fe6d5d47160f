package application

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-post-feed/internal/domain/entity"
	repo "github.com/oksasatya/go-post-feed/internal/domain/repository"
)

// SearchSize caps the number of search hits returned.
const SearchSize = 20

var postOps = expvar.NewMap("post_ops")

// LikeAction tells which branch of the like toggle ran.
type LikeAction string

const (
	Liked   LikeAction = "liked"
	Unliked LikeAction = "unliked"
)

type PostService struct {
	Posts  repo.PostRepository
	Users  repo.UserRepository
	Blobs  BlobStore
	Index  PostIndexer
	Events EventPublisher
	Logger *logrus.Logger

	now func() time.Time
}

// NewPostService wires the service. blobs, index and events may be nil;
// search then returns nothing and events are skipped.
func NewPostService(posts repo.PostRepository, users repo.UserRepository, blobs BlobStore, index PostIndexer, events EventPublisher, logger *logrus.Logger) *PostService {
	return &PostService{
		Posts:  posts,
		Users:  users,
		Blobs:  blobs,
		Index:  index,
		Events: events,
		Logger: logger,
		now:    time.Now,
	}
}

type CreatePostInput struct {
	PostedBy string
	Text     string
	Img      string
}

func (s *PostService) CreatePost(ctx context.Context, callerID string, in CreatePostInput) (*entity.Post, error) {
	postOps.Add("create", 1)

	if in.PostedBy == "" || in.Text == "" {
		return nil, fmt.Errorf("%w: postedBy and text fields are required", ErrInvalidInput)
	}
	if _, err := s.Users.GetByID(ctx, in.PostedBy); err != nil {
		return nil, s.mapRepoErr("get user", err, "user not found")
	}
	if callerID != in.PostedBy {
		return nil, fmt.Errorf("%w: cannot create post for another user", ErrUnauthorized)
	}
	if n := utf8.RuneCountInString(in.Text); n > entity.MaxPostTextLength {
		return nil, fmt.Errorf("%w: text must be less than %d characters", ErrInvalidInput, entity.MaxPostTextLength)
	}

	p := &entity.Post{PostedBy: in.PostedBy, Text: in.Text}
	if in.Img != "" {
		if s.Blobs == nil {
			return nil, fmt.Errorf("%w: blob storage not configured", ErrStorage)
		}
		url, err := s.Blobs.Upload(ctx, in.Img)
		if err != nil {
			if errors.Is(err, ErrInvalidInput) {
				return nil, err
			}
			postOps.Add("create_errors", 1)
			s.warn(err, "post_by", in.PostedBy, "image upload failed")
			return nil, fmt.Errorf("%w: upload image: %w", ErrStorage, err)
		}
		p.Img = url
	}

	if err := s.Posts.Insert(ctx, p); err != nil {
		postOps.Add("create_errors", 1)
		return nil, fmt.Errorf("%w: insert post: %w", ErrStorage, err)
	}

	s.index(ctx, p)
	s.publish(ctx, entity.PostEvent{Type: entity.PostCreated, PostID: p.ID, PostOwner: p.PostedBy, ActorID: callerID, Text: p.Text})
	return p, nil
}

func (s *PostService) GetPost(ctx context.Context, id string) (*entity.Post, error) {
	postOps.Add("get", 1)

	p, err := s.Posts.GetByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoErr("get post", err, "post not found")
	}
	return p, nil
}

// DeletePost removes the post's media first and aborts when that fails, so
// the record is never left pointing at nothing and a retry can finish.
func (s *PostService) DeletePost(ctx context.Context, callerID, id string) error {
	postOps.Add("delete", 1)

	p, err := s.Posts.GetByID(ctx, id)
	if err != nil {
		return s.mapRepoErr("get post", err, "post not found")
	}
	if p.PostedBy != callerID {
		return fmt.Errorf("%w: unauthorized to delete post", ErrUnauthorized)
	}

	if p.Img != "" && s.Blobs != nil {
		if objectID := s.Blobs.ObjectID(p.Img); objectID != "" {
			if err := s.Blobs.Delete(ctx, objectID); err != nil {
				postOps.Add("delete_errors", 1)
				s.warn(err, "post_id", id, "image delete failed")
				return fmt.Errorf("%w: delete image: %w", ErrStorage, err)
			}
		}
	}

	if err := s.Posts.DeleteByID(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: post not found", ErrNotFound)
		}
		postOps.Add("delete_errors", 1)
		s.warn(err, "post_id", id, "post delete failed after image removal")
		return fmt.Errorf("%w: delete post: %w", ErrStorage, err)
	}

	if s.Index != nil {
		c, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := s.Index.Delete(c, id); err != nil {
			s.warn(err, "post_id", id, "es delete failed")
		}
		cancel()
	}
	s.publish(ctx, entity.PostEvent{Type: entity.PostDeleted, PostID: id, PostOwner: p.PostedBy, ActorID: callerID})
	return nil
}

func (s *PostService) LikeUnlikePost(ctx context.Context, callerID, postID string) (LikeAction, error) {
	postOps.Add("like", 1)

	p, err := s.Posts.GetByID(ctx, postID)
	if err != nil {
		return "", s.mapRepoErr("get post", err, "post not found")
	}

	action, evt := Liked, entity.PostLiked
	if p.LikedBy(callerID) {
		action, evt = Unliked, entity.PostUnliked
		err = s.Posts.RemoveLike(ctx, postID, callerID)
	} else {
		err = s.Posts.AddLike(ctx, postID, callerID)
	}
	if err != nil {
		return "", s.mapRepoErr(string(action), err, "post not found")
	}

	s.publish(ctx, entity.PostEvent{Type: evt, PostID: postID, PostOwner: p.PostedBy, ActorID: callerID})
	return action, nil
}

func (s *PostService) ReplyToPost(ctx context.Context, callerID, postID, text string) (*entity.Reply, error) {
	postOps.Add("reply", 1)

	if text == "" {
		return nil, fmt.Errorf("%w: text field is required", ErrInvalidInput)
	}

	p, err := s.Posts.GetByID(ctx, postID)
	if err != nil {
		return nil, s.mapRepoErr("get post", err, "post not found")
	}
	u, err := s.Users.GetByID(ctx, callerID)
	if err != nil {
		return nil, s.mapRepoErr("get user", err, "user not found")
	}

	r := entity.Reply{
		UserID:         u.ID,
		Text:           text,
		Username:       u.Username,
		UserProfilePic: u.ProfilePic,
		// postgres keeps microseconds
		CreatedAt: s.now().UTC().Truncate(time.Microsecond),
	}
	if err := s.Posts.AppendReply(ctx, postID, r); err != nil {
		return nil, s.mapRepoErr("append reply", err, "post not found")
	}

	s.publish(ctx, entity.PostEvent{Type: entity.PostReplied, PostID: postID, PostOwner: p.PostedBy, ActorID: callerID, Text: text})
	return &r, nil
}

func (s *PostService) GetFeedPosts(ctx context.Context, callerID string) ([]*entity.Post, error) {
	postOps.Add("feed", 1)

	u, err := s.Users.GetByID(ctx, callerID)
	if err != nil {
		return nil, s.mapRepoErr("get user", err, "user not found")
	}
	posts, err := s.Posts.ListByOwners(ctx, u.Following)
	if err != nil {
		return nil, s.mapRepoErr("list feed", err, "")
	}
	entity.SortPostsDesc(posts)
	return posts, nil
}

func (s *PostService) GetUserPosts(ctx context.Context, username string) ([]*entity.Post, error) {
	postOps.Add("user_posts", 1)

	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	u, err := s.Users.GetByUsername(ctx, username)
	if err != nil {
		return nil, s.mapRepoErr("get user", err, "user not found")
	}
	posts, err := s.Posts.ListByOwner(ctx, u.ID)
	if err != nil {
		return nil, s.mapRepoErr("list user posts", err, "")
	}
	entity.SortPostsDesc(posts)
	return posts, nil
}

func (s *PostService) SearchPosts(ctx context.Context, q string) ([]PostHit, error) {
	postOps.Add("search", 1)

	q = strings.TrimSpace(q)
	if q == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}
	if s.Index == nil {
		return []PostHit{}, nil
	}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	hits, err := s.Index.Search(c, q, SearchSize)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %w", ErrStorage, err)
	}
	return hits, nil
}

func (s *PostService) mapRepoErr(op string, err error, notFoundMsg string) error {
	if errors.Is(err, repo.ErrNotFound) {
		if notFoundMsg == "" {
			notFoundMsg = op
		}
		return fmt.Errorf("%w: %s", ErrNotFound, notFoundMsg)
	}
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

func (s *PostService) index(ctx context.Context, p *entity.Post) {
	if s.Index == nil {
		return
	}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := s.Index.Index(c, p); err != nil {
		s.warn(err, "post_id", p.ID, "es index failed")
	}
}

func (s *PostService) publish(ctx context.Context, evt entity.PostEvent) {
	if s.Events == nil {
		return
	}
	evt.At = time.Now().UTC()
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := s.Events.PublishJSON(c, evt); err != nil {
		s.warn(err, "post_id", evt.PostID, "publish post event failed")
	}
}

func (s *PostService) warn(err error, key, value, msg string) {
	if s.Logger != nil {
		s.Logger.WithError(err).WithField(key, value).Warn(msg)
	}
}
