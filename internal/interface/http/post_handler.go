package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-post-feed/internal/application"
	"github.com/oksasatya/go-post-feed/internal/domain/entity"
	"github.com/oksasatya/go-post-feed/pkg/helpers"
	"github.com/oksasatya/go-post-feed/pkg/response"
	"github.com/oksasatya/go-post-feed/pkg/validation"
)

// PostService is the application surface the post endpoints need.
type PostService interface {
	CreatePost(ctx context.Context, callerID string, in application.CreatePostInput) (*entity.Post, error)
	GetPost(ctx context.Context, id string) (*entity.Post, error)
	DeletePost(ctx context.Context, callerID, id string) error
	LikeUnlikePost(ctx context.Context, callerID, postID string) (application.LikeAction, error)
	ReplyToPost(ctx context.Context, callerID, postID, text string) (*entity.Reply, error)
	GetFeedPosts(ctx context.Context, callerID string) ([]*entity.Post, error)
	GetUserPosts(ctx context.Context, username string) ([]*entity.Post, error)
	SearchPosts(ctx context.Context, q string) ([]application.PostHit, error)
}

type PostHandler struct {
	Svc    PostService
	Logger *logrus.Logger
}

func NewPostHandler(svc PostService, logger *logrus.Logger) *PostHandler {
	return &PostHandler{Svc: svc, Logger: logger}
}

type createPostRequest struct {
	PostedBy string `json:"postedBy" binding:"required"`
	Text     string `json:"text" binding:"required"`
	Img      string `json:"img"`
}

type replyRequest struct {
	Text string `json:"text" binding:"required"`
}

type replyResponse struct {
	UserID         string    `json:"userId"`
	Text           string    `json:"text"`
	Username       string    `json:"username"`
	UserProfilePic string    `json:"userProfilePic"`
	CreatedAt      time.Time `json:"createdAt"`
}

type postResponse struct {
	ID        string          `json:"id"`
	PostedBy  string          `json:"postedBy"`
	Text      string          `json:"text"`
	Img       string          `json:"img,omitempty"`
	Likes     []string        `json:"likes"`
	Replies   []replyResponse `json:"replies"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func toReply(r entity.Reply) replyResponse {
	return replyResponse{
		UserID:         r.UserID,
		Text:           r.Text,
		Username:       r.Username,
		UserProfilePic: r.UserProfilePic,
		CreatedAt:      r.CreatedAt,
	}
}

func toPost(p *entity.Post) postResponse {
	out := postResponse{
		ID:        p.ID,
		PostedBy:  p.PostedBy,
		Text:      p.Text,
		Img:       p.Img,
		Likes:     append([]string{}, p.Likes...),
		Replies:   make([]replyResponse, len(p.Replies)),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	for i, r := range p.Replies {
		out.Replies[i] = toReply(r)
	}
	return out
}

func toPosts(posts []*entity.Post) []postResponse {
	out := make([]postResponse, len(posts))
	for i, p := range posts {
		out[i] = toPost(p)
	}
	return out
}

func (h *PostHandler) Create(c *gin.Context) {
	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	p, err := h.Svc.CreatePost(c.Request.Context(), c.GetString("userID"), application.CreatePostInput{
		PostedBy: req.PostedBy,
		Text:     req.Text,
		Img:      req.Img,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, toPost(p), "post created", nil)
}

func (h *PostHandler) Get(c *gin.Context) {
	p, err := h.Svc.GetPost(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, toPost(p), "post", nil)
}

func (h *PostHandler) Delete(c *gin.Context) {
	if err := h.Svc.DeletePost(c.Request.Context(), c.GetString("userID"), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	response.Success[any](c, http.StatusOK, nil, "Post deleted successfully", nil)
}

func (h *PostHandler) LikeUnlike(c *gin.Context) {
	action, err := h.Svc.LikeUnlikePost(c.Request.Context(), c.GetString("userID"), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	msg := "Post liked successfully"
	if action == application.Unliked {
		msg = "Post unliked successfully"
	}
	response.Success(c, http.StatusOK, gin.H{"action": action}, msg, nil)
}

func (h *PostHandler) Reply(c *gin.Context) {
	var req replyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	r, err := h.Svc.ReplyToPost(c.Request.Context(), c.GetString("userID"), c.Param("id"), req.Text)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, toReply(*r), "reply added", nil)
}

func (h *PostHandler) Feed(c *gin.Context) {
	posts, err := h.Svc.GetFeedPosts(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, toPosts(posts), "feed", map[string]any{"count": len(posts)})
}

func (h *PostHandler) UserPosts(c *gin.Context) {
	posts, err := h.Svc.GetUserPosts(c.Request.Context(), c.Param("username"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, toPosts(posts), "user posts", map[string]any{"count": len(posts)})
}

func (h *PostHandler) Search(c *gin.Context) {
	hits, err := h.Svc.SearchPosts(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, hits, "search results", map[string]any{"count": len(hits)})
}

// fail maps service errors to HTTP statuses. Anything unclassified is a 500
// and its cause stays in the log.
func (h *PostHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, application.ErrInvalidInput):
		response.Error[any](c, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, application.ErrNotFound):
		response.Error[any](c, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, application.ErrUnauthorized):
		response.Error[any](c, http.StatusUnauthorized, err.Error(), nil)
	default:
		helpers.LogError(h.Logger, "post request failed", err, logrus.Fields{
			"request_id": c.GetString("request_id"),
			"path":       c.FullPath(),
		})
		response.Error[any](c, http.StatusInternalServerError, "internal server error", nil)
	}
}
