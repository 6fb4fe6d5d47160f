package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-post-feed/internal/container"
	handlers "github.com/oksasatya/go-post-feed/internal/interface/http"
	"github.com/oksasatya/go-post-feed/internal/interface/middleware"
	"github.com/oksasatya/go-post-feed/pkg/helpers"
)

// PostModule wires the post endpoints under /api/posts.
// Public: GET /:id, GET /user/:username, GET /search
// Protected: POST /create, DELETE /:id, PUT /like/:id, PUT /reply/:id, GET /feed
type PostModule struct {
	Handler *handlers.PostHandler
	JWT     *helpers.JWTManager
}

func NewPostModule(h *handlers.PostHandler, jwt *helpers.JWTManager) *PostModule {
	return &PostModule{Handler: h, JWT: jwt}
}

func (m *PostModule) Register(rg *gin.RouterGroup) {
	rdb := container.GetRedis()
	posts := rg.Group("/posts")

	readLimiter := middleware.RateLimit(rdb, 300, time.Minute, middleware.KeyByIP(), nil)
	searchLimiter := middleware.RateLimit(rdb, 30, time.Minute, middleware.KeyByIPAndPath(), nil)

	auth := posts.Group("/")
	auth.Use(middleware.Auth(rdb, m.JWT))
	auth.Use(middleware.RateLimit(rdb, 120, time.Minute, middleware.KeyByUserID(), nil))
	{
		auth.GET("/feed", m.Handler.Feed)
		auth.POST("/create", middleware.RateLimit(rdb, 10, time.Minute, middleware.KeyByUserIDAndPath(), nil), m.Handler.Create)
		auth.DELETE("/:id", m.Handler.Delete)
		auth.PUT("/like/:id", m.Handler.LikeUnlike)
		auth.PUT("/reply/:id", m.Handler.Reply)
	}

	posts.GET("/search", searchLimiter, m.Handler.Search)
	posts.GET("/user/:username", readLimiter, m.Handler.UserPosts)
	posts.GET("/:id", readLimiter, m.Handler.Get)
}
