package router

import (
	"time"

	"github.com/oksasatya/go-post-feed/internal/application"
	"github.com/oksasatya/go-post-feed/internal/container"
	"github.com/oksasatya/go-post-feed/internal/domain/repository"
	pginfra "github.com/oksasatya/go-post-feed/internal/infrastructure/postgres"
	"github.com/oksasatya/go-post-feed/internal/infrastructure/search"
	handlers "github.com/oksasatya/go-post-feed/internal/interface/http"
	"github.com/oksasatya/go-post-feed/internal/router/modules"
)

type PostModuleDeps struct {
	Repo    repository.PostRepository
	Service *application.PostService
	Handler *handlers.PostHandler
}

type UserModuleDeps struct {
	Repo    repository.UserRepository
	Service *application.AuthService
	Handler *handlers.UserHandler
}

func buildUserDeps() UserModuleDeps {
	repo := pginfra.NewUserRepository(container.GetPGPool())

	service := application.NewAuthService(
		repo,
		container.GetJWT(),
		container.GetRedis(),
		container.GetLogger(),
	)

	handler := handlers.NewUserHandler(
		service,
		container.GetLogger(),
		container.GetConfig().CookieDomain,
		container.GetConfig().CookieSecure,
	)

	return UserModuleDeps{
		Repo:    repo,
		Service: service,
		Handler: handler,
	}
}

func buildPostDeps(users repository.UserRepository) PostModuleDeps {
	repo := pginfra.NewPostRepository(container.GetPGPool())

	// optional collaborators stay untyped-nil when absent
	var (
		index  application.PostIndexer
		events application.EventPublisher
	)
	if es := container.GetES(); es != nil {
		index = search.NewPostIndex(es, container.GetConfig().ESPostsIndex)
	}
	if pub := container.GetRabbitPub(); pub != nil {
		events = pub
	}

	service := application.NewPostService(
		repo,
		users,
		container.GetBlobStore(),
		index,
		events,
		container.GetLogger(),
	)

	return PostModuleDeps{
		Repo:    repo,
		Service: service,
		Handler: handlers.NewPostHandler(service, container.GetLogger()),
	}
}

// InitModules initializes all application modules and registers them with the router registry
// This function should be called once during application startup to wire up all modules
func InitModules(r *Registry) {
	userDeps := buildUserDeps()
	postDeps := buildPostDeps(userDeps.Repo)

	r.Add(modules.NewUserModule(userDeps.Handler, container.GetJWT()))
	r.Add(modules.NewPostModule(postDeps.Handler, container.GetJWT()))
	r.Add(modules.NewHealthModule(3*time.Second, modules.DefaultPingers()...))
	if container.GetConfig().DebugMetricsEnabled {
		r.Add(modules.NewDebugModule())
	}
}
