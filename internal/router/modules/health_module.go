package modules

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/oksasatya/go-post-feed/internal/container"
	"github.com/oksasatya/go-post-feed/pkg/helpers"
	"github.com/oksasatya/go-post-feed/pkg/response"
)

// Pinger checks one backing service.
type Pinger struct {
	Name string
	Ping func(ctx context.Context) error
}

// HealthModule serves GET /api/health. Every pinger runs concurrently under
// one timeout; any failure turns the response into a 503.
type HealthModule struct {
	Timeout time.Duration
	Pingers []Pinger
}

func NewHealthModule(timeout time.Duration, pingers ...Pinger) *HealthModule {
	return &HealthModule{Timeout: timeout, Pingers: pingers}
}

// DefaultPingers covers the services registered in the container. Optional
// ones are only checked when configured.
func DefaultPingers() []Pinger {
	var out []Pinger
	if pool := container.GetPGPool(); pool != nil {
		out = append(out, Pinger{Name: "postgres", Ping: pool.Ping})
	}
	if rdb := container.GetRedis(); rdb != nil {
		out = append(out, Pinger{Name: "redis", Ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }})
	}
	if es := container.GetES(); es != nil {
		out = append(out, Pinger{Name: "elasticsearch", Ping: func(ctx context.Context) error { return helpers.PingES(ctx, es) }})
	}
	return out
}

func (m *HealthModule) Register(rg *gin.RouterGroup) {
	rg.GET("/health", m.handle)
}

func (m *HealthModule) handle(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), m.Timeout)
	defer cancel()

	var (
		mu     sync.Mutex
		status = make(map[string]string, len(m.Pingers))
		failed bool
	)
	var g errgroup.Group
	for i := range m.Pingers {
		p := m.Pingers[i]
		g.Go(func() error {
			err := p.Ping(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed = true
				status[p.Name] = err.Error()
				helpers.LogError(container.GetLogger(), "health check failed", err, map[string]any{"service": p.Name})
				return nil
			}
			status[p.Name] = "ok"
			return nil
		})
	}
	_ = g.Wait()

	if failed {
		response.Error[any](c, http.StatusServiceUnavailable, "unhealthy", status)
		return
	}
	response.Success(c, http.StatusOK, status, "healthy", nil)
}
