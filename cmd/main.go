package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/oksasatya/go-post-feed/config"
	"github.com/oksasatya/go-post-feed/internal/container"
	"github.com/oksasatya/go-post-feed/internal/infrastructure/blob"
	pginfra "github.com/oksasatya/go-post-feed/internal/infrastructure/postgres"
	"github.com/oksasatya/go-post-feed/internal/infrastructure/search"
	"github.com/oksasatya/go-post-feed/internal/interface/middleware"
	"github.com/oksasatya/go-post-feed/internal/router"
	"github.com/oksasatya/go-post-feed/pkg/helpers"
	"github.com/oksasatya/go-post-feed/pkg/validation"
)

func main() {
	_ = godotenv.Load() // load .env if present

	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName, cfg.Env)
	gin.SetMode(cfg.GinMode)
	validation.Init()

	ctx := context.Background()

	pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), cfg.DBMaxConns, cfg.DBMinConns, cfg.DBMaxConnLife)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	logger.Info("running migrations...")
	applied, err := pginfra.Migrate(cfg.PostgresDSN(), cfg.MigrationsDir)
	if err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	if !applied {
		logger.Info("no migrations to run")
	}

	rdb := helpers.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer func() { _ = rdb.Close() }()

	store, err := blob.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to init %s blob store: %v", cfg.BlobDriver, err)
	}
	defer func() { _ = store.Close() }()

	jwtManager := helpers.NewJWTManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.AccessTTL, cfg.RefreshTTL)

	container.SetConfig(cfg)
	container.SetLogger(logger)
	container.SetPGPool(pool)
	container.SetRedis(rdb)
	container.SetBlobStore(store)
	container.SetJWT(jwtManager)

	// Search and events are optional; the API keeps serving without them.
	if addrs := cfg.ESAddrs(); len(addrs) > 0 {
		if es, err := setupSearch(ctx, cfg, addrs); err != nil {
			logger.WithError(err).Warn("elasticsearch unavailable; post search disabled")
		} else {
			container.SetES(es)
		}
	}
	if cfg.RabbitMQURL != "" {
		pub, err := helpers.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQEventsQueue)
		if err != nil {
			logger.WithError(err).Warn("rabbitmq unavailable; post events disabled")
		} else {
			defer pub.Close()
			container.SetRabbitPub(pub)
		}
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware(), middleware.RealIP())
	corsCfg := cors.Config{
		AllowOrigins:     cfg.CORSOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(corsCfg.AllowOrigins) == 0 {
		corsCfg.AllowOrigins = []string{"http://localhost:3000"}
	}
	r.Use(cors.New(corsCfg))
	if cfg.HTTPLogEnabled || cfg.IsDevelopment() {
		r.Use(gin.Logger())
	}
	if cfg.BlobDriver == "local" || cfg.BlobDriver == "" {
		r.Static("/uploads", cfg.BlobLocalDir)
	}

	reg := router.NewRegistry(r, "/api")
	router.InitModules(reg)
	logger.Infof("registered %d modules", reg.RegisterAll())

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Infof("server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Fatalf("server forced to shutdown: %v", err)
	}
	logger.Info("server exited properly")
}

func setupSearch(ctx context.Context, cfg *config.Config, addrs []string) (*elasticsearch.Client, error) {
	es, err := helpers.NewESClient(addrs, cfg.ElasticsearchUser, cfg.ElasticsearchPass)
	if err != nil {
		return nil, err
	}
	c, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := search.NewPostIndex(es, cfg.ESPostsIndex).EnsureIndex(c); err != nil {
		return nil, err
	}
	return es, nil
}
