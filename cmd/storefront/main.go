package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/cache"
	"github.com/Skotchmaster/storefront/internal/catalog"
	"github.com/Skotchmaster/storefront/internal/config"
	"github.com/Skotchmaster/storefront/internal/contentapi"
	"github.com/Skotchmaster/storefront/internal/events"
	"github.com/Skotchmaster/storefront/internal/httpserver"
	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/middleware/csrf"
	loggingmw "github.com/Skotchmaster/storefront/internal/middleware/logging"
	sessionmw "github.com/Skotchmaster/storefront/internal/middleware/session"
	"github.com/Skotchmaster/storefront/internal/session"
	"github.com/Skotchmaster/storefront/internal/storage"
)

const sweepInterval = time.Minute

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := storage.Open(initCtx, cfg.StorageDSN)
	cancel()
	if err != nil {
		logger.Error("storage_init_error", "error", err)
		os.Exit(1)
	}
	repo := &storage.GormRepo{DB: db}

	c, closeCache := newCache(cfg, logger)
	publisher, closePublisher := newPublisher(cfg, logger)

	api := contentapi.NewClient(cfg.ContentAPIURL, cfg.ContentAPITimeout)
	cat := catalog.New(api, c, cfg.CacheTTL, logger)

	sessions := session.NewManager(session.Deps{
		API:         api,
		Catalog:     cat,
		Store:       func(id string) storage.KV { return repo.Namespace(id) },
		Publisher:   publisher,
		Log:         logger,
		CartDelay:   cfg.CartFlushDelay,
		ListingPath: "/products",
	})

	runCtx, stopRun := context.WithCancel(context.Background())
	go sessions.Run(runCtx, sweepInterval, cfg.SessionMaxIdle)

	e := echo.New()
	e.HideBanner = true
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.AllowOrigins,
		AllowCredentials: true,
	}))
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(csrf.Middleware(csrf.Config{
		Secure:    cfg.CookieSecure,
		SkipPaths: []string{"/health/live", "/health/ready"},
	}))

	httpserver.Register(e, &httpserver.Deps{
		Catalog: cat,
		Session: sessionmw.Load(sessions, sessionmw.Config{
			Secret: cfg.SessionSecret,
			Secure: cfg.CookieSecure,
		}),
		Ready:        func() error { return ping(db) },
		AllowOrigins: cfg.AllowOrigins,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		logger.Info("http_server_start", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_server_error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server_shutdown_error", "error", err)
	}
	stopRun()
	sessions.CloseAll(ctx)

	if err := closePublisher(); err != nil {
		logger.Error("kafka_close_error", "error", err)
	}
	if err := closeCache(); err != nil {
		logger.Error("redis_close_error", "error", err)
	}
	if err := storage.Close(db); err != nil {
		logger.Error("storage_close_error", "error", err)
	}
	logger.Info("shutdown complete")
}

// newCache uses Redis when REDIS_ADDR is set and falls back to the
// in-process cache when it is unset or unreachable.
func newCache(cfg *config.Config, logger *slog.Logger) (cache.Cache, func() error) {
	if cfg.RedisAddr == "" {
		return cache.NewMemory(), func() error { return nil }
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	r, err := cache.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.ServiceName+":")
	if err != nil {
		logger.Warn("redis_unavailable", "addr", cfg.RedisAddr, "error", err)
		return cache.NewMemory(), func() error { return nil }
	}
	return r, r.Close
}

func newPublisher(cfg *config.Config, logger *slog.Logger) (events.Publisher, func() error) {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Info("kafka_disabled")
		return events.Noop{}, func() error { return nil }
	}
	p := events.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	return p, p.Close
}

func ping(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}
