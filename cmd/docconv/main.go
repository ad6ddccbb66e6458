package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"

	"docconv/internal/artifacts"
	"docconv/internal/config"
	"docconv/internal/convert"
	"docconv/internal/http/server"
	"docconv/internal/infra/cache"
	"docconv/internal/infra/chrome"
	"docconv/internal/infra/logging"
	"docconv/internal/infra/postgres"
	"docconv/internal/infra/ratelimit"
	"docconv/internal/pipeline"
	"docconv/internal/render"
	"docconv/internal/tokens"
)

func main() {
	cfg := loadConfig(os.Args[1:])
	logging.InitLogger(
		cfg.Logger.File,
		cfg.Logger.MaxSizeMB,
		cfg.Logger.MaxBackups,
		cfg.Logger.MaxAgeDays,
		cfg.Logger.Compress,
		cfg.Logger.Level,
	)

	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		logging.Debug(fmt.Sprintf(format, args...))
	})); err != nil {
		logging.Warn("Could not set GOMAXPROCS", "error", err)
	}

	deps, shutdown, err := build(cfg)
	if err != nil {
		logging.Error("Startup failed", "error", err)
		os.Exit(1)
	}

	app := server.New(deps)

	idleConnsClosed := make(chan struct{})
	startServer(app, cfg, idleConnsClosed)
	<-idleConnsClosed
	shutdown()
}

// loadConfig reads the file named by --config, falling back to CONFIG_PATH.
// Flags it does not know are ignored.
func loadConfig(args []string) config.Config {
	fs := pflag.NewFlagSet("docconv", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	path := fs.String("config", "", "path to the YAML configuration file")
	_ = fs.Parse(args)

	if *path != "" {
		return config.LoadFrom(*path)
	}
	return config.Load()
}

// build wires storage, renderers and the job runner. shutdown stops background work
// and releases what build opened.
func build(cfg config.Config) (server.Deps, func(), error) {
	ctx, cancel := context.WithCancel(context.Background())
	closers := []func(){cancel}
	shutdown := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	store := artifacts.New(cfg.Storage)
	if err := store.EnsureDirs(); err != nil {
		shutdown()
		return server.Deps{}, nil, err
	}
	store.Start(ctx)
	closers = append(closers, store.Close)

	var rdb *redis.Client
	if cfg.Cache.Enabled && cfg.Cache.RedisHost != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr: cfg.Cache.RedisHost,
			DB:   cfg.Cache.PDFCacheDB,
		})
		closers = append(closers, func() { _ = rdb.Close() })
	}

	limiterStorage := ratelimit.NewStore(ratelimit.RedisConfig{
		Addr: cfg.Cache.RedisHost,
		DB:   cfg.Cache.RateLimitDB,
	})

	var tokenCache *tokens.Cache
	if cfg.Auth.Postgres.Host != "" {
		dsn, err := postgres.DSN(cfg.Auth.Postgres)
		if err != nil {
			shutdown()
			return server.Deps{}, nil, err
		}
		db := postgres.NewDB()
		closers = append(closers, func() { _ = db.Close() })

		tokenCache = tokens.NewCache()
		reloader := tokens.NewReloader(postgres.NewTokenRepository(db, dsn), tokenCache, cfg.Auth.ReloadInterval)
		if err := reloader.LoadOnce(ctx); err != nil {
			logging.Error("Failed to load API tokens", "error", err)
		}
		reloader.Start(ctx)
	}

	var pool *chrome.Pool
	if cfg.Pipeline.ChromePoolSize > 0 {
		p, err := chrome.NewPool(cfg.Pipeline)
		if err != nil {
			logging.Error("Chrome pool disabled", "error", err)
		} else {
			pool = p
			closers = append(closers, pool.Close)
		}
	}

	orch := pipeline.New(cfg.Pipeline.StageTimeout, store,
		render.NewOfficeAdapter(cfg.Pipeline.OfficeBinary, store),
		render.NewBrowserAdapter(cfg.Pipeline, pool, store),
		render.NewMinimalAdapter(),
	)
	logging.Info("Conversion chain ready", "strategies", orch.Strategies())

	var pdfCache *cache.PDFCache
	if rdb != nil {
		pdfCache = cache.New(rdb, cfg.Cache.TTL)
	}

	return server.Deps{
		Config:         cfg,
		Store:          store,
		Runner:         convert.NewService(store, orch, pdfCache),
		Pool:           pool,
		Tokens:         tokenCache,
		LimiterStorage: limiterStorage,
	}, shutdown, nil
}

// startServer starts the Fiber app and listens for shutdown signals
func startServer(app *fiber.App, cfg config.Config, idleConnsClosed chan struct{}) {
	go func() {
		if err := app.Listen(cfg.Server.Host + cfg.Server.Port); err != nil {
			logging.Error("Server error", "error", err)
		}
	}()

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigint)
	<-sigint

	logging.Warn("Shutdown signal received, closing server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logging.Error("Server forced to shutdown", "error", err)
	}

	close(idleConnsClosed)
	logging.Info("Server stopped cleanly")
}
