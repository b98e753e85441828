package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"montage/internal/httpapi"
	"montage/internal/httpapi/handlers"
	"montage/internal/pkg/env"
	"montage/internal/pkg/logger"
	"montage/internal/pkg/shutdown"
	"montage/internal/repositories"
	"montage/internal/slideshow"
	"montage/internal/storage"
	"montage/internal/worker/queue"
)

func main() {
	_ = godotenv.Load()

	log := logger.New(logger.ConfigFor("montage-api"))
	log.Info("starting montage api", "version", "0.1.0")

	httpPort := env.Str("HTTP_PORT", "8080")
	dbURL := mustEnv(log, "DATABASE_URL")
	redisAddr := mustEnv(log, "REDIS_ADDR")

	ctx := context.Background()
	shutdownMgr := shutdown.NewManager(log, env.Duration("SHUTDOWN_TIMEOUT", 30*time.Second))

	log.Info("connecting to PostgreSQL")
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.LogFatal("failed to connect to PostgreSQL", err)
	}
	shutdownMgr.RegisterSimple("postgres", pool.Close)
	if err := pool.Ping(ctx); err != nil {
		log.LogFatal("failed to ping PostgreSQL", err)
	}
	log.Info("PostgreSQL connected")

	log.Info("connecting to Redis")
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	shutdownMgr.Register("redis", func(ctx context.Context) error {
		return rdb.Close()
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.LogFatal("failed to ping Redis", err)
	}
	log.Info("Redis connected")

	sp, err := storage.NewProvider(ctx, storage.ConfigFromEnv())
	if err != nil {
		log.LogFatal("failed to initialize storage provider", err)
	}
	log.Info("storage provider initialized", "provider", sp.Provider())

	engineCfg := slideshow.ConfigFromEnv()
	engine := slideshow.New(engineCfg, slideshow.WithLogger(log))
	log.Info("render engine configured",
		"width", engineCfg.Width,
		"height", engineCfg.Height,
		"fps", engineCfg.FPS,
		"workers", engine.Config().Workers,
	)

	router := httpapi.NewRouter(httpapi.Deps{
		Log:            log,
		RequestTimeout: env.Duration("HTTP_REQUEST_TIMEOUT", 60*time.Second),
		RenderTimeout:  env.Duration("RENDER_TIMEOUT", 15*time.Minute),
		Handlers: handlers.Deps{
			Jobs:           repositories.NewJobRepository(pool),
			Assets:         repositories.NewAssetRepository(pool),
			Presets:        repositories.NewPresetRepository(pool),
			Queue:          queue.NewRedisQueue(rdb, env.Str("JOB_QUEUE_NAME", queue.DefaultName)),
			Progress:       queue.NewProgressStore(rdb),
			SP:             sp,
			Renderer:       engine,
			MaxUploadBytes: env.Int64("MAX_UPLOAD_BYTES", 512<<20),
			PublicBaseURL:  env.Str("PUBLIC_BASE_URL", "http://localhost:"+httpPort),
			Checks: map[string]handlers.Pinger{
				"postgres": handlers.PingFunc(pool.Ping),
				"redis": handlers.PingFunc(func(ctx context.Context) error {
					return rdb.Ping(ctx).Err()
				}),
				"storage": handlers.PingFunc(func(ctx context.Context) error {
					return storage.Ping(ctx, sp)
				}),
			},
		},
	})

	// No server-wide write timeout: the synchronous render streams for as
	// long as the render route allows.
	server := &http.Server{
		Addr:              "0.0.0.0:" + httpPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	shutdownMgr.Register("http-server", func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return server.Shutdown(ctx)
	})

	go func() {
		log.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.LogFatal("HTTP server failed", err)
		}
	}()

	shutdownMgr.Wait()
}

func mustEnv(log *logger.Logger, key string) string {
	v := env.Str(key, "")
	if v == "" {
		log.LogFatal("missing required environment variable", nil, "key", key)
	}
	return v
}
