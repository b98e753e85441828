package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"montage/internal/pkg/env"
	"montage/internal/pkg/logger"
	"montage/internal/pkg/shutdown"
	"montage/internal/repositories"
	"montage/internal/slideshow"
	"montage/internal/storage"
	"montage/internal/worker"
	"montage/internal/worker/processor"
	"montage/internal/worker/queue"
)

func main() {
	_ = godotenv.Load()

	log := logger.New(logger.ConfigFor("montage-worker"))
	log.Info("starting montage worker", "version", "0.1.0")

	dbURL := mustEnv(log, "DATABASE_URL")
	redisAddr := mustEnv(log, "REDIS_ADDR")

	ctx := context.Background()
	shutdownMgr := shutdown.NewManager(log, env.Duration("SHUTDOWN_TIMEOUT", 30*time.Second))

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.LogFatal("failed to connect to PostgreSQL", err)
	}
	shutdownMgr.RegisterSimple("postgres", pool.Close)
	if err := pool.Ping(ctx); err != nil {
		log.LogFatal("failed to ping PostgreSQL", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	shutdownMgr.Register("redis", func(ctx context.Context) error {
		return rdb.Close()
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.LogFatal("failed to ping Redis", err)
	}

	sp, err := storage.NewProvider(ctx, storage.ConfigFromEnv())
	if err != nil {
		log.LogFatal("failed to initialize storage provider", err)
	}

	engineCfg := slideshow.ConfigFromEnv()
	engine := slideshow.New(engineCfg, slideshow.WithLogger(log))

	q := queue.NewRedisQueue(rdb, env.Str("JOB_QUEUE_NAME", queue.DefaultName))
	log.Info("worker configured",
		"queue", q.Name(),
		"storage", sp.Provider(),
		"render_workers", engine.Config().Workers,
	)

	// Loops stop before the pool and redis close; an in-flight render is
	// canceled and its job marked failed.
	shutdownMgr.Go("worker", func(ctx context.Context) error {
		return worker.Run(ctx, worker.Deps{
			Jobs:          repositories.NewJobRepository(pool),
			Assets:        repositories.NewAssetRepository(pool),
			Presets:       repositories.NewPresetRepository(pool),
			SP:            sp,
			Renderer:      engine,
			Queue:         q,
			Progress:      queue.NewProgressStore(rdb),
			Log:           log,
			MaxAssetBytes: env.Int64("MAX_ASSET_BYTES", 256<<20),
			PopTimeout:    env.Duration("QUEUE_POP_TIMEOUT", 5*time.Second),
		})
	})

	sweeper := processor.NewSweeper(
		engineCfg.TempDir,
		env.Str("SWEEP_SCHEDULE", processor.DefaultSweepSchedule),
		env.Duration("SWEEP_MAX_AGE", processor.DefaultSweepMaxAge),
		log,
	)
	shutdownMgr.Go("sweeper", sweeper.Run)

	shutdownMgr.Wait()
}

func mustEnv(log *logger.Logger, key string) string {
	v := env.Str(key, "")
	if v == "" {
		log.LogFatal("missing required environment variable", nil, "key", key)
	}
	return v
}
