package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/config"
	"timed-quiz-service/internal/infra/memory"
	"timed-quiz-service/internal/infra/postgres"
	redisinfra "timed-quiz-service/internal/infra/redis"
	"timed-quiz-service/internal/logging"
)

func loadConfig(path string) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, nil, err
	}
	logger := logging.New(os.Stderr, cfg.Log.Level)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// cachingReader is a quiz cache used on the scoring path.
type cachingReader interface {
	app.QuizReader
	app.Invalidator
}

// backends holds the stores chosen by configuration. Postgres is the durable
// home when configured; Redis backs the caches and cross-instance relay.
type backends struct {
	redis *redis.Client
	pool  *pgxpool.Pool

	quizzes      app.QuizStore
	quizCache    cachingReader
	submissions  app.SubmissionStore
	leaderboards app.LeaderboardStore
	jobs         app.JobStore
	ephemeral    app.EphemeralStore

	// memoryEphemeral is set when trial sessions live in process and need sweeping.
	memoryEphemeral *memory.EphemeralStore
	relay           *redisinfra.Relay
}

func openBackends(ctx context.Context, cfg config.Config, logger *slog.Logger) (*backends, error) {
	b := &backends{}

	if cfg.Redis.Addr != "" {
		b.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := b.redis.Ping(ctx).Err(); err != nil {
			b.close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
	}
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.pool = pool
	}

	if b.pool != nil {
		b.quizzes = postgres.NewQuizStore(b.pool)
		b.submissions = postgres.NewSubmissionStore(b.pool)
		b.jobs = postgres.NewJobStore(b.pool)
	} else {
		store := memory.NewQuizStore()
		if cfg.Quiz.Fixtures != "" {
			quizzes, err := config.LoadFixtures(cfg.Quiz.Fixtures)
			if err != nil {
				b.close()
				return nil, err
			}
			for _, q := range quizzes {
				_ = store.SaveQuiz(ctx, q)
			}
			logger.Info("seeded in-memory quiz store", "quizzes", len(quizzes))
		}
		b.quizzes = store
		b.submissions = memory.NewSubmissionStore()
		b.jobs = memory.NewJobStore()
	}

	cacheTTL := config.TTLDuration(cfg.Quiz.CacheTTL, 10*time.Minute)
	if b.redis != nil {
		b.quizCache = redisinfra.NewQuizRepository(b.redis, b.quizzes, cacheTTL, logger)
		b.ephemeral = redisinfra.NewEphemeralStore(b.redis)
		b.relay = redisinfra.NewRelay(b.redis, "", logger)
	} else {
		b.quizCache = memory.NewQuizRepository(b.quizzes, cacheTTL)
		b.memoryEphemeral = memory.NewEphemeralStore()
		b.ephemeral = b.memoryEphemeral
	}

	switch backend := cfg.LeaderboardBackend(); backend {
	case "postgres":
		if b.pool == nil {
			b.close()
			return nil, fmt.Errorf("leaderboard.store=postgres needs postgres.url")
		}
		b.leaderboards = postgres.NewLeaderboardStore(b.pool)
	case "redis":
		if b.redis == nil {
			b.close()
			return nil, fmt.Errorf("leaderboard.store=redis needs redis.addr")
		}
		b.leaderboards = redisinfra.NewLeaderboardStore(b.redis)
	default:
		b.leaderboards = memory.NewLeaderboardStore()
	}
	return b, nil
}

func (b *backends) leaderboardService(cfg config.Config, logger *slog.Logger) *app.LeaderboardService {
	size := cfg.Leaderboard.Size
	if size <= 0 {
		size = 10
	}
	retries := cfg.Leaderboard.MaxRetries
	if retries <= 0 {
		retries = 8
	}
	return app.NewLeaderboardService(b.leaderboards, b.quizzes, b.submissions, size, retries, logger)
}

func (b *backends) close() {
	if b.pool != nil {
		b.pool.Close()
	}
	if b.redis != nil {
		_ = b.redis.Close()
	}
}

func trialConfig(cfg config.Config) app.TrialConfig {
	tc := app.DefaultTrialConfig()
	if cfg.Trial.AnonymousCount > 0 {
		tc.AnonymousCount = cfg.Trial.AnonymousCount
	}
	if cfg.Trial.MaxCount > 0 {
		tc.MaxCount = cfg.Trial.MaxCount
	}
	tc.AnonymousTTL = config.TTLDuration(cfg.Trial.AnonymousTTL, tc.AnonymousTTL)
	tc.MaxTTL = config.TTLDuration(cfg.Trial.MaxTTL, tc.MaxTTL)
	tc.SingleUse = cfg.Trial.SingleUse
	return tc
}
