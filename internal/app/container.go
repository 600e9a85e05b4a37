// Package app wires the LearnQuest services together for the server and the CLI.
package app

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/do"

	"learnquest/internal/caching"
	"learnquest/internal/config"
	"learnquest/internal/database"
	"learnquest/internal/handlers"
	"learnquest/internal/jobs"
	"learnquest/internal/lock"
	"learnquest/internal/logger"
	"learnquest/internal/notify"
	"learnquest/internal/repository"
	"learnquest/internal/security"
	"learnquest/internal/service"
	"learnquest/migrations"
)

const (
	lockExpiry      = 30 * time.Second
	localCacheSize  = 1000
	localCacheTTL   = time.Minute
	rateLimitWindow = time.Minute
)

// closers collects connections opened by providers so Close only touches what was built
type closers struct {
	mu  sync.Mutex
	fns []func() error
}

func (c *closers) add(fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fns = append(c.fns, fn)
}

// NewContainer registers every provider. Nothing is constructed until invoked.
func NewContainer(cfg *config.Config, log *logger.Logger) *do.Injector {
	injector := do.New()
	opened := &closers{}

	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, log)
	do.ProvideValue(injector, opened)

	do.Provide(injector, func(i *do.Injector) (*database.DB, error) {
		db, err := database.InitializeWithConfig(cfg)
		if err != nil {
			return nil, err
		}
		opened.add(db.Close)
		log.Info("database connection established", "type", cfg.DatabaseType)
		return db, nil
	})

	do.Provide(injector, func(i *do.Injector) (redis.UniversalClient, error) {
		client, err := database.OpenRedis(context.Background(), cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		if client == nil {
			log.Info("redis not configured, using in-process cache, locks and rate limits")
			return nil, nil
		}
		opened.add(client.Close)
		return client, nil
	})

	provideRepositories(injector)
	provideInfrastructure(injector, cfg, log)
	provideServices(injector, cfg, log)

	do.Provide(injector, func(i *do.Injector) (http.Handler, error) {
		db := do.MustInvoke[*database.DB](i)
		m := handlers.NewMiddleware(
			security.NewTokenVerifier(cfg.JWTSecret),
			do.MustInvoke[security.Limiter](i),
			log,
		)
		return handlers.NewRouter(m,
			handlers.NewActivityHandler(do.MustInvoke[*service.ActivityService](i), log),
			handlers.NewProgressHandler(
				do.MustInvoke[*service.ProgressService](i),
				do.MustInvoke[*service.AggregateService](i),
				do.MustInvoke[*service.BadgeCatalog](i),
				log,
			),
			handlers.NewNotificationHandler(do.MustInvoke[*service.NotificationService](i), log),
			handlers.NewHealthHandler(db, log),
		), nil
	})

	do.Provide(injector, func(i *do.Injector) (*jobs.ReconcileJob, error) {
		return jobs.NewReconcileJob(
			do.MustInvoke[*service.AggregateService](i),
			do.MustInvoke[service.Locker](i),
			log,
		), nil
	})

	return injector
}

func provideRepositories(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*repository.ActivityRepository, error) {
		return repository.NewActivityRepository(do.MustInvoke[*database.DB](i)), nil
	})
	do.Provide(injector, func(i *do.Injector) (*repository.StarRepository, error) {
		return repository.NewStarRepository(do.MustInvoke[*database.DB](i)), nil
	})
	do.Provide(injector, func(i *do.Injector) (*repository.BadgeRepository, error) {
		return repository.NewBadgeRepository(do.MustInvoke[*database.DB](i)), nil
	})
	do.Provide(injector, func(i *do.Injector) (*repository.LevelRepository, error) {
		return repository.NewLevelRepository(do.MustInvoke[*database.DB](i)), nil
	})
	do.Provide(injector, func(i *do.Injector) (*repository.NotificationRepository, error) {
		return repository.NewNotificationRepository(do.MustInvoke[*database.DB](i)), nil
	})
	do.Provide(injector, func(i *do.Injector) (*repository.ContactRepository, error) {
		return repository.NewContactRepository(do.MustInvoke[*database.DB](i)), nil
	})
}

// provideInfrastructure picks the Redis-backed implementation of each shared
// concern when Redis is configured, and the in-process one otherwise.
func provideInfrastructure(injector *do.Injector, cfg *config.Config, log *logger.Logger) {
	do.Provide(injector, func(i *do.Injector) (caching.Cache, error) {
		client := do.MustInvoke[redis.UniversalClient](i)
		return caching.NewCacheRedis(client, localCacheSize, localCacheTTL), nil
	})

	do.Provide(injector, func(i *do.Injector) (service.Locker, error) {
		if client := do.MustInvoke[redis.UniversalClient](i); client != nil {
			return lock.NewRedisLocker(client, lockExpiry), nil
		}
		return lock.NewLocalLocker(), nil
	})

	do.Provide(injector, func(i *do.Injector) (security.Limiter, error) {
		if client := do.MustInvoke[redis.UniversalClient](i); client != nil {
			return security.NewRedisLimiter(client, "learnquest:rate:", cfg.RateLimitPerMinute), nil
		}
		return security.NewRateLimiter(cfg.RateLimitPerMinute, rateLimitWindow, cfg.RateLimitCapacity), nil
	})

	do.Provide(injector, func(i *do.Injector) (service.Notifier, error) {
		email, err := notify.NewEmailNotifier(context.Background(),
			do.MustInvoke[*repository.ContactRepository](i),
			cfg.AWSRegion, cfg.SESFromEmail, cfg.SESFromName, cfg.AppBaseURL, log)
		if err != nil {
			return nil, err
		}
		return notify.NewMultiNotifier(log,
			notify.NewStoreNotifier(do.MustInvoke[*repository.NotificationRepository](i)),
			notify.NewLogNotifier(log),
			email,
		), nil
	})
}

func provideServices(injector *do.Injector, cfg *config.Config, log *logger.Logger) {
	do.Provide(injector, func(i *do.Injector) (*service.AggregateService, error) {
		return service.NewAggregateService(
			do.MustInvoke[*repository.LevelRepository](i),
			do.MustInvoke[*repository.StarRepository](i),
			do.MustInvoke[*repository.BadgeRepository](i),
			log,
		), nil
	})
	do.Provide(injector, func(i *do.Injector) (*service.BadgeCatalog, error) {
		return service.NewBadgeCatalog(
			do.MustInvoke[*repository.BadgeRepository](i),
			do.MustInvoke[caching.Cache](i),
		), nil
	})
	do.Provide(injector, func(i *do.Injector) (*service.ActivityService, error) {
		aggregates := do.MustInvoke[*service.AggregateService](i)
		stars := do.MustInvoke[*repository.StarRepository](i)
		badges := do.MustInvoke[*repository.BadgeRepository](i)
		svc := service.NewActivityService(
			do.MustInvoke[*repository.ActivityRepository](i),
			service.NewStarEvaluator(stars, aggregates, log),
			service.NewStreakUpdater(do.MustInvoke[*repository.LevelRepository](i), cfg.Location(), log),
			service.NewBadgeEvaluator(do.MustInvoke[*service.BadgeCatalog](i), badges, stars, aggregates, log),
			aggregates,
			do.MustInvoke[service.Locker](i),
			do.MustInvoke[service.Notifier](i),
			log,
		)
		// registered after the database, so in-flight notifications drain before it closes
		do.MustInvoke[*closers](i).add(func() error {
			svc.Wait()
			return nil
		})
		return svc, nil
	})
	do.Provide(injector, func(i *do.Injector) (*service.ProgressService, error) {
		return service.NewProgressService(
			do.MustInvoke[*repository.LevelRepository](i),
			do.MustInvoke[*repository.BadgeRepository](i),
			do.MustInvoke[*repository.StarRepository](i),
			do.MustInvoke[*repository.ActivityRepository](i),
		), nil
	})
	do.Provide(injector, func(i *do.Injector) (*service.BackupService, error) {
		return service.NewBackupService(do.MustInvoke[*database.DB](i), log), nil
	})
	do.Provide(injector, func(i *do.Injector) (*service.NotificationService, error) {
		return service.NewNotificationService(
			do.MustInvoke[*repository.NotificationRepository](i),
			do.MustInvoke[*repository.ContactRepository](i),
		), nil
	})
}

// MigrationsFS returns the embedded migrations, or the directory named by
// MIGRATIONS_PATH when it is set.
func MigrationsFS(cfg *config.Config) fs.FS {
	if cfg.MigrationsPath != "" {
		return os.DirFS(cfg.MigrationsPath)
	}
	return migrations.FS
}

// Migrate runs pending migrations against the container's database
func Migrate(ctx context.Context, injector *do.Injector) ([]string, error) {
	db, err := do.Invoke[*database.DB](injector)
	if err != nil {
		return nil, err
	}
	cfg := do.MustInvoke[*config.Config](injector)
	applied, err := db.RunMigrations(ctx, MigrationsFS(cfg))
	if err != nil {
		return applied, fmt.Errorf("failed to run migrations: %w", err)
	}
	return applied, nil
}

// Close drains pending notifications and releases the database and Redis
// connections if they were opened
func Close(injector *do.Injector) {
	opened, err := do.Invoke[*closers](injector)
	if err != nil {
		return
	}
	opened.mu.Lock()
	defer opened.mu.Unlock()
	for i := len(opened.fns) - 1; i >= 0; i-- {
		//nolint:errcheck
		opened.fns[i]()
	}
	opened.fns = nil
}
