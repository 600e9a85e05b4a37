package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/do"
	"golang.org/x/sync/errgroup"

	"learnquest/internal/app"
	"learnquest/internal/config"
	"learnquest/internal/jobs"
	"learnquest/internal/logger"
	"learnquest/internal/security"
)

const (
	shutdownTimeout        = 10 * time.Second
	rateLimitSweepInterval = time.Hour
)

func main() {
	cfg := config.Load()

	appLogger, err := logger.New(cfg.LogMode, cfg.Debug)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Sync()

	if err := run(cfg, appLogger); err != nil {
		appLogger.Fatal("server stopped", "error", err)
	}
}

func run(cfg *config.Config, appLogger *logger.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}

	container := app.NewContainer(cfg, appLogger)
	defer app.Close(container)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	applied, err := app.Migrate(ctx, container)
	if err != nil {
		return err
	}
	appLogger.Info("migrations completed", "applied", len(applied))

	router, err := do.Invoke[http.Handler](container)
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}

	cronRunner := jobs.NewRunner()
	job := do.MustInvoke[*jobs.ReconcileJob](container)
	if _, err := job.Start(cronRunner, cfg.ReconcileSchedule); err != nil {
		return err
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	if limiter, ok := do.MustInvoke[security.Limiter](container).(*security.RateLimiter); ok {
		go limiter.Run(ctx, rateLimitSweepInterval)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errWg, errCtx := errgroup.WithContext(ctx)

	errWg.Go(func() error {
		appLogger.Info("server starting", "addr", srv.Addr, "database", cfg.DatabaseType, "timezone", cfg.Timezone)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	errWg.Go(func() error {
		<-errCtx.Done()
		appLogger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := errWg.Wait(); err != nil {
		return err
	}
	appLogger.Info("server stopped gracefully")
	return nil
}
