package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/samber/do"
	"github.com/urfave/cli/v2"

	"learnquest/internal/app"
	"learnquest/internal/config"
	"learnquest/internal/jobs"
	"learnquest/internal/logger"
	"learnquest/internal/service"
)

func main() {
	cfg := config.Load()

	appLogger, err := logger.New(cfg.LogMode, cfg.Debug)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Sync()

	if err := cfg.Validate(); err != nil {
		appLogger.Fatal("invalid configuration", "error", err)
	}

	container := app.NewContainer(cfg, appLogger)
	defer app.Close(container)

	cliApp := &cli.App{
		Name:  "questctl",
		Usage: "LearnQuest administration",
		Commands: []*cli.Command{
			commandMigrate(container),
			commandSeedBadges(container),
			commandReconcile(container),
			commandCron(container),
			commandExport(container),
			commandImport(container),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		appLogger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func commandMigrate(container *do.Injector) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "apply pending database migrations",
		Action: func(c *cli.Context) error {
			applied, err := app.Migrate(c.Context, container)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Println("database is up to date")
				return nil
			}
			for _, name := range applied {
				fmt.Println("applied", name)
			}
			return nil
		},
	}
}

func commandSeedBadges(container *do.Injector) *cli.Command {
	return &cli.Command{
		Name:  "seed-badges",
		Usage: "insert or update the default badge catalog",
		Action: func(c *cli.Context) error {
			if _, err := app.Migrate(c.Context, container); err != nil {
				return err
			}
			defs := service.DefaultBadges()
			if err := do.MustInvoke[*service.BadgeCatalog](container).Seed(c.Context, defs); err != nil {
				return err
			}
			fmt.Printf("seeded %d badge definitions\n", len(defs))
			return nil
		},
	}
}

func commandReconcile(container *do.Injector) *cli.Command {
	return &cli.Command{
		Name:  "reconcile",
		Usage: "rebuild aggregate rows from the star and badge ledgers",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "child",
				Usage: "only rebuild this child's aggregate",
			},
		},
		Action: func(c *cli.Context) error {
			aggregates := do.MustInvoke[*service.AggregateService](container)

			if childID := c.String("child"); childID != "" {
				level, drifted, err := aggregates.RebuildAggregate(c.Context, childID)
				if err != nil {
					return err
				}
				fmt.Printf("child %s: level %d, %d stars, %d badges (drifted: %t)\n",
					childID, level.CurrentLevel, level.TotalStars, level.TotalBadges, drifted)
				return nil
			}

			report, err := do.MustInvoke[*jobs.ReconcileJob](container).Run(c.Context)
			if err != nil {
				return err
			}
			fmt.Printf("checked %d, repaired %d, failed %d\n", report.Checked, report.Repaired, report.Failed)
			return nil
		},
	}
}

func commandCron(container *do.Injector) *cli.Command {
	return &cli.Command{
		Name:  "cron",
		Usage: "run scheduled jobs in the foreground",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "schedule",
				Usage: "cron schedule for the reconcile job (defaults to RECONCILE_SCHEDULE)",
			},
		},
		Action: func(c *cli.Context) error {
			schedule := c.String("schedule")
			if schedule == "" {
				schedule = do.MustInvoke[*config.Config](container).ReconcileSchedule
			}

			cronRunner := jobs.NewRunner()
			if _, err := do.MustInvoke[*jobs.ReconcileJob](container).Start(cronRunner, schedule); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cronRunner.Start()
			<-ctx.Done()
			<-cronRunner.Stop().Done()
			return nil
		},
	}
}

func commandExport(container *do.Injector) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "export gamification data to a JSON file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "output",
				Usage: "output file path (default: backup_YYYYMMDD_HHMMSS.json)",
			},
		},
		Action: func(c *cli.Context) error {
			outputPath := c.String("output")
			if outputPath == "" {
				outputPath = fmt.Sprintf("backup_%s.json", time.Now().Format("20060102_150405"))
			}
			if dir := filepath.Dir(outputPath); dir != "." && dir != "" {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return fmt.Errorf("failed to create output directory: %w", err)
				}
			}

			file, err := os.Create(outputPath)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer file.Close()

			if _, err := do.MustInvoke[*service.BackupService](container).Export(c.Context, file); err != nil {
				return err
			}
			fmt.Println("exported to", outputPath)
			return nil
		},
	}
}

func commandImport(container *do.Injector) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "import gamification data from a JSON file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "input",
				Usage:    "input file path",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "clear",
				Usage: "delete existing data before import (destructive)",
			},
			&cli.BoolFlag{
				Name:  "yes",
				Usage: "skip the confirmation prompt for --clear",
			},
		},
		Action: func(c *cli.Context) error {
			wipe := c.Bool("clear")
			if wipe && !c.Bool("yes") && !confirm(c.Context, "This will delete all existing data. Type 'yes' to confirm: ") {
				fmt.Println("import cancelled")
				return nil
			}

			if _, err := app.Migrate(c.Context, container); err != nil {
				return err
			}

			file, err := os.Open(c.String("input"))
			if err != nil {
				return fmt.Errorf("failed to open input file: %w", err)
			}
			defer file.Close()

			counts, err := do.MustInvoke[*service.BackupService](container).Import(c.Context, file, wipe)
			if err != nil {
				return err
			}
			for table, n := range counts {
				fmt.Printf("%s: %d rows inserted\n", table, n)
			}
			return nil
		},
	}
}

func confirm(ctx context.Context, prompt string) bool {
	fmt.Print(prompt)
	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil || ctx.Err() != nil {
		return false
	}
	return strings.TrimSpace(answer) == "yes"
}
