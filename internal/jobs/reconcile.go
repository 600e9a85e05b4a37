// Package jobs holds the scheduled maintenance jobs.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"learnquest/internal/logger"
	"learnquest/internal/service"
)

const reconcileTimeout = 10 * time.Minute

// Reconciler rebuilds drifted aggregates
type Reconciler interface {
	ReconcileAll(ctx context.Context) (service.ReconcileReport, error)
}

// ReconcileJob periodically rebuilds child_levels from the ledgers
type ReconcileJob struct {
	reconciler Reconciler
	locker     service.Locker
	log        *logger.Logger
}

// NewReconcileJob creates the job. locker may be nil; with a shared locker only
// one instance runs each tick.
func NewReconcileJob(reconciler Reconciler, locker service.Locker, log *logger.Logger) *ReconcileJob {
	return &ReconcileJob{
		reconciler: reconciler,
		locker:     locker,
		log:        log,
	}
}

// NewRunner returns a cron runner that never overlaps runs of the same job
func NewRunner() *cron.Cron {
	return cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
}

// Start registers the job on the runner
func (j *ReconcileJob) Start(cronRunner *cron.Cron, schedule string) (cron.EntryID, error) {
	id, err := cronRunner.AddFunc(schedule, j.runScheduledTask)
	if err != nil {
		return 0, err
	}
	j.log.Info("reconcile job scheduled", "schedule", schedule)
	return id, nil
}

func (j *ReconcileJob) runScheduledTask() {
	ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
	defer cancel()
	// nolint:errcheck
	j.Run(ctx)
}

// Run performs one reconcile pass
func (j *ReconcileJob) Run(ctx context.Context) (service.ReconcileReport, error) {
	if j.locker != nil {
		unlock, err := j.locker.Lock(ctx, "job:reconcile")
		if err != nil {
			j.log.Warn("reconcile skipped, lock held elsewhere", "error", err)
			return service.ReconcileReport{}, err
		}
		defer unlock()
	}

	start := time.Now()
	report, err := j.reconciler.ReconcileAll(ctx)
	if err != nil {
		j.log.Error("reconcile failed", "error", err)
		return report, err
	}
	j.log.Info("reconcile finished",
		"checked", report.Checked,
		"repaired", report.Repaired,
		"failed", report.Failed,
		"duration", time.Since(start).String(),
	)
	return report, nil
}
