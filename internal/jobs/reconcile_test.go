package jobs

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"learnquest/internal/logger"
	"learnquest/internal/service"
)

type fakeReconciler struct {
	report service.ReconcileReport
	err    error
	calls  int
}

func (f *fakeReconciler) ReconcileAll(ctx context.Context) (service.ReconcileReport, error) {
	f.calls++
	return f.report, f.err
}

type busyLocker struct{}

func (busyLocker) Lock(ctx context.Context, key string) (func(), error) {
	return nil, errors.New("held")
}

func TestReconcileJobRun(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := &fakeReconciler{report: service.ReconcileReport{Checked: 4, Repaired: 1}}
	job := NewReconcileJob(r, nil, logger.FromZap(zap.New(core)))

	report, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Repaired != 1 || r.calls != 1 {
		t.Errorf("report = %+v, calls = %d", report, r.calls)
	}
	if logs.FilterMessage("reconcile finished").Len() != 1 {
		t.Errorf("missing finish log: %v", logs.All())
	}
}

func TestReconcileJobSkipsWhenLocked(t *testing.T) {
	r := &fakeReconciler{}
	job := NewReconcileJob(r, busyLocker{}, logger.NewNop())

	if _, err := job.Run(context.Background()); err == nil {
		t.Fatal("expected lock error")
	}
	if r.calls != 0 {
		t.Error("reconciler ran without the lock")
	}
}

func TestReconcileJobStart(t *testing.T) {
	job := NewReconcileJob(&fakeReconciler{}, nil, logger.NewNop())
	runner := NewRunner()

	if _, err := job.Start(runner, "@every 1h"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if len(runner.Entries()) != 1 {
		t.Errorf("entries = %d, want 1", len(runner.Entries()))
	}
	if _, err := job.Start(runner, "not a schedule"); err == nil {
		t.Error("expected invalid schedule error")
	}
}
