package scheduler

import (
	"context"
	"testing"

	"invoice-vault-go/internal/config"
	"invoice-vault-go/internal/models"
)

// dummyRunner implements Runner but does nothing
type dummyRunner struct {
	calls int
}

func (d *dummyRunner) RunScan(ctx context.Context) (*models.ScanResult, error) {
	d.calls++
	return &models.ScanResult{}, nil
}

func TestSchedulerRestart(t *testing.T) {
	cfg := &config.SchedulerConfig{IntervalMinutes: 60}
	sched := NewScheduler(cfg, &dummyRunner{})

	if err := sched.Start(); err != nil {
		t.Fatalf("first start failed: %v", err)
	}
	if !sched.IsRunning() {
		t.Fatalf("scheduler should be running after Start")
	}
	if err := sched.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if sched.IsRunning() {
		t.Fatalf("scheduler should not be running after Stop")
	}
	if err := sched.Start(); err != nil {
		t.Fatalf("second start failed: %v", err)
	}
	if !sched.IsRunning() {
		t.Fatalf("scheduler should be running after second Start")
	}
	// context should be active
	if sched.ctx == nil || sched.ctx.Err() != nil {
		t.Fatalf("scheduler context should be active after restart")
	}
	sched.Stop()
}

func TestRunOnce(t *testing.T) {
	runner := &dummyRunner{}
	sched := NewScheduler(&config.SchedulerConfig{IntervalMinutes: 60}, runner)

	result, err := sched.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if result == nil {
		t.Fatalf("RunOnce should return a result")
	}
	if runner.calls != 1 {
		t.Fatalf("expected one scan, got %d", runner.calls)
	}
}
