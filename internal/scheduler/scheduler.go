package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"invoice-vault-go/internal/config"
	"invoice-vault-go/internal/models"
)

// Runner is the scan entry point the scheduler triggers.
type Runner interface {
	RunScan(ctx context.Context) (*models.ScanResult, error)
}

// Scheduler triggers scan cycles on a fixed interval.
type Scheduler struct {
	cron    *cron.Cron
	entryID cron.EntryID
	config  *config.SchedulerConfig
	runner  Runner

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	isRunning bool
	mu        sync.RWMutex
}

// NewScheduler creates a new scheduler
func NewScheduler(cfg *config.SchedulerConfig, runner Runner) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		config: cfg,
		runner: runner,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	if s.ctx.Err() != nil {
		s.ctx, s.cancel = context.WithCancel(context.Background())
	}

	schedule := fmt.Sprintf("0 */%d * * * *", s.config.IntervalMinutes)

	entryID, err := s.cron.AddFunc(schedule, s.runCycle)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.entryID = entryID
	s.cron.Start()
	s.isRunning = true

	logrus.Infof("Scheduler started with interval: %d minutes", s.config.IntervalMinutes)
	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	// Cancel context to stop any running scan
	s.cancel()

	ctx := s.cron.Stop()
	s.cron.Remove(s.entryID)

	select {
	case <-ctx.Done():
		logrus.Info("Scheduler stopped gracefully")
	case <-time.After(30 * time.Second):
		logrus.Warn("Scheduler stop timeout, forcing shutdown")
	}

	s.isRunning = false
	return nil
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// runCycle is the periodic entry point.
func (s *Scheduler) runCycle() {
	s.wg.Add(1)
	defer s.wg.Done()

	s.mu.RLock()
	if !s.isRunning {
		s.mu.RUnlock()
		logrus.Info("Scheduler not running, skipping scan cycle")
		return
	}
	ctx := s.ctx
	s.mu.RUnlock()

	logrus.Info("Starting scheduled scan cycle")
	startTime := time.Now()

	result, err := s.runner.RunScan(ctx)
	if err != nil {
		logrus.Errorf("Scan cycle failed: %v", err)
		return
	}

	logrus.Infof("Scan cycle completed in %v: %d emails, %d documents, %d errors",
		time.Since(startTime), result.ProcessedCount, len(result.Documents), len(result.Errors))
}

// RunOnce runs one scan cycle immediately (for manual triggering) and
// returns its result.
func (s *Scheduler) RunOnce(ctx context.Context) (*models.ScanResult, error) {
	logrus.Info("Running scan cycle on demand")
	return s.runner.RunScan(ctx)
}

// GetNextRun returns the time of the next scheduled run
func (s *Scheduler) GetNextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// GetLastRun returns the time of the last run
func (s *Scheduler) GetLastRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Prev
}

// Wait waits for any in-flight scan to finish
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
