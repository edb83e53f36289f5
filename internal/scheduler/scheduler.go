package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/popeskul/wa-inbox/internal/metrics"
)

// Task is one run of a periodic job. Its context expires after the scheduler interval.
type Task func(context.Context) error

// Scheduler runs a named task once on start and then on every tick until stopped.
// Runs never overlap: a tick that fires while the task is still running is skipped.
type Scheduler struct {
	logger   *zap.Logger
	name     string
	interval time.Duration
	task     Task

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewScheduler(logger *zap.Logger, name string, interval time.Duration, task Task) *Scheduler {
	return &Scheduler{
		logger:   logger.With(zap.String("task", name)),
		name:     name,
		interval: interval,
		task:     task,
	}
}

// Start launches the loop. The loop also ends when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrSchedulerAlreadyRunning
	}

	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go s.loop(ctx, s.stopCh, s.doneCh)

	s.logger.Info("Scheduler started", zap.Duration("interval", s.interval))
	return nil
}

// Stop signals the loop and waits for the current run to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.running = false
	s.mu.Unlock()

	close(stopCh)
	<-doneCh

	s.logger.Info("Scheduler stopped")
	return nil
}

func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Scheduler) loop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	s.run(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler context canceled")
			s.mu.Lock()
			// Stop may already have claimed this loop.
			if s.doneCh == doneCh {
				s.running = false
			}
			s.mu.Unlock()
			return
		case <-stopCh:
			return
		case <-ticker.C:
			s.run(ctx)
		}
	}
}

// run executes the task once, recovering panics so the loop survives.
func (s *Scheduler) run(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.interval)
	defer cancel()

	start := time.Now()
	err := s.safeRun(runCtx)
	metrics.ScheduledTaskDuration.WithLabelValues(s.name).Observe(time.Since(start).Seconds())
	metrics.ScheduledTaskRunsTotal.WithLabelValues(s.name, metrics.StatusLabel(err)).Inc()

	if err != nil {
		s.logger.Error("Scheduled task failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return
	}
	s.logger.Debug("Scheduled task completed", zap.Duration("elapsed", time.Since(start)))
}

func (s *Scheduler) safeRun(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return s.task(ctx)
}
