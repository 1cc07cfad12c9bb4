package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/air-quality-collector/internal/weather"
)

// MinInterval is the shortest accepted interval between passes.
const MinInterval = time.Minute

// Collector is the part of weather.Collector the scheduler drives.
type Collector interface {
	CollectAll(ctx context.Context) []weather.CityReport
}

// Scheduler periodically runs a full collection pass.
type Scheduler struct {
	scheduler *gocron.Scheduler
	collector Collector
	interval  time.Duration
	logger    *slog.Logger
}

// New creates a new Scheduler.
func New(collector Collector, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		collector: collector,
		interval:  interval,
		logger:    logger,
	}
}

// Start schedules the job and starts the underlying scheduler. The first
// pass runs immediately; passes never overlap.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval < MinInterval {
		return errors.New("scheduler: interval must be at least one minute")
	}

	_, err := s.scheduler.Every(s.interval).SingletonMode().Do(func() {
		s.logger.Info("scheduler: running collection job")
		s.collector.CollectAll(ctx)
		s.logger.Info("scheduler: completed collection job")
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
