// Package jobs runs the background maintenance jobs: session retention
// cleanup and GeoIP database reload.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"vistrail/internal/config"
	"vistrail/internal/database"
)

// Scheduler runs the background jobs on fixed schedules. Jobs never run
// concurrently with each other.
type Scheduler struct {
	db     *database.Manager
	logger *slog.Logger
	cfg    *config.Config
	ctx    context.Context
	cancel context.CancelFunc

	processingMutex sync.Mutex
	isProcessing    bool
	isRunning       bool

	retentionJob *RetentionJob

	retentionTicker *time.Ticker
	geoTicker       *time.Ticker
}

// NewScheduler creates the scheduler with its job instances.
func NewScheduler(db *database.Manager, logger *slog.Logger, cfg *config.Config) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		db:           db,
		logger:       logger,
		cfg:          cfg,
		ctx:          ctx,
		cancel:       cancel,
		retentionJob: NewRetentionJob(db, logger, cfg),
	}
}

// executeJobSafely runs a job only if no other job is currently executing.
func (s *Scheduler) executeJobSafely(jobName string, jobFunc func() error) {
	s.processingMutex.Lock()
	if s.isProcessing {
		s.logger.Debug("Skipping job execution - previous job still running", slog.String("job", jobName))
		s.processingMutex.Unlock()
		return
	}
	s.isProcessing = true
	s.processingMutex.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic recovered in background job",
				slog.String("job", jobName),
				slog.Any("panic", r))
		}
		s.processingMutex.Lock()
		s.isProcessing = false
		s.processingMutex.Unlock()
	}()

	if err := jobFunc(); err != nil {
		s.logger.Error("Error executing job", slog.String("job", jobName), slog.Any("error", err))
	}
}

// Start begins all background jobs. Starting twice is a no-op.
func (s *Scheduler) Start() {
	if s.isRunning {
		return
	}
	s.isRunning = true
	s.logger.Info("Starting background jobs...")

	s.startRetentionJob()
	s.startGeoReloadJob()
}

func (s *Scheduler) startRetentionJob() {
	interval := 24 * time.Hour
	s.retentionTicker = time.NewTicker(interval)

	go func() {
		s.executeJobSafely("session_retention", s.retentionJob.Run)
		for {
			select {
			case <-s.retentionTicker.C:
				s.executeJobSafely("session_retention", s.retentionJob.Run)
			case <-s.ctx.Done():
				s.logger.Info("Retention job stopped")
				return
			}
		}
	}()
}

func (s *Scheduler) startGeoReloadJob() {
	interval := 24 * time.Hour
	s.geoTicker = time.NewTicker(interval)

	go func() {
		for {
			select {
			case <-s.geoTicker.C:
				s.executeJobSafely("geoip_reload", s.reloadGeoDatabase)
			case <-s.ctx.Done():
				s.logger.Info("GeoIP reload job stopped")
				return
			}
		}
	}()
}

// Stop halts all background jobs.
func (s *Scheduler) Stop() {
	if !s.isRunning {
		return
	}
	s.logger.Info("Stopping background jobs...")

	if s.retentionTicker != nil {
		s.retentionTicker.Stop()
	}
	if s.geoTicker != nil {
		s.geoTicker.Stop()
	}
	s.cancel()
	s.isRunning = false
}

// IsRunning reports whether jobs are currently scheduled.
func (s *Scheduler) IsRunning() bool {
	return s.isRunning
}
