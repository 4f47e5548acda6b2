package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"taskplanner/internal/config"
)

// Scheduler runs the three sweep jobs on their fixed cadences. It is
// constructed once at startup with its dependencies injected and has an
// explicit Start/Stop lifecycle; nothing here is a package global.
//
// Jobs hold no lock: a slow dispatch can overlap the next tick, which is
// tolerated because every job is idempotent per record. Worst-case delivery
// latency for a due notification equals the dispatch interval.
type Scheduler struct {
	cron    *cron.Cron
	sweeper *Sweeper
	cfg     config.NotifyConfig
	logger  *zap.Logger
}

func NewScheduler(sweeper *Sweeper, cfg config.NotifyConfig, loc *time.Location, logger *zap.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc), cron.WithSeconds()),
		sweeper: sweeper,
		cfg:     cfg,
		logger:  logger,
	}
}

// Start registers the jobs and begins ticking.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(intervalSpec(time.Duration(s.cfg.DispatchInterval)), s.wrap("dispatch", func(ctx context.Context) error {
		_, err := s.sweeper.DispatchDue(ctx)
		return err
	})); err != nil {
		return fmt.Errorf("schedule dispatch job: %w", err)
	}

	if _, err := s.cron.AddFunc(intervalSpec(time.Duration(s.cfg.OverdueInterval)), s.wrap("overdue", func(ctx context.Context) error {
		_, err := s.sweeper.DetectOverdue(ctx)
		return err
	})); err != nil {
		return fmt.Errorf("schedule overdue job: %w", err)
	}

	purgeSpec, err := buildDailySpec(s.cfg.PurgeTime)
	if err != nil {
		return fmt.Errorf("schedule purge job: %w", err)
	}
	if _, err := s.cron.AddFunc(purgeSpec, s.wrap("purge", func(ctx context.Context) error {
		_, err := s.sweeper.PurgeSent(ctx)
		return err
	})); err != nil {
		return fmt.Errorf("schedule purge job: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Notification scheduler started",
		zap.Duration("dispatch_interval", time.Duration(s.cfg.DispatchInterval)),
		zap.Duration("overdue_interval", time.Duration(s.cfg.OverdueInterval)),
		zap.String("purge_time", s.cfg.PurgeTime),
	)
	return nil
}

// Stop stops the ticker and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Notification scheduler stopped")
}

// wrap gives every job a recover boundary so a panic in one run never takes
// down the scheduler or the host process.
func (s *Scheduler) wrap(name string, job func(ctx context.Context) error) func() {
	return func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("Sweep job panic recovered",
					zap.String("job", name),
					zap.Any("panic", r),
				)
			}
		}()

		if err := job(context.Background()); err != nil {
			s.logger.Error("Sweep job failed",
				zap.String("job", name),
				zap.Error(err),
			)
		}
	}
}

func intervalSpec(interval time.Duration) string {
	seconds := int(interval.Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	return fmt.Sprintf("@every %ds", seconds)
}

// buildDailySpec converts an HH:MM time string into a cron spec.
func buildDailySpec(timeStr string) (string, error) {
	parts := strings.Split(timeStr, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid time %q, expected HH:MM", timeStr)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour in %q", timeStr)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute in %q", timeStr)
	}
	// cron format: second minute hour dom month dow
	return fmt.Sprintf("0 %d %d * * *", minute, hour), nil
}
