package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/orgkit/orgkit/pkg/observability"
)

// RetentionSweeper periodically deletes audit events past the retention
// window, on the schedule the policy defines.
type RetentionSweeper struct {
	logger  *DBLogger
	policy  RetentionPolicy
	log     *observability.Logger
	cron    *cron.Cron
	entryID cron.EntryID
}

// NewRetentionSweeper creates a sweeper for a DB-backed audit log
func NewRetentionSweeper(logger *DBLogger, policy RetentionPolicy, log *observability.Logger) *RetentionSweeper {
	if policy.RetentionDays <= 0 {
		policy = DefaultRetentionPolicy()
	}
	if policy.Schedule == "" {
		policy.Schedule = DefaultRetentionPolicy().Schedule
	}
	if log == nil {
		log = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &RetentionSweeper{
		logger: logger,
		policy: policy,
		log:    log,
		cron:   cron.New(),
	}
}

// Start schedules the sweep and begins running it
func (s *RetentionSweeper) Start() error {
	id, err := s.cron.AddFunc(s.policy.Schedule, func() {
		if err := s.SweepOnce(context.Background()); err != nil {
			s.log.WithError(err).Error("audit retention sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule retention sweep: %w", err)
	}
	s.entryID = id
	s.cron.Start()
	return nil
}

// Stop halts the schedule; a running sweep finishes first
func (s *RetentionSweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// SweepOnce deletes everything older than the retention window
func (s *RetentionSweeper) SweepOnce(ctx context.Context) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.policy.RetentionDays)

	deleted, err := s.logger.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}

	if deleted > 0 {
		s.log.WithFields(map[string]interface{}{
			"deleted": deleted,
			"cutoff":  cutoff,
		}).Info("audit retention sweep complete")
	}

	return nil
}
