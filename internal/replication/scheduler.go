package replication

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler runs the replicator on a cron schedule.
type Scheduler struct {
	cron       *cron.Cron
	replicator *Replicator
	schedule   string
	logger     *zap.Logger
}

func NewScheduler(replicator *Replicator, schedule string, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if schedule == "" {
		schedule = "@every 5m"
	}
	return &Scheduler{
		cron:       cron.New(),
		replicator: replicator,
		schedule:   schedule,
		logger:     logger,
	}
}

// Start registers the sync job and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.sync); err != nil {
		return err
	}
	s.logger.Info("starting replication scheduler", zap.String("schedule", s.schedule))
	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for a running sync to finish.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping replication scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) sync() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pushed, err := s.replicator.SyncOnce(ctx)
	if err != nil {
		s.logger.Error("replication failed", zap.Int("pushed", pushed), zap.Error(err))
		return
	}
	if pushed > 0 {
		s.logger.Info("replicated transactions", zap.Int("pushed", pushed))
	}
}
