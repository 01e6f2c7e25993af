package jobs

import (
	"fmt"
	"log/slog"
	"time"

	"courierhub/internal/core/ports"
)

type Config struct {
	TickInterval    time.Duration
	ExpiryBatchSize int
	BacklogInterval time.Duration
}

// JobManager starts and stops the background jobs together.
type JobManager struct {
	attemptExpiryJob *AttemptExpiryJob
	backlogGaugeJob  *BacklogGaugeJob
}

func NewJobManager(
	cfg Config,
	expireHandler ExpireAttemptsHandler,
	uowFactory ports.UnitOfWorkFactory,
	metrics ports.DispatchMetrics,
	logger *slog.Logger,
) *JobManager {
	return &JobManager{
		attemptExpiryJob: NewAttemptExpiryJob(expireHandler, cfg.TickInterval, cfg.ExpiryBatchSize, logger),
		backlogGaugeJob:  NewBacklogGaugeJob(uowFactory, metrics, cfg.BacklogInterval, logger),
	}
}

// StartAll starts every job. Jobs already started are stopped again when a
// later one fails.
func (jm *JobManager) StartAll() error {
	if err := jm.attemptExpiryJob.Start(); err != nil {
		return fmt.Errorf("failed to start attempt expiry job: %w", err)
	}

	if err := jm.backlogGaugeJob.Start(); err != nil {
		jm.attemptExpiryJob.Stop()
		return fmt.Errorf("failed to start backlog gauge job: %w", err)
	}

	return nil
}

func (jm *JobManager) StopAll() {
	jm.backlogGaugeJob.Stop()
	jm.attemptExpiryJob.Stop()
}
