package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"courierhub/internal/core/application/usecases/commands"

	"github.com/robfig/cron/v3"
)

type ExpireAttemptsHandler interface {
	Handle(ctx context.Context, cmd commands.ExpireAttemptsCommand) (commands.ExpireAttemptsResult, error)
}

// AttemptExpiryJob is the timeout supervisor's clock: every tick it asks the
// expire handler to escalate or time out orders whose offer window closed.
type AttemptExpiryJob struct {
	handler   ExpireAttemptsHandler
	interval  time.Duration
	batchSize int
	cron      *cron.Cron
	logger    *slog.Logger
}

func NewAttemptExpiryJob(
	handler ExpireAttemptsHandler,
	interval time.Duration,
	batchSize int,
	logger *slog.Logger,
) *AttemptExpiryJob {
	return &AttemptExpiryJob{
		handler:   handler,
		interval:  interval,
		batchSize: batchSize,
		cron:      cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:    logger.With("component", "attempt_expiry_job"),
	}
}

func (j *AttemptExpiryJob) Start() error {
	if _, err := j.cron.AddFunc(every(j.interval), func() { j.RunOnce(context.Background()) }); err != nil {
		return err
	}

	j.cron.Start()
	j.logger.Info("attempt expiry job started", "interval", j.interval, "batch_size", j.batchSize)
	return nil
}

// RunOnce performs a single supervisor tick.
func (j *AttemptExpiryJob) RunOnce(ctx context.Context) {
	cmd, err := commands.NewExpireAttemptsCommand(j.batchSize)
	if err != nil {
		j.logger.ErrorContext(ctx, "invalid expiry batch size", "error", err)
		return
	}

	res, err := j.handler.Handle(ctx, cmd)
	if err != nil {
		j.logger.ErrorContext(ctx, "attempt expiry failed", "error", err)
		return
	}
	if res.Escalated > 0 || res.TimedOut > 0 {
		j.logger.InfoContext(ctx, "expired attempts handled",
			"escalated", res.Escalated, "timed_out", res.TimedOut, "skipped", res.Skipped)
	}
}

// Stop waits for a running tick to finish.
func (j *AttemptExpiryJob) Stop() {
	<-j.cron.Stop().Done()
	j.logger.Info("attempt expiry job stopped")
}

func every(d time.Duration) string {
	return fmt.Sprintf("@every %s", d)
}
