package jobs

import (
	"context"
	"log/slog"
	"time"

	"courierhub/internal/core/ports"

	"github.com/robfig/cron/v3"
)

// BacklogGaugeJob publishes the number of PENDING orders.
type BacklogGaugeJob struct {
	uowFactory ports.UnitOfWorkFactory
	metrics    ports.DispatchMetrics
	interval   time.Duration
	cron       *cron.Cron
	logger     *slog.Logger
}

func NewBacklogGaugeJob(
	uowFactory ports.UnitOfWorkFactory,
	metrics ports.DispatchMetrics,
	interval time.Duration,
	logger *slog.Logger,
) *BacklogGaugeJob {
	return &BacklogGaugeJob{
		uowFactory: uowFactory,
		metrics:    metrics,
		interval:   interval,
		cron:       cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:     logger.With("component", "backlog_gauge_job"),
	}
}

func (j *BacklogGaugeJob) Start() error {
	if _, err := j.cron.AddFunc(every(j.interval), func() { j.RunOnce(context.Background()) }); err != nil {
		return err
	}

	j.cron.Start()
	j.logger.Info("backlog gauge job started", "interval", j.interval)
	return nil
}

func (j *BacklogGaugeJob) RunOnce(ctx context.Context) {
	n, err := j.uowFactory.Create().OrderRepository().CountPending(ctx)
	if err != nil {
		j.logger.WarnContext(ctx, "count pending orders failed", "error", err)
		return
	}
	j.metrics.PendingOrders(n)
}

func (j *BacklogGaugeJob) Stop() {
	<-j.cron.Stop().Done()
	j.logger.Info("backlog gauge job stopped")
}
