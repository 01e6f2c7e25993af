// Package jobs runs the periodic parts of dispatch on robfig/cron/v3.
//
// AttemptExpiryJob drives the timeout supervisor: on every tick
// (dispatch.tick_interval) it runs ExpireAttemptsCommand, which escalates
// unanswered offers to the next tier or times the order out.
// BacklogGaugeJob refreshes the pending-orders gauge.
//
// Both jobs skip a tick while the previous one is still running, so a slow
// database never stacks up supervisors. JobManager starts them together:
//
//	jobManager := jobs.NewJobManager(cfg, expireHandler, uowFactory, metrics, logger)
//	if err := jobManager.StartAll(); err != nil {
//		return err
//	}
//	defer jobManager.StopAll()
package jobs
