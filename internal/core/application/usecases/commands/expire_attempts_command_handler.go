package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"courierhub/internal/core/application/dispatch"
	"courierhub/internal/core/domain/model/attempt"
	"courierhub/internal/core/domain/model/order"
	"courierhub/internal/core/domain/services"
	"courierhub/internal/core/ports"
	"courierhub/internal/pkg/clock"
	"courierhub/internal/pkg/retry"
)

// ExpireAttemptsResult counts what one supervisor tick did.
type ExpireAttemptsResult struct {
	Escalated int
	TimedOut  int
	Skipped   int
}

type expiryOutcome int

const (
	expirySkipped expiryOutcome = iota
	expiryEscalated
	expiryTimedOut
)

type expiry struct {
	outcome expiryOutcome
	order   *order.Order
	plan    dispatch.Plan
	fresh   bool
}

// ExpireAttemptsCommandHandler re-drives orders whose current attempt expired.
// Each order is handled in its own transaction: the attempt sequence advances
// with a version guard, so a courier accepting at the same moment either wins
// before the escalation (which then skips the order) or gets a stale answer.
type ExpireAttemptsCommandHandler struct {
	uowFactory  ports.UnitOfWorkFactory
	planner     dispatch.Planner
	broadcaster *dispatch.Broadcaster
	fanout      *dispatch.Fanout
	retryPolicy retry.Policy
	clock       clock.Clock
	metrics     ports.DispatchMetrics
	logger      *slog.Logger
}

func NewExpireAttemptsCommandHandler(
	uowFactory ports.UnitOfWorkFactory,
	planner dispatch.Planner,
	broadcaster *dispatch.Broadcaster,
	fanout *dispatch.Fanout,
	retryPolicy retry.Policy,
	clk clock.Clock,
	metrics ports.DispatchMetrics,
	logger *slog.Logger,
) ExpireAttemptsCommandHandler {
	return ExpireAttemptsCommandHandler{
		uowFactory:  uowFactory,
		planner:     planner,
		broadcaster: broadcaster,
		fanout:      fanout,
		retryPolicy: retryPolicy,
		clock:       clk,
		metrics:     metrics,
		logger:      logger.With("component", "timeout_supervisor"),
	}
}

// Handle processes one batch. A failure on one order is logged and does not
// stop the batch; all failures are returned joined.
func (h ExpireAttemptsCommandHandler) Handle(ctx context.Context, cmd ExpireAttemptsCommand) (ExpireAttemptsResult, error) {
	if err := cmd.Validate(); err != nil {
		return ExpireAttemptsResult{}, err
	}

	expired, err := h.uowFactory.Create().AttemptRepository().GetExpired(ctx, h.clock.Now(), cmd.BatchSize())
	if err != nil {
		return ExpireAttemptsResult{}, fmt.Errorf("load expired attempts: %w", err)
	}

	var (
		res      ExpireAttemptsResult
		failures []error
	)
	for _, a := range expired {
		if ctx.Err() != nil {
			failures = append(failures, ctx.Err())
			break
		}

		var e expiry
		err := retry.Do(ctx, h.retryPolicy, dispatch.IsContention,
			func(ctx context.Context) error {
				var err error
				e, err = h.expire(ctx, a)
				return err
			},
			func(err error, wait time.Duration) {
				h.metrics.StorageRetry("expire")
				h.logger.DebugContext(ctx, "Expiry lost a storage race, retrying",
					"order_id", a.OrderID().String(), "wait", wait, "error", err)
			},
		)
		if err != nil {
			h.logger.ErrorContext(ctx, "Failed to expire attempt",
				"order_id", a.OrderID().String(), "attempt_seq", a.Seq(), "error", err)
			failures = append(failures, fmt.Errorf("order %s: %w", a.OrderID(), err))
			continue
		}

		switch e.outcome {
		case expirySkipped:
			res.Skipped++
		case expiryTimedOut:
			res.TimedOut++
			h.metrics.TimedOut()
			h.fanout.AnnounceTimedOut(ctx, e.order, a, true)
			h.logger.InfoContext(ctx, "Order timed out",
				"order_id", e.order.ID().String(), "last_attempt_seq", a.Seq())
		case expiryEscalated:
			res.Escalated++
			h.metrics.Escalated(e.plan.Attempt.Tier())
			h.fanout.AnnounceTimedOut(ctx, e.order, a, false)
			if e.fresh {
				h.broadcaster.Publish(ctx, e.order, e.plan.Attempt, e.plan.Distances())
				if e.plan.Attempt.IsEmpty() {
					h.fanout.AnnounceNoCandidates(ctx, e.order, e.plan.Attempt)
				}
			}
			h.logger.InfoContext(ctx, "Order escalated",
				"order_id", e.order.ID().String(), "attempt_seq", e.plan.Attempt.Seq(),
				"tier", e.plan.Attempt.Tier(), "candidates", len(e.plan.Candidates))
		}
	}

	return res, errors.Join(failures...)
}

func (h ExpireAttemptsCommandHandler) expire(ctx context.Context, expired *attempt.Attempt) (expiry, error) {
	uow := h.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return expiry{}, err
	}
	defer func() {
		_ = uow.Rollback(ctx)
	}()

	o, err := uow.OrderRepository().Get(ctx, expired.OrderID())
	if err != nil {
		return expiry{}, err
	}
	if o.Status() != order.Pending || o.AttemptSeq() != expired.Seq() {
		return expiry{outcome: expirySkipped, order: o}, nil
	}

	now := h.clock.Now()
	next, _, err := h.planner.Policy().Next(expired.Tier())
	if errors.Is(err, services.ErrNoMoreTiers) {
		if err = o.Cancel(order.ReasonNoCourierAccepted, now); err != nil {
			return expiry{}, err
		}
		if err = uow.OrderRepository().Update(ctx, o); err != nil {
			return expiry{}, err
		}
		if err = uow.Commit(ctx); err != nil {
			return expiry{}, err
		}
		return expiry{outcome: expiryTimedOut, order: o}, nil
	}
	if err != nil {
		return expiry{}, err
	}

	if _, err = o.AdvanceAttempt(); err != nil {
		return expiry{}, err
	}
	if err = uow.OrderRepository().Update(ctx, o); err != nil {
		return expiry{}, err
	}

	plan, err := h.planner.Plan(ctx, uow.CourierRepository(), o, next, expired.Candidates(), now)
	if err != nil {
		return expiry{}, err
	}
	fresh, err := h.broadcaster.Record(ctx, uow.AttemptRepository(), plan.Attempt)
	if err != nil {
		return expiry{}, err
	}

	if err = uow.Commit(ctx); err != nil {
		return expiry{}, err
	}
	return expiry{outcome: expiryEscalated, order: o, plan: plan, fresh: fresh}, nil
}
