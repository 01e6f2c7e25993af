package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"courierhub/internal/core/application/dispatch"
	"courierhub/internal/core/domain/model/attempt"
	"courierhub/internal/core/domain/model/kernel"
	"courierhub/internal/core/domain/model/order"
	"courierhub/internal/core/ports"
	"courierhub/internal/pkg/clock"
	"courierhub/internal/pkg/errs"
	"courierhub/internal/pkg/retry"
)

// CancelOrderCommandHandler cancels an order on behalf of its company.
//
// A pending order is closed and its attempt sequence advanced in the same
// version-guarded write, so an accept racing the cancellation either commits
// first (and the cancel then sees an assigned order) or loses as stale.
type CancelOrderCommandHandler struct {
	uowFactory  ports.UnitOfWorkFactory
	fanout      *dispatch.Fanout
	policy      CancelAssignedPolicy
	retryPolicy retry.Policy
	clock       clock.Clock
	metrics     ports.DispatchMetrics
	logger      *slog.Logger
}

func NewCancelOrderCommandHandler(
	uowFactory ports.UnitOfWorkFactory,
	fanout *dispatch.Fanout,
	policy CancelAssignedPolicy,
	retryPolicy retry.Policy,
	clk clock.Clock,
	metrics ports.DispatchMetrics,
	logger *slog.Logger,
) CancelOrderCommandHandler {
	return CancelOrderCommandHandler{
		uowFactory:  uowFactory,
		fanout:      fanout,
		policy:      policy,
		retryPolicy: retryPolicy,
		clock:       clk,
		metrics:     metrics,
		logger:      logger.With("component", "cancel_order"),
	}
}

type cancellation struct {
	order    *order.Order
	released *kernel.UUID
	open     *attempt.Attempt
}

func (h CancelOrderCommandHandler) Handle(ctx context.Context, cmd CancelOrderCommand) (*order.Order, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var done cancellation
	err := retry.Do(ctx, h.retryPolicy, dispatch.IsContention,
		func(ctx context.Context) error {
			c, err := h.cancel(ctx, cmd)
			if err != nil {
				return err
			}
			done = c
			return nil
		},
		func(err error, wait time.Duration) {
			h.metrics.StorageRetry("cancel")
			h.logger.DebugContext(ctx, "Cancel lost a storage race, retrying",
				"order_id", cmd.OrderID().String(), "wait", wait, "error", err)
		},
	)
	if err != nil {
		if dispatch.IsContention(err) && !errors.Is(err, ports.ErrStorageContention) {
			err = fmt.Errorf("%w: %w", ports.ErrStorageContention, err)
		}
		return nil, err
	}

	h.fanout.AnnounceCancelled(ctx, done.order, done.released, done.open)

	attrs := []any{"order_id", done.order.ID().String(), "reason", cmd.Reason()}
	if done.released != nil {
		attrs = append(attrs, "released_courier_id", done.released.String())
	}
	h.logger.InfoContext(ctx, "Order cancelled", attrs...)

	return done.order, nil
}

func (h CancelOrderCommandHandler) cancel(ctx context.Context, cmd CancelOrderCommand) (cancellation, error) {
	uow := h.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return cancellation{}, err
	}
	defer func() {
		_ = uow.Rollback(ctx)
	}()

	o, err := uow.OrderRepository().Get(ctx, cmd.OrderID())
	if err != nil {
		return cancellation{}, err
	}

	now := h.clock.Now()
	var (
		released *kernel.UUID
		open     *attempt.Attempt
	)

	switch o.Status() { //nolint:exhaustive // remaining statuses are refused by the aggregate
	case order.Pending:
		open, err = h.openAttempt(ctx, uow, o)
		if err != nil {
			return cancellation{}, err
		}
		if err = o.Cancel(cmd.Reason(), now); err != nil {
			return cancellation{}, err
		}
	case order.Accepted, order.InProgress:
		if h.policy != CancelAssignedCompensate {
			return cancellation{}, fmt.Errorf("%w: order %s is %s", order.ErrAlreadyAssigned, o.ID(), o.Status())
		}
		id, cancelErr := o.CancelAssigned(cmd.Reason(), now)
		if cancelErr != nil {
			return cancellation{}, cancelErr
		}
		released = &id
	default:
		if err = o.Cancel(cmd.Reason(), now); err != nil {
			return cancellation{}, err
		}
	}

	if err = uow.OrderRepository().Update(ctx, o); err != nil {
		return cancellation{}, err
	}
	if released != nil {
		if err = uow.CourierRepository().DecrementActive(ctx, *released); err != nil && !errors.Is(err, errs.ErrObjectNotFound) {
			return cancellation{}, err
		}
	}

	if err = uow.Commit(ctx); err != nil {
		return cancellation{}, err
	}

	return cancellation{order: o, released: released, open: open}, nil
}

// openAttempt returns the attempt whose candidates still hold the offer, or nil
// when the order's current sequence was never broadcast.
func (h CancelOrderCommandHandler) openAttempt(ctx context.Context, uow ports.UnitOfWork, o *order.Order) (*attempt.Attempt, error) {
	latest, err := uow.AttemptRepository().GetLatest(ctx, o.ID())
	if errors.Is(err, errs.ErrObjectNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if latest.Seq() != o.AttemptSeq() {
		return nil, nil
	}
	return latest, nil
}
