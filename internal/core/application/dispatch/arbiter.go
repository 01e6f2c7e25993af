package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"courierhub/internal/core/domain/model/attempt"
	"courierhub/internal/core/domain/model/courier"
	"courierhub/internal/core/domain/model/kernel"
	"courierhub/internal/core/domain/model/order"
	"courierhub/internal/core/ports"
	"courierhub/internal/pkg/clock"
	"courierhub/internal/pkg/errs"
	"courierhub/internal/pkg/retry"
)

type Outcome int

const (
	OutcomeAccepted Outcome = iota + 1
	OutcomeAlreadyAssigned
	OutcomeStaleAttempt
	OutcomeNotEligible
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "ACCEPTED"
	case OutcomeAlreadyAssigned:
		return "ALREADY_ASSIGNED"
	case OutcomeStaleAttempt:
		return "STALE_ATTEMPT"
	case OutcomeNotEligible:
		return "NOT_ELIGIBLE"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// AcceptResult describes how an accept call was decided. Order is the state
// the decision was taken on; Courier and Attempt are set for accepted calls.
// Duplicate marks a repeated accept by the courier that already holds the
// order: nothing was written and nobody should be notified again.
type AcceptResult struct {
	Outcome   Outcome
	Order     *order.Order
	Courier   *courier.Courier
	Attempt   *attempt.Attempt
	Duplicate bool
}

func (r AcceptResult) Accepted() bool {
	return r.Outcome == OutcomeAccepted
}

// Arbiter decides accept races. For every order at most one courier is ever
// committed: the order row is written with a version guard and the courier's
// active order counter is incremented in the same transaction, so either both
// land or neither does.
type Arbiter struct {
	uowFactory      ports.UnitOfWorkFactory
	maxActiveOrders int
	retryPolicy     retry.Policy
	clock           clock.Clock
	metrics         ports.DispatchMetrics
	logger          *slog.Logger
}

func NewArbiter(
	uowFactory ports.UnitOfWorkFactory,
	maxActiveOrders int,
	retryPolicy retry.Policy,
	clk clock.Clock,
	metrics ports.DispatchMetrics,
	logger *slog.Logger,
) *Arbiter {
	return &Arbiter{
		uowFactory:      uowFactory,
		maxActiveOrders: maxActiveOrders,
		retryPolicy:     retryPolicy,
		clock:           clk,
		metrics:         metrics,
		logger:          logger.With("component", "acceptance_arbiter"),
	}
}

// TryAccept tries to bind courierID to the order for attemptSeq. An
// attemptSeq of 0 means the order's current attempt.
//
// Losing is not an error: the result carries AlreadyAssigned, StaleAttempt or
// NotEligible. Errors are returned for unknown orders, storage failures, and
// for contention that outlived the retry budget (wrapping
// ports.ErrStorageContention).
func (a *Arbiter) TryAccept(ctx context.Context, orderID, courierID kernel.UUID, attemptSeq int) (AcceptResult, error) {
	if err := errors.Join(orderID.Validate(), courierID.Validate()); err != nil {
		return AcceptResult{}, err
	}
	if attemptSeq < 0 {
		return AcceptResult{}, errs.NewValueIsOutOfRangeError("attemptSeq", attemptSeq, 0, "unbounded")
	}

	var result AcceptResult
	err := retry.Do(ctx, a.retryPolicy, IsContention,
		func(ctx context.Context) error {
			r, err := a.decide(ctx, orderID, courierID, attemptSeq)
			if err != nil {
				return err
			}
			result = r
			return nil
		},
		func(err error, wait time.Duration) {
			a.metrics.StorageRetry("accept")
			a.logger.DebugContext(ctx, "Accept lost a storage race, retrying",
				"order_id", orderID.String(), "courier_id", courierID.String(), "wait", wait, "error", err)
		},
	)
	if err != nil {
		if IsContention(err) && !errors.Is(err, ports.ErrStorageContention) {
			err = fmt.Errorf("%w: %w", ports.ErrStorageContention, err)
		}
		return AcceptResult{}, err
	}

	a.metrics.AcceptOutcome(result.Outcome.String())
	a.logger.InfoContext(ctx, "Accept decided",
		"order_id", orderID.String(), "courier_id", courierID.String(),
		"attempt_seq", attemptSeq, "outcome", result.Outcome.String(), "duplicate", result.Duplicate)
	return result, nil
}

// decide runs one transaction. Contention errors bubble up so the whole
// decision is taken again on fresh state.
func (a *Arbiter) decide(ctx context.Context, orderID, courierID kernel.UUID, attemptSeq int) (AcceptResult, error) {
	uow := a.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return AcceptResult{}, err
	}
	defer func() { _ = uow.Rollback(ctx) }()

	o, err := uow.OrderRepository().Get(ctx, orderID)
	if err != nil {
		return AcceptResult{}, err
	}

	seq := attemptSeq
	if seq == 0 {
		seq = o.AttemptSeq()
	}

	if o.CourierID() != nil {
		if o.IsAssignedTo(courierID) && seq == o.AttemptSeq() {
			c, err := uow.CourierRepository().Get(ctx, courierID)
			if err != nil {
				return AcceptResult{}, err
			}
			return AcceptResult{Outcome: OutcomeAccepted, Order: o, Courier: c, Duplicate: true}, nil
		}
		return AcceptResult{Outcome: OutcomeAlreadyAssigned, Order: o}, nil
	}

	switch {
	case seq < o.AttemptSeq():
		return AcceptResult{Outcome: OutcomeStaleAttempt, Order: o}, nil
	case seq > o.AttemptSeq():
		return AcceptResult{Outcome: OutcomeNotEligible, Order: o}, nil
	case o.Status() != order.Pending:
		return AcceptResult{Outcome: OutcomeStaleAttempt, Order: o}, nil
	}

	att, err := uow.AttemptRepository().Get(ctx, orderID, seq)
	if err != nil {
		if errors.Is(err, errs.ErrObjectNotFound) {
			return AcceptResult{Outcome: OutcomeNotEligible, Order: o}, nil
		}
		return AcceptResult{}, err
	}
	if !att.Includes(courierID) {
		return AcceptResult{Outcome: OutcomeNotEligible, Order: o}, nil
	}

	before := o.Snapshot()
	if err = o.Accept(courierID, seq, a.clock.Now()); err != nil {
		return AcceptResult{}, err
	}
	if err = uow.OrderRepository().Update(ctx, o); err != nil {
		return AcceptResult{}, err
	}

	err = uow.CourierRepository().IncrementActive(ctx, courierID, a.maxActiveOrders)
	if isIneligibleCourier(err) {
		return notEligible(before)
	}
	if err != nil {
		return AcceptResult{}, err
	}

	c, err := uow.CourierRepository().Get(ctx, courierID)
	if err != nil {
		return AcceptResult{}, err
	}

	err = uow.Commit(ctx)
	if isIneligibleCourier(err) {
		return notEligible(before)
	}
	if err != nil {
		return AcceptResult{}, err
	}

	return AcceptResult{Outcome: OutcomeAccepted, Order: o, Courier: c, Attempt: att}, nil
}

// notEligible reports the order as it was before the discarded Accept.
func notEligible(before order.State) (AcceptResult, error) {
	o, err := order.RestoreOrder(before)
	if err != nil {
		return AcceptResult{}, err
	}
	return AcceptResult{Outcome: OutcomeNotEligible, Order: o}, nil
}

func isIneligibleCourier(err error) bool {
	return errors.Is(err, courier.ErrActiveOrderLimitReached) || errors.Is(err, errs.ErrObjectNotFound)
}
