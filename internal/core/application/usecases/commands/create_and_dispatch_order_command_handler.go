package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"courierhub/internal/core/application/dispatch"
	"courierhub/internal/core/domain/model/kernel"
	"courierhub/internal/core/domain/model/order"
	"courierhub/internal/core/domain/services"
	"courierhub/internal/core/ports"
	"courierhub/internal/pkg/clock"
	"courierhub/internal/pkg/errs"

	"github.com/govalues/decimal"
)

var ErrOrderAlreadyExists = ports.ErrOrderAlreadyExists

// CreateAndDispatchResult reports the created order and its first broadcast.
// NoCourierAvailable means the first tier reached nobody; the order is still
// created and the supervisor escalates it on its next tick.
type CreateAndDispatchResult struct {
	OrderID            kernel.UUID
	TrackingCode       string
	Price              decimal.Decimal
	CourierEarning     decimal.Decimal
	AttemptSeq         int
	Candidates         int
	ExpiresAt          time.Time
	NoCourierAvailable bool
}

// DispatchErr returns dispatch.ErrNoEligibleCourier when nobody was offered
// the order, nil otherwise.
func (r CreateAndDispatchResult) DispatchErr() error {
	if r.NoCourierAvailable {
		return dispatch.ErrNoEligibleCourier
	}
	return nil
}

// CreateAndDispatchOrderCommandHandler prices a draft once, stores the order
// together with its first attempt, and offers it to the first tier.
//
// A pricing failure aborts before anything is stored.
type CreateAndDispatchOrderCommandHandler struct {
	uowFactory  ports.UnitOfWorkFactory
	quoter      ports.PriceQuoter
	estimator   services.RouteEstimator
	planner     dispatch.Planner
	broadcaster *dispatch.Broadcaster
	clock       clock.Clock
	logger      *slog.Logger
}

func NewCreateAndDispatchOrderCommandHandler(
	uowFactory ports.UnitOfWorkFactory,
	quoter ports.PriceQuoter,
	estimator services.RouteEstimator,
	planner dispatch.Planner,
	broadcaster *dispatch.Broadcaster,
	clk clock.Clock,
	logger *slog.Logger,
) CreateAndDispatchOrderCommandHandler {
	return CreateAndDispatchOrderCommandHandler{
		uowFactory:  uowFactory,
		quoter:      quoter,
		estimator:   estimator,
		planner:     planner,
		broadcaster: broadcaster,
		clock:       clk,
		logger:      logger.With("component", "create_and_dispatch_order"),
	}
}

func (h CreateAndDispatchOrderCommandHandler) Handle(
	ctx context.Context,
	cmd CreateAndDispatchOrderCommand,
) (CreateAndDispatchResult, error) {
	if err := cmd.Validate(); err != nil {
		return CreateAndDispatchResult{}, err
	}

	route, err := h.estimator.Estimate(cmd.Pickup().Point(), cmd.Delivery().Point(), cmd.DistanceKm(), cmd.DurationMin())
	if err != nil {
		return CreateAndDispatchResult{}, err
	}

	quote, err := h.quoter.Quote(ctx, ports.QuoteRequest{
		DistanceKm:   route.DistanceKm,
		DurationMin:  route.DurationMin,
		Size:         cmd.Parcel().Size(),
		DeliveryType: cmd.DeliveryType(),
		Urgency:      cmd.Urgency(),
	})
	if err != nil {
		return CreateAndDispatchResult{}, fmt.Errorf("quote order: %w", err)
	}

	fare, err := order.NewFare(quote.Price, quote.CourierEarning)
	if err != nil {
		return CreateAndDispatchResult{}, fmt.Errorf("quote order: %w", err)
	}

	now := h.clock.Now()
	o, err := order.NewOrder(cmd.OrderID(), cmd.CompanyID(), cmd.Pickup(), cmd.Delivery(), cmd.Parcel(),
		cmd.Urgency(), cmd.DeliveryType(), fare, now)
	if err != nil {
		return CreateAndDispatchResult{}, err
	}

	uow := h.uowFactory.Create()
	if err = uow.Begin(ctx); err != nil {
		return CreateAndDispatchResult{}, err
	}
	defer func() {
		_ = uow.Rollback(ctx)
	}()

	orders := uow.OrderRepository()
	_, err = orders.Get(ctx, o.ID())
	switch {
	case err == nil:
		return CreateAndDispatchResult{}, fmt.Errorf("%w: %s", ErrOrderAlreadyExists, o.ID())
	case !errors.Is(err, errs.ErrObjectNotFound):
		return CreateAndDispatchResult{}, err
	}

	if err = orders.Add(ctx, o); err != nil {
		return CreateAndDispatchResult{}, err
	}

	plan, err := h.planner.Plan(ctx, uow.CourierRepository(), o, 0, nil, now)
	if err != nil {
		return CreateAndDispatchResult{}, err
	}
	fresh, err := h.broadcaster.Record(ctx, uow.AttemptRepository(), plan.Attempt)
	if err != nil {
		return CreateAndDispatchResult{}, err
	}

	if err = uow.Commit(ctx); err != nil {
		return CreateAndDispatchResult{}, err
	}

	if fresh {
		h.broadcaster.Publish(ctx, o, plan.Attempt, plan.Distances())
	}

	res := CreateAndDispatchResult{
		OrderID:            o.ID(),
		TrackingCode:       o.TrackingCode(),
		Price:              fare.Price(),
		CourierEarning:     fare.CourierEarning(),
		AttemptSeq:         plan.Attempt.Seq(),
		Candidates:         len(plan.Candidates),
		ExpiresAt:          plan.Attempt.ExpiresAt(),
		NoCourierAvailable: plan.Attempt.IsEmpty(),
	}

	h.logger.InfoContext(ctx, "Order created",
		"order_id", o.ID().String(), "company_id", o.CompanyID().String(),
		"price", fare.Price().String(), "distance_km", route.DistanceKm, "candidates", res.Candidates)
	if res.NoCourierAvailable {
		h.logger.WarnContext(ctx, "No eligible courier on first tier", "order_id", o.ID().String())
	}

	return res, nil
}
