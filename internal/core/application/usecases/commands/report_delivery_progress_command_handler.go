package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"courierhub/internal/core/application/dispatch"
	"courierhub/internal/core/domain/model/order"
	"courierhub/internal/core/ports"
	"courierhub/internal/pkg/clock"
	"courierhub/internal/pkg/errs"
	"courierhub/internal/pkg/retry"
)

// ReportDeliveryProgressCommandHandler applies pickup, delivery and failure
// reports. Delivery and failure close the order and release the courier's
// active order slot in the same transaction.
type ReportDeliveryProgressCommandHandler struct {
	uowFactory  ports.UnitOfWorkFactory
	retryPolicy retry.Policy
	clock       clock.Clock
	metrics     ports.DispatchMetrics
	logger      *slog.Logger
}

func NewReportDeliveryProgressCommandHandler(
	uowFactory ports.UnitOfWorkFactory,
	retryPolicy retry.Policy,
	clk clock.Clock,
	metrics ports.DispatchMetrics,
	logger *slog.Logger,
) ReportDeliveryProgressCommandHandler {
	return ReportDeliveryProgressCommandHandler{
		uowFactory:  uowFactory,
		retryPolicy: retryPolicy,
		clock:       clk,
		metrics:     metrics,
		logger:      logger.With("component", "delivery_progress"),
	}
}

func (h ReportDeliveryProgressCommandHandler) Handle(
	ctx context.Context,
	cmd ReportDeliveryProgressCommand,
) (*order.Order, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var updated *order.Order
	err := retry.Do(ctx, h.retryPolicy, dispatch.IsContention,
		func(ctx context.Context) error {
			o, err := h.apply(ctx, cmd)
			if err != nil {
				return err
			}
			updated = o
			return nil
		},
		func(err error, wait time.Duration) {
			h.metrics.StorageRetry("progress")
			h.logger.DebugContext(ctx, "Progress report lost a storage race, retrying",
				"order_id", cmd.OrderID().String(), "wait", wait, "error", err)
		},
	)
	if err != nil {
		if dispatch.IsContention(err) && !errors.Is(err, ports.ErrStorageContention) {
			err = fmt.Errorf("%w: %w", ports.ErrStorageContention, err)
		}
		return nil, err
	}

	h.logger.InfoContext(ctx, "Delivery progress",
		"order_id", updated.ID().String(), "courier_id", cmd.CourierID().String(),
		"step", string(cmd.Step()), "status", updated.Status().String())
	return updated, nil
}

func (h ReportDeliveryProgressCommandHandler) apply(
	ctx context.Context,
	cmd ReportDeliveryProgressCommand,
) (*order.Order, error) {
	uow := h.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer func() {
		_ = uow.Rollback(ctx)
	}()

	o, err := uow.OrderRepository().Get(ctx, cmd.OrderID())
	if err != nil {
		return nil, err
	}

	now := h.clock.Now()
	release := false
	switch cmd.Step() {
	case StepPickedUp:
		err = o.ConfirmPickup(cmd.CourierID(), now)
	case StepDelivered:
		err = o.ConfirmDelivery(cmd.CourierID(), now)
		release = true
	case StepFailed:
		err = o.Fail(cmd.CourierID(), cmd.Reason(), now)
		release = true
	}
	if err != nil {
		return nil, err
	}

	if err = uow.OrderRepository().Update(ctx, o); err != nil {
		return nil, err
	}
	if release {
		err = uow.CourierRepository().DecrementActive(ctx, cmd.CourierID())
		if err != nil && !errors.Is(err, errs.ErrObjectNotFound) {
			return nil, err
		}
	}

	if err = uow.Commit(ctx); err != nil {
		return nil, err
	}
	return o, nil
}
