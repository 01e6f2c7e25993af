package commands

import (
	"context"
	"errors"

	"courierhub/internal/core/domain/model/courier"
	"courierhub/internal/pkg/errs"
)

// UpdateCourierPresenceCommandHandler registers unknown couriers and refreshes
// known ones. The active order counter is owned by the dispatch path and is
// never written here.
type UpdateCourierPresenceCommandHandler struct {
	uowFactory CourierUoWFactory
}

func NewUpdateCourierPresenceCommandHandler(uowFactory CourierUoWFactory) UpdateCourierPresenceCommandHandler {
	return UpdateCourierPresenceCommandHandler{uowFactory: uowFactory}
}

func (h UpdateCourierPresenceCommandHandler) Handle(
	ctx context.Context,
	cmd UpdateCourierPresenceCommand,
) (*courier.Courier, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	uow := h.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer func() {
		_ = uow.Rollback(ctx)
	}()

	repo := uow.CourierRepository()
	c, err := repo.Get(ctx, cmd.CourierID())
	switch {
	case errors.Is(err, errs.ErrObjectNotFound):
		c, err = courier.NewCourier(cmd.CourierID(), cmd.Name(), cmd.Phone(), cmd.Location(), cmd.Rating())
		if err != nil {
			return nil, err
		}
		if err = c.UpdatePresence(cmd.Location(), cmd.Available()); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		if err = errors.Join(
			c.UpdateProfile(cmd.Name(), cmd.Phone(), cmd.Rating()),
			c.UpdatePresence(cmd.Location(), cmd.Available()),
		); err != nil {
			return nil, err
		}
	}

	if err = repo.Save(ctx, c); err != nil {
		return nil, err
	}

	if err = uow.Commit(ctx); err != nil {
		return nil, err
	}

	return c, nil
}
