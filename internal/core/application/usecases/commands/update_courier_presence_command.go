package commands

import (
	"errors"

	"courierhub/internal/core/domain/model/kernel"
	"courierhub/internal/pkg/guard"
)

var ErrUpdateCourierPresenceCommandIsNotConstructed = errors.New(
	"UpdateCourierPresenceCommand must be created via NewUpdateCourierPresenceCommand constructor",
)

// UpdateCourierPresenceCommand upserts the dispatch projection of a courier.
// Field rules (name length, rating range) are enforced by the aggregate.
type UpdateCourierPresenceCommand struct { //nolint:recvcheck //using for validation
	courierID kernel.UUID
	name      string
	phone     string
	location  kernel.GeoPoint
	rating    float64
	available bool

	guard guard.ConstructorGuard
}

func NewUpdateCourierPresenceCommand(
	courierID kernel.UUID,
	name, phone string,
	location kernel.GeoPoint,
	rating float64,
	available bool,
) (UpdateCourierPresenceCommand, error) {
	if err := errors.Join(courierID.Validate(), location.Validate()); err != nil {
		return UpdateCourierPresenceCommand{}, err
	}

	return UpdateCourierPresenceCommand{
		courierID: courierID,
		name:      name,
		phone:     phone,
		location:  location,
		rating:    rating,
		available: available,
		guard:     guard.NewConstructorGuard(),
	}, nil
}

func (c UpdateCourierPresenceCommand) Validate() error {
	return c.guard.Validate(ErrUpdateCourierPresenceCommandIsNotConstructed)
}

func (c UpdateCourierPresenceCommand) CourierID() kernel.UUID    { return c.courierID }
func (c UpdateCourierPresenceCommand) Name() string              { return c.name }
func (c UpdateCourierPresenceCommand) Phone() string             { return c.phone }
func (c UpdateCourierPresenceCommand) Location() kernel.GeoPoint { return c.location }
func (c UpdateCourierPresenceCommand) Rating() float64           { return c.rating }
func (c UpdateCourierPresenceCommand) Available() bool           { return c.available }
