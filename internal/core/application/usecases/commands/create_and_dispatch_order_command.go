package commands

import (
	"errors"

	"courierhub/internal/core/domain/model/kernel"
	"courierhub/internal/core/domain/model/order"
	"courierhub/internal/pkg/errs"
	"courierhub/internal/pkg/guard"
)

var ErrCreateAndDispatchOrderCommandIsNotConstructed = errors.New(
	"CreateAndDispatchOrderCommand must be created via NewCreateAndDispatchOrderCommand constructor",
)

// CreateAndDispatchOrderCommand carries an order draft from a company.
// Distance and duration are optional: zero means "derive from coordinates".
//
// Example:
//
//	cmd, err := NewCreateAndDispatchOrderCommand(kernel.NewUUID(), companyID,
//	    pickup, drop, parcel, order.UrgencyNormal, order.DeliveryStandard, 4.2, 12)
//	if err != nil {
//	    return fmt.Errorf("invalid order draft: %w", err)
//	}
//	res, err := handler.Handle(ctx, cmd)
type CreateAndDispatchOrderCommand struct { //nolint:recvcheck //using for validation
	orderID      kernel.UUID
	companyID    kernel.UUID
	pickup       order.Place
	delivery     order.Place
	parcel       order.Parcel
	urgency      order.Urgency
	deliveryType order.DeliveryType
	distanceKm   float64
	durationMin  float64

	guard guard.ConstructorGuard
}

func NewCreateAndDispatchOrderCommand(
	orderID kernel.UUID,
	companyID kernel.UUID,
	pickup order.Place,
	delivery order.Place,
	parcel order.Parcel,
	urgency order.Urgency,
	deliveryType order.DeliveryType,
	distanceKm float64,
	durationMin float64,
) (CreateAndDispatchOrderCommand, error) {
	cmd := CreateAndDispatchOrderCommand{
		pickup:       pickup,
		delivery:     delivery,
		parcel:       parcel,
		urgency:      urgency,
		deliveryType: deliveryType,
		guard:        guard.NewConstructorGuard(),
	}

	if err := errors.Join(
		cmd.setOrderID(orderID),
		cmd.setCompanyID(companyID),
		pickup.Validate(),
		delivery.Validate(),
		parcel.Size().Validate(),
		urgency.Validate(),
		deliveryType.Validate(),
		cmd.setRoute(distanceKm, durationMin),
	); err != nil {
		return CreateAndDispatchOrderCommand{}, err
	}

	return cmd, nil
}

func (c CreateAndDispatchOrderCommand) Validate() error {
	return c.guard.Validate(ErrCreateAndDispatchOrderCommandIsNotConstructed)
}

func (c CreateAndDispatchOrderCommand) OrderID() kernel.UUID             { return c.orderID }
func (c CreateAndDispatchOrderCommand) CompanyID() kernel.UUID           { return c.companyID }
func (c CreateAndDispatchOrderCommand) Pickup() order.Place              { return c.pickup }
func (c CreateAndDispatchOrderCommand) Delivery() order.Place            { return c.delivery }
func (c CreateAndDispatchOrderCommand) Parcel() order.Parcel             { return c.parcel }
func (c CreateAndDispatchOrderCommand) Urgency() order.Urgency           { return c.urgency }
func (c CreateAndDispatchOrderCommand) DeliveryType() order.DeliveryType { return c.deliveryType }
func (c CreateAndDispatchOrderCommand) DistanceKm() float64              { return c.distanceKm }
func (c CreateAndDispatchOrderCommand) DurationMin() float64             { return c.durationMin }

func (c *CreateAndDispatchOrderCommand) setOrderID(id kernel.UUID) error {
	if err := id.Validate(); err != nil {
		return err
	}
	c.orderID = id
	return nil
}

func (c *CreateAndDispatchOrderCommand) setCompanyID(id kernel.UUID) error {
	if err := id.Validate(); err != nil {
		return errs.NewValueIsRequiredErrorWithCause("companyId", err)
	}
	c.companyID = id
	return nil
}

func (c *CreateAndDispatchOrderCommand) setRoute(distanceKm, durationMin float64) error {
	var problems []error
	if distanceKm < 0 {
		problems = append(problems, errs.NewValueIsOutOfRangeError("distanceKm", distanceKm, 0, "unbounded"))
	}
	if durationMin < 0 {
		problems = append(problems, errs.NewValueIsOutOfRangeError("durationMin", durationMin, 0, "unbounded"))
	}
	if err := errors.Join(problems...); err != nil {
		return err
	}
	c.distanceKm = distanceKm
	c.durationMin = durationMin
	return nil
}
