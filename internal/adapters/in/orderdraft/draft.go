// Package orderdraft is the wire shape of an order placed by a company. The
// HTTP API and the platform import topic both decode into Draft.
package orderdraft

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"courierhub/internal/core/application/usecases/commands"
	"courierhub/internal/core/domain/model/kernel"
	"courierhub/internal/core/domain/model/order"
	"courierhub/internal/pkg/errs"

	"gopkg.in/go-playground/validator.v9"
)

type Place struct {
	Lat     float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon     float64 `json:"lon" validate:"gte=-180,lte=180"`
	Address string  `json:"address" validate:"required,max=512"`
}

type Package struct {
	Size string `json:"size" validate:"required"`
	Type string `json:"type" validate:"max=64"`
}

type Draft struct {
	// OrderID lets upstream systems retry an import without creating a
	// second order. A new id is generated when it is empty.
	OrderID      string  `json:"orderId,omitempty" validate:"omitempty,uuid"`
	CompanyID    string  `json:"companyId" validate:"required,uuid"`
	Pickup       Place   `json:"pickup"`
	Delivery     Place   `json:"delivery"`
	Package      Package `json:"package"`
	Urgency      string  `json:"urgency" validate:"required"`
	DeliveryType string  `json:"deliveryType" validate:"required"`
	DistanceKm   float64 `json:"distanceKm,omitempty" validate:"gte=0"`
	DurationMin  float64 `json:"durationMin,omitempty" validate:"gte=0"`
}

// NewValidator returns a validator that reports json field names.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Command validates d and turns it into the create-and-dispatch command.
// Every problem is reported, each wrapped in an errs value error.
func (d Draft) Command(v *validator.Validate) (commands.CreateAndDispatchOrderCommand, error) {
	if err := v.Struct(d); err != nil {
		return commands.CreateAndDispatchOrderCommand{}, FromValidation(err)
	}

	orderID := kernel.NewUUID()
	var problems []error
	if d.OrderID != "" {
		id, err := kernel.UUIDFromString(d.OrderID)
		if err != nil {
			problems = append(problems, errs.NewValueIsInvalidErrorWithCause("orderId", err))
		}
		orderID = id
	}

	companyID, err := kernel.UUIDFromString(d.CompanyID)
	if err != nil {
		problems = append(problems, errs.NewValueIsInvalidErrorWithCause("companyId", err))
	}
	pickup, err := d.Pickup.place("pickup")
	problems = appendErr(problems, err)
	delivery, err := d.Delivery.place("delivery")
	problems = appendErr(problems, err)

	size, err := order.ParseSize(d.Package.Size)
	problems = appendErr(problems, err)
	parcel, err := order.NewParcel(size, d.Package.Type)
	if size != "" {
		problems = appendErr(problems, err)
	}
	urgency, err := order.ParseUrgency(d.Urgency)
	problems = appendErr(problems, err)
	deliveryType, err := order.ParseDeliveryType(d.DeliveryType)
	problems = appendErr(problems, err)

	if len(problems) > 0 {
		return commands.CreateAndDispatchOrderCommand{}, errors.Join(problems...)
	}

	return commands.NewCreateAndDispatchOrderCommand(orderID, companyID, pickup, delivery, parcel,
		urgency, deliveryType, d.DistanceKm, d.DurationMin)
}

func (p Place) place(field string) (order.Place, error) {
	point, err := kernel.NewGeoPoint(p.Lat, p.Lon)
	if err != nil {
		return order.Place{}, errs.NewValueIsInvalidErrorWithCause(field, err)
	}
	return order.NewPlace(point, p.Address)
}

func appendErr(problems []error, err error) []error {
	if err != nil {
		return append(problems, err)
	}
	return problems
}

// FromValidation maps validator errors onto errs.ValueIsRequiredError and
// errs.ValueIsInvalidError, one per failing field. Field paths drop the
// top-level struct name.
func FromValidation(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errs.NewValueIsInvalidErrorWithCause("request", err)
	}

	problems := make([]error, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		_, field, found := strings.Cut(fe.Namespace(), ".")
		if !found {
			field = fe.Field()
		}
		if fe.Tag() == "required" {
			problems = append(problems, errs.NewValueIsRequiredError(field))
			continue
		}
		problems = append(problems, errs.NewValueIsInvalidErrorWithCause(field,
			fmt.Errorf("failed %q rule", fe.Tag())))
	}
	return errors.Join(problems...)
}
