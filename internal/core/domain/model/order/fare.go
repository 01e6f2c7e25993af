package order

import (
	"errors"

	"courierhub/internal/pkg/errs"

	"github.com/govalues/decimal"
)

// Fare is the quoted price and the courier's share of it. Both are fixed
// when the order is created.
type Fare struct {
	price          decimal.Decimal
	courierEarning decimal.Decimal
	isConstructed  bool
}

var ErrFareIsNotConstructed = errors.New("Fare must be created via NewFare constructor")

func NewFare(price, courierEarning decimal.Decimal) (Fare, error) {
	if !price.IsPos() {
		return Fare{}, errs.NewValueIsInvalidErrorWithCause("price", errors.New("price must be positive"))
	}
	if courierEarning.IsNeg() {
		return Fare{}, errs.NewValueIsInvalidErrorWithCause("courierEarning", errors.New("earning must not be negative"))
	}
	if courierEarning.Cmp(price) > 0 {
		return Fare{}, errs.NewValueIsInvalidErrorWithCause("courierEarning", errors.New("earning exceeds price"))
	}
	return Fare{price: price, courierEarning: courierEarning, isConstructed: true}, nil
}

func (f Fare) Price() decimal.Decimal {
	return f.price
}

func (f Fare) CourierEarning() decimal.Decimal {
	return f.courierEarning
}

// Commission is what the platform withholds.
func (f Fare) Commission() decimal.Decimal {
	c, err := f.price.Sub(f.courierEarning)
	if err != nil {
		return decimal.Decimal{}
	}
	return c
}

func (f Fare) Validate() error {
	if !f.isConstructed {
		return ErrFareIsNotConstructed
	}
	return nil
}
