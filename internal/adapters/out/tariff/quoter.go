// Package tariff implements ports.PriceQuoter with a distance and time tariff:
//
//	computed = (base + perKm*distance + perMinute*duration) * size * urgency * express
//	price    = max(base, computed), rounded to cents
//	earning  = price * (1 - commission), rounded to cents
package tariff

import (
	"context"
	"errors"
	"fmt"

	"courierhub/internal/core/domain/model/order"
	"courierhub/internal/core/ports"
	"courierhub/internal/pkg/errs"

	"github.com/govalues/decimal"
)

const moneyScale = 2

var one = decimal.MustNew(1, 0)

type Config struct {
	BasePrice          float64
	PerKm              float64
	PerMinute          float64
	CommissionRate     float64
	MaxDistanceKm      float64
	ExpressMultiplier  float64
	SizeMultipliers    map[order.Size]float64
	UrgencyMultipliers map[order.Urgency]float64
}

func DefaultConfig() Config {
	return Config{
		BasePrice:         20,
		PerKm:             5,
		PerMinute:         0.5,
		CommissionRate:    0.2,
		MaxDistanceKm:     50,
		ExpressMultiplier: 1.5,
		SizeMultipliers: map[order.Size]float64{
			order.SizeSmall:      1.0,
			order.SizeMedium:     1.2,
			order.SizeLarge:      1.5,
			order.SizeExtraLarge: 2.0,
		},
		UrgencyMultipliers: map[order.Urgency]float64{
			order.UrgencyLow:    0.9,
			order.UrgencyNormal: 1.0,
			order.UrgencyHigh:   1.3,
			order.UrgencyUrgent: 1.6,
		},
	}
}

type Quoter struct {
	maxDistanceKm float64

	base      decimal.Decimal
	perKm     decimal.Decimal
	perMinute decimal.Decimal
	keepShare decimal.Decimal
	express   decimal.Decimal
	sizes     map[order.Size]decimal.Decimal
	urgencies map[order.Urgency]decimal.Decimal
}

func NewQuoter(cfg Config) (*Quoter, error) {
	var problems []error
	if cfg.BasePrice <= 0 {
		problems = append(problems, errs.NewValueIsOutOfRangeError("basePrice", cfg.BasePrice, "0 (exclusive)", "unbounded"))
	}
	if cfg.PerKm < 0 {
		problems = append(problems, errs.NewValueIsOutOfRangeError("perKm", cfg.PerKm, 0, "unbounded"))
	}
	if cfg.PerMinute < 0 {
		problems = append(problems, errs.NewValueIsOutOfRangeError("perMinute", cfg.PerMinute, 0, "unbounded"))
	}
	if cfg.CommissionRate <= 0 || cfg.CommissionRate >= 1 {
		problems = append(problems, errs.NewValueIsOutOfRangeError("commissionRate", cfg.CommissionRate, "0 (exclusive)", "1 (exclusive)"))
	}
	if cfg.MaxDistanceKm <= 0 {
		problems = append(problems, errs.NewValueIsOutOfRangeError("maxDistanceKm", cfg.MaxDistanceKm, "0 (exclusive)", "unbounded"))
	}
	if cfg.ExpressMultiplier <= 0 {
		problems = append(problems, errs.NewValueIsOutOfRangeError("expressMultiplier", cfg.ExpressMultiplier, "0 (exclusive)", "unbounded"))
	}
	if err := errors.Join(problems...); err != nil {
		return nil, err
	}

	q := &Quoter{
		maxDistanceKm: cfg.MaxDistanceKm,
		sizes:         make(map[order.Size]decimal.Decimal, len(cfg.SizeMultipliers)),
		urgencies:     make(map[order.Urgency]decimal.Decimal, len(cfg.UrgencyMultipliers)),
	}

	var err error
	if q.base, err = toDecimal("basePrice", cfg.BasePrice); err != nil {
		return nil, err
	}
	if q.perKm, err = toDecimal("perKm", cfg.PerKm); err != nil {
		return nil, err
	}
	if q.perMinute, err = toDecimal("perMinute", cfg.PerMinute); err != nil {
		return nil, err
	}
	commission, err := toDecimal("commissionRate", cfg.CommissionRate)
	if err != nil {
		return nil, err
	}
	if q.keepShare, err = one.Sub(commission); err != nil {
		return nil, errs.NewValueIsInvalidErrorWithCause("commissionRate", err)
	}
	if q.express, err = toDecimal("expressMultiplier", cfg.ExpressMultiplier); err != nil {
		return nil, err
	}
	for size, m := range cfg.SizeMultipliers {
		if q.sizes[size], err = toMultiplier("sizeMultipliers."+string(size), m); err != nil {
			return nil, err
		}
	}
	for urgency, m := range cfg.UrgencyMultipliers {
		if q.urgencies[urgency], err = toMultiplier("urgencyMultipliers."+string(urgency), m); err != nil {
			return nil, err
		}
	}
	return q, nil
}

func (q *Quoter) Quote(_ context.Context, req ports.QuoteRequest) (ports.Quote, error) {
	if req.DistanceKm <= 0 || req.DistanceKm > q.maxDistanceKm {
		return ports.Quote{}, errs.NewValueIsOutOfRangeError("distanceKm", req.DistanceKm, "0 (exclusive)", q.maxDistanceKm)
	}
	if req.DurationMin < 0 {
		return ports.Quote{}, errs.NewValueIsOutOfRangeError("durationMin", req.DurationMin, 0, "unbounded")
	}
	if err := errors.Join(req.Size.Validate(), req.DeliveryType.Validate(), req.Urgency.Validate()); err != nil {
		return ports.Quote{}, err
	}

	size, ok := q.sizes[req.Size]
	if !ok {
		return ports.Quote{}, errs.NewValueIsInvalidErrorWithCause("packageSize", fmt.Errorf("no multiplier for %s", req.Size))
	}
	urgency, ok := q.urgencies[req.Urgency]
	if !ok {
		return ports.Quote{}, errs.NewValueIsInvalidErrorWithCause("urgency", fmt.Errorf("no multiplier for %s", req.Urgency))
	}
	express := one
	if req.DeliveryType == order.DeliveryExpress {
		express = q.express
	}

	distance, err := toDecimal("distanceKm", req.DistanceKm)
	if err != nil {
		return ports.Quote{}, err
	}
	duration, err := toDecimal("durationMin", req.DurationMin)
	if err != nil {
		return ports.Quote{}, err
	}

	c := calc{}
	raw := c.add(q.base, c.mul(q.perKm, distance), c.mul(q.perMinute, duration))
	computed := c.mul(raw, size, urgency, express)
	if c.err != nil {
		return ports.Quote{}, fmt.Errorf("compute price: %w", c.err)
	}

	price := computed
	if price.Cmp(q.base) < 0 {
		price = q.base
	}
	price = price.Round(moneyScale)

	earning := c.mul(price, q.keepShare).Floor(moneyScale)
	if c.err != nil {
		return ports.Quote{}, fmt.Errorf("compute earning: %w", c.err)
	}

	return ports.Quote{Price: price, CourierEarning: earning}, nil
}

// calc chains decimal arithmetic and keeps the first overflow error.
type calc struct {
	err error
}

func (c *calc) add(first decimal.Decimal, rest ...decimal.Decimal) decimal.Decimal {
	acc := first
	for _, d := range rest {
		if c.err != nil {
			return acc
		}
		acc, c.err = acc.Add(d)
	}
	return acc
}

func (c *calc) mul(first decimal.Decimal, rest ...decimal.Decimal) decimal.Decimal {
	acc := first
	for _, d := range rest {
		if c.err != nil {
			return acc
		}
		acc, c.err = acc.Mul(d)
	}
	return acc
}

func toDecimal(param string, f float64) (decimal.Decimal, error) {
	d, err := decimal.NewFromFloat64(f)
	if err != nil {
		return decimal.Decimal{}, errs.NewValueIsInvalidErrorWithCause(param, err)
	}
	return d, nil
}

func toMultiplier(param string, f float64) (decimal.Decimal, error) {
	if f <= 0 {
		return decimal.Decimal{}, errs.NewValueIsOutOfRangeError(param, f, "0 (exclusive)", "unbounded")
	}
	return toDecimal(param, f)
}

var _ ports.PriceQuoter = (*Quoter)(nil)
