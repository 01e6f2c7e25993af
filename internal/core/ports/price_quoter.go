package ports

import (
	"context"

	"courierhub/internal/core/domain/model/order"

	"github.com/govalues/decimal"
)

type QuoteRequest struct {
	DistanceKm   float64
	DurationMin  float64
	Size         order.Size
	DeliveryType order.DeliveryType
	Urgency      order.Urgency
}

type Quote struct {
	Price          decimal.Decimal
	CourierEarning decimal.Decimal
}

// PriceQuoter prices an order once, at creation. An error aborts creation.
type PriceQuoter interface {
	Quote(ctx context.Context, req QuoteRequest) (Quote, error)
}
