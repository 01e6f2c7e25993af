package notification

import (
	"time"

	"courierhub/internal/core/domain/model/kernel"
)

type PlaceSummary struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Address string  `json:"address"`
}

// OfferPayload travels with NEW_ORDER. Money is rendered as decimal strings.
type OfferPayload struct {
	Price            string       `json:"price"`
	CourierEarning   string       `json:"courierEarning"`
	Pickup           PlaceSummary `json:"pickup"`
	Delivery         PlaceSummary `json:"delivery"`
	PackageSize      string       `json:"packageSize"`
	PackageType      string       `json:"packageType"`
	Urgency          string       `json:"urgency"`
	DeliveryType     string       `json:"deliveryType"`
	DistanceToPickup float64      `json:"distanceToPickupKm"`
	Tier             int          `json:"tier"`
	ExpiresAt        time.Time    `json:"expiresAt"`
}

// AssignmentPayload travels with ORDER_ACCEPTED and ORDER_ACCEPTED_BY_ANOTHER.
// Contact details are only filled in for the company and the winner.
type AssignmentPayload struct {
	CourierID    kernel.UUID `json:"courierId"`
	CourierName  string      `json:"courierName,omitempty"`
	CourierPhone string      `json:"courierPhone,omitempty"`
	AcceptedAt   time.Time   `json:"acceptedAt"`
}

// ClosurePayload travels with ORDER_TIMED_OUT and ORDER_CANCELLED.
// Final is false when the order was only escalated to a wider tier.
type ClosurePayload struct {
	Reason string `json:"reason"`
	Final  bool   `json:"final"`
}

// SearchPayload travels with NO_COURIER_AVAILABLE: the tier that came up
// empty and when the next one will be tried. The order stays pending.
type SearchPayload struct {
	Tier    int       `json:"tier"`
	RetryAt time.Time `json:"retryAt"`
}
