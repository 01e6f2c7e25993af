package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"courierhub/internal/core/domain/model/attempt"
	"courierhub/internal/core/domain/model/kernel"
	"courierhub/internal/core/domain/model/notification"
	"courierhub/internal/core/domain/model/order"
	"courierhub/internal/core/ports"
	"courierhub/internal/pkg/clock"
)

// Broadcaster offers an order to the candidates of an attempt.
//
// Recording and publishing are split so callers can record inside the
// transaction that opened the attempt and publish once it has committed.
type Broadcaster struct {
	sender sender
	clock  clock.Clock
}

func NewBroadcaster(
	notifier ports.Notifier,
	audit ports.AuditSink,
	metrics ports.DispatchMetrics,
	clk clock.Clock,
	logger *slog.Logger,
) *Broadcaster {
	return &Broadcaster{
		sender: sender{
			notifier: notifier,
			audit:    audit,
			metrics:  metrics,
			logger:   logger.With("component", "dispatch_broadcaster"),
		},
		clock: clk,
	}
}

// Record stores the attempt and reports whether it is new. A repeated record
// of the same (orderId, attemptSeq) changes nothing.
func (b *Broadcaster) Record(ctx context.Context, attempts ports.AttemptRepository, a *attempt.Attempt) (bool, error) {
	fresh, err := attempts.Record(ctx, a)
	if err != nil {
		return false, fmt.Errorf("record attempt %d of order %s: %w", a.Seq(), a.OrderID(), err)
	}
	return fresh, nil
}

// Publish sends NEW_ORDER to every candidate of the attempt.
func (b *Broadcaster) Publish(ctx context.Context, o *order.Order, a *attempt.Attempt, distances map[kernel.UUID]float64) {
	candidates := a.Candidates()
	b.sender.metrics.Broadcast(a.Tier(), len(candidates))

	for _, courierID := range candidates {
		payload := offerPayload(o, a, distances[courierID])
		ev, err := notification.NewEvent(notification.NewOrder, o.ID(), o.TrackingCode(),
			notification.CourierRecipient(courierID), a.Seq(), payload, b.clock.Now())
		if err != nil {
			b.sender.logger.ErrorContext(ctx, "Build offer event", "order_id", o.ID().String(), "error", err)
			continue
		}
		b.sender.send(ctx, ev)
	}

	b.sender.logger.InfoContext(ctx, "Order broadcast",
		"order_id", o.ID().String(), "attempt_seq", a.Seq(), "tier", a.Tier(), "candidates", len(candidates))
}

func offerPayload(o *order.Order, a *attempt.Attempt, distanceKm float64) notification.OfferPayload {
	return notification.OfferPayload{
		Price:            o.Fare().Price().String(),
		CourierEarning:   o.Fare().CourierEarning().String(),
		Pickup:           placeSummary(o.Pickup()),
		Delivery:         placeSummary(o.Delivery()),
		PackageSize:      string(o.Parcel().Size()),
		PackageType:      o.Parcel().Kind(),
		Urgency:          string(o.Urgency()),
		DeliveryType:     string(o.DeliveryType()),
		DistanceToPickup: distanceKm,
		Tier:             a.Tier(),
		ExpiresAt:        a.ExpiresAt(),
	}
}

func placeSummary(p order.Place) notification.PlaceSummary {
	return notification.PlaceSummary{
		Lat:     p.Point().Latitude(),
		Lon:     p.Point().Longitude(),
		Address: p.Address(),
	}
}
