package ports

import (
	"context"

	"courierhub/internal/core/domain/model/courier"
	"courierhub/internal/core/domain/model/kernel"
)

// CourierRepository stores the dispatch core's projection of couriers.
//
// Presence and profile writes never touch the active order counter; the
// counter moves only through IncrementActive and DecrementActive, always in the
// same transaction as the order status change that causes it.
type CourierRepository interface {
	// Save inserts the courier or replaces its profile and presence.
	Save(ctx context.Context, aggregate *courier.Courier) error

	Get(ctx context.Context, id kernel.UUID) (*courier.Courier, error)

	// GetAvailable returns every courier currently accepting work.
	GetAvailable(ctx context.Context) ([]*courier.Courier, error)

	// IncrementActive adds one active order as a guarded update. It returns
	// courier.ErrActiveOrderLimitReached when the counter is already at
	// maxActive and errs.ObjectNotFoundError for an unknown courier.
	IncrementActive(ctx context.Context, id kernel.UUID, maxActive int) error

	// DecrementActive returns courier.ErrNoActiveOrders at zero.
	DecrementActive(ctx context.Context, id kernel.UUID) error
}
