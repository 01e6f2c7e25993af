// Package ports defines the contracts between the dispatch core and its
// infrastructure: storage, real-time delivery, pricing, audit and metrics.
// Adapters under internal/adapters implement them; application code depends
// only on these interfaces.
package ports

import (
	"context"
	"errors"

	"courierhub/internal/core/domain/model/kernel"
	"courierhub/internal/core/domain/model/order"
)

// ErrOrderAlreadyExists is returned by Add, or by the commit that carries it,
// when an order with the same id is already stored.
var ErrOrderAlreadyExists = errors.New("order already exists")

// OrderRepository defines the persistence contract for order aggregates.
type OrderRepository interface {
	// Add persists a new order. The order's version becomes 1. A duplicate id
	// yields ErrOrderAlreadyExists.
	Add(ctx context.Context, aggregate *order.Order) error

	// Update writes the order only if the stored version still equals
	// aggregate.Version(); otherwise it returns errs.VersionIsInvalidError and
	// leaves the row untouched. On success the aggregate's version is bumped.
	//
	// This is the compare-and-swap the acceptance arbiter relies on: two
	// transactions that both read version N can never both write N+1.
	Update(ctx context.Context, aggregate *order.Order) error

	// Get returns errs.ObjectNotFoundError when the order does not exist.
	Get(ctx context.Context, id kernel.UUID) (*order.Order, error)

	// GetPending returns up to limit PENDING orders, oldest first.
	GetPending(ctx context.Context, limit int) ([]*order.Order, error)

	CountPending(ctx context.Context) (int64, error)
}
