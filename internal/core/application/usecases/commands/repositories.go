// Package commands contains business operations that modify system state.
// Every command follows the same shape: a guard-constructed command value,
// and a handler that validates it, opens a unit of work, mutates aggregates,
// commits, and only then talks to the outside world.
package commands

import (
	"context"

	"courierhub/internal/core/ports"
)

// Narrow unit of work views for commands that touch a single aggregate.
// The dispatch commands use ports.UnitOfWork directly.
type (
	// TxManager handles database transaction lifecycle.
	TxManager interface {
		Begin(ctx context.Context) error
		Commit(ctx context.Context) error
		Rollback(ctx context.Context) error
	}

	// CourierRepoFactory provides access to courier repository within a transaction.
	CourierRepoFactory interface {
		CourierRepository() ports.CourierRepository
	}

	// CourierUoW manages transactions for courier-only operations.
	CourierUoW interface {
		TxManager
		CourierRepoFactory
	}

	// CourierUoWFactory creates new courier unit of work instances.
	CourierUoWFactory interface {
		Create() CourierUoW
	}
)
