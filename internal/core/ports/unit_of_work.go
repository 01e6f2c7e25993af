package ports

import (
	"context"
	"errors"
)

// ErrStorageContention marks a transaction that lost a race at the storage
// level (serialization failure, deadlock, lock timeout). Retrying is safe.
var ErrStorageContention = errors.New("storage contention")

// UnitOfWorkFactory creates new UnitOfWork instances for each request/command.
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// UnitOfWork represents a business transaction boundary.
// Repositories obtained after Begin share its transaction; repositories
// obtained without Begin write immediately.
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	CourierRepository() CourierRepository
	OrderRepository() OrderRepository
	AttemptRepository() AttemptRepository
}
