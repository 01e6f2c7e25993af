package memory

import (
	"context"

	"courierhub/internal/core/ports"
)

// UnitOfWork is not safe for concurrent use; create one per operation.
type UnitOfWork struct {
	store *Store
	tx    *changes
}

func (u *UnitOfWork) Begin(_ context.Context) error {
	if u.tx == nil {
		u.tx = newChanges()
	}
	return nil
}

func (u *UnitOfWork) Commit(_ context.Context) error {
	if u.tx == nil {
		return ErrNoTransaction
	}
	tx := u.tx
	u.tx = nil
	return u.store.apply(tx)
}

func (u *UnitOfWork) Rollback(_ context.Context) error {
	if u.tx == nil {
		return ErrNoTransaction
	}
	u.tx = nil
	return nil
}

func (u *UnitOfWork) OrderRepository() ports.OrderRepository {
	return &orderRepository{uow: u}
}

func (u *UnitOfWork) CourierRepository() ports.CourierRepository {
	return &courierRepository{uow: u}
}

func (u *UnitOfWork) AttemptRepository() ports.AttemptRepository {
	return &attemptRepository{uow: u}
}

// write runs fn against the open transaction, or against a private one
// that is committed straight away.
func (u *UnitOfWork) write(fn func(c *changes) error) error {
	if u.tx != nil {
		return fn(u.tx)
	}
	c := newChanges()
	if err := fn(c); err != nil {
		return err
	}
	return u.store.apply(c)
}

// staged returns the open transaction's changes, or an empty set.
func (u *UnitOfWork) staged() *changes {
	if u.tx != nil {
		return u.tx
	}
	return newChanges()
}
