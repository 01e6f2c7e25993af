package memory

import (
	"context"
	"fmt"
	"slices"

	"courierhub/internal/core/domain/model/kernel"
	"courierhub/internal/core/domain/model/order"
	"courierhub/internal/core/ports"
	"courierhub/internal/pkg/errs"
)

type orderRepository struct {
	uow *UnitOfWork
}

func (r *orderRepository) Add(_ context.Context, aggregate *order.Order) error {
	if err := aggregate.Validate(); err != nil {
		return err
	}
	return r.uow.write(func(c *changes) error {
		id := aggregate.ID()
		if _, ok := c.orders[id]; ok {
			return fmt.Errorf("%w: %s", ports.ErrOrderAlreadyExists, id)
		}
		if _, ok := r.uow.store.committedOrder(id); ok {
			return fmt.Errorf("%w: %s", ports.ErrOrderAlreadyExists, id)
		}

		st := aggregate.Snapshot()
		st.Version = 1
		c.orders[id] = orderWrite{state: st, insert: true}
		aggregate.CommitVersion(1)
		return nil
	})
}

func (r *orderRepository) Update(_ context.Context, aggregate *order.Order) error {
	if err := aggregate.Validate(); err != nil {
		return err
	}
	return r.uow.write(func(c *changes) error {
		id := aggregate.ID()

		w, staged := c.orders[id]
		if !staged {
			stored, ok := r.uow.store.committedOrder(id)
			if !ok {
				return errs.NewObjectNotFoundError("order", id.String())
			}
			w = orderWrite{state: stored, expected: stored.Version}
		}
		if w.state.Version != aggregate.Version() {
			return errs.NewVersionIsInvalidErrorWithCause("order",
				fmt.Errorf("order %s: expected version %d, stored %d", id, aggregate.Version(), w.state.Version))
		}

		next := aggregate.Version() + 1
		w.state = aggregate.Snapshot()
		w.state.Version = next
		c.orders[id] = w
		aggregate.CommitVersion(next)
		return nil
	})
}

func (r *orderRepository) Get(_ context.Context, id kernel.UUID) (*order.Order, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	if w, ok := r.uow.staged().orders[id]; ok {
		return order.RestoreOrder(w.state)
	}
	st, ok := r.uow.store.committedOrder(id)
	if !ok {
		return nil, errs.NewObjectNotFoundError("order", id.String())
	}
	return order.RestoreOrder(st)
}

func (r *orderRepository) pending() []order.State {
	c := r.uow.staged()
	var out []order.State
	for _, st := range r.uow.store.orderStates() {
		if w, ok := c.orders[st.ID]; ok {
			st = w.state
		}
		if st.Status == order.Pending {
			out = append(out, st)
		}
	}
	for _, w := range c.orders {
		if w.insert && w.state.Status == order.Pending {
			out = append(out, w.state)
		}
	}
	slices.SortFunc(out, func(a, b order.State) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out
}

func (r *orderRepository) GetPending(_ context.Context, limit int) ([]*order.Order, error) {
	states := r.pending()
	if limit > 0 && len(states) > limit {
		states = states[:limit]
	}
	orders := make([]*order.Order, 0, len(states))
	for _, st := range states {
		o, err := order.RestoreOrder(st)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func (r *orderRepository) CountPending(_ context.Context) (int64, error) {
	return int64(len(r.pending())), nil
}
