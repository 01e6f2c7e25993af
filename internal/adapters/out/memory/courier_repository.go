package memory

import (
	"context"
	"slices"
	"strings"

	"courierhub/internal/core/domain/model/courier"
	"courierhub/internal/core/domain/model/kernel"
	"courierhub/internal/pkg/errs"
)

type courierRepository struct {
	uow *UnitOfWork
}

func (r *courierRepository) Save(_ context.Context, aggregate *courier.Courier) error {
	if err := aggregate.Validate(); err != nil {
		return err
	}
	return r.uow.write(func(c *changes) error {
		c.couriers[aggregate.ID()] = aggregate.Snapshot()
		return nil
	})
}

// state merges committed state with the open transaction's staged writes.
func (r *courierRepository) state(id kernel.UUID) (courier.State, bool) {
	c := r.uow.staged()
	st, ok := r.uow.store.committedCourier(id)
	if saved, isSaved := c.couriers[id]; isSaved {
		if ok {
			saved.ActiveOrders = st.ActiveOrders
		}
		st, ok = saved, true
	}
	if !ok {
		return courier.State{}, false
	}
	for _, d := range c.deltas {
		if d.id == id {
			st.ActiveOrders += d.delta
		}
	}
	return st, true
}

func (r *courierRepository) Get(_ context.Context, id kernel.UUID) (*courier.Courier, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	st, ok := r.state(id)
	if !ok {
		return nil, errs.NewObjectNotFoundError("courier", id.String())
	}
	return courier.RestoreCourier(st)
}

func (r *courierRepository) GetAvailable(_ context.Context) ([]*courier.Courier, error) {
	ids := make(map[kernel.UUID]struct{})
	for _, st := range r.uow.store.courierStates() {
		ids[st.ID] = struct{}{}
	}
	for id := range r.uow.staged().couriers {
		ids[id] = struct{}{}
	}

	var out []*courier.Courier
	for id := range ids {
		st, _ := r.state(id)
		if !st.Available {
			continue
		}
		c, err := courier.RestoreCourier(st)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b *courier.Courier) int {
		return strings.Compare(a.ID().String(), b.ID().String())
	})
	return out, nil
}

func (r *courierRepository) IncrementActive(_ context.Context, id kernel.UUID, maxActive int) error {
	return r.move(id, 1, maxActive)
}

func (r *courierRepository) DecrementActive(_ context.Context, id kernel.UUID) error {
	return r.move(id, -1, 0)
}

func (r *courierRepository) move(id kernel.UUID, delta, maxActive int) error {
	if err := id.Validate(); err != nil {
		return err
	}
	return r.uow.write(func(c *changes) error {
		st, ok := r.state(id)
		if !ok {
			return errs.NewObjectNotFoundError("courier", id.String())
		}
		if delta > 0 && st.ActiveOrders >= maxActive {
			return courier.ErrActiveOrderLimitReached
		}
		if delta < 0 && st.ActiveOrders == 0 {
			return courier.ErrNoActiveOrders
		}
		c.deltas = append(c.deltas, courierDelta{id: id, delta: delta, max: maxActive})
		return nil
	})
}
