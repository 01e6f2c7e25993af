// Package memory is an in-process implementation of the storage ports.
//
// Transactions are optimistic: a UnitOfWork stages its writes and Commit
// validates them against the committed state under a single lock, with the
// same conflict rules the postgres adapter enforces through guarded UPDATEs:
//
//   - an order write fails with errs.VersionIsInvalidError when the stored
//     version moved since the order was read
//   - an active-order increment fails with courier.ErrActiveOrderLimitReached
//     when the committed counter is already at the limit
//   - a recorded attempt is never overwritten
//
// Nothing from a failed Commit is applied. Repositories used without Begin
// commit every call on its own.
package memory

import (
	"errors"
	"fmt"
	"sync"

	"courierhub/internal/core/domain/model/attempt"
	"courierhub/internal/core/domain/model/courier"
	"courierhub/internal/core/domain/model/kernel"
	"courierhub/internal/core/domain/model/order"
	"courierhub/internal/core/ports"
	"courierhub/internal/pkg/errs"
)

var ErrNoTransaction = errors.New("memory: no active transaction")

type attemptKey struct {
	orderID kernel.UUID
	seq     int
}

// Store holds committed state and acts as the UnitOfWorkFactory.
type Store struct {
	mu       sync.Mutex
	orders   map[kernel.UUID]order.State
	couriers map[kernel.UUID]courier.State
	attempts map[attemptKey]attempt.State
}

func NewStore() *Store {
	return &Store{
		orders:   make(map[kernel.UUID]order.State),
		couriers: make(map[kernel.UUID]courier.State),
		attempts: make(map[attemptKey]attempt.State),
	}
}

func (s *Store) Create() ports.UnitOfWork {
	return &UnitOfWork{store: s}
}

type orderWrite struct {
	state    order.State
	expected int64
	insert   bool
}

type courierDelta struct {
	id    kernel.UUID
	delta int
	max   int
}

type changes struct {
	orders   map[kernel.UUID]orderWrite
	couriers map[kernel.UUID]courier.State
	deltas   []courierDelta
	attempts map[attemptKey]attempt.State
}

func newChanges() *changes {
	return &changes{
		orders:   make(map[kernel.UUID]orderWrite),
		couriers: make(map[kernel.UUID]courier.State),
		attempts: make(map[attemptKey]attempt.State),
	}
}

func (s *Store) committedOrder(id kernel.UUID) (order.State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.orders[id]
	return st, ok
}

func (s *Store) committedCourier(id kernel.UUID) (courier.State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.couriers[id]
	return st, ok
}

func (s *Store) committedAttempt(k attemptKey) (attempt.State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.attempts[k]
	return st, ok
}

func (s *Store) orderStates() []order.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]order.State, 0, len(s.orders))
	for _, st := range s.orders {
		out = append(out, st)
	}
	return out
}

func (s *Store) courierStates() []courier.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]courier.State, 0, len(s.couriers))
	for _, st := range s.couriers {
		out = append(out, st)
	}
	return out
}

func (s *Store) attemptStates() []attempt.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]attempt.State, 0, len(s.attempts))
	for _, st := range s.attempts {
		out = append(out, st)
	}
	return out
}

// apply validates every staged write against committed state and then
// applies all of them, or none.
func (s *Store) apply(c *changes) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, w := range c.orders {
		stored, exists := s.orders[id]
		switch {
		case w.insert && exists:
			return fmt.Errorf("%w: %s", ports.ErrOrderAlreadyExists, id)
		case !w.insert && !exists:
			return errs.NewObjectNotFoundError("order", id.String())
		case !w.insert && stored.Version != w.expected:
			return errs.NewVersionIsInvalidErrorWithCause("order",
				fmt.Errorf("order %s: expected version %d, stored %d", id, w.expected, stored.Version))
		}
	}

	counts := make(map[kernel.UUID]int)
	countOf := func(id kernel.UUID) (int, bool) {
		if n, ok := counts[id]; ok {
			return n, true
		}
		if st, ok := s.couriers[id]; ok {
			return st.ActiveOrders, true
		}
		if st, ok := c.couriers[id]; ok {
			return st.ActiveOrders, true
		}
		return 0, false
	}
	for _, d := range c.deltas {
		n, ok := countOf(d.id)
		if !ok {
			return errs.NewObjectNotFoundError("courier", d.id.String())
		}
		switch {
		case d.delta > 0 && n >= d.max:
			return courier.ErrActiveOrderLimitReached
		case d.delta < 0 && n == 0:
			return courier.ErrNoActiveOrders
		}
		counts[d.id] = n + d.delta
	}

	for id, w := range c.orders {
		s.orders[id] = w.state
	}
	for id, st := range c.couriers {
		if stored, ok := s.couriers[id]; ok {
			st.ActiveOrders = stored.ActiveOrders
		}
		s.couriers[id] = st
	}
	for id, n := range counts {
		st := s.couriers[id]
		st.ActiveOrders = n
		s.couriers[id] = st
	}
	for k, st := range c.attempts {
		if _, exists := s.attempts[k]; !exists {
			s.attempts[k] = st
		}
	}
	return nil
}
