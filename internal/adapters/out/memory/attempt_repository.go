package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"courierhub/internal/core/domain/model/attempt"
	"courierhub/internal/core/domain/model/kernel"
	"courierhub/internal/core/domain/model/order"
	"courierhub/internal/pkg/errs"
)

type attemptRepository struct {
	uow *UnitOfWork
}

func (r *attemptRepository) Record(_ context.Context, a *attempt.Attempt) (bool, error) {
	if err := a.Validate(); err != nil {
		return false, err
	}
	fresh := false
	err := r.uow.write(func(c *changes) error {
		k := attemptKey{orderID: a.OrderID(), seq: a.Seq()}
		if _, ok := c.attempts[k]; ok {
			return nil
		}
		if _, ok := r.uow.store.committedAttempt(k); ok {
			return nil
		}
		c.attempts[k] = a.Snapshot()
		fresh = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return fresh, nil
}

func (r *attemptRepository) Get(_ context.Context, orderID kernel.UUID, seq int) (*attempt.Attempt, error) {
	k := attemptKey{orderID: orderID, seq: seq}
	if st, ok := r.uow.staged().attempts[k]; ok {
		return attempt.RestoreAttempt(st)
	}
	st, ok := r.uow.store.committedAttempt(k)
	if !ok {
		return nil, errs.NewObjectNotFoundError("attempt", fmt.Sprintf("%s#%d", orderID, seq))
	}
	return attempt.RestoreAttempt(st)
}

func (r *attemptRepository) GetLatest(ctx context.Context, orderID kernel.UUID) (*attempt.Attempt, error) {
	latest := 0
	for _, st := range r.uow.store.attemptStates() {
		if st.OrderID == orderID && st.Seq > latest {
			latest = st.Seq
		}
	}
	for k := range r.uow.staged().attempts {
		if k.orderID == orderID && k.seq > latest {
			latest = k.seq
		}
	}
	if latest == 0 {
		return nil, errs.NewObjectNotFoundError("attempt", orderID.String())
	}
	return r.Get(ctx, orderID, latest)
}

func (r *attemptRepository) GetExpired(_ context.Context, now time.Time, limit int) ([]*attempt.Attempt, error) {
	var expired []attempt.State
	for _, o := range r.uow.store.orderStates() {
		if o.Status != order.Pending {
			continue
		}
		st, ok := r.uow.store.committedAttempt(attemptKey{orderID: o.ID, seq: o.AttemptSeq})
		if !ok || now.Before(st.ExpiresAt) {
			continue
		}
		expired = append(expired, st)
	}
	slices.SortFunc(expired, func(a, b attempt.State) int {
		return a.ExpiresAt.Compare(b.ExpiresAt)
	})
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}

	out := make([]*attempt.Attempt, 0, len(expired))
	for _, st := range expired {
		a, err := attempt.RestoreAttempt(st)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
