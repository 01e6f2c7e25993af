// Package attempt models one broadcast round of an order: which couriers were
// offered the order, under which escalation tier, and until when the offer
// stands. The arbiter reads it to reject couriers that were never offered the
// order; only the broadcaster and the timeout supervisor write it.
package attempt

import (
	"errors"
	"fmt"
	"time"

	"courierhub/internal/core/domain/model/kernel"
	"courierhub/internal/pkg/errs"
)

var ErrAttemptIsNotConstructed = errors.New("Attempt must be created via NewAttempt or RestoreAttempt constructor")

type Attempt struct {
	orderID     kernel.UUID
	seq         int
	tier        int
	candidates  []kernel.UUID
	broadcastAt time.Time
	expiresAt   time.Time

	isConstructed bool
}

// NewAttempt opens attempt seq of an order. Duplicate candidates are dropped
// keeping the first occurrence. An attempt without candidates expires at once
// so the supervisor escalates it on its next tick.
func NewAttempt(
	orderID kernel.UUID,
	seq int,
	tier int,
	candidates []kernel.UUID,
	broadcastAt time.Time,
	window time.Duration,
) (*Attempt, error) {
	if err := orderID.Validate(); err != nil {
		return nil, errs.NewValueIsRequiredErrorWithCause("orderId", err)
	}
	if seq < 1 {
		return nil, errs.NewValueIsOutOfRangeError("attemptSeq", seq, 1, "unbounded")
	}
	if tier < 0 {
		return nil, errs.NewValueIsOutOfRangeError("tier", tier, 0, "unbounded")
	}
	if window <= 0 {
		return nil, errs.NewValueIsInvalidErrorWithCause("window", fmt.Errorf("window must be positive, got %s", window))
	}

	unique, err := dedupe(candidates)
	if err != nil {
		return nil, err
	}

	at := broadcastAt.UTC()
	expires := at.Add(window)
	if len(unique) == 0 {
		expires = at
	}

	return &Attempt{
		orderID:       orderID,
		seq:           seq,
		tier:          tier,
		candidates:    unique,
		broadcastAt:   at,
		expiresAt:     expires,
		isConstructed: true,
	}, nil
}

type State struct {
	OrderID     kernel.UUID
	Seq         int
	Tier        int
	Candidates  []kernel.UUID
	BroadcastAt time.Time
	ExpiresAt   time.Time
}

func RestoreAttempt(s State) (*Attempt, error) {
	if err := s.OrderID.Validate(); err != nil {
		return nil, errs.NewValueIsRequiredErrorWithCause("orderId", err)
	}
	if s.Seq < 1 {
		return nil, errs.NewValueIsOutOfRangeError("attemptSeq", s.Seq, 1, "unbounded")
	}
	unique, err := dedupe(s.Candidates)
	if err != nil {
		return nil, err
	}
	return &Attempt{
		orderID:       s.OrderID,
		seq:           s.Seq,
		tier:          s.Tier,
		candidates:    unique,
		broadcastAt:   s.BroadcastAt.UTC(),
		expiresAt:     s.ExpiresAt.UTC(),
		isConstructed: true,
	}, nil
}

func (a *Attempt) Snapshot() State {
	return State{
		OrderID:     a.orderID,
		Seq:         a.seq,
		Tier:        a.tier,
		Candidates:  a.Candidates(),
		BroadcastAt: a.broadcastAt,
		ExpiresAt:   a.expiresAt,
	}
}

func (a *Attempt) Validate() error {
	if a == nil || !a.isConstructed {
		return ErrAttemptIsNotConstructed
	}
	return nil
}

func (a *Attempt) OrderID() kernel.UUID {
	return a.orderID
}

func (a *Attempt) Seq() int {
	return a.seq
}

func (a *Attempt) Tier() int {
	return a.tier
}

func (a *Attempt) BroadcastAt() time.Time {
	return a.broadcastAt
}

func (a *Attempt) ExpiresAt() time.Time {
	return a.expiresAt
}

// Candidates returns the offered couriers in broadcast order.
func (a *Attempt) Candidates() []kernel.UUID {
	out := make([]kernel.UUID, len(a.candidates))
	copy(out, a.candidates)
	return out
}

func (a *Attempt) IsEmpty() bool {
	return len(a.candidates) == 0
}

func (a *Attempt) Includes(courierID kernel.UUID) bool {
	for _, c := range a.candidates {
		if c.IsEqual(courierID) {
			return true
		}
	}
	return false
}

// Others returns every candidate except courierID.
func (a *Attempt) Others(courierID kernel.UUID) []kernel.UUID {
	out := make([]kernel.UUID, 0, len(a.candidates))
	for _, c := range a.candidates {
		if !c.IsEqual(courierID) {
			out = append(out, c)
		}
	}
	return out
}

func (a *Attempt) IsExpired(now time.Time) bool {
	return !now.Before(a.expiresAt)
}

func dedupe(ids []kernel.UUID) ([]kernel.UUID, error) {
	seen := make(map[kernel.UUID]struct{}, len(ids))
	out := make([]kernel.UUID, 0, len(ids))
	for _, id := range ids {
		if err := id.Validate(); err != nil {
			return nil, errs.NewValueIsInvalidErrorWithCause("candidates", err)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}
