// Package queries holds the read side: plain SQL projections that bypass the
// aggregates and answer status and backlog questions.
package queries

import (
	"errors"
	"time"

	"courierhub/internal/core/domain/model/kernel"
	"courierhub/internal/pkg/errs"
	"courierhub/internal/pkg/guard"
)

var ErrGetOrderStatusQueryIsNotConstructed = errors.New(
	"GetOrderStatusQuery must be created via NewGetOrderStatusQuery constructor",
)

// Outcome summarises where an order stands for the company that placed it.
type Outcome string

const (
	OutcomeSearching      Outcome = "SEARCHING"
	OutcomeAssigned       Outcome = "ASSIGNED"
	OutcomeDelivered      Outcome = "DELIVERED"
	OutcomeNoCourierFound Outcome = "NO_COURIER_FOUND"
	OutcomeCancelled      Outcome = "CANCELLED"
	OutcomeRejected       Outcome = "REJECTED"
	OutcomeFailed         Outcome = "FAILED"
)

type GetOrderStatusQuery struct {
	orderID kernel.UUID

	guard guard.ConstructorGuard
}

func NewGetOrderStatusQuery(orderID kernel.UUID) (GetOrderStatusQuery, error) {
	if err := orderID.Validate(); err != nil {
		return GetOrderStatusQuery{}, errs.NewValueIsRequiredErrorWithCause("orderId", err)
	}
	return GetOrderStatusQuery{orderID: orderID, guard: guard.NewConstructorGuard()}, nil
}

func (q GetOrderStatusQuery) Validate() error {
	return q.guard.Validate(ErrGetOrderStatusQueryIsNotConstructed)
}

func (q GetOrderStatusQuery) OrderID() kernel.UUID {
	return q.orderID
}

// GetOrderStatusQueryResponse is the status read model. CurrentAttempt is nil
// when the order's current sequence was never broadcast, which happens after
// a cancel.
type GetOrderStatusQueryResponse struct {
	ID             kernel.UUID
	TrackingCode   string
	CompanyID      kernel.UUID
	Status         string
	Outcome        Outcome
	CourierID      *kernel.UUID
	AttemptSeq     int
	Price          string
	CourierEarning string
	CancelReason   string
	CreatedAt      time.Time
	AcceptedAt     *time.Time
	PickedUpAt     *time.Time
	DeliveredAt    *time.Time
	ClosedAt       *time.Time
	CurrentAttempt *AttemptSummary
}

type AttemptSummary struct {
	Seq        int
	Tier       int
	Candidates int
	ExpiresAt  time.Time
}
