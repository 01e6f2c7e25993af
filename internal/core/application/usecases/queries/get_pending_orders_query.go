package queries

import (
	"errors"
	"time"

	"courierhub/internal/core/domain/model/kernel"
	"courierhub/internal/pkg/errs"
	"courierhub/internal/pkg/guard"
)

const MaxPendingOrdersLimit = 500

var ErrGetPendingOrdersQueryIsNotConstructed = errors.New(
	"GetPendingOrdersQuery must be created via NewGetPendingOrdersQuery constructor",
)

// GetPendingOrdersQuery lists the dispatch backlog, oldest first.
type GetPendingOrdersQuery struct {
	limit int

	guard guard.ConstructorGuard
}

func NewGetPendingOrdersQuery(limit int) (GetPendingOrdersQuery, error) {
	if limit < 1 || limit > MaxPendingOrdersLimit {
		return GetPendingOrdersQuery{}, errs.NewValueIsOutOfRangeError("limit", limit, 1, MaxPendingOrdersLimit)
	}
	return GetPendingOrdersQuery{limit: limit, guard: guard.NewConstructorGuard()}, nil
}

func (q GetPendingOrdersQuery) Validate() error {
	return q.guard.Validate(ErrGetPendingOrdersQueryIsNotConstructed)
}

func (q GetPendingOrdersQuery) Limit() int {
	return q.limit
}

type GetPendingOrdersQueryResponse struct {
	ID           kernel.UUID
	TrackingCode string
	CompanyID    kernel.UUID
	AttemptSeq   int
	Tier         int
	Candidates   int
	Price        string
	CreatedAt    time.Time
	// ExpiresAt is nil while the current attempt has not been broadcast yet.
	ExpiresAt *time.Time
}
