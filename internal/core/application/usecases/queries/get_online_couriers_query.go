package queries

import (
	"errors"

	"courierhub/internal/core/domain/model/kernel"
	"courierhub/internal/pkg/guard"
)

var ErrGetOnlineCouriersQueryIsNotConstructed = errors.New(
	"GetOnlineCouriersQuery must be created via NewGetOnlineCouriersQuery constructor",
)

// GetOnlineCouriersQuery lists couriers currently accepting work.
type GetOnlineCouriersQuery struct {
	guard guard.ConstructorGuard
}

func NewGetOnlineCouriersQuery() GetOnlineCouriersQuery {
	return GetOnlineCouriersQuery{guard: guard.NewConstructorGuard()}
}

func (q GetOnlineCouriersQuery) Validate() error {
	return q.guard.Validate(ErrGetOnlineCouriersQueryIsNotConstructed)
}

type GetOnlineCouriersQueryResponse struct {
	ID           kernel.UUID
	Name         string
	Location     kernel.GeoPoint
	Rating       float64
	ActiveOrders int
}
