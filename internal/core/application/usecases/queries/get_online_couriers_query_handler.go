package queries

import (
	"context"

	"courierhub/internal/core/domain/model/kernel"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GetOnlineCouriersQueryHandler struct {
	db *gorm.DB
}

func NewGetOnlineCouriersQueryHandler(db *gorm.DB) GetOnlineCouriersQueryHandler {
	return GetOnlineCouriersQueryHandler{db: db}
}

// Handle returns available couriers sorted by name.
func (h GetOnlineCouriersQueryHandler) Handle(
	ctx context.Context,
	query GetOnlineCouriersQuery,
) ([]GetOnlineCouriersQueryResponse, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	rows, err := h.db.WithContext(ctx).Raw(`
		SELECT
			id,
			name,
			location_lat,
			location_lon,
			rating,
			active_orders
		FROM couriers
		WHERE available
		ORDER BY name, id
	`).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	couriers := make([]GetOnlineCouriersQueryResponse, 0)
	for rows.Next() {
		var (
			c        GetOnlineCouriersQueryResponse
			id       uuid.UUID
			lat, lon float64
		)
		if err = rows.Scan(&id, &c.Name, &lat, &lon, &c.Rating, &c.ActiveOrders); err != nil {
			return nil, err
		}

		if c.ID, err = kernel.UUIDFromBytes(id[:]); err != nil {
			return nil, err
		}
		if c.Location, err = kernel.NewGeoPoint(lat, lon); err != nil {
			return nil, err
		}
		couriers = append(couriers, c)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return couriers, nil
}
