// Package courierrepo persists the dispatch projection of couriers.
package courierrepo

import (
	"time"

	"courierhub/internal/core/domain/model/courier"
	"courierhub/internal/core/domain/model/kernel"

	"github.com/google/uuid"
)

// CourierDTO is the couriers table row. active_orders is written only by the
// guarded increment and decrement statements, never by Save.
type CourierDTO struct {
	ID           uuid.UUID   `gorm:"type:uuid;primaryKey"`
	Name         string      `gorm:"type:varchar(100);not null"`
	Phone        string      `gorm:"type:varchar(32);not null"`
	Location     LocationDTO `gorm:"embedded;embeddedPrefix:location_"`
	Rating       float64     `gorm:"not null"`
	Available    bool        `gorm:"not null;index"`
	ActiveOrders int         `gorm:"not null;default:0;check:chk_couriers_active_orders,active_orders >= 0"`
	UpdatedAt    time.Time
}

func (CourierDTO) TableName() string {
	return "couriers"
}

type LocationDTO struct {
	Lat float64
	Lon float64
}

func fromDomain(c *courier.Courier) CourierDTO {
	s := c.Snapshot()
	return CourierDTO{
		ID:           s.ID.Bytes(),
		Name:         s.Name,
		Phone:        s.Phone,
		Location:     LocationDTO{Lat: s.Location.Latitude(), Lon: s.Location.Longitude()},
		Rating:       s.Rating,
		Available:    s.Available,
		ActiveOrders: s.ActiveOrders,
	}
}

func toDomain(dto CourierDTO) (*courier.Courier, error) {
	id, err := kernel.UUIDFromBytes(dto.ID[:])
	if err != nil {
		return nil, err
	}
	location, err := kernel.NewGeoPoint(dto.Location.Lat, dto.Location.Lon)
	if err != nil {
		return nil, err
	}

	return courier.RestoreCourier(courier.State{
		ID:           id,
		Name:         dto.Name,
		Phone:        dto.Phone,
		Location:     location,
		Rating:       dto.Rating,
		Available:    dto.Available,
		ActiveOrders: dto.ActiveOrders,
	})
}
