// Package orderrepo persists the order aggregate. Every write after the insert
// is guarded by the row's version column.
package orderrepo

import (
	"time"

	"courierhub/internal/core/domain/model/kernel"
	"courierhub/internal/core/domain/model/order"

	"github.com/google/uuid"
	"github.com/govalues/decimal"
)

// OrderDTO is the orders table row.
type OrderDTO struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TrackingCode   string     `gorm:"size:32;uniqueIndex"`
	CompanyID      uuid.UUID  `gorm:"type:uuid;index"`
	CourierID      *uuid.UUID `gorm:"type:uuid;index"`
	Pickup         PlaceDTO   `gorm:"embedded;embeddedPrefix:pickup_"`
	Delivery       PlaceDTO   `gorm:"embedded;embeddedPrefix:delivery_"`
	PackageSize    string     `gorm:"size:16"`
	PackageType    string     `gorm:"size:64"`
	Urgency        string     `gorm:"size:16"`
	DeliveryType   string     `gorm:"size:16"`
	Price          string     `gorm:"type:numeric(12,2)"`
	CourierEarning string     `gorm:"type:numeric(12,2)"`
	Status         int        `gorm:"index:idx_orders_status_created,priority:1"`
	AttemptSeq     int        `gorm:"not null;default:1"`
	CancelReason   string     `gorm:"size:256"`
	CreatedAt      time.Time  `gorm:"index:idx_orders_status_created,priority:2"`
	AcceptedAt     *time.Time
	PickedUpAt     *time.Time
	DeliveredAt    *time.Time
	ClosedAt       *time.Time
	Version        int64 `gorm:"not null;default:1"`
}

func (OrderDTO) TableName() string {
	return "orders"
}

type PlaceDTO struct {
	Lat     float64
	Lon     float64
	Address string `gorm:"size:512"`
}

func fromDomain(o *order.Order) OrderDTO {
	s := o.Snapshot()

	var courierID *uuid.UUID
	if s.CourierID != nil {
		raw := s.CourierID.Bytes()
		courierID = &raw
	}

	return OrderDTO{
		ID:             s.ID.Bytes(),
		TrackingCode:   s.TrackingCode,
		CompanyID:      s.CompanyID.Bytes(),
		CourierID:      courierID,
		Pickup:         placeFromDomain(s.Pickup),
		Delivery:       placeFromDomain(s.Delivery),
		PackageSize:    string(s.Parcel.Size()),
		PackageType:    s.Parcel.Kind(),
		Urgency:        string(s.Urgency),
		DeliveryType:   string(s.DeliveryType),
		Price:          s.Fare.Price().String(),
		CourierEarning: s.Fare.CourierEarning().String(),
		Status:         int(s.Status),
		AttemptSeq:     s.AttemptSeq,
		CancelReason:   s.CancelReason,
		CreatedAt:      s.CreatedAt,
		AcceptedAt:     s.AcceptedAt,
		PickedUpAt:     s.PickedUpAt,
		DeliveredAt:    s.DeliveredAt,
		ClosedAt:       s.ClosedAt,
		Version:        s.Version,
	}
}

func placeFromDomain(p order.Place) PlaceDTO {
	return PlaceDTO{Lat: p.Point().Latitude(), Lon: p.Point().Longitude(), Address: p.Address()}
}

func toDomain(dto OrderDTO) (*order.Order, error) {
	id, err := kernel.UUIDFromBytes(dto.ID[:])
	if err != nil {
		return nil, err
	}
	companyID, err := kernel.UUIDFromBytes(dto.CompanyID[:])
	if err != nil {
		return nil, err
	}

	var courierID *kernel.UUID
	if dto.CourierID != nil {
		cID, courierErr := kernel.UUIDFromBytes((*dto.CourierID)[:])
		if courierErr != nil {
			return nil, courierErr
		}
		courierID = &cID
	}

	pickup, err := placeToDomain(dto.Pickup)
	if err != nil {
		return nil, err
	}
	delivery, err := placeToDomain(dto.Delivery)
	if err != nil {
		return nil, err
	}
	parcel, err := order.NewParcel(order.Size(dto.PackageSize), dto.PackageType)
	if err != nil {
		return nil, err
	}

	price, err := decimal.Parse(dto.Price)
	if err != nil {
		return nil, err
	}
	earning, err := decimal.Parse(dto.CourierEarning)
	if err != nil {
		return nil, err
	}
	fare, err := order.NewFare(price, earning)
	if err != nil {
		return nil, err
	}

	return order.RestoreOrder(order.State{
		ID:           id,
		TrackingCode: dto.TrackingCode,
		CompanyID:    companyID,
		Pickup:       pickup,
		Delivery:     delivery,
		Parcel:       parcel,
		Urgency:      order.Urgency(dto.Urgency),
		DeliveryType: order.DeliveryType(dto.DeliveryType),
		Fare:         fare,
		Status:       order.Status(dto.Status),
		CourierID:    courierID,
		AttemptSeq:   dto.AttemptSeq,
		CancelReason: dto.CancelReason,
		CreatedAt:    dto.CreatedAt.UTC(),
		AcceptedAt:   utc(dto.AcceptedAt),
		PickedUpAt:   utc(dto.PickedUpAt),
		DeliveredAt:  utc(dto.DeliveredAt),
		ClosedAt:     utc(dto.ClosedAt),
		Version:      dto.Version,
	})
}

func placeToDomain(dto PlaceDTO) (order.Place, error) {
	point, err := kernel.NewGeoPoint(dto.Lat, dto.Lon)
	if err != nil {
		return order.Place{}, err
	}
	return order.NewPlace(point, dto.Address)
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
