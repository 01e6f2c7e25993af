package courierrepo

import (
	"context"
	"errors"

	"courierhub/internal/adapters/out/postgres/pgerr"
	"courierhub/internal/core/domain/model/courier"
	"courierhub/internal/core/domain/model/kernel"
	"courierhub/internal/pkg/errs"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCourierRepository implements CourierRepository using GORM.
type GormCourierRepository struct {
	db      *gorm.DB
	tracker aggregateTracker
}

type aggregateTracker interface {
	TrackAggregate(id kernel.UUID, aggregate any)
}

func NewGormCourierRepository(db *gorm.DB, tracker aggregateTracker) *GormCourierRepository {
	return &GormCourierRepository{
		db:      db,
		tracker: tracker,
	}
}

// Save upserts profile and presence. An existing row keeps its active_orders.
func (r *GormCourierRepository) Save(ctx context.Context, aggregate *courier.Courier) error {
	if err := aggregate.Validate(); err != nil {
		return err
	}

	dto := fromDomain(aggregate)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "phone", "location_lat", "location_lon", "rating", "available", "updated_at",
			}),
		}).
		Create(&dto).Error
	if err != nil {
		return pgerr.Classify(err)
	}

	r.tracker.TrackAggregate(aggregate.ID(), aggregate)
	return nil
}

func (r *GormCourierRepository) Get(ctx context.Context, id kernel.UUID) (*courier.Courier, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	var dto CourierDTO
	if err := r.db.WithContext(ctx).First(&dto, "id = ?", id.Bytes()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NewObjectNotFoundError("courier", id.String())
		}
		return nil, pgerr.Classify(err)
	}

	return toDomain(dto)
}

// GetAvailable returns every online courier. Distance, rating and load are
// filtered by the eligibility rules, not here.
func (r *GormCourierRepository) GetAvailable(ctx context.Context) ([]*courier.Courier, error) {
	var dtos []CourierDTO
	if err := r.db.WithContext(ctx).Where("available = ?", true).Order("id").Find(&dtos).Error; err != nil {
		return nil, pgerr.Classify(err)
	}

	couriers := make([]*courier.Courier, 0, len(dtos))
	for _, dto := range dtos {
		c, err := toDomain(dto)
		if err != nil {
			return nil, err
		}
		couriers = append(couriers, c)
	}

	return couriers, nil
}

func (r *GormCourierRepository) IncrementActive(ctx context.Context, id kernel.UUID, maxActive int) error {
	if err := id.Validate(); err != nil {
		return err
	}

	result := r.db.WithContext(ctx).
		Model(&CourierDTO{}).
		Where("id = ? AND active_orders < ?", id.Bytes(), maxActive).
		UpdateColumn("active_orders", gorm.Expr("active_orders + 1"))
	if result.Error != nil {
		return pgerr.Classify(result.Error)
	}
	if result.RowsAffected == 0 {
		return r.missOrErr(ctx, id, courier.ErrActiveOrderLimitReached)
	}
	return nil
}

func (r *GormCourierRepository) DecrementActive(ctx context.Context, id kernel.UUID) error {
	if err := id.Validate(); err != nil {
		return err
	}

	result := r.db.WithContext(ctx).
		Model(&CourierDTO{}).
		Where("id = ? AND active_orders > 0", id.Bytes()).
		UpdateColumn("active_orders", gorm.Expr("active_orders - 1"))
	if result.Error != nil {
		return pgerr.Classify(result.Error)
	}
	if result.RowsAffected == 0 {
		return r.missOrErr(ctx, id, courier.ErrNoActiveOrders)
	}
	return nil
}

// missOrErr tells an unknown courier apart from a guard that did not match.
func (r *GormCourierRepository) missOrErr(ctx context.Context, id kernel.UUID, guardErr error) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&CourierDTO{}).Where("id = ?", id.Bytes()).Count(&count).Error; err != nil {
		return pgerr.Classify(err)
	}
	if count == 0 {
		return errs.NewObjectNotFoundError("courier", id.String())
	}
	return guardErr
}
