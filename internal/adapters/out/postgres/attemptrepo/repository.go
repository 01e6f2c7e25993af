package attemptrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"courierhub/internal/adapters/out/postgres/pgerr"
	"courierhub/internal/core/domain/model/attempt"
	"courierhub/internal/core/domain/model/kernel"
	"courierhub/internal/core/domain/model/order"
	"courierhub/internal/pkg/errs"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormAttemptRepository struct {
	db *gorm.DB
}

func NewGormAttemptRepository(db *gorm.DB) *GormAttemptRepository {
	return &GormAttemptRepository{db: db}
}

// Record inserts the attempt unless (order_id, seq) already exists.
func (r *GormAttemptRepository) Record(ctx context.Context, a *attempt.Attempt) (bool, error) {
	if err := a.Validate(); err != nil {
		return false, err
	}

	dto := fromDomain(a)
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&dto)
	if result.Error != nil {
		return false, pgerr.Classify(result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *GormAttemptRepository) Get(ctx context.Context, orderID kernel.UUID, seq int) (*attempt.Attempt, error) {
	var dto AttemptDTO
	err := r.db.WithContext(ctx).First(&dto, "order_id = ? AND seq = ?", orderID.Bytes(), seq).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NewObjectNotFoundError("attempt", fmt.Sprintf("%s#%d", orderID, seq))
		}
		return nil, pgerr.Classify(err)
	}
	return toDomain(dto)
}

func (r *GormAttemptRepository) GetLatest(ctx context.Context, orderID kernel.UUID) (*attempt.Attempt, error) {
	var dto AttemptDTO
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID.Bytes()).Order("seq DESC").First(&dto).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NewObjectNotFoundError("attempt", orderID.String())
		}
		return nil, pgerr.Classify(err)
	}
	return toDomain(dto)
}

// GetExpired joins on the order's current sequence so superseded attempts
// never come back.
func (r *GormAttemptRepository) GetExpired(ctx context.Context, now time.Time, limit int) ([]*attempt.Attempt, error) {
	q := r.db.WithContext(ctx).
		Table("dispatch_attempts AS a").
		Select("a.*").
		Joins("JOIN orders o ON o.id = a.order_id AND o.attempt_seq = a.seq").
		Where("o.status = ? AND a.expires_at <= ?", int(order.Pending), now).
		Order("a.expires_at, a.order_id")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var dtos []AttemptDTO
	if err := q.Find(&dtos).Error; err != nil {
		return nil, pgerr.Classify(err)
	}

	out := make([]*attempt.Attempt, 0, len(dtos))
	for _, dto := range dtos {
		a, err := toDomain(dto)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
