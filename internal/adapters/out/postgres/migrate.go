package postgres

import (
	"context"
	"fmt"

	"courierhub/internal/adapters/out/postgres/attemptrepo"
	"courierhub/internal/adapters/out/postgres/courierrepo"
	"courierhub/internal/adapters/out/postgres/orderrepo"

	"gorm.io/gorm"
)

// Models lists every table owned by the dispatch core.
func Models() []any {
	return []any{&orderrepo.OrderDTO{}, &courierrepo.CourierDTO{}, &attemptrepo.AttemptDTO{}}
}

// Migrate creates or updates the schema.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
