package queries

import (
	"context"
	"database/sql"

	"courierhub/internal/core/domain/model/kernel"
	"courierhub/internal/core/domain/model/order"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GetPendingOrdersQueryHandler struct {
	db *gorm.DB
}

func NewGetPendingOrdersQueryHandler(db *gorm.DB) GetPendingOrdersQueryHandler {
	return GetPendingOrdersQueryHandler{db: db}
}

func (h GetPendingOrdersQueryHandler) Handle(
	ctx context.Context,
	query GetPendingOrdersQuery,
) ([]GetPendingOrdersQueryResponse, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	rows, err := h.db.WithContext(ctx).Raw(`
		SELECT
			o.id,
			o.tracking_code,
			o.company_id,
			o.attempt_seq,
			COALESCE(a.tier, 0),
			COALESCE(cardinality(a.candidates), 0),
			o.price::text,
			o.created_at,
			a.expires_at
		FROM orders o
		LEFT JOIN dispatch_attempts a ON a.order_id = o.id AND a.seq = o.attempt_seq
		WHERE o.status = ?
		ORDER BY o.created_at, o.id
		LIMIT ?
	`, int(order.Pending), query.Limit()).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]GetPendingOrdersQueryResponse, 0)
	for rows.Next() {
		var (
			item      GetPendingOrdersQueryResponse
			id        uuid.UUID
			companyID uuid.UUID
			expiresAt sql.NullTime
		)
		err = rows.Scan(
			&id,
			&item.TrackingCode,
			&companyID,
			&item.AttemptSeq,
			&item.Tier,
			&item.Candidates,
			&item.Price,
			&item.CreatedAt,
			&expiresAt,
		)
		if err != nil {
			return nil, err
		}

		if item.ID, err = kernel.UUIDFromBytes(id[:]); err != nil {
			return nil, err
		}
		if item.CompanyID, err = kernel.UUIDFromBytes(companyID[:]); err != nil {
			return nil, err
		}
		if expiresAt.Valid {
			item.ExpiresAt = &expiresAt.Time
		}
		orders = append(orders, item)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}
