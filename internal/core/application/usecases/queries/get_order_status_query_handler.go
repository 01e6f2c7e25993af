package queries

import (
	"context"
	"database/sql"
	"errors"

	"courierhub/internal/core/domain/model/kernel"
	"courierhub/internal/core/domain/model/order"
	"courierhub/internal/pkg/errs"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GetOrderStatusQueryHandler struct {
	db *gorm.DB
}

func NewGetOrderStatusQueryHandler(db *gorm.DB) GetOrderStatusQueryHandler {
	return GetOrderStatusQueryHandler{db: db}
}

// Handle returns errs.ErrObjectNotFound for unknown orders. A timed-out order
// is reported with OutcomeNoCourierFound so callers can tell it apart from a
// cancel requested by the company.
func (h GetOrderStatusQueryHandler) Handle(
	ctx context.Context,
	query GetOrderStatusQuery,
) (GetOrderStatusQueryResponse, error) {
	if err := query.Validate(); err != nil {
		return GetOrderStatusQueryResponse{}, err
	}

	row := h.db.WithContext(ctx).Raw(`
		SELECT
			o.id,
			o.tracking_code,
			o.company_id,
			o.courier_id,
			o.status,
			o.attempt_seq,
			o.price::text,
			o.courier_earning::text,
			o.cancel_reason,
			o.created_at,
			o.accepted_at,
			o.picked_up_at,
			o.delivered_at,
			o.closed_at,
			a.seq,
			a.tier,
			COALESCE(cardinality(a.candidates), 0),
			a.expires_at
		FROM orders o
		LEFT JOIN dispatch_attempts a ON a.order_id = o.id AND a.seq = o.attempt_seq
		WHERE o.id = ?
	`, query.OrderID().Bytes()).Row()

	var (
		resp       GetOrderStatusQueryResponse
		id         uuid.UUID
		companyID  uuid.UUID
		courierID  uuid.NullUUID
		status     int
		seq        sql.NullInt64
		tier       sql.NullInt64
		candidates int
		expiresAt  sql.NullTime
	)
	err := row.Scan(
		&id,
		&resp.TrackingCode,
		&companyID,
		&courierID,
		&status,
		&resp.AttemptSeq,
		&resp.Price,
		&resp.CourierEarning,
		&resp.CancelReason,
		&resp.CreatedAt,
		&resp.AcceptedAt,
		&resp.PickedUpAt,
		&resp.DeliveredAt,
		&resp.ClosedAt,
		&seq,
		&tier,
		&candidates,
		&expiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return GetOrderStatusQueryResponse{}, errs.NewObjectNotFoundError("order", query.OrderID().String())
		}
		return GetOrderStatusQueryResponse{}, err
	}

	if resp.ID, err = kernel.UUIDFromBytes(id[:]); err != nil {
		return GetOrderStatusQueryResponse{}, err
	}
	if resp.CompanyID, err = kernel.UUIDFromBytes(companyID[:]); err != nil {
		return GetOrderStatusQueryResponse{}, err
	}
	if courierID.Valid {
		cid, idErr := kernel.UUIDFromBytes(courierID.UUID[:])
		if idErr != nil {
			return GetOrderStatusQueryResponse{}, idErr
		}
		resp.CourierID = &cid
	}

	st := order.Status(status)
	resp.Status = st.String()
	resp.Outcome = outcomeOf(st, resp.CancelReason)

	if seq.Valid {
		resp.CurrentAttempt = &AttemptSummary{
			Seq:        int(seq.Int64),
			Tier:       int(tier.Int64),
			Candidates: candidates,
			ExpiresAt:  expiresAt.Time,
		}
	}

	return resp, nil
}

func outcomeOf(status order.Status, cancelReason string) Outcome {
	switch status {
	case order.Accepted, order.InProgress:
		return OutcomeAssigned
	case order.Delivered:
		return OutcomeDelivered
	case order.Cancelled:
		if cancelReason == order.ReasonNoCourierAccepted {
			return OutcomeNoCourierFound
		}
		return OutcomeCancelled
	case order.Rejected:
		return OutcomeRejected
	case order.Failed:
		return OutcomeFailed
	default:
		return OutcomeSearching
	}
}
