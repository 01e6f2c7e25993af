package ports

import (
	"context"
	"time"

	"courierhub/internal/core/domain/model/attempt"
	"courierhub/internal/core/domain/model/kernel"
)

// AttemptRepository records broadcast rounds. Rows are written once per
// (orderId, attemptSeq) and never updated.
type AttemptRepository interface {
	// Record stores the attempt and reports whether it was new. Recording an
	// attempt that already exists is a no-op that returns false.
	Record(ctx context.Context, a *attempt.Attempt) (bool, error)

	// Get returns errs.ObjectNotFoundError when the attempt was never recorded.
	Get(ctx context.Context, orderID kernel.UUID, seq int) (*attempt.Attempt, error)

	// GetLatest returns the highest-sequence attempt recorded for the order.
	GetLatest(ctx context.Context, orderID kernel.UUID) (*attempt.Attempt, error)

	// GetExpired returns current attempts of PENDING orders whose window has
	// closed at now, oldest expiry first.
	GetExpired(ctx context.Context, now time.Time, limit int) ([]*attempt.Attempt, error)
}
