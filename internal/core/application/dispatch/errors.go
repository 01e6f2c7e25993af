package dispatch

import (
	"errors"

	"courierhub/internal/core/ports"
	"courierhub/internal/pkg/errs"
)

// ErrNoEligibleCourier reports a broadcast round that reached nobody. The
// order stays PENDING and the attempt expires on the next supervisor tick.
var ErrNoEligibleCourier = errors.New("no eligible courier")

// IsContention reports whether err is a lost storage race that is safe to retry.
func IsContention(err error) bool {
	return errors.Is(err, errs.ErrVersionIsInvalid) || errors.Is(err, ports.ErrStorageContention)
}
