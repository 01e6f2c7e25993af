package order

import (
	"encoding/hex"
	"strings"

	"courierhub/internal/core/domain/model/kernel"
)

const trackingCodePrefix = "CH-"

// NewTrackingCode derives the human readable code printed on labels from the
// order id, e.g. "CH-550E8400E2".
func NewTrackingCode(id kernel.UUID) string {
	raw := id.Bytes()
	return trackingCodePrefix + strings.ToUpper(hex.EncodeToString(raw[:5]))
}
