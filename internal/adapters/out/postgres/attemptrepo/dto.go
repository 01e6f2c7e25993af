// Package attemptrepo persists dispatch attempts, one row per broadcast round.
package attemptrepo

import (
	"time"

	"courierhub/internal/core/domain/model/attempt"
	"courierhub/internal/core/domain/model/kernel"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type AttemptDTO struct {
	OrderID     uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Seq         int            `gorm:"primaryKey;autoIncrement:false"`
	Tier        int            `gorm:"not null"`
	Candidates  pq.StringArray `gorm:"type:text[]"`
	BroadcastAt time.Time      `gorm:"not null"`
	ExpiresAt   time.Time      `gorm:"not null;index"`
}

func (AttemptDTO) TableName() string {
	return "dispatch_attempts"
}

func fromDomain(a *attempt.Attempt) AttemptDTO {
	s := a.Snapshot()
	candidates := make(pq.StringArray, 0, len(s.Candidates))
	for _, id := range s.Candidates {
		candidates = append(candidates, id.String())
	}
	return AttemptDTO{
		OrderID:     s.OrderID.Bytes(),
		Seq:         s.Seq,
		Tier:        s.Tier,
		Candidates:  candidates,
		BroadcastAt: s.BroadcastAt,
		ExpiresAt:   s.ExpiresAt,
	}
}

func toDomain(dto AttemptDTO) (*attempt.Attempt, error) {
	orderID, err := kernel.UUIDFromBytes(dto.OrderID[:])
	if err != nil {
		return nil, err
	}
	candidates := make([]kernel.UUID, 0, len(dto.Candidates))
	for _, raw := range dto.Candidates {
		id, err := kernel.UUIDFromString(raw)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, id)
	}
	return attempt.RestoreAttempt(attempt.State{
		OrderID:     orderID,
		Seq:         dto.Seq,
		Tier:        dto.Tier,
		Candidates:  candidates,
		BroadcastAt: dto.BroadcastAt,
		ExpiresAt:   dto.ExpiresAt,
	})
}
