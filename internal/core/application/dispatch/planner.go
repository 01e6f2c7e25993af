package dispatch

import (
	"context"
	"fmt"
	"time"

	"courierhub/internal/core/domain/model/attempt"
	"courierhub/internal/core/domain/model/kernel"
	"courierhub/internal/core/domain/model/order"
	"courierhub/internal/core/domain/services"
	"courierhub/internal/core/ports"
)

// Plan is the outcome of selecting candidates for one attempt.
type Plan struct {
	Attempt    *attempt.Attempt
	Candidates []services.Candidate
}

// Distances maps candidate ids to their distance from pickup.
func (p Plan) Distances() map[kernel.UUID]float64 {
	out := make(map[kernel.UUID]float64, len(p.Candidates))
	for _, c := range p.Candidates {
		out[c.Courier.ID()] = c.DistanceKm
	}
	return out
}

type Planner struct {
	filter services.EligibilityFilter
	policy services.EscalationPolicy
}

func NewPlanner(policy services.EscalationPolicy) Planner {
	return Planner{filter: services.NewEligibilityFilter(), policy: policy}
}

func (p Planner) Policy() services.EscalationPolicy {
	return p.policy
}

// Plan selects the candidates of tier for the order's current attempt.
// previous lists couriers already offered the order.
func (p Planner) Plan(
	ctx context.Context,
	couriers ports.CourierRepository,
	o *order.Order,
	tier int,
	previous []kernel.UUID,
	now time.Time,
) (Plan, error) {
	t, err := p.policy.Tier(tier)
	if err != nil {
		return Plan{}, err
	}
	rule, err := p.policy.Rule(tier, previous)
	if err != nil {
		return Plan{}, err
	}

	available, err := couriers.GetAvailable(ctx)
	if err != nil {
		return Plan{}, fmt.Errorf("load available couriers: %w", err)
	}

	candidates, err := p.filter.SelectCandidates(o.Pickup().Point(), available, rule)
	if err != nil {
		return Plan{}, err
	}

	a, err := attempt.NewAttempt(o.ID(), o.AttemptSeq(), tier, services.IDs(candidates), now, t.Window)
	if err != nil {
		return Plan{}, err
	}
	return Plan{Attempt: a, Candidates: candidates}, nil
}
