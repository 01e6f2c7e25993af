package services

import (
	"slices"

	"courierhub/internal/core/domain/model/courier"
	"courierhub/internal/core/domain/model/kernel"
)

// Rule narrows the courier pool for one dispatch attempt.
type Rule struct {
	MaxDistanceKm   float64
	MinRating       float64
	MaxActiveOrders int
	Exclude         map[kernel.UUID]struct{}
}

// Candidate is a courier that passed the rule, with its distance to pickup.
type Candidate struct {
	Courier    *courier.Courier
	DistanceKm float64
}

// EligibilityFilter is a stateless domain service that decides which couriers
// may be offered an order.
//
// A courier is eligible when:
//   - it is available
//   - it is below the per-courier active order limit
//   - its rating is at or above the rule's floor
//   - its distance to the pickup point is within the rule's radius
//   - it is not in the exclusion set
//
// Example usage:
//
//	filter := services.NewEligibilityFilter()
//	candidates, err := filter.SelectCandidates(o.Pickup().Point(), couriers, rule)
//	if err != nil {
//	    return err
//	}
//	if len(candidates) == 0 {
//	    // nobody to broadcast to on this tier
//	}
type EligibilityFilter struct{}

func NewEligibilityFilter() EligibilityFilter {
	return EligibilityFilter{}
}

// SelectCandidates returns eligible couriers ordered by ascending distance to
// pickup, ties broken by descending rating. An empty result is not an error.
//
// Returns:
//   - []Candidate: eligible couriers, closest first
//   - error: courier.ErrCourierIsNotConstructed or a geo validation error if any
//     input is malformed
func (EligibilityFilter) SelectCandidates(pickup kernel.GeoPoint, couriers []*courier.Courier, rule Rule) ([]Candidate, error) {
	if err := pickup.Validate(); err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(couriers))
	for _, c := range couriers {
		if err := c.Validate(); err != nil {
			return nil, err
		}

		if _, excluded := rule.Exclude[c.ID()]; excluded {
			continue
		}
		if !c.CanTakeOrder(rule.MaxActiveOrders) {
			continue
		}
		if c.Rating() < rule.MinRating {
			continue
		}

		distance, err := c.Location().DistanceKm(pickup)
		if err != nil {
			return nil, err
		}
		if distance > rule.MaxDistanceKm {
			continue
		}

		candidates = append(candidates, Candidate{Courier: c, DistanceKm: distance})
	}

	slices.SortStableFunc(candidates, func(a, b Candidate) int {
		switch {
		case a.DistanceKm < b.DistanceKm:
			return -1
		case a.DistanceKm > b.DistanceKm:
			return 1
		case a.Courier.Rating() > b.Courier.Rating():
			return -1
		case a.Courier.Rating() < b.Courier.Rating():
			return 1
		}
		return 0
	})

	return candidates, nil
}

// IDs extracts courier identifiers in candidate order.
func IDs(candidates []Candidate) []kernel.UUID {
	out := make([]kernel.UUID, len(candidates))
	for i, c := range candidates {
		out[i] = c.Courier.ID()
	}
	return out
}
