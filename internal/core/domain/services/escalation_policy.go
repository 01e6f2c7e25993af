package services

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"courierhub/internal/core/domain/model/kernel"
	"courierhub/internal/pkg/errs"
)

var ErrNoMoreTiers = errors.New("escalation tiers exhausted")

// Tier is one step of the widening search. Tier 0 is used for the first
// broadcast; every expiry moves the order one tier further.
type Tier struct {
	RadiusKm          float64
	MinRating         float64
	Window            time.Duration
	ReincludePrevious bool
}

func (t Tier) Validate() error {
	var problems []error
	if t.RadiusKm <= 0 {
		problems = append(problems, errs.NewValueIsOutOfRangeError("radiusKm", t.RadiusKm, "0 (exclusive)", "unbounded"))
	}
	if t.MinRating < 0 || t.MinRating > 5 {
		problems = append(problems, errs.NewValueIsOutOfRangeError("minRating", t.MinRating, 0, 5))
	}
	if t.Window <= 0 {
		problems = append(problems, errs.NewValueIsInvalidErrorWithCause("window", fmt.Errorf("window must be positive, got %s", t.Window)))
	}
	return errors.Join(problems...)
}

type EscalationPolicy struct {
	tiers           []Tier
	maxActiveOrders int
}

func NewEscalationPolicy(tiers []Tier, maxActiveOrders int) (EscalationPolicy, error) {
	if len(tiers) == 0 {
		return EscalationPolicy{}, errs.NewValueIsRequiredError("tiers")
	}
	if maxActiveOrders < 1 {
		return EscalationPolicy{}, errs.NewValueIsOutOfRangeError("maxActiveOrders", maxActiveOrders, 1, "unbounded")
	}
	for i, t := range tiers {
		if err := t.Validate(); err != nil {
			return EscalationPolicy{}, fmt.Errorf("tier %d: %w", i, err)
		}
	}
	return EscalationPolicy{tiers: slices.Clone(tiers), maxActiveOrders: maxActiveOrders}, nil
}

func (p EscalationPolicy) Len() int {
	return len(p.tiers)
}

func (p EscalationPolicy) MaxActiveOrders() int {
	return p.maxActiveOrders
}

func (p EscalationPolicy) Tier(i int) (Tier, error) {
	if i < 0 || i >= len(p.tiers) {
		return Tier{}, ErrNoMoreTiers
	}
	return p.tiers[i], nil
}

// Next returns the tier that follows current, or ErrNoMoreTiers.
func (p EscalationPolicy) Next(current int) (int, Tier, error) {
	t, err := p.Tier(current + 1)
	if err != nil {
		return 0, Tier{}, err
	}
	return current + 1, t, nil
}

// Rule builds the eligibility rule for tier i. Previous candidates are
// excluded unless the tier asks to offer the order to them again.
func (p EscalationPolicy) Rule(i int, previous []kernel.UUID) (Rule, error) {
	t, err := p.Tier(i)
	if err != nil {
		return Rule{}, err
	}

	rule := Rule{
		MaxDistanceKm:   t.RadiusKm,
		MinRating:       t.MinRating,
		MaxActiveOrders: p.maxActiveOrders,
	}
	if !t.ReincludePrevious && len(previous) > 0 {
		rule.Exclude = make(map[kernel.UUID]struct{}, len(previous))
		for _, id := range previous {
			rule.Exclude[id] = struct{}{}
		}
	}
	return rule, nil
}

