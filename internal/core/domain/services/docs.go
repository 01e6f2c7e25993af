// Package services holds the stateless domain services of the dispatch core.
//
//   - EligibilityFilter picks and ranks the couriers an order may be offered to.
//   - EscalationPolicy turns the configured tiers into eligibility rules.
//   - RouteEstimator derives trip distance and duration for pricing.
//
// Services never touch storage; the application layer loads aggregates,
// calls them and persists the outcome.
package services
