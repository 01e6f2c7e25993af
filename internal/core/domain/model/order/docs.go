// Package order holds the Order aggregate of the dispatch core and the value
// objects it is built from (Place, Parcel, Fare, Size, Urgency, DeliveryType).
//
// The aggregate enforces the order state machine. PENDING -> ACCEPTED is only
// reachable through Accept, which dispatch.Arbiter calls inside a
// version-guarded write, so exactly one courier ever holds the assignment.
// Every invalidation of a pending order (escalation, cancellation,
// rejection) advances the attempt sequence, which makes late acceptances of
// the previous attempt fail as stale.
package order
