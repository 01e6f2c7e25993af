// Package dispatch holds the concurrency-critical core of order dispatch.
//
//   - Planner turns an escalation tier into a candidate set and an Attempt.
//   - Broadcaster records attempts and offers the order to candidates.
//   - Arbiter commits at most one courier per order through a version
//     guarded write and reports how a losing accept lost.
//   - Fanout tells winners, losers, companies and candidates what happened.
//
// Storage is reached through ports.UnitOfWorkFactory; every decision is taken
// inside one transaction and re-taken when that transaction loses a race.
// Notifications are sent only after the transaction that caused them has
// committed.
package dispatch
