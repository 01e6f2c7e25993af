// Package courier holds the dispatch projection of a courier: where the
// courier is, whether they are taking work, how many orders they carry and
// their rating. Eligibility is computed from it and the active-order counter
// moves together with order assignment.
package courier
