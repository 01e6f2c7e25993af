package order

import (
	"fmt"
	"strings"

	"courierhub/internal/pkg/errs"
)

// Status is the lifecycle state of an order.
//
//	PENDING ──> ACCEPTED ──> IN_PROGRESS ──> DELIVERED
//	   │            │             │
//	   ├──> REJECTED└──> CANCELLED<┤
//	   └──> CANCELLED             └──> FAILED
//
// DELIVERED, CANCELLED, REJECTED and FAILED are terminal.
type Status int

const (
	// Unknown catches uninitialized values.
	Unknown Status = iota
	Pending
	Accepted
	InProgress
	Delivered
	Cancelled
	Rejected
	Failed
)

func getStatusStrings() map[Status]string {
	return map[Status]string{
		Unknown:    "UNKNOWN",
		Pending:    "PENDING",
		Accepted:   "ACCEPTED",
		InProgress: "IN_PROGRESS",
		Delivered:  "DELIVERED",
		Cancelled:  "CANCELLED",
		Rejected:   "REJECTED",
		Failed:     "FAILED",
	}
}

// transitions lists every legal edge of the state machine.
func transitions() map[Status][]Status {
	//nolint:exhaustive // terminal states have no outgoing edges
	return map[Status][]Status{
		Pending:    {Accepted, Cancelled, Rejected},
		Accepted:   {InProgress, Cancelled},
		InProgress: {Delivered, Cancelled, Failed},
	}
}

// ParseStatus accepts the upper-case names used on the wire.
func ParseStatus(s string) (Status, error) {
	for status, name := range getStatusStrings() {
		if status != Unknown && name == strings.ToUpper(strings.TrimSpace(s)) {
			return status, nil
		}
	}
	return Unknown, errs.NewValueIsInvalidErrorWithCause("status", fmt.Errorf("%q is not a valid status", s))
}

func (s Status) Validate() error {
	if s <= Unknown || s > Failed {
		return errs.NewValueIsInvalidErrorWithCause("status", fmt.Errorf("%d is not a valid status", s))
	}
	return nil
}

func (s Status) String() string {
	if name, ok := getStatusStrings()[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

func (s Status) IsTerminal() bool {
	switch s { //nolint:exhaustive // only terminal states listed
	case Delivered, Cancelled, Rejected, Failed:
		return true
	default:
		return false
	}
}

// HoldsAssignment reports whether an order in this status must carry a courier.
func (s Status) HoldsAssignment() bool {
	switch s { //nolint:exhaustive // only assigned states listed
	case Accepted, InProgress, Delivered:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s Status) CanTransitionTo(next Status) bool {
	for _, candidate := range transitions()[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

func (s Status) validateTransition(next Status) error {
	if !s.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, next)
	}
	return nil
}
