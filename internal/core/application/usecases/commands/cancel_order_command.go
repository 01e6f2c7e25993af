package commands

import (
	"errors"
	"fmt"
	"strings"

	"courierhub/internal/core/domain/model/kernel"
	"courierhub/internal/pkg/errs"
	"courierhub/internal/pkg/guard"
)

var ErrCancelOrderCommandIsNotConstructed = errors.New(
	"CancelOrderCommand must be created via NewCancelOrderCommand constructor",
)

// CancelAssignedPolicy decides what cancelling an already assigned order does.
type CancelAssignedPolicy string

const (
	// CancelAssignedReject refuses the cancellation with order.ErrAlreadyAssigned.
	CancelAssignedReject CancelAssignedPolicy = "reject"
	// CancelAssignedCompensate cancels the order and releases its courier.
	CancelAssignedCompensate CancelAssignedPolicy = "compensate"
)

func ParseCancelAssignedPolicy(s string) (CancelAssignedPolicy, error) {
	p := CancelAssignedPolicy(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case CancelAssignedReject, CancelAssignedCompensate:
		return p, nil
	case "":
		return CancelAssignedReject, nil
	default:
		return "", errs.NewValueIsInvalidErrorWithCause("cancelAssignedPolicy",
			fmt.Errorf("unknown policy %q", s))
	}
}

type CancelOrderCommand struct { //nolint:recvcheck //using for validation
	orderID kernel.UUID
	reason  string

	guard guard.ConstructorGuard
}

func NewCancelOrderCommand(orderID kernel.UUID, reason string) (CancelOrderCommand, error) {
	var reasonErr error
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reasonErr = errs.NewValueIsRequiredError("reason")
	}

	if err := errors.Join(orderID.Validate(), reasonErr); err != nil {
		return CancelOrderCommand{}, err
	}

	return CancelOrderCommand{
		orderID: orderID,
		reason:  reason,
		guard:   guard.NewConstructorGuard(),
	}, nil
}

func (c CancelOrderCommand) Validate() error {
	return c.guard.Validate(ErrCancelOrderCommandIsNotConstructed)
}

func (c CancelOrderCommand) OrderID() kernel.UUID {
	return c.orderID
}

func (c CancelOrderCommand) Reason() string {
	return c.reason
}
