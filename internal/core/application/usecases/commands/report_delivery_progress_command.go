package commands

import (
	"errors"
	"fmt"
	"strings"

	"courierhub/internal/core/domain/model/kernel"
	"courierhub/internal/pkg/errs"
	"courierhub/internal/pkg/guard"
)

var ErrReportDeliveryProgressCommandIsNotConstructed = errors.New(
	"ReportDeliveryProgressCommand must be created via NewReportDeliveryProgressCommand constructor",
)

// ProgressStep is a courier-driven transition after assignment.
type ProgressStep string

const (
	StepPickedUp  ProgressStep = "picked_up"
	StepDelivered ProgressStep = "delivered"
	StepFailed    ProgressStep = "failed"
)

func ParseProgressStep(s string) (ProgressStep, error) {
	step := ProgressStep(strings.ToLower(strings.TrimSpace(s)))
	switch step {
	case StepPickedUp, StepDelivered, StepFailed:
		return step, nil
	default:
		return "", errs.NewValueIsInvalidErrorWithCause("step", fmt.Errorf("unknown step %q", s))
	}
}

// ReportDeliveryProgressCommand moves an assigned order forward. Reason is
// required for StepFailed and ignored otherwise.
type ReportDeliveryProgressCommand struct { //nolint:recvcheck //using for validation
	orderID   kernel.UUID
	courierID kernel.UUID
	step      ProgressStep
	reason    string

	guard guard.ConstructorGuard
}

func NewReportDeliveryProgressCommand(
	orderID, courierID kernel.UUID,
	step ProgressStep,
	reason string,
) (ReportDeliveryProgressCommand, error) {
	reason = strings.TrimSpace(reason)

	var stepErr error
	switch step {
	case StepPickedUp, StepDelivered:
	case StepFailed:
		if reason == "" {
			stepErr = errs.NewValueIsRequiredError("reason")
		}
	default:
		stepErr = errs.NewValueIsInvalidError("step")
	}

	if err := errors.Join(orderID.Validate(), courierID.Validate(), stepErr); err != nil {
		return ReportDeliveryProgressCommand{}, err
	}

	return ReportDeliveryProgressCommand{
		orderID:   orderID,
		courierID: courierID,
		step:      step,
		reason:    reason,
		guard:     guard.NewConstructorGuard(),
	}, nil
}

func (c ReportDeliveryProgressCommand) Validate() error {
	return c.guard.Validate(ErrReportDeliveryProgressCommandIsNotConstructed)
}

func (c ReportDeliveryProgressCommand) OrderID() kernel.UUID   { return c.orderID }
func (c ReportDeliveryProgressCommand) CourierID() kernel.UUID { return c.courierID }
func (c ReportDeliveryProgressCommand) Step() ProgressStep     { return c.step }
func (c ReportDeliveryProgressCommand) Reason() string         { return c.reason }
