package commands

import (
	"errors"

	"courierhub/internal/core/domain/model/kernel"
	"courierhub/internal/pkg/errs"
	"courierhub/internal/pkg/guard"
)

var ErrAcceptOrderCommandIsNotConstructed = errors.New(
	"AcceptOrderCommand must be created via NewAcceptOrderCommand constructor",
)

// AcceptOrderCommand is a courier's answer to an offer. AttemptSeq 0 means
// "whatever attempt is current", which legacy clients send.
type AcceptOrderCommand struct { //nolint:recvcheck //using for validation
	orderID    kernel.UUID
	courierID  kernel.UUID
	attemptSeq int

	guard guard.ConstructorGuard
}

func NewAcceptOrderCommand(orderID, courierID kernel.UUID, attemptSeq int) (AcceptOrderCommand, error) {
	var seqErr error
	if attemptSeq < 0 {
		seqErr = errs.NewValueIsOutOfRangeError("attemptSeq", attemptSeq, 0, "unbounded")
	}

	if err := errors.Join(orderID.Validate(), courierID.Validate(), seqErr); err != nil {
		return AcceptOrderCommand{}, err
	}

	return AcceptOrderCommand{
		orderID:    orderID,
		courierID:  courierID,
		attemptSeq: attemptSeq,
		guard:      guard.NewConstructorGuard(),
	}, nil
}

func (c AcceptOrderCommand) Validate() error {
	return c.guard.Validate(ErrAcceptOrderCommandIsNotConstructed)
}

func (c AcceptOrderCommand) OrderID() kernel.UUID {
	return c.orderID
}

func (c AcceptOrderCommand) CourierID() kernel.UUID {
	return c.courierID
}

func (c AcceptOrderCommand) AttemptSeq() int {
	return c.attemptSeq
}
