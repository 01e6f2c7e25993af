package commands

import (
	"errors"

	"courierhub/internal/pkg/errs"
	"courierhub/internal/pkg/guard"
)

var ErrExpireAttemptsCommandIsNotConstructed = errors.New(
	"ExpireAttemptsCommand must be created via NewExpireAttemptsCommand constructor",
)

// ExpireAttemptsCommand asks the supervisor to handle at most BatchSize
// expired attempts in one tick.
type ExpireAttemptsCommand struct { //nolint:recvcheck //using for validation
	batchSize int

	guard guard.ConstructorGuard
}

func NewExpireAttemptsCommand(batchSize int) (ExpireAttemptsCommand, error) {
	if batchSize <= 0 {
		return ExpireAttemptsCommand{}, errs.NewValueIsOutOfRangeError("batchSize", batchSize, 1, "unbounded")
	}

	return ExpireAttemptsCommand{
		batchSize: batchSize,
		guard:     guard.NewConstructorGuard(),
	}, nil
}

func (c ExpireAttemptsCommand) Validate() error {
	return c.guard.Validate(ErrExpireAttemptsCommandIsNotConstructed)
}

func (c ExpireAttemptsCommand) BatchSize() int {
	return c.batchSize
}
