package commands

import (
	"context"

	"courierhub/internal/core/application/dispatch"
)

// AcceptOrderCommandHandler lets the arbiter decide and announces a fresh win.
// Duplicate accepts by the winner are answered without a second announcement.
type AcceptOrderCommandHandler struct {
	arbiter *dispatch.Arbiter
	fanout  *dispatch.Fanout
}

func NewAcceptOrderCommandHandler(
	arbiter *dispatch.Arbiter,
	fanout *dispatch.Fanout,
) AcceptOrderCommandHandler {
	return AcceptOrderCommandHandler{arbiter: arbiter, fanout: fanout}
}

func (h AcceptOrderCommandHandler) Handle(ctx context.Context, cmd AcceptOrderCommand) (dispatch.AcceptResult, error) {
	if err := cmd.Validate(); err != nil {
		return dispatch.AcceptResult{}, err
	}

	res, err := h.arbiter.TryAccept(ctx, cmd.OrderID(), cmd.CourierID(), cmd.AttemptSeq())
	if err != nil {
		return dispatch.AcceptResult{}, err
	}

	if res.Accepted() && !res.Duplicate {
		h.fanout.AnnounceAccepted(ctx, res.Order, res.Courier, res.Attempt)
	}

	return res, nil
}
