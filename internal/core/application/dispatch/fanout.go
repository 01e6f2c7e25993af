package dispatch

import (
	"context"
	"log/slog"

	"courierhub/internal/core/domain/model/attempt"
	"courierhub/internal/core/domain/model/courier"
	"courierhub/internal/core/domain/model/kernel"
	"courierhub/internal/core/domain/model/notification"
	"courierhub/internal/core/domain/model/order"
	"courierhub/internal/core/ports"
	"courierhub/internal/pkg/clock"
)

// Fanout announces dispatch outcomes. Within one announcement every
// recipient receives at most one event.
type Fanout struct {
	sender sender
	clock  clock.Clock
}

func NewFanout(
	notifier ports.Notifier,
	audit ports.AuditSink,
	metrics ports.DispatchMetrics,
	clk clock.Clock,
	logger *slog.Logger,
) *Fanout {
	return &Fanout{
		sender: sender{
			notifier: notifier,
			audit:    audit,
			metrics:  metrics,
			logger:   logger.With("component", "notification_fanout"),
		},
		clock: clk,
	}
}

// AnnounceAccepted tells the company and the winner about the assignment and
// every other candidate of the attempt that the order is gone.
func (f *Fanout) AnnounceAccepted(ctx context.Context, o *order.Order, winner *courier.Courier, a *attempt.Attempt) {
	acceptedAt := f.clock.Now()
	if at := o.AcceptedAt(); at != nil {
		acceptedAt = *at
	}
	full := notification.AssignmentPayload{
		CourierID:    winner.ID(),
		CourierName:  winner.Name(),
		CourierPhone: winner.Phone(),
		AcceptedAt:   acceptedAt,
	}

	accepted := newRecipients()
	accepted.add(notification.CompanyRecipient(o.CompanyID()), notification.CourierRecipient(winner.ID()))
	f.emit(ctx, o, notification.OrderAccepted, o.AttemptSeq(), full, accepted.order)

	if a == nil {
		return
	}
	losers := newRecipients()
	for _, id := range a.Others(winner.ID()) {
		losers.add(notification.CourierRecipient(id))
	}
	f.emit(ctx, o, notification.OrderAcceptedByAnother, a.Seq(),
		notification.AssignmentPayload{CourierID: winner.ID(), AcceptedAt: acceptedAt}, losers.order)
}

// AnnounceTimedOut tells the candidates of the expired attempt that the offer
// is withdrawn. The company is told only when final, i.e. the order was
// cancelled because every tier expired.
func (f *Fanout) AnnounceTimedOut(ctx context.Context, o *order.Order, expired *attempt.Attempt, final bool) {
	rs := newRecipients()
	if final {
		rs.add(notification.CompanyRecipient(o.CompanyID()))
	}
	seq := o.AttemptSeq()
	if expired != nil {
		seq = expired.Seq()
		for _, id := range expired.Candidates() {
			rs.add(notification.CourierRecipient(id))
		}
	}

	reason := o.CancelReason()
	if !final {
		reason = "offer expired"
	}
	f.emit(ctx, o, notification.OrderTimedOut, seq, notification.ClosurePayload{Reason: reason, Final: final}, rs.order)
}

// AnnounceNoCandidates tells the company that an escalated attempt found
// nobody to offer the order to.
func (f *Fanout) AnnounceNoCandidates(ctx context.Context, o *order.Order, a *attempt.Attempt) {
	f.emit(ctx, o, notification.NoCourierAvailable, a.Seq(),
		notification.SearchPayload{Tier: a.Tier(), RetryAt: a.ExpiresAt()},
		[]notification.Recipient{notification.CompanyRecipient(o.CompanyID())})
}

// AnnounceCancelled notifies the company, the released courier and the
// candidates of the attempt that was open when the order was cancelled.
func (f *Fanout) AnnounceCancelled(ctx context.Context, o *order.Order, released *kernel.UUID, open *attempt.Attempt) {
	rs := newRecipients()
	rs.add(notification.CompanyRecipient(o.CompanyID()))
	if released != nil {
		rs.add(notification.CourierRecipient(*released))
	}
	seq := o.AttemptSeq()
	if open != nil {
		seq = open.Seq()
		for _, id := range open.Candidates() {
			rs.add(notification.CourierRecipient(id))
		}
	}
	f.emit(ctx, o, notification.OrderCancelled, seq,
		notification.ClosurePayload{Reason: o.CancelReason(), Final: true}, rs.order)
}

func (f *Fanout) emit(
	ctx context.Context,
	o *order.Order,
	t notification.Type,
	seq int,
	payload any,
	to []notification.Recipient,
) {
	now := f.clock.Now()
	for _, r := range to {
		ev, err := notification.NewEvent(t, o.ID(), o.TrackingCode(), r, seq, payload, now)
		if err != nil {
			f.sender.logger.ErrorContext(ctx, "Build event", "type", t, "order_id", o.ID().String(), "error", err)
			continue
		}
		f.sender.send(ctx, ev)
	}
}
