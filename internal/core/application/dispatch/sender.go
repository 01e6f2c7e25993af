package dispatch

import (
	"context"
	"errors"
	"log/slog"

	"courierhub/internal/core/domain/model/notification"
	"courierhub/internal/core/ports"
)

// sender delivers events best-effort: a failed delivery is logged and counted
// but never fails the operation that produced the event.
type sender struct {
	notifier ports.Notifier
	audit    ports.AuditSink
	metrics  ports.DispatchMetrics
	logger   *slog.Logger
}

func (s sender) send(ctx context.Context, ev notification.Event) {
	if err := s.notifier.Notify(ctx, ev); err != nil {
		if errors.Is(err, ports.ErrRecipientOffline) {
			s.logger.DebugContext(ctx, "Recipient offline",
				"type", ev.Type, "recipient", ev.Recipient.String(), "order_id", ev.OrderID.String())
		} else {
			s.metrics.NotificationFailed(string(ev.Type))
			s.logger.WarnContext(ctx, "Notification failed",
				"type", ev.Type, "recipient", ev.Recipient.String(), "order_id", ev.OrderID.String(), "error", err)
		}
	}

	if s.audit == nil {
		return
	}
	if err := s.audit.Publish(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "Audit publish failed", "type", ev.Type, "order_id", ev.OrderID.String(), "error", err)
	}
}

// recipients keeps the first occurrence of every recipient.
type recipients struct {
	seen  map[notification.Recipient]struct{}
	order []notification.Recipient
}

func newRecipients() *recipients {
	return &recipients{seen: make(map[notification.Recipient]struct{})}
}

func (r *recipients) add(list ...notification.Recipient) {
	for _, rc := range list {
		if _, ok := r.seen[rc]; ok {
			continue
		}
		r.seen[rc] = struct{}{}
		r.order = append(r.order, rc)
	}
}
