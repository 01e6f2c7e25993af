package ports

import (
	"context"
	"errors"

	"courierhub/internal/core/domain/model/notification"
)

// ErrRecipientOffline is returned by a Notifier that has no open channel to
// the event's recipient. Delivery is best-effort; callers log and move on.
var ErrRecipientOffline = errors.New("recipient offline")

// Notifier delivers one event to one recipient if they are connected.
type Notifier interface {
	Notify(ctx context.Context, event notification.Event) error
}

// AuditSink receives a copy of every dispatched event for downstream consumers.
type AuditSink interface {
	Publish(ctx context.Context, event notification.Event) error
}
