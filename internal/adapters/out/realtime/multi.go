package realtime

import (
	"context"
	"errors"

	"courierhub/internal/core/domain/model/notification"
	"courierhub/internal/core/ports"
)

// Multi is an ordered fallback chain of channels. Each event goes to the
// first channel that takes it and no further, so a recipient reachable on
// several channels still receives it once.
type Multi []ports.Notifier

func (m Multi) Notify(ctx context.Context, event notification.Event) error {
	var failures []error
	for _, n := range m {
		err := n.Notify(ctx, event)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ports.ErrRecipientOffline) {
			failures = append(failures, err)
		}
	}
	if len(failures) > 0 {
		return errors.Join(failures...)
	}
	return ports.ErrRecipientOffline
}
