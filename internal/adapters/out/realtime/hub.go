// Package realtime pushes dispatch events to connected couriers and companies
// over websockets. The Hub tracks one or more sessions per recipient; the HTTP
// layer owns the upgrade and hands each connection to Hub.Serve.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"courierhub/internal/core/domain/model/notification"
	"courierhub/internal/core/ports"

	"github.com/gorilla/websocket"
)

type Hub struct {
	mu       sync.RWMutex
	sessions map[notification.Recipient]map[*Session]struct{}
	closed   bool
	buffer   int
	logger   *slog.Logger
}

// NewHub creates a hub whose sessions queue up to buffer events each. Events
// for a session with a full queue are dropped.
func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer < 1 {
		buffer = 16
	}
	return &Hub{
		sessions: make(map[notification.Recipient]map[*Session]struct{}),
		buffer:   buffer,
		logger:   logger.With("component", "realtime_hub"),
	}
}

// Serve joins conn to the recipient's channel and blocks until the peer goes
// away or ctx is cancelled.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, recipient notification.Recipient) error {
	if err := recipient.Validate(); err != nil {
		_ = conn.Close()
		return err
	}

	s := newSession(conn, recipient, h.buffer, h.logger)
	if !h.join(s) {
		_ = conn.Close()
		return ErrHubClosed
	}
	defer h.leave(s)

	return s.run(ctx)
}

func (h *Hub) join(s *Session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	set, ok := h.sessions[s.recipient]
	if !ok {
		set = make(map[*Session]struct{})
		h.sessions[s.recipient] = set
	}
	set[s] = struct{}{}
	h.logger.Debug("session joined", "recipient", s.recipient.String(), "sessions", len(set))
	return true
}

func (h *Hub) leave(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.sessions[s.recipient]
	delete(set, s)
	if len(set) == 0 {
		delete(h.sessions, s.recipient)
	}
	s.stop()
}

// Connected reports how many sessions the recipient has open.
func (h *Hub) Connected(r notification.Recipient) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[r])
}

// Notify queues the event on every session of its recipient. It returns
// ports.ErrRecipientOffline when no session took the event.
func (h *Hub) Notify(_ context.Context, event notification.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", event.ID, err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for s := range h.sessions[event.Recipient] {
		if s.enqueue(payload) {
			delivered++
		} else {
			h.logger.Warn("session queue full, event dropped",
				"recipient", event.Recipient.String(), "type", string(event.Type))
		}
	}
	if delivered == 0 {
		return ports.ErrRecipientOffline
	}
	return nil
}

// Close disconnects every session and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, set := range h.sessions {
		for s := range set {
			s.stop()
		}
	}
}
