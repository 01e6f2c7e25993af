package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"courierhub/internal/core/domain/model/notification"

	"github.com/gorilla/websocket"
)

var ErrHubClosed = errors.New("realtime hub is closed")

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Session is one websocket connection of a recipient. Only the write loop
// writes to conn.
type Session struct {
	conn      *websocket.Conn
	recipient notification.Recipient
	send      chan []byte
	done      chan struct{}
	stopOnce  sync.Once
	logger    *slog.Logger
}

func newSession(conn *websocket.Conn, recipient notification.Recipient, buffer int, logger *slog.Logger) *Session {
	return &Session{
		conn:      conn,
		recipient: recipient,
		send:      make(chan []byte, buffer),
		done:      make(chan struct{}),
		logger:    logger,
	}
}

func (s *Session) enqueue(payload []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- payload:
		return true
	default:
		return false
	}
}

func (s *Session) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

func (s *Session) run(ctx context.Context) error {
	readErr := make(chan error, 1)
	go func() { readErr <- s.readLoop() }()

	err := s.writeLoop(ctx, readErr)
	_ = s.conn.Close()
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return nil
	}
	return err
}

// readLoop drains client frames so pongs and close frames are processed.
func (s *Session) readLoop() error {
	s.conn.SetReadLimit(512)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return err
		}
	}
}

func (s *Session) writeLoop(ctx context.Context, readErr <-chan error) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case payload := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return err
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		case err := <-readErr:
			return err
		case <-s.done:
			return s.closeFrame(websocket.CloseGoingAway)
		case <-ctx.Done():
			return s.closeFrame(websocket.CloseGoingAway)
		}
	}
}

func (s *Session) closeFrame(code int) error {
	msg := websocket.FormatCloseMessage(code, "")
	err := s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		s.logger.Debug("close frame not sent", "recipient", s.recipient.String(), "error", err)
	}
	return nil
}
