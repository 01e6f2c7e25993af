package realtime_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"courierhub/internal/adapters/out/realtime"
	"courierhub/internal/core/domain/model/kernel"
	"courierhub/internal/core/domain/model/notification"
	"courierhub/internal/core/ports"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func startHub(t *testing.T, recipient notification.Recipient) (*realtime.Hub, string) {
	t.Helper()
	hub := realtime.NewHub(4, discard)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = hub.Serve(r.Context(), conn, recipient)
	}))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func newEvent(t *testing.T, r notification.Recipient) notification.Event {
	t.Helper()
	ev, err := notification.NewEvent(notification.NewOrder, kernel.NewUUID(), "CH-7", r, 1,
		map[string]string{"price": "56.40"}, time.Now())
	require.NoError(t, err)
	return ev
}

func TestHub_DeliversToEverySessionOfRecipient(t *testing.T) {
	courier := notification.CourierRecipient(kernel.NewUUID())
	hub, url := startHub(t, courier)

	first := dial(t, url)
	second := dial(t, url)
	require.Eventually(t, func() bool { return hub.Connected(courier) == 2 }, 2*time.Second, 10*time.Millisecond)

	ev := newEvent(t, courier)
	require.NoError(t, hub.Notify(t.Context(), ev))

	for _, conn := range []*websocket.Conn{first, second} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)

		var got map[string]any
		require.NoError(t, json.Unmarshal(raw, &got))
		assert.Equal(t, "NEW_ORDER", got["type"])
		assert.Equal(t, ev.ID.String(), got["id"])
	}
}

func TestHub_OfflineRecipient(t *testing.T) {
	hub := realtime.NewHub(4, discard)

	err := hub.Notify(t.Context(), newEvent(t, notification.CompanyRecipient(kernel.NewUUID())))
	require.ErrorIs(t, err, ports.ErrRecipientOffline)
}

func TestHub_SessionLeavesOnDisconnect(t *testing.T) {
	courier := notification.CourierRecipient(kernel.NewUUID())
	hub, url := startHub(t, courier)

	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.Connected(courier) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))
	require.Eventually(t, func() bool { return hub.Connected(courier) == 0 }, 2*time.Second, 10*time.Millisecond)

	err := hub.Notify(t.Context(), newEvent(t, courier))
	require.ErrorIs(t, err, ports.ErrRecipientOffline)
}

func TestHub_CloseDisconnectsSessions(t *testing.T) {
	courier := notification.CourierRecipient(kernel.NewUUID())
	hub, url := startHub(t, courier)

	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.Connected(courier) == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

type NotifierMock struct {
	mock.Mock
}

func (m *NotifierMock) Notify(ctx context.Context, ev notification.Event) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func TestMulti(t *testing.T) {
	ev := newEvent(t, notification.CourierRecipient(kernel.NewUUID()))
	boom := errors.New("broker down")

	tests := []struct {
		name    string
		results []error
		called  int
		wantErr error
	}{
		{name: "first channel delivers", results: []error{nil, nil}, called: 1},
		{name: "falls back when offline", results: []error{ports.ErrRecipientOffline, nil}, called: 2},
		{name: "falls back on failure", results: []error{boom, nil}, called: 2},
		{name: "all offline", results: []error{ports.ErrRecipientOffline, ports.ErrRecipientOffline}, called: 2, wantErr: ports.ErrRecipientOffline},
		{name: "failure wins over offline", results: []error{ports.ErrRecipientOffline, boom}, called: 2, wantErr: boom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var multi realtime.Multi
			for i, result := range tt.results {
				n := &NotifierMock{}
				if i < tt.called {
					n.On("Notify", mock.Anything, ev).Return(result).Once()
				}
				multi = append(multi, n)
			}

			err := multi.Notify(context.Background(), ev)
			if tt.wantErr == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tt.wantErr)
			}
			for i, n := range multi {
				if i < tt.called {
					n.(*NotifierMock).AssertExpectations(t)
				} else {
					n.(*NotifierMock).AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
				}
			}
		})
	}
}

type countingNotifier struct {
	mu    sync.Mutex
	count int
}

func (c *countingNotifier) Notify(context.Context, notification.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
	return nil
}

func (c *countingNotifier) deliveries() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

func TestMulti_RecipientOnBothChannelsGetsEventOnce(t *testing.T) {
	courier := notification.CourierRecipient(kernel.NewUUID())
	hub, url := startHub(t, courier)
	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.Connected(courier) == 1 }, 2*time.Second, 10*time.Millisecond)

	push := &countingNotifier{}
	channels := realtime.Multi{hub, push}

	require.NoError(t, channels.Notify(context.Background(), newEvent(t, courier)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, 0, push.deliveries())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err, "a second copy reached the websocket")

	t.Run("recipient without a websocket falls back to push", func(t *testing.T) {
		other := notification.CourierRecipient(kernel.NewUUID())
		require.NoError(t, channels.Notify(context.Background(), newEvent(t, other)))
		assert.Equal(t, 1, push.deliveries())
	})
}
