package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	httpadapter "courierhub/internal/adapters/in/http"
	"courierhub/internal/adapters/in/http/openapi"
	"courierhub/internal/adapters/out/realtime"
	"courierhub/internal/core/application/dispatch"
	"courierhub/internal/core/application/dispatch/dispatchtest"
	"courierhub/internal/core/application/usecases/commands"
	"courierhub/internal/core/application/usecases/queries"
	"courierhub/internal/core/domain/model/courier"
	"courierhub/internal/core/domain/model/kernel"
	"courierhub/internal/core/domain/model/notification"
	"courierhub/internal/core/domain/model/order"
	"courierhub/internal/core/ports"
	"courierhub/internal/pkg/errs"

	"github.com/gorilla/websocket"
	"github.com/govalues/decimal"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type CreatorMock struct{ mock.Mock }

func (m *CreatorMock) Handle(ctx context.Context, cmd commands.CreateAndDispatchOrderCommand) (commands.CreateAndDispatchResult, error) {
	args := m.Called(ctx, cmd)
	return args.Get(0).(commands.CreateAndDispatchResult), args.Error(1)
}

type AcceptorMock struct{ mock.Mock }

func (m *AcceptorMock) Handle(ctx context.Context, cmd commands.AcceptOrderCommand) (dispatch.AcceptResult, error) {
	args := m.Called(ctx, cmd)
	return args.Get(0).(dispatch.AcceptResult), args.Error(1)
}

type CancellerMock struct{ mock.Mock }

func (m *CancellerMock) Handle(ctx context.Context, cmd commands.CancelOrderCommand) (*order.Order, error) {
	args := m.Called(ctx, cmd)
	o, _ := args.Get(0).(*order.Order)
	return o, args.Error(1)
}

type ProgressMock struct{ mock.Mock }

func (m *ProgressMock) Handle(ctx context.Context, cmd commands.ReportDeliveryProgressCommand) (*order.Order, error) {
	args := m.Called(ctx, cmd)
	o, _ := args.Get(0).(*order.Order)
	return o, args.Error(1)
}

type PresenceMock struct{ mock.Mock }

func (m *PresenceMock) Handle(ctx context.Context, cmd commands.UpdateCourierPresenceCommand) (*courier.Courier, error) {
	args := m.Called(ctx, cmd)
	c, _ := args.Get(0).(*courier.Courier)
	return c, args.Error(1)
}

type StatusMock struct{ mock.Mock }

func (m *StatusMock) Handle(ctx context.Context, q queries.GetOrderStatusQuery) (queries.GetOrderStatusQueryResponse, error) {
	args := m.Called(ctx, q)
	return args.Get(0).(queries.GetOrderStatusQueryResponse), args.Error(1)
}

type PendingMock struct{ mock.Mock }

func (m *PendingMock) Handle(ctx context.Context, q queries.GetPendingOrdersQuery) ([]queries.GetPendingOrdersQueryResponse, error) {
	args := m.Called(ctx, q)
	return args.Get(0).([]queries.GetPendingOrdersQueryResponse), args.Error(1)
}

type OnlineMock struct{ mock.Mock }

func (m *OnlineMock) Handle(ctx context.Context, q queries.GetOnlineCouriersQuery) ([]queries.GetOnlineCouriersQueryResponse, error) {
	args := m.Called(ctx, q)
	return args.Get(0).([]queries.GetOnlineCouriersQueryResponse), args.Error(1)
}

type fixture struct {
	creator   *CreatorMock
	acceptor  *AcceptorMock
	canceller *CancellerMock
	progress  *ProgressMock
	presence  *PresenceMock
	status    *StatusMock
	pending   *PendingMock
	online    *OnlineMock
	hub       *realtime.Hub
	echo      *echo.Echo
}

func newFixture(t *testing.T, cfg httpadapter.Config) *fixture {
	t.Helper()
	f := &fixture{
		creator:   &CreatorMock{},
		acceptor:  &AcceptorMock{},
		canceller: &CancellerMock{},
		progress:  &ProgressMock{},
		presence:  &PresenceMock{},
		status:    &StatusMock{},
		pending:   &PendingMock{},
		online:    &OnlineMock{},
		hub:       realtime.NewHub(4, discard),
	}
	t.Cleanup(f.hub.Close)

	spec, err := openapi.Load(t.Context())
	require.NoError(t, err)

	server := httpadapter.NewServer(httpadapter.Handlers{
		CreateOrder:    f.creator,
		AcceptOrder:    f.acceptor,
		CancelOrder:    f.canceller,
		ReportProgress: f.progress,
		UpdatePresence: f.presence,
		OrderStatus:    f.status,
		PendingOrders:  f.pending,
		OnlineCouriers: f.online,
	}, f.hub, discard)
	f.echo = httpadapter.NewEcho(cfg, server, spec, prometheus.NewRegistry(), discard)
	return f
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	f.echo.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

const draftBody = `{
	"companyId": "7f0c1d53-4a53-4bb4-8f0e-3f4f6a1b2c3d",
	"pickup": {"lat": 41.0082, "lon": 28.9784, "address": "Warehouse 7, Sirkeci"},
	"delivery": {"lat": 41.0422, "lon": 29.0083, "address": "Besiktas Sq. 3"},
	"package": {"size": "MEDIUM", "type": "documents"},
	"urgency": "NORMAL",
	"deliveryType": "STANDARD"
}`

func TestCreateOrder(t *testing.T) {
	f := newFixture(t, httpadapter.Config{})
	orderID := kernel.NewUUID()
	f.creator.On("Handle", mock.Anything, mock.MatchedBy(func(cmd commands.CreateAndDispatchOrderCommand) bool {
		return cmd.Validate() == nil
	})).Return(commands.CreateAndDispatchResult{
		OrderID:        orderID,
		TrackingCode:   "CH-8Q2K4M",
		Price:          decimal.MustParse("56.40"),
		CourierEarning: decimal.MustParse("45.12"),
		AttemptSeq:     1,
		Candidates:     3,
		ExpiresAt:      dispatchtest.Now.Add(30 * time.Second),
	}, nil).Once()

	rec := f.do(t, http.MethodPost, "/api/v1/orders", draftBody)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, orderID.String(), body["orderId"])
	assert.Equal(t, "56.40", body["price"])
	assert.Equal(t, "45.12", body["courierEarning"])
	assert.InDelta(t, 3, body["candidates"], 0)
	assert.Equal(t, false, body["noCourierAvailable"])
	assert.NotEmpty(t, body["expiresAt"])
	f.creator.AssertExpectations(t)
}

func TestCreateOrder_NoCourierAvailableIsNotAnError(t *testing.T) {
	f := newFixture(t, httpadapter.Config{})
	f.creator.On("Handle", mock.Anything, mock.Anything).Return(commands.CreateAndDispatchResult{
		OrderID:            kernel.NewUUID(),
		Price:              decimal.MustParse("56.40"),
		CourierEarning:     decimal.MustParse("45.12"),
		AttemptSeq:         1,
		NoCourierAvailable: true,
	}, nil).Once()

	rec := f.do(t, http.MethodPost, "/api/v1/orders", draftBody)

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["noCourierAvailable"])
	assert.Equal(t, dispatch.ErrNoEligibleCourier.Error(), body["message"])
	assert.NotContains(t, body, "expiresAt")
}

func TestCreateOrder_RejectsInvalidDraft(t *testing.T) {
	f := newFixture(t, httpadapter.Config{})

	rec := f.do(t, http.MethodPost, "/api/v1/orders", `{"pickup": {"lat": 100}}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Contains(t, body["message"], "companyId")
	assert.Contains(t, body["message"], "pickup.lat")
	f.creator.AssertNotCalled(t, "Handle", mock.Anything, mock.Anything)
}

func TestCreateOrder_DuplicateIsConflict(t *testing.T) {
	f := newFixture(t, httpadapter.Config{})
	f.creator.On("Handle", mock.Anything, mock.Anything).
		Return(commands.CreateAndDispatchResult{}, fmt.Errorf("%w: x", commands.ErrOrderAlreadyExists)).Once()

	rec := f.do(t, http.MethodPost, "/api/v1/orders", draftBody)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAcceptOrder(t *testing.T) {
	o := dispatchtest.PendingOrder(t, dispatchtest.Now)
	courierID := kernel.NewUUID()
	target := "/api/v1/orders/" + o.ID().String() + "/accept"
	body := `{"courierId": "` + courierID.String() + `", "attemptSeq": 1}`

	tests := []struct {
		name     string
		result   dispatch.AcceptResult
		err      error
		code     int
		accepted bool
		outcome  string
	}{
		{
			name:     "winner",
			result:   dispatch.AcceptResult{Outcome: dispatch.OutcomeAccepted, Order: o},
			code:     http.StatusOK,
			accepted: true,
			outcome:  "ACCEPTED",
		},
		{
			name:    "race lost",
			result:  dispatch.AcceptResult{Outcome: dispatch.OutcomeAlreadyAssigned, Order: o},
			code:    http.StatusOK,
			outcome: "ALREADY_ASSIGNED",
		},
		{
			name:    "stale offer",
			result:  dispatch.AcceptResult{Outcome: dispatch.OutcomeStaleAttempt, Order: o},
			code:    http.StatusOK,
			outcome: "STALE_ATTEMPT",
		},
		{
			name: "unknown order",
			err:  errs.NewObjectNotFoundError("orderId", o.ID()),
			code: http.StatusNotFound,
		},
		{
			name: "storage contention",
			err:  fmt.Errorf("accept: %w", ports.ErrStorageContention),
			code: http.StatusServiceUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, httpadapter.Config{})
			f.acceptor.On("Handle", mock.Anything, mock.MatchedBy(func(cmd commands.AcceptOrderCommand) bool {
				return cmd.OrderID() == o.ID() && cmd.CourierID() == courierID && cmd.AttemptSeq() == 1
			})).Return(tt.result, tt.err).Once()

			rec := f.do(t, http.MethodPost, target, body)

			require.Equal(t, tt.code, rec.Code, rec.Body.String())
			if tt.err == nil {
				got := decode(t, rec)
				assert.Equal(t, tt.accepted, got["accepted"])
				assert.Equal(t, tt.outcome, got["outcome"])
				assert.NotEmpty(t, got["message"])
			}
			f.acceptor.AssertExpectations(t)
		})
	}
}

func TestAcceptOrder_RejectsMalformedIDs(t *testing.T) {
	f := newFixture(t, httpadapter.Config{})

	rec := f.do(t, http.MethodPost, "/api/v1/orders/not-a-uuid/accept", `{"courierId": "`+kernel.NewUUID().String()+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/orders/"+kernel.NewUUID().String()+"/accept", `{"courierId": "nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/orders/"+kernel.NewUUID().String()+"/accept", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.acceptor.AssertNotCalled(t, "Handle", mock.Anything, mock.Anything)
}

func TestAcceptOrder_RateLimited(t *testing.T) {
	f := newFixture(t, httpadapter.Config{AcceptRate: 1, AcceptBurst: 1})
	o := dispatchtest.PendingOrder(t, dispatchtest.Now)
	f.acceptor.On("Handle", mock.Anything, mock.Anything).
		Return(dispatch.AcceptResult{Outcome: dispatch.OutcomeAlreadyAssigned, Order: o}, nil)
	target := "/api/v1/orders/" + o.ID().String() + "/accept"
	body := `{"courierId": "` + kernel.NewUUID().String() + `"}`

	first := f.do(t, http.MethodPost, target, body)
	second := f.do(t, http.MethodPost, target, body)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	f.acceptor.AssertNumberOfCalls(t, "Handle", 1)
}

func TestCancelOrder(t *testing.T) {
	o := dispatchtest.PendingOrder(t, dispatchtest.Now)
	require.NoError(t, o.Cancel("company changed plans", dispatchtest.Now))

	f := newFixture(t, httpadapter.Config{})
	f.canceller.On("Handle", mock.Anything, mock.Anything).Return(o, nil).Once()

	rec := f.do(t, http.MethodPost, "/api/v1/orders/"+o.ID().String()+"/cancel", `{"reason": "company changed plans"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "CANCELLED", body["status"])
	assert.Equal(t, "company changed plans", body["cancelReason"])
}

func TestCancelOrder_TerminalOrderIsConflict(t *testing.T) {
	f := newFixture(t, httpadapter.Config{})
	f.canceller.On("Handle", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: DELIVERED -> CANCELLED", order.ErrInvalidTransition)).Once()

	rec := f.do(t, http.MethodPost, "/api/v1/orders/"+kernel.NewUUID().String()+"/cancel", `{"reason": "late"}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestReportProgress(t *testing.T) {
	f := newFixture(t, httpadapter.Config{})
	target := "/api/v1/orders/" + kernel.NewUUID().String() + "/progress"

	rec := f.do(t, http.MethodPost, target, `{"courierId": "`+kernel.NewUUID().String()+`", "step": "teleported"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, target, `{"courierId": "`+kernel.NewUUID().String()+`", "step": "failed"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.progress.On("Handle", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w", order.ErrNotAssignedCourier)).Once()
	rec = f.do(t, http.MethodPost, target, `{"courierId": "`+kernel.NewUUID().String()+`", "step": "picked_up"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUpdatePresence(t *testing.T) {
	c := dispatchtest.CourierNear(t, "Deniz", 1, 4.8)
	f := newFixture(t, httpadapter.Config{})
	f.presence.On("Handle", mock.Anything, mock.Anything).Return(c, nil).Once()

	rec := f.do(t, http.MethodPut, "/api/v1/couriers/"+c.ID().String()+"/presence",
		`{"name": "Deniz", "phone": "+905550000000", "lat": 41.0172, "lon": 28.9784, "rating": 4.8, "available": true}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, c.ID().String(), body["courierId"])
	assert.Equal(t, "Deniz", body["name"])

	rec = f.do(t, http.MethodPut, "/api/v1/couriers/"+c.ID().String()+"/presence",
		`{"name": "Deniz", "phone": "+905550000000", "lat": 41.0172, "lon": 28.9784, "rating": 4.8}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetOrderStatus(t *testing.T) {
	orderID := kernel.NewUUID()
	f := newFixture(t, httpadapter.Config{})
	f.status.On("Handle", mock.Anything, mock.Anything).Return(queries.GetOrderStatusQueryResponse{
		ID:         orderID,
		Status:     "CANCELLED",
		Outcome:    queries.OutcomeNoCourierFound,
		AttemptSeq: 4,
		Price:      "56.40",
		CreatedAt:  dispatchtest.Now,
	}, nil).Once()

	rec := f.do(t, http.MethodGet, "/api/v1/orders/"+orderID.String(), "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "NO_COURIER_FOUND", body["outcome"])
	assert.NotContains(t, body, "currentAttempt")

	f.status.On("Handle", mock.Anything, mock.Anything).
		Return(queries.GetOrderStatusQueryResponse{}, errs.NewObjectNotFoundError("orderId", orderID)).Once()
	rec = f.do(t, http.MethodGet, "/api/v1/orders/"+orderID.String(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetPendingOrders(t *testing.T) {
	f := newFixture(t, httpadapter.Config{})
	f.pending.On("Handle", mock.Anything, mock.MatchedBy(func(q queries.GetPendingOrdersQuery) bool {
		return q.Limit() == 50
	})).Return([]queries.GetPendingOrdersQueryResponse{{ID: kernel.NewUUID(), Price: "56.40", Tier: 1}}, nil).Once()

	rec := f.do(t, http.MethodGet, "/api/v1/orders/pending", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	assert.Len(t, rows, 1)

	rec = f.do(t, http.MethodGet, "/api/v1/orders/pending?limit=501", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(t, http.MethodGet, "/api/v1/orders/pending?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetOnlineCouriers(t *testing.T) {
	f := newFixture(t, httpadapter.Config{})
	f.online.On("Handle", mock.Anything, mock.Anything).Return([]queries.GetOnlineCouriersQueryResponse{
		{ID: kernel.NewUUID(), Name: "Ayla", Location: dispatchtest.Pickup, Rating: 4.9, ActiveOrders: 1},
	}, nil).Once()

	rec := f.do(t, http.MethodGet, "/api/v1/couriers/online", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "Ayla", rows[0]["name"])
	assert.InDelta(t, 1, rows[0]["activeOrders"], 0)
}

func TestUnexpectedErrorsAreHidden(t *testing.T) {
	f := newFixture(t, httpadapter.Config{})
	f.online.On("Handle", mock.Anything, mock.Anything).
		Return([]queries.GetOnlineCouriersQueryResponse(nil), fmt.Errorf("dial tcp 10.0.0.5:5432: refused")).Once()

	rec := f.do(t, http.MethodGet, "/api/v1/couriers/online", "")

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
}

func TestServiceEndpoints(t *testing.T) {
	f := newFixture(t, httpadapter.Config{})

	rec := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/openapi.json", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "acceptOrder")
}

func TestLive(t *testing.T) {
	f := newFixture(t, httpadapter.Config{})

	rec := f.do(t, http.MethodGet, "/api/v1/live?recipient=driver:42", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	srv := httptest.NewServer(f.echo)
	t.Cleanup(srv.Close)
	recipient := notification.CourierRecipient(kernel.NewUUID())
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/live?recipient=" + recipient.String()

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })

	assert.Eventually(t, func() bool { return f.hub.Connected(recipient) == 1 }, 2*time.Second, 10*time.Millisecond)
}
