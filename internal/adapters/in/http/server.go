package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"courierhub/internal/adapters/in/orderdraft"
	"courierhub/internal/core/application/dispatch"
	"courierhub/internal/core/application/usecases/commands"
	"courierhub/internal/core/application/usecases/queries"
	"courierhub/internal/core/domain/model/courier"
	"courierhub/internal/core/domain/model/kernel"
	"courierhub/internal/core/domain/model/notification"
	"courierhub/internal/core/domain/model/order"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

type OrderCreator interface {
	Handle(ctx context.Context, cmd commands.CreateAndDispatchOrderCommand) (commands.CreateAndDispatchResult, error)
}

type OrderAcceptor interface {
	Handle(ctx context.Context, cmd commands.AcceptOrderCommand) (dispatch.AcceptResult, error)
}

type OrderCanceller interface {
	Handle(ctx context.Context, cmd commands.CancelOrderCommand) (*order.Order, error)
}

type ProgressReporter interface {
	Handle(ctx context.Context, cmd commands.ReportDeliveryProgressCommand) (*order.Order, error)
}

type PresenceUpdater interface {
	Handle(ctx context.Context, cmd commands.UpdateCourierPresenceCommand) (*courier.Courier, error)
}

type OrderStatusReader interface {
	Handle(ctx context.Context, query queries.GetOrderStatusQuery) (queries.GetOrderStatusQueryResponse, error)
}

type PendingOrdersReader interface {
	Handle(ctx context.Context, query queries.GetPendingOrdersQuery) ([]queries.GetPendingOrdersQueryResponse, error)
}

type OnlineCouriersReader interface {
	Handle(ctx context.Context, query queries.GetOnlineCouriersQuery) ([]queries.GetOnlineCouriersQueryResponse, error)
}

// LiveHub keeps a websocket open for one recipient until the peer leaves.
type LiveHub interface {
	Serve(ctx context.Context, conn *websocket.Conn, recipient notification.Recipient) error
}

// Handlers groups the use cases the server delegates to.
type Handlers struct {
	CreateOrder    OrderCreator
	AcceptOrder    OrderAcceptor
	CancelOrder    OrderCanceller
	ReportProgress ProgressReporter
	UpdatePresence PresenceUpdater

	OrderStatus    OrderStatusReader
	PendingOrders  PendingOrdersReader
	OnlineCouriers OnlineCouriersReader
}

// Server translates HTTP requests into commands and queries.
type Server struct {
	handlers Handlers
	hub      LiveHub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewServer(handlers Handlers, hub LiveHub, logger *slog.Logger) *Server {
	return &Server{
		handlers: handlers,
		hub:      hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// CreateOrder handles POST /api/v1/orders.
func (s *Server) CreateOrder(c echo.Context) error {
	var draft orderdraft.Draft
	if err := c.Bind(&draft); err != nil {
		return invalidParam("body", err)
	}
	cmd, err := draft.Command(validatorOf(c))
	if err != nil {
		return err
	}

	res, err := s.handlers.CreateOrder.Handle(c.Request().Context(), cmd)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, newCreatedOrder(res))
}

// AcceptOrder handles POST /api/v1/orders/:orderId/accept. Losing the race
// is answered with 200 and accepted=false.
func (s *Server) AcceptOrder(c echo.Context) error {
	orderID, err := pathUUID(c, "orderId")
	if err != nil {
		return err
	}
	var req acceptRequest
	if err = bindAndValidate(c, &req); err != nil {
		return err
	}
	courierID, err := kernel.UUIDFromString(req.CourierID)
	if err != nil {
		return invalidParam("courierId", err)
	}

	cmd, err := commands.NewAcceptOrderCommand(orderID, courierID, req.AttemptSeq)
	if err != nil {
		return err
	}
	res, err := s.handlers.AcceptOrder.Handle(c.Request().Context(), cmd)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newAcceptResponse(res))
}

// CancelOrder handles POST /api/v1/orders/:orderId/cancel.
func (s *Server) CancelOrder(c echo.Context) error {
	orderID, err := pathUUID(c, "orderId")
	if err != nil {
		return err
	}
	var req cancelRequest
	if err = bindAndValidate(c, &req); err != nil {
		return err
	}

	cmd, err := commands.NewCancelOrderCommand(orderID, req.Reason)
	if err != nil {
		return err
	}
	o, err := s.handlers.CancelOrder.Handle(c.Request().Context(), cmd)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newOrderSummary(o))
}

// ReportProgress handles POST /api/v1/orders/:orderId/progress.
func (s *Server) ReportProgress(c echo.Context) error {
	orderID, err := pathUUID(c, "orderId")
	if err != nil {
		return err
	}
	var req progressRequest
	if err = bindAndValidate(c, &req); err != nil {
		return err
	}
	courierID, err := kernel.UUIDFromString(req.CourierID)
	if err != nil {
		return invalidParam("courierId", err)
	}
	step, err := commands.ParseProgressStep(req.Step)
	if err != nil {
		return err
	}

	cmd, err := commands.NewReportDeliveryProgressCommand(orderID, courierID, step, req.Reason)
	if err != nil {
		return err
	}
	o, err := s.handlers.ReportProgress.Handle(c.Request().Context(), cmd)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newOrderSummary(o))
}

// UpdatePresence handles PUT /api/v1/couriers/:courierId/presence.
func (s *Server) UpdatePresence(c echo.Context) error {
	courierID, err := pathUUID(c, "courierId")
	if err != nil {
		return err
	}
	var req presenceRequest
	if err = bindAndValidate(c, &req); err != nil {
		return err
	}
	location, err := kernel.NewGeoPoint(req.Lat, req.Lon)
	if err != nil {
		return invalidParam("location", err)
	}

	cmd, err := commands.NewUpdateCourierPresenceCommand(courierID, req.Name, req.Phone, location,
		req.Rating, *req.Available)
	if err != nil {
		return err
	}
	cr, err := s.handlers.UpdatePresence.Handle(c.Request().Context(), cmd)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newOnlineCourier(cr))
}

// GetOrderStatus handles GET /api/v1/orders/:orderId.
func (s *Server) GetOrderStatus(c echo.Context) error {
	orderID, err := pathUUID(c, "orderId")
	if err != nil {
		return err
	}
	query, err := queries.NewGetOrderStatusQuery(orderID)
	if err != nil {
		return err
	}

	res, err := s.handlers.OrderStatus.Handle(c.Request().Context(), query)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newOrderStatus(res))
}

// GetPendingOrders handles GET /api/v1/orders/pending.
func (s *Server) GetPendingOrders(c echo.Context) error {
	limit := defaultPendingLimit
	if raw := c.QueryParam("limit"); raw != "" {
		if err := echo.QueryParamsBinder(c).Int("limit", &limit).BindError(); err != nil {
			return invalidParam("limit", err)
		}
	}
	query, err := queries.NewGetPendingOrdersQuery(limit)
	if err != nil {
		return err
	}

	rows, err := s.handlers.PendingOrders.Handle(c.Request().Context(), query)
	if err != nil {
		return err
	}
	response := make([]pendingOrder, len(rows))
	for i, row := range rows {
		response[i] = newPendingOrder(row)
	}
	return c.JSON(http.StatusOK, response)
}

// GetOnlineCouriers handles GET /api/v1/couriers/online.
func (s *Server) GetOnlineCouriers(c echo.Context) error {
	rows, err := s.handlers.OnlineCouriers.Handle(c.Request().Context(), queries.NewGetOnlineCouriersQuery())
	if err != nil {
		return err
	}
	response := make([]onlineCourier, len(rows))
	for i, row := range rows {
		response[i] = onlineCourier{
			CourierID:    row.ID.String(),
			Name:         row.Name,
			Lat:          row.Location.Latitude(),
			Lon:          row.Location.Longitude(),
			Rating:       row.Rating,
			ActiveOrders: row.ActiveOrders,
		}
	}
	return c.JSON(http.StatusOK, response)
}

// Live handles GET /api/v1/live?recipient=courier:<id>. The connection stays
// open until the client leaves or the hub shuts down.
func (s *Server) Live(c echo.Context) error {
	recipient, err := notification.ParseRecipient(c.QueryParam("recipient"))
	if err != nil {
		return err
	}

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already answered the client
		s.logger.Debug("websocket upgrade failed", "recipient", recipient.String(), "error", err)
		return nil
	}

	if err = s.hub.Serve(c.Request().Context(), conn, recipient); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Debug("live session ended", "recipient", recipient.String(), "error", err)
	}
	return nil
}
