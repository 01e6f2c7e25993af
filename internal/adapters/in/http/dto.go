package http

import (
	"time"

	"courierhub/internal/core/application/dispatch"
	"courierhub/internal/core/application/usecases/commands"
	"courierhub/internal/core/application/usecases/queries"
	"courierhub/internal/core/domain/model/courier"
	"courierhub/internal/core/domain/model/order"
)

const defaultPendingLimit = 50

type acceptRequest struct {
	CourierID  string `json:"courierId" validate:"required"`
	AttemptSeq int    `json:"attemptSeq" validate:"gte=0"`
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type progressRequest struct {
	CourierID string `json:"courierId" validate:"required"`
	Step      string `json:"step" validate:"required"`
	Reason    string `json:"reason"`
}

type presenceRequest struct {
	Name      string  `json:"name" validate:"required"`
	Phone     string  `json:"phone" validate:"required"`
	Lat       float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon       float64 `json:"lon" validate:"gte=-180,lte=180"`
	Rating    float64 `json:"rating" validate:"gte=0,lte=5"`
	Available *bool   `json:"available" validate:"required"`
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type createdOrder struct {
	OrderID            string     `json:"orderId"`
	TrackingCode       string     `json:"trackingCode"`
	Price              string     `json:"price"`
	CourierEarning     string     `json:"courierEarning"`
	AttemptSeq         int        `json:"attemptSeq"`
	Candidates         int        `json:"candidates"`
	ExpiresAt          *time.Time `json:"expiresAt,omitempty"`
	NoCourierAvailable bool       `json:"noCourierAvailable"`
	Message            string     `json:"message,omitempty"`
}

func newCreatedOrder(res commands.CreateAndDispatchResult) createdOrder {
	out := createdOrder{
		OrderID:            res.OrderID.String(),
		TrackingCode:       res.TrackingCode,
		Price:              res.Price.String(),
		CourierEarning:     res.CourierEarning.String(),
		AttemptSeq:         res.AttemptSeq,
		Candidates:         res.Candidates,
		NoCourierAvailable: res.NoCourierAvailable,
	}
	if err := res.DispatchErr(); err != nil {
		out.Message = err.Error()
	} else {
		expires := res.ExpiresAt
		out.ExpiresAt = &expires
	}
	return out
}

type orderSummary struct {
	OrderID      string `json:"orderId"`
	TrackingCode string `json:"trackingCode"`
	Status       string `json:"status"`
	AttemptSeq   int    `json:"attemptSeq"`
	CourierID    string `json:"courierId,omitempty"`
	CancelReason string `json:"cancelReason,omitempty"`
}

func newOrderSummary(o *order.Order) *orderSummary {
	if o == nil {
		return nil
	}
	out := &orderSummary{
		OrderID:      o.ID().String(),
		TrackingCode: o.TrackingCode(),
		Status:       o.Status().String(),
		AttemptSeq:   o.AttemptSeq(),
		CancelReason: o.CancelReason(),
	}
	if id := o.CourierID(); id != nil {
		out.CourierID = id.String()
	}
	return out
}

type acceptResponse struct {
	Accepted bool          `json:"accepted"`
	Outcome  string        `json:"outcome"`
	Message  string        `json:"message"`
	Order    *orderSummary `json:"order,omitempty"`
}

func newAcceptResponse(res dispatch.AcceptResult) acceptResponse {
	return acceptResponse{
		Accepted: res.Accepted(),
		Outcome:  res.Outcome.String(),
		Message:  outcomeMessage(res.Outcome),
		Order:    newOrderSummary(res.Order),
	}
}

func outcomeMessage(o dispatch.Outcome) string {
	switch o {
	case dispatch.OutcomeAccepted:
		return "order assigned to you"
	case dispatch.OutcomeAlreadyAssigned:
		return "order already taken by another courier"
	case dispatch.OutcomeStaleAttempt:
		return "offer is no longer current"
	case dispatch.OutcomeNotEligible:
		return "you are not eligible for this order"
	default:
		return ""
	}
}

type attemptSummary struct {
	Seq        int       `json:"seq"`
	Tier       int       `json:"tier"`
	Candidates int       `json:"candidates"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

type orderStatus struct {
	OrderID        string          `json:"orderId"`
	TrackingCode   string          `json:"trackingCode"`
	CompanyID      string          `json:"companyId"`
	Status         string          `json:"status"`
	Outcome        string          `json:"outcome"`
	CourierID      string          `json:"courierId,omitempty"`
	AttemptSeq     int             `json:"attemptSeq"`
	Price          string          `json:"price"`
	CourierEarning string          `json:"courierEarning"`
	CancelReason   string          `json:"cancelReason,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	AcceptedAt     *time.Time      `json:"acceptedAt,omitempty"`
	PickedUpAt     *time.Time      `json:"pickedUpAt,omitempty"`
	DeliveredAt    *time.Time      `json:"deliveredAt,omitempty"`
	ClosedAt       *time.Time      `json:"closedAt,omitempty"`
	CurrentAttempt *attemptSummary `json:"currentAttempt,omitempty"`
}

func newOrderStatus(res queries.GetOrderStatusQueryResponse) orderStatus {
	out := orderStatus{
		OrderID:        res.ID.String(),
		TrackingCode:   res.TrackingCode,
		CompanyID:      res.CompanyID.String(),
		Status:         res.Status,
		Outcome:        string(res.Outcome),
		AttemptSeq:     res.AttemptSeq,
		Price:          res.Price,
		CourierEarning: res.CourierEarning,
		CancelReason:   res.CancelReason,
		CreatedAt:      res.CreatedAt,
		AcceptedAt:     res.AcceptedAt,
		PickedUpAt:     res.PickedUpAt,
		DeliveredAt:    res.DeliveredAt,
		ClosedAt:       res.ClosedAt,
	}
	if res.CourierID != nil {
		out.CourierID = res.CourierID.String()
	}
	if a := res.CurrentAttempt; a != nil {
		out.CurrentAttempt = &attemptSummary{Seq: a.Seq, Tier: a.Tier, Candidates: a.Candidates, ExpiresAt: a.ExpiresAt}
	}
	return out
}

type pendingOrder struct {
	OrderID      string     `json:"orderId"`
	TrackingCode string     `json:"trackingCode"`
	CompanyID    string     `json:"companyId"`
	AttemptSeq   int        `json:"attemptSeq"`
	Tier         int        `json:"tier"`
	Candidates   int        `json:"candidates"`
	Price        string     `json:"price"`
	CreatedAt    time.Time  `json:"createdAt"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
}

func newPendingOrder(row queries.GetPendingOrdersQueryResponse) pendingOrder {
	return pendingOrder{
		OrderID:      row.ID.String(),
		TrackingCode: row.TrackingCode,
		CompanyID:    row.CompanyID.String(),
		AttemptSeq:   row.AttemptSeq,
		Tier:         row.Tier,
		Candidates:   row.Candidates,
		Price:        row.Price,
		CreatedAt:    row.CreatedAt,
		ExpiresAt:    row.ExpiresAt,
	}
}

type onlineCourier struct {
	CourierID    string  `json:"courierId"`
	Name         string  `json:"name"`
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	Rating       float64 `json:"rating"`
	ActiveOrders int     `json:"activeOrders"`
}

func newOnlineCourier(c *courier.Courier) onlineCourier {
	return onlineCourier{
		CourierID:    c.ID().String(),
		Name:         c.Name(),
		Lat:          c.Location().Latitude(),
		Lon:          c.Location().Longitude(),
		Rating:       c.Rating(),
		ActiveOrders: c.ActiveOrders(),
	}
}
