// Package notification describes the events pushed to couriers and companies
// while an order is being dispatched. Events are plain values: they are built
// by the dispatch layer and handed to a Notifier, which decides how to reach
// the recipient.
package notification

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"courierhub/internal/core/domain/model/kernel"
	"courierhub/internal/pkg/errs"
)

type Type string

const (
	NewOrder               Type = "NEW_ORDER"
	OrderAccepted          Type = "ORDER_ACCEPTED"
	OrderAcceptedByAnother Type = "ORDER_ACCEPTED_BY_ANOTHER"
	OrderTimedOut          Type = "ORDER_TIMED_OUT"
	OrderCancelled         Type = "ORDER_CANCELLED"
	NoCourierAvailable     Type = "NO_COURIER_AVAILABLE"
)

func (t Type) Validate() error {
	switch t {
	case NewOrder, OrderAccepted, OrderAcceptedByAnother, OrderTimedOut, OrderCancelled, NoCourierAvailable:
		return nil
	}
	return errs.NewValueIsInvalidErrorWithCause("type", fmt.Errorf("unknown event type %q", string(t)))
}

type RecipientKind string

const (
	KindCourier RecipientKind = "courier"
	KindCompany RecipientKind = "company"
)

// Recipient is comparable, so fan-out code can dedupe with a map.
type Recipient struct {
	Kind RecipientKind `json:"kind"`
	ID   kernel.UUID   `json:"id"`
}

func CourierRecipient(id kernel.UUID) Recipient {
	return Recipient{Kind: KindCourier, ID: id}
}

func CompanyRecipient(id kernel.UUID) Recipient {
	return Recipient{Kind: KindCompany, ID: id}
}

func (r Recipient) String() string {
	return string(r.Kind) + ":" + r.ID.String()
}

func (r Recipient) Validate() error {
	if r.Kind != KindCourier && r.Kind != KindCompany {
		return errs.NewValueIsInvalidErrorWithCause("recipient", fmt.Errorf("unknown recipient kind %q", string(r.Kind)))
	}
	if err := r.ID.Validate(); err != nil {
		return errs.NewValueIsRequiredErrorWithCause("recipient", err)
	}
	return nil
}

// ParseRecipient reads the "kind:id" form produced by Recipient.String.
func ParseRecipient(s string) (Recipient, error) {
	kind, rawID, ok := strings.Cut(s, ":")
	if !ok {
		return Recipient{}, errs.NewValueIsInvalidErrorWithCause("recipient", errors.New("expected kind:id"))
	}
	id, err := kernel.UUIDFromString(rawID)
	if err != nil {
		return Recipient{}, errs.NewValueIsInvalidErrorWithCause("recipient", err)
	}
	r := Recipient{Kind: RecipientKind(kind), ID: id}
	if err := r.Validate(); err != nil {
		return Recipient{}, err
	}
	return r, nil
}

type Event struct {
	ID           kernel.UUID `json:"id"`
	Type         Type        `json:"type"`
	OrderID      kernel.UUID `json:"orderId"`
	TrackingCode string      `json:"trackingCode"`
	Recipient    Recipient   `json:"recipient"`
	AttemptSeq   int         `json:"attemptSeq"`
	Payload      any         `json:"payload,omitempty"`
	OccurredAt   time.Time   `json:"occurredAt"`
}

func NewEvent(
	t Type,
	orderID kernel.UUID,
	trackingCode string,
	recipient Recipient,
	attemptSeq int,
	payload any,
	occurredAt time.Time,
) (Event, error) {
	var problems []error
	if err := t.Validate(); err != nil {
		problems = append(problems, err)
	}
	if err := orderID.Validate(); err != nil {
		problems = append(problems, errs.NewValueIsRequiredErrorWithCause("orderId", err))
	}
	if err := recipient.Validate(); err != nil {
		problems = append(problems, err)
	}
	if attemptSeq < 1 {
		problems = append(problems, errs.NewValueIsOutOfRangeError("attemptSeq", attemptSeq, 1, "unbounded"))
	}
	if len(problems) > 0 {
		return Event{}, errors.Join(problems...)
	}

	return Event{
		ID:           kernel.NewUUID(),
		Type:         t,
		OrderID:      orderID,
		TrackingCode: trackingCode,
		Recipient:    recipient,
		AttemptSeq:   attemptSeq,
		Payload:      payload,
		OccurredAt:   occurredAt.UTC(),
	}, nil
}
