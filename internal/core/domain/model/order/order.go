package order

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"courierhub/internal/core/domain/model/kernel"
	"courierhub/internal/pkg/errs"
)

// ReasonNoCourierAccepted is recorded when every escalation tier expired
// without an acceptance.
const ReasonNoCourierAccepted = "no courier accepted"

const maxReasonLength = 256

var (
	ErrOrderIsNotConstructed = errors.New("Order must be created via NewOrder or RestoreOrder constructor")

	ErrInvalidTransition  = errors.New("order status transition is not allowed")
	ErrAlreadyAssigned    = errors.New("order is already assigned to a courier")
	ErrStaleAttempt       = errors.New("dispatch attempt is no longer current")
	ErrNotAssignedCourier = errors.New("courier is not assigned to this order")
)

// Order is the aggregate root of the dispatch core.
//
// Invariants:
//   - courierID is set if and only if the status holds an assignment
//     (ACCEPTED, IN_PROGRESS, DELIVERED)
//   - fare never changes after creation
//   - attemptSeq starts at 1 and only grows; every attempt invalidation
//     (escalation, cancellation, rejection) advances it
//   - terminal statuses permit no further mutation
//
// version is the optimistic concurrency token owned by the store: it is
// compared on every write and advanced by CommitVersion after a successful one.
type Order struct {
	id           kernel.UUID
	trackingCode string
	companyID    kernel.UUID

	pickup       Place
	delivery     Place
	parcel       Parcel
	urgency      Urgency
	deliveryType DeliveryType
	fare         Fare

	status       Status
	courierID    *kernel.UUID
	attemptSeq   int
	cancelReason string

	createdAt   time.Time
	acceptedAt  *time.Time
	pickedUpAt  *time.Time
	deliveredAt *time.Time
	closedAt    *time.Time

	version int64

	isConstructed bool
}

// NewOrder creates a PENDING order on its first dispatch attempt.
//
// Example:
//
//	o, err := order.NewOrder(kernel.NewUUID(), companyID, pickup, drop, parcel,
//	    order.UrgencyNormal, order.DeliveryStandard, fare, now)
func NewOrder(
	id kernel.UUID,
	companyID kernel.UUID,
	pickup Place,
	delivery Place,
	parcel Parcel,
	urgency Urgency,
	deliveryType DeliveryType,
	fare Fare,
	createdAt time.Time,
) (*Order, error) {
	o := &Order{
		status:        Pending,
		attemptSeq:    1,
		createdAt:     createdAt.UTC(),
		isConstructed: true,
	}

	if err := errors.Join(
		o.setID(id),
		o.setCompanyID(companyID),
		o.setPickup(pickup),
		o.setDelivery(delivery),
		o.setParcel(parcel),
		o.setUrgency(urgency),
		o.setDeliveryType(deliveryType),
		o.setFare(fare),
	); err != nil {
		return nil, err
	}
	o.trackingCode = NewTrackingCode(id)

	return o, nil
}

// State is the persisted form of an Order. Stores map it to and from rows.
type State struct {
	ID           kernel.UUID
	TrackingCode string
	CompanyID    kernel.UUID
	Pickup       Place
	Delivery     Place
	Parcel       Parcel
	Urgency      Urgency
	DeliveryType DeliveryType
	Fare         Fare
	Status       Status
	CourierID    *kernel.UUID
	AttemptSeq   int
	CancelReason string
	CreatedAt    time.Time
	AcceptedAt   *time.Time
	PickedUpAt   *time.Time
	DeliveredAt  *time.Time
	ClosedAt     *time.Time
	Version      int64
}

// RestoreOrder rebuilds an order loaded from storage and re-checks its invariants.
func RestoreOrder(s State) (*Order, error) {
	o := &Order{
		trackingCode:  s.TrackingCode,
		status:        s.Status,
		attemptSeq:    s.AttemptSeq,
		cancelReason:  s.CancelReason,
		createdAt:     s.CreatedAt,
		acceptedAt:    s.AcceptedAt,
		pickedUpAt:    s.PickedUpAt,
		deliveredAt:   s.DeliveredAt,
		closedAt:      s.ClosedAt,
		version:       s.Version,
		isConstructed: true,
	}

	if err := errors.Join(
		o.setID(s.ID),
		o.setCompanyID(s.CompanyID),
		o.setPickup(s.Pickup),
		o.setDelivery(s.Delivery),
		o.setParcel(s.Parcel),
		o.setUrgency(s.Urgency),
		o.setDeliveryType(s.DeliveryType),
		o.setFare(s.Fare),
		s.Status.Validate(),
	); err != nil {
		return nil, err
	}

	if s.AttemptSeq < 1 {
		return nil, errs.NewValueIsOutOfRangeError("attemptSeq", s.AttemptSeq, 1, "unbounded")
	}

	if s.CourierID != nil {
		if err := s.CourierID.Validate(); err != nil {
			return nil, err
		}
		id := *s.CourierID
		o.courierID = &id
	}

	if s.Status.HoldsAssignment() != (o.courierID != nil) {
		return nil, errs.NewValueIsInvalidErrorWithCause("courierId",
			fmt.Errorf("status %s does not match courier assignment", s.Status))
	}

	if o.trackingCode == "" {
		o.trackingCode = NewTrackingCode(s.ID)
	}

	return o, nil
}

// Snapshot returns the persisted form of the order.
func (o *Order) Snapshot() State {
	s := State{
		ID:           o.id,
		TrackingCode: o.trackingCode,
		CompanyID:    o.companyID,
		Pickup:       o.pickup,
		Delivery:     o.delivery,
		Parcel:       o.parcel,
		Urgency:      o.urgency,
		DeliveryType: o.deliveryType,
		Fare:         o.fare,
		Status:       o.status,
		AttemptSeq:   o.attemptSeq,
		CancelReason: o.cancelReason,
		CreatedAt:    o.createdAt,
		AcceptedAt:   o.acceptedAt,
		PickedUpAt:   o.pickedUpAt,
		DeliveredAt:  o.deliveredAt,
		ClosedAt:     o.closedAt,
		Version:      o.version,
	}
	if o.courierID != nil {
		id := *o.courierID
		s.CourierID = &id
	}
	return s
}

func (o *Order) Validate() error {
	if o == nil || !o.isConstructed {
		return ErrOrderIsNotConstructed
	}
	return nil
}

func (o *Order) ID() kernel.UUID { return o.id }
func (o *Order) TrackingCode() string { return o.trackingCode }
func (o *Order) CompanyID() kernel.UUID { return o.companyID }
func (o *Order) Pickup() Place { return o.pickup }
func (o *Order) Delivery() Place { return o.delivery }
func (o *Order) Parcel() Parcel { return o.parcel }
func (o *Order) Urgency() Urgency { return o.urgency }
func (o *Order) DeliveryType() DeliveryType { return o.deliveryType }
func (o *Order) Fare() Fare { return o.fare }
func (o *Order) Status() Status { return o.status }
func (o *Order) AttemptSeq() int { return o.attemptSeq }
func (o *Order) CancelReason() string { return o.cancelReason }
func (o *Order) CreatedAt() time.Time { return o.createdAt }
func (o *Order) AcceptedAt() *time.Time { return o.acceptedAt }
func (o *Order) PickedUpAt() *time.Time { return o.pickedUpAt }
func (o *Order) DeliveredAt() *time.Time { return o.deliveredAt }
func (o *Order) ClosedAt() *time.Time { return o.closedAt }
func (o *Order) Version() int64 { return o.version }

func (o *Order) IsAssignedTo(c kernel.UUID) bool {
	return o.courierID != nil && o.courierID.IsEqual(c)
}

// CourierID returns a copy of the assigned courier id, or nil.
func (o *Order) CourierID() *kernel.UUID {
	if o.courierID == nil {
		return nil
	}
	id := *o.courierID
	return &id
}

// TimedOut reports whether the order was closed by the escalation budget running out.
func (o *Order) TimedOut() bool {
	return o.status == Cancelled && o.cancelReason == ReasonNoCourierAccepted
}

// CommitVersion records the version the store wrote.
func (o *Order) CommitVersion(v int64) {
	o.version = v
}

// Accept binds the courier answering attemptSeq. Stores must persist the
// result with a version-guarded write so that only one Accept ever lands.
func (o *Order) Accept(courierID kernel.UUID, attemptSeq int, at time.Time) error {
	if err := errors.Join(o.Validate(), courierID.Validate()); err != nil {
		return err
	}
	if o.courierID != nil {
		return ErrAlreadyAssigned
	}
	if attemptSeq != o.attemptSeq {
		return fmt.Errorf("%w: got %d, current %d", ErrStaleAttempt, attemptSeq, o.attemptSeq)
	}
	if err := o.status.validateTransition(Accepted); err != nil {
		return err
	}

	id := courierID
	ts := at.UTC()
	o.courierID = &id
	o.acceptedAt = &ts
	o.status = Accepted
	return nil
}

// AdvanceAttempt opens the next dispatch attempt of a pending order and
// returns its sequence number.
func (o *Order) AdvanceAttempt() (int, error) {
	if err := o.Validate(); err != nil {
		return 0, err
	}
	if o.status != Pending {
		return 0, fmt.Errorf("%w: cannot re-dispatch a %s order", ErrInvalidTransition, o.status)
	}
	o.attemptSeq++
	return o.attemptSeq, nil
}

// Cancel closes a pending order and invalidates its current attempt so that
// in-flight acceptances fail as stale.
func (o *Order) Cancel(reason string, at time.Time) error {
	if err := o.Validate(); err != nil {
		return err
	}
	if !o.status.IsTerminal() && o.status.HoldsAssignment() {
		return fmt.Errorf("%w: %s", ErrAlreadyAssigned, o.status)
	}
	if err := o.status.validateTransition(Cancelled); err != nil {
		return err
	}
	reason, err := normalizeReason(reason)
	if err != nil {
		return err
	}

	o.close(Cancelled, reason, at)
	return nil
}

// CancelAssigned is the compensating cancellation of an ACCEPTED or
// IN_PROGRESS order. It releases the courier and returns its id.
func (o *Order) CancelAssigned(reason string, at time.Time) (kernel.UUID, error) {
	if err := o.Validate(); err != nil {
		return kernel.UUID{}, err
	}
	if o.courierID == nil {
		return kernel.UUID{}, fmt.Errorf("%w: %s order has no courier", ErrInvalidTransition, o.status)
	}
	if err := o.status.validateTransition(Cancelled); err != nil {
		return kernel.UUID{}, err
	}
	reason, err := normalizeReason(reason)
	if err != nil {
		return kernel.UUID{}, err
	}

	released := *o.courierID
	o.courierID = nil
	o.close(Cancelled, reason, at)
	return released, nil
}

// Reject closes a pending order on the company side.
func (o *Order) Reject(reason string, at time.Time) error {
	if err := o.Validate(); err != nil {
		return err
	}
	if err := o.status.validateTransition(Rejected); err != nil {
		return err
	}
	reason, err := normalizeReason(reason)
	if err != nil {
		return err
	}

	o.close(Rejected, reason, at)
	return nil
}

// ConfirmPickup moves an accepted order into delivery.
func (o *Order) ConfirmPickup(courierID kernel.UUID, at time.Time) error {
	if err := o.checkCourier(courierID); err != nil {
		return err
	}
	if err := o.status.validateTransition(InProgress); err != nil {
		return err
	}

	ts := at.UTC()
	o.pickedUpAt = &ts
	o.status = InProgress
	return nil
}

// ConfirmDelivery completes the order. The courier stays recorded.
func (o *Order) ConfirmDelivery(courierID kernel.UUID, at time.Time) error {
	if err := o.checkCourier(courierID); err != nil {
		return err
	}
	if err := o.status.validateTransition(Delivered); err != nil {
		return err
	}

	ts := at.UTC()
	o.deliveredAt = &ts
	o.closedAt = &ts
	o.status = Delivered
	return nil
}

// Fail records a delivery that could not be completed and releases the courier.
func (o *Order) Fail(courierID kernel.UUID, reason string, at time.Time) error {
	if err := o.checkCourier(courierID); err != nil {
		return err
	}
	if err := o.status.validateTransition(Failed); err != nil {
		return err
	}
	reason, err := normalizeReason(reason)
	if err != nil {
		return err
	}

	o.courierID = nil
	ts := at.UTC()
	o.status = Failed
	o.cancelReason = reason
	o.closedAt = &ts
	return nil
}

func (o *Order) close(status Status, reason string, at time.Time) {
	ts := at.UTC()
	o.status = status
	o.cancelReason = reason
	o.closedAt = &ts
	o.attemptSeq++
}

func (o *Order) checkCourier(courierID kernel.UUID) error {
	if err := errors.Join(o.Validate(), courierID.Validate()); err != nil {
		return err
	}
	if !o.IsAssignedTo(courierID) {
		return ErrNotAssignedCourier
	}
	return nil
}

func normalizeReason(reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "", errs.NewValueIsRequiredError("reason")
	}
	if len(reason) > maxReasonLength {
		return "", errs.NewValueIsOutOfRangeError("reason", len(reason), 1, maxReasonLength)
	}
	return reason, nil
}

func (o *Order) setID(id kernel.UUID) error {
	if err := id.Validate(); err != nil {
		return errs.NewValueIsRequiredErrorWithCause("id", err)
	}
	o.id = id
	return nil
}

func (o *Order) setCompanyID(id kernel.UUID) error {
	if err := id.Validate(); err != nil {
		return errs.NewValueIsRequiredErrorWithCause("companyId", err)
	}
	o.companyID = id
	return nil
}

func (o *Order) setPickup(p Place) error {
	if err := p.Validate(); err != nil {
		return errs.NewValueIsRequiredErrorWithCause("pickup", err)
	}
	o.pickup = p
	return nil
}

func (o *Order) setDelivery(p Place) error {
	if err := p.Validate(); err != nil {
		return errs.NewValueIsRequiredErrorWithCause("delivery", err)
	}
	o.delivery = p
	return nil
}

func (o *Order) setParcel(p Parcel) error {
	if err := p.Size().Validate(); err != nil {
		return err
	}
	o.parcel = p
	return nil
}

func (o *Order) setUrgency(u Urgency) error {
	if err := u.Validate(); err != nil {
		return err
	}
	o.urgency = u
	return nil
}

func (o *Order) setDeliveryType(d DeliveryType) error {
	if err := d.Validate(); err != nil {
		return err
	}
	o.deliveryType = d
	return nil
}

func (o *Order) setFare(f Fare) error {
	if err := f.Validate(); err != nil {
		return errs.NewValueIsRequiredErrorWithCause("fare", err)
	}
	o.fare = f
	return nil
}
