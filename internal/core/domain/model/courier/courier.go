package courier

import (
	"errors"
	"strings"
	"unicode/utf8"

	"courierhub/internal/core/domain/model/kernel"
	"courierhub/internal/pkg/errs"
)

const (
	MinRating = 0.0
	MaxRating = 5.0

	maxNameLength  = 128
	maxPhoneLength = 32
)

var (
	ErrCourierIsNotConstructed = errors.New("Courier must be created via NewCourier or RestoreCourier constructor")
	ErrActiveOrderLimitReached = errors.New("courier has reached the active order limit")
	ErrNoActiveOrders          = errors.New("courier has no active orders to release")
)

type Courier struct {
	id           kernel.UUID
	name         string
	phone        string
	location     kernel.GeoPoint
	rating       float64
	available    bool
	activeOrders int

	isConstructed bool
}

// NewCourier registers a courier that is online at location.
func NewCourier(id kernel.UUID, name, phone string, location kernel.GeoPoint, rating float64) (*Courier, error) {
	c := &Courier{available: true, isConstructed: true}

	if err := errors.Join(
		c.setID(id),
		c.setName(name),
		c.setPhone(phone),
		c.setLocation(location),
		c.setRating(rating),
	); err != nil {
		return nil, err
	}

	return c, nil
}

type State struct {
	ID           kernel.UUID
	Name         string
	Phone        string
	Location     kernel.GeoPoint
	Rating       float64
	Available    bool
	ActiveOrders int
}

func RestoreCourier(s State) (*Courier, error) {
	c := &Courier{available: s.Available, isConstructed: true}

	if err := errors.Join(
		c.setID(s.ID),
		c.setName(s.Name),
		c.setPhone(s.Phone),
		c.setLocation(s.Location),
		c.setRating(s.Rating),
	); err != nil {
		return nil, err
	}
	if s.ActiveOrders < 0 {
		return nil, errs.NewValueIsOutOfRangeError("activeOrders", s.ActiveOrders, 0, "unbounded")
	}
	c.activeOrders = s.ActiveOrders

	return c, nil
}

func (c *Courier) Snapshot() State {
	return State{
		ID:           c.id,
		Name:         c.name,
		Phone:        c.phone,
		Location:     c.location,
		Rating:       c.rating,
		Available:    c.available,
		ActiveOrders: c.activeOrders,
	}
}

func (c *Courier) Validate() error {
	if c == nil || !c.isConstructed {
		return ErrCourierIsNotConstructed
	}
	return nil
}

func (c *Courier) ID() kernel.UUID { return c.id }
func (c *Courier) Name() string { return c.name }
func (c *Courier) Phone() string { return c.phone }
func (c *Courier) Location() kernel.GeoPoint { return c.location }
func (c *Courier) Rating() float64 { return c.rating }
func (c *Courier) IsAvailable() bool { return c.available }
func (c *Courier) ActiveOrders() int { return c.activeOrders }

// CanTakeOrder reports whether the courier is online and below maxActive.
func (c *Courier) CanTakeOrder(maxActive int) bool {
	return c.available && c.activeOrders < maxActive
}

// TakeOrder counts one more active order. Availability is not checked: an
// offer that was made while the courier was online stays acceptable.
func (c *Courier) TakeOrder(maxActive int) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.activeOrders >= maxActive {
		return ErrActiveOrderLimitReached
	}
	c.activeOrders++
	return nil
}

func (c *Courier) ReleaseOrder() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.activeOrders == 0 {
		return ErrNoActiveOrders
	}
	c.activeOrders--
	return nil
}

// UpdatePresence moves the courier and toggles whether they take new work.
func (c *Courier) UpdatePresence(location kernel.GeoPoint, available bool) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := c.setLocation(location); err != nil {
		return err
	}
	c.available = available
	return nil
}

// UpdateProfile replaces contact details and rating.
func (c *Courier) UpdateProfile(name, phone string, rating float64) error {
	if err := c.Validate(); err != nil {
		return err
	}
	next := *c
	if err := errors.Join(next.setName(name), next.setPhone(phone), next.setRating(rating)); err != nil {
		return err
	}
	*c = next
	return nil
}

func (c *Courier) setID(id kernel.UUID) error {
	if err := id.Validate(); err != nil {
		return errs.NewValueIsRequiredErrorWithCause("id", err)
	}
	c.id = id
	return nil
}

func (c *Courier) setName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errs.NewValueIsRequiredError("name")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return errs.NewValueIsOutOfRangeError("name", utf8.RuneCountInString(name), 1, maxNameLength)
	}
	c.name = name
	return nil
}

func (c *Courier) setPhone(phone string) error {
	phone = strings.TrimSpace(phone)
	if len(phone) > maxPhoneLength {
		return errs.NewValueIsOutOfRangeError("phone", len(phone), 0, maxPhoneLength)
	}
	c.phone = phone
	return nil
}

func (c *Courier) setLocation(location kernel.GeoPoint) error {
	if err := location.Validate(); err != nil {
		return errs.NewValueIsRequiredErrorWithCause("location", err)
	}
	c.location = location
	return nil
}

func (c *Courier) setRating(rating float64) error {
	if rating < MinRating || rating > MaxRating {
		return errs.NewValueIsOutOfRangeError("rating", rating, MinRating, MaxRating)
	}
	c.rating = rating
	return nil
}
