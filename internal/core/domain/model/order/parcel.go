package order

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"courierhub/internal/core/domain/model/kernel"
	"courierhub/internal/pkg/errs"
)

const (
	maxAddressLength = 512
	maxKindLength    = 64
)

type Size string

const (
	SizeSmall      Size = "SMALL"
	SizeMedium     Size = "MEDIUM"
	SizeLarge      Size = "LARGE"
	SizeExtraLarge Size = "EXTRA_LARGE"
)

func ParseSize(s string) (Size, error) {
	size := Size(strings.ToUpper(strings.TrimSpace(s)))
	if err := size.Validate(); err != nil {
		return "", err
	}
	return size, nil
}

func (s Size) Validate() error {
	switch s {
	case SizeSmall, SizeMedium, SizeLarge, SizeExtraLarge:
		return nil
	default:
		return errs.NewValueIsInvalidErrorWithCause("packageSize", fmt.Errorf("unknown size %q", string(s)))
	}
}

type DeliveryType string

const (
	DeliveryStandard DeliveryType = "STANDARD"
	DeliveryExpress  DeliveryType = "EXPRESS"
)

func ParseDeliveryType(s string) (DeliveryType, error) {
	dt := DeliveryType(strings.ToUpper(strings.TrimSpace(s)))
	if err := dt.Validate(); err != nil {
		return "", err
	}
	return dt, nil
}

func (d DeliveryType) Validate() error {
	switch d {
	case DeliveryStandard, DeliveryExpress:
		return nil
	default:
		return errs.NewValueIsInvalidErrorWithCause("deliveryType", fmt.Errorf("unknown delivery type %q", string(d)))
	}
}

type Urgency string

const (
	UrgencyLow    Urgency = "LOW"
	UrgencyNormal Urgency = "NORMAL"
	UrgencyHigh   Urgency = "HIGH"
	UrgencyUrgent Urgency = "URGENT"
)

func ParseUrgency(s string) (Urgency, error) {
	u := Urgency(strings.ToUpper(strings.TrimSpace(s)))
	if err := u.Validate(); err != nil {
		return "", err
	}
	return u, nil
}

func (u Urgency) Validate() error {
	switch u {
	case UrgencyLow, UrgencyNormal, UrgencyHigh, UrgencyUrgent:
		return nil
	default:
		return errs.NewValueIsInvalidErrorWithCause("urgency", fmt.Errorf("unknown urgency %q", string(u)))
	}
}

// Parcel describes what is carried: a size class and a free-form kind
// such as "documents" or "food".
type Parcel struct {
	size Size
	kind string
}

func NewParcel(size Size, kind string) (Parcel, error) {
	if err := size.Validate(); err != nil {
		return Parcel{}, err
	}
	kind = strings.TrimSpace(kind)
	if utf8.RuneCountInString(kind) > maxKindLength {
		return Parcel{}, errs.NewValueIsOutOfRangeError("packageType", utf8.RuneCountInString(kind), 0, maxKindLength)
	}
	return Parcel{size: size, kind: kind}, nil
}

func (p Parcel) Size() Size {
	return p.size
}

func (p Parcel) Kind() string {
	return p.kind
}

// Place is a point on the map with the human address shown to couriers.
type Place struct {
	point   kernel.GeoPoint
	address string
}

func NewPlace(point kernel.GeoPoint, address string) (Place, error) {
	if err := point.Validate(); err != nil {
		return Place{}, err
	}
	address = strings.TrimSpace(address)
	if utf8.RuneCountInString(address) > maxAddressLength {
		return Place{}, errs.NewValueIsOutOfRangeError("address", utf8.RuneCountInString(address), 0, maxAddressLength)
	}
	return Place{point: point, address: address}, nil
}

func (p Place) Point() kernel.GeoPoint {
	return p.point
}

func (p Place) Address() string {
	return p.address
}

func (p Place) Validate() error {
	return p.point.Validate()
}
