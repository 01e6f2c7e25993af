// Package dispatchtest provides fixtures for tests of the dispatch core:
// a recording notifier and builders for orders and couriers placed around a
// fixed pickup point.
package dispatchtest

import (
	"context"
	"sync"
	"testing"
	"time"

	"courierhub/internal/core/domain/model/courier"
	"courierhub/internal/core/domain/model/kernel"
	"courierhub/internal/core/domain/model/notification"
	"courierhub/internal/core/domain/model/order"
	"courierhub/internal/core/ports"

	"github.com/govalues/decimal"
	"github.com/stretchr/testify/require"
)

// Pickup is the pickup point of every order built here.
var Pickup = kernel.MustGeoPoint(41.0082, 28.9784)

// Now is a fixed starting instant for manual clocks.
var Now = time.Date(2024, 5, 14, 9, 30, 0, 0, time.UTC)

// kmPerDegree is one degree of latitude on the haversine sphere.
const kmPerDegree = 111.195

// CourierNear builds an available courier km kilometres north of Pickup.
func CourierNear(t testing.TB, name string, km, rating float64) *courier.Courier {
	t.Helper()
	c, err := courier.NewCourier(kernel.NewUUID(), name, "+905550000000",
		kernel.MustGeoPoint(Pickup.Latitude()+km/kmPerDegree, Pickup.Longitude()), rating)
	require.NoError(t, err)
	return c
}

// PendingOrder builds a MEDIUM/STANDARD/NORMAL order from Pickup.
func PendingOrder(t testing.TB, createdAt time.Time) *order.Order {
	t.Helper()
	pickup, err := order.NewPlace(Pickup, "Warehouse 7, Sirkeci")
	require.NoError(t, err)
	drop, err := order.NewPlace(kernel.MustGeoPoint(41.0422, 29.0083), "Besiktas Sq. 3")
	require.NoError(t, err)
	parcel, err := order.NewParcel(order.SizeMedium, "documents")
	require.NoError(t, err)
	fare, err := order.NewFare(decimal.MustParse("56.40"), decimal.MustParse("45.12"))
	require.NoError(t, err)

	o, err := order.NewOrder(kernel.NewUUID(), kernel.NewUUID(), pickup, drop, parcel,
		order.UrgencyNormal, order.DeliveryStandard, fare, createdAt)
	require.NoError(t, err)
	return o
}

// Recorder is a Notifier and AuditSink that keeps every event it receives.
type Recorder struct {
	mu      sync.Mutex
	events  []notification.Event
	offline map[notification.Recipient]bool
}

func NewRecorder() *Recorder {
	return &Recorder{offline: make(map[notification.Recipient]bool)}
}

// SetOffline makes Notify fail with ErrRecipientOffline for r. The event is
// still recorded.
func (r *Recorder) SetOffline(rc notification.Recipient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offline[rc] = true
}

func (r *Recorder) Notify(_ context.Context, ev notification.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	if r.offline[ev.Recipient] {
		return ports.ErrRecipientOffline
	}
	return nil
}

func (r *Recorder) Publish(ctx context.Context, ev notification.Event) error {
	return r.Notify(ctx, ev)
}

func (r *Recorder) Events() []notification.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notification.Event, len(r.events))
	copy(out, r.events)
	return out
}

// For returns the events sent to rc, in order.
func (r *Recorder) For(rc notification.Recipient) []notification.Event {
	var out []notification.Event
	for _, ev := range r.Events() {
		if ev.Recipient == rc {
			out = append(out, ev)
		}
	}
	return out
}

// Types returns the event types sent to rc, in order.
func (r *Recorder) Types(rc notification.Recipient) []notification.Type {
	var out []notification.Type
	for _, ev := range r.For(rc) {
		out = append(out, ev.Type)
	}
	return out
}

func (r *Recorder) Count(t notification.Type) int {
	n := 0
	for _, ev := range r.Events() {
		if ev.Type == t {
			n++
		}
	}
	return n
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
