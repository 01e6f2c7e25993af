package services_test

import (
	"testing"

	"courierhub/internal/core/domain/model/courier"
	"courierhub/internal/core/domain/model/kernel"
	"courierhub/internal/core/domain/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pickup = kernel.MustGeoPoint(41.0082, 28.9784)

// courierAt places a courier roughly km kilometres north of the pickup point.
func courierAt(t *testing.T, name string, km, rating float64) *courier.Courier {
	t.Helper()
	c, err := courier.NewCourier(kernel.NewUUID(), name, "+905550000000",
		kernel.MustGeoPoint(pickup.Latitude()+km/111.2, pickup.Longitude()), rating)
	require.NoError(t, err)
	return c
}

func names(cs []services.Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Courier.Name()
	}
	return out
}

func TestEligibilityFilter_SelectCandidates(t *testing.T) {
	filter := services.NewEligibilityFilter()
	rule := services.Rule{MaxDistanceKm: 5, MinRating: 4.0, MaxActiveOrders: 2}

	t.Run("orders by distance then rating", func(t *testing.T) {
		far := courierAt(t, "far", 3, 4.9)
		near := courierAt(t, "near", 1, 4.1)
		nearBetter := courierAt(t, "near-better", 1, 4.8)

		got, err := filter.SelectCandidates(pickup, []*courier.Courier{far, near, nearBetter}, rule)
		require.NoError(t, err)

		assert.Equal(t, []string{"near-better", "near", "far"}, names(got))
		assert.InDelta(t, 1.0, got[0].DistanceKm, 0.01)
	})

	t.Run("drops couriers outside the rule", func(t *testing.T) {
		offline := courierAt(t, "offline", 1, 4.5)
		require.NoError(t, offline.UpdatePresence(offline.Location(), false))

		busy := courierAt(t, "busy", 1, 4.5)
		require.NoError(t, busy.TakeOrder(2))
		require.NoError(t, busy.TakeOrder(2))

		lowRated := courierAt(t, "low-rated", 1, 3.9)
		outOfRange := courierAt(t, "out-of-range", 5.5, 5)
		excluded := courierAt(t, "excluded", 1, 5)
		ok := courierAt(t, "ok", 4.9, 4.0)

		r := rule
		r.Exclude = map[kernel.UUID]struct{}{excluded.ID(): {}}

		got, err := filter.SelectCandidates(pickup,
			[]*courier.Courier{offline, busy, lowRated, outOfRange, excluded, ok}, r)
		require.NoError(t, err)
		assert.Equal(t, []string{"ok"}, names(got))
	})

	t.Run("empty pool is not an error", func(t *testing.T) {
		got, err := filter.SelectCandidates(pickup, nil, rule)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("invalid courier", func(t *testing.T) {
		_, err := filter.SelectCandidates(pickup, []*courier.Courier{courierAt(t, "ok", 1, 5), nil}, rule)
		require.ErrorIs(t, err, courier.ErrCourierIsNotConstructed)
	})

	t.Run("invalid pickup", func(t *testing.T) {
		_, err := filter.SelectCandidates(kernel.GeoPoint{}, nil, rule)
		require.ErrorIs(t, err, kernel.ErrGeoPointIsNotConstructed)
	})
}

func TestIDs(t *testing.T) {
	a, b := courierAt(t, "a", 1, 5), courierAt(t, "b", 2, 5)
	got := services.IDs([]services.Candidate{{Courier: a}, {Courier: b}})
	assert.Equal(t, []kernel.UUID{a.ID(), b.ID()}, got)
}
