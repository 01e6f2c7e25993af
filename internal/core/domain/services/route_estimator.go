package services

import (
	"fmt"
	"math"

	"courierhub/internal/core/domain/model/kernel"
	"courierhub/internal/pkg/errs"
)

// Route is the trip a quote is computed for.
type Route struct {
	DistanceKm  float64
	DurationMin float64
}

// RouteEstimator fills in distance and duration when the order source did
// not provide them: great-circle distance and a constant average speed.
type RouteEstimator struct {
	averageSpeedKmh float64
}

func NewRouteEstimator(averageSpeedKmh float64) (RouteEstimator, error) {
	if averageSpeedKmh <= 0 || math.IsNaN(averageSpeedKmh) {
		return RouteEstimator{}, errs.NewValueIsOutOfRangeError("averageSpeedKmh", averageSpeedKmh, "0 (exclusive)", "unbounded")
	}
	return RouteEstimator{averageSpeedKmh: averageSpeedKmh}, nil
}

// Estimate keeps any positive value supplied by the caller and derives the rest.
func (e RouteEstimator) Estimate(from, to kernel.GeoPoint, distanceKm, durationMin float64) (Route, error) {
	if distanceKm < 0 {
		return Route{}, errs.NewValueIsOutOfRangeError("distanceKm", distanceKm, 0, "unbounded")
	}
	if durationMin < 0 {
		return Route{}, errs.NewValueIsOutOfRangeError("durationMin", durationMin, 0, "unbounded")
	}

	if distanceKm == 0 {
		d, err := from.DistanceKm(to)
		if err != nil {
			return Route{}, fmt.Errorf("estimate distance: %w", err)
		}
		distanceKm = math.Round(d*100) / 100
	}
	if durationMin == 0 {
		durationMin = math.Ceil(distanceKm / e.averageSpeedKmh * 60)
	}

	return Route{DistanceKm: distanceKm, DurationMin: durationMin}, nil
}
