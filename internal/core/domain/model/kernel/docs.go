// Package kernel provides the value objects shared by every aggregate of the
// dispatch domain:
//   - UUID: identifier of orders, couriers, companies and events
//   - GeoPoint: a validated WGS84 coordinate with great-circle distance
//
// Both are immutable and safe for concurrent use.
package kernel
