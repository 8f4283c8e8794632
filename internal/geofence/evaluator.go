// Package geofence decides whether a position report constitutes a
// pickup or destination arrival for an active dispatch.
package geofence

import (
	"dispatch-service/internal/dispatch"
	"dispatch-service/internal/geo"
)

// ArrivalRadiusM is the circular fence around pickup and destination points.
const ArrivalRadiusM = 100.0

// Leg identifies which arrival a position report triggered.
type Leg string

const (
	LegPickup      Leg = "pickup"
	LegDestination Leg = "destination"
)

// Evaluate checks the report against the dispatch's current leg. It fires at
// most once per leg: the status gate plus the nil-timestamp gate mean
// repeated reports inside the same fence return ok=false after the first.
func Evaluate(d *dispatch.Dispatch, pos geo.LatLng) (Leg, bool) {
	switch d.Status {
	case dispatch.StatusEnRoutePickup:
		if d.ArrivedPickupAt == nil && geo.WithinRadius(pos, d.Pickup.LatLng(), ArrivalRadiusM) {
			return LegPickup, true
		}
	case dispatch.StatusEnRouteDestination:
		if d.ArrivedDestinationAt == nil && geo.WithinRadius(pos, d.Destination.LatLng(), ArrivalRadiusM) {
			return LegDestination, true
		}
	}
	return "", false
}
