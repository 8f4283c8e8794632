package routing

import (
	"context"
	"fmt"
	"log"
	"time"

	"dispatch-service/internal/dispatch"
	"dispatch-service/internal/geo"
)

// DefaultAverageSpeedKmh drives the deterministic offline fallback when the
// routing provider is unreachable or returns no usable data.
const DefaultAverageSpeedKmh = 50.0

// ETACache memoizes ETAs and stores route-progress snapshots. Implemented by
// pkg/redis; both families are TTL-bounded performance caches only.
type ETACache interface {
	GetETA(ctx context.Context, key string) (time.Time, bool)
	SetETA(ctx context.Context, key string, eta time.Time) error
	SetRouteProgress(ctx context.Context, dispatchID string, snapshot any) error
	GetRouteProgress(ctx context.Context, dispatchID string, dest any) (bool, error)
}

// ETAStore persists recomputed ETAs onto the dispatch record.
// Implemented by the dispatch service.
type ETAStore interface {
	SetETAPickup(ctx context.Context, dispatchID string, eta time.Time) error
	SetETADestination(ctx context.Context, dispatchID string, eta time.Time) error
}

// Progress is the ephemeral route-progress snapshot for an en-route dispatch.
type Progress struct {
	TotalKm     float64   `json:"total_km"`
	CompletedKm float64   `json:"completed_km"`
	Percent     float64   `json:"percent"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Estimator computes travel-time and route-progress estimates.
type Estimator struct {
	provider    DirectionsProvider
	cache       ETACache
	avgSpeedKmh float64
	now         func() time.Time
}

// NewEstimator creates an estimator over the shared provider and cache.
func NewEstimator(provider DirectionsProvider, cache ETACache) *Estimator {
	return &Estimator{
		provider:    provider,
		cache:       cache,
		avgSpeedKmh: DefaultAverageSpeedKmh,
		now:         time.Now,
	}
}

// EstimateETA returns a point-in-time arrival estimate for from→to. The
// memo cache bounds provider call volume under frequent position updates; a
// provider failure resolves via the straight-line fallback, never an error.
func (e *Estimator) EstimateETA(ctx context.Context, from, to geo.LatLng) time.Time {
	key := etaKey(from, to)
	if eta, ok := e.cache.GetETA(ctx, key); ok && eta.After(e.now()) {
		return eta
	}

	routes, err := e.provider.Directions(ctx, from, to, false)
	if err == nil {
		dur := routes[0].DurationTrafficS
		if dur == 0 {
			dur = routes[0].DurationS
		}
		if dur > 0 {
			eta := e.now().Add(time.Duration(dur) * time.Second)
			if cacheErr := e.cache.SetETA(ctx, key, eta); cacheErr != nil {
				log.Printf("[routing] failed to cache ETA: %v", cacheErr)
			}
			return eta
		}
	} else {
		log.Printf("[routing] directions provider failed, using fallback: %v", err)
	}

	hours := geo.DistanceKm(from, to) / e.avgSpeedKmh
	eta := e.now().Add(time.Duration(hours * float64(time.Hour)))
	if cacheErr := e.cache.SetETA(ctx, key, eta); cacheErr != nil {
		log.Printf("[routing] failed to cache fallback ETA: %v", cacheErr)
	}
	return eta
}

// UpdateDispatchETAs recomputes the ETA matching the dispatch's current leg
// and persists it through store. No-op for statuses that are not en route.
func (e *Estimator) UpdateDispatchETAs(ctx context.Context, d *dispatch.Dispatch, vehiclePos geo.LatLng, store ETAStore) error {
	switch d.Status {
	case dispatch.StatusEnRoutePickup:
		eta := e.EstimateETA(ctx, vehiclePos, d.Pickup.LatLng())
		d.ETAPickup = &eta
		return store.SetETAPickup(ctx, d.ID, eta)
	case dispatch.StatusEnRouteDestination:
		eta := e.EstimateETA(ctx, vehiclePos, d.Destination.LatLng())
		d.ETADestination = &eta
		return store.SetETADestination(ctx, d.ID, eta)
	}
	return nil
}

// ComputeRouteProgress derives the pickup→destination progress fraction from
// the current position. Completed distance is measured from the pickup point,
// so it is meaningful once the dispatch is en route to the destination.
func (e *Estimator) ComputeRouteProgress(d *dispatch.Dispatch, current geo.LatLng) Progress {
	total := geo.DistanceKm(d.Pickup.LatLng(), d.Destination.LatLng())
	completed := geo.DistanceKm(d.Pickup.LatLng(), current)

	pct := 0.0
	if total > 0 {
		pct = completed / total * 100
		if pct < 0 {
			pct = 0
		}
		if pct > 100 {
			pct = 100
		}
	}
	return Progress{
		TotalKm:     total,
		CompletedKm: completed,
		Percent:     pct,
		UpdatedAt:   e.now(),
	}
}

// RecordRouteProgress computes and caches the progress snapshot.
func (e *Estimator) RecordRouteProgress(ctx context.Context, d *dispatch.Dispatch, current geo.LatLng) (Progress, error) {
	p := e.ComputeRouteProgress(d, current)
	return p, e.cache.SetRouteProgress(ctx, d.ID, p)
}

// Progress loads the cached snapshot for a dispatch, ok=false on miss or
// after TTL expiry.
func (e *Estimator) Progress(ctx context.Context, dispatchID string) (Progress, bool, error) {
	var p Progress
	ok, err := e.cache.GetRouteProgress(ctx, dispatchID, &p)
	return p, ok, err
}

// etaKey rounds both endpoints to ~100m so nearby reports share a memo entry.
func etaKey(from, to geo.LatLng) string {
	return fmt.Sprintf("%.3f,%.3f:%.3f,%.3f", from.Lat, from.Lng, to.Lat, to.Lng)
}
