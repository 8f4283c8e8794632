package routing

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch-service/internal/dispatch"
	"dispatch-service/internal/geo"
)

// memCache is an in-memory stand-in for the redis client.
type memCache struct {
	etas     map[string]time.Time
	progress map[string]Progress
}

func newMemCache() *memCache {
	return &memCache{etas: map[string]time.Time{}, progress: map[string]Progress{}}
}

func (c *memCache) GetETA(_ context.Context, key string) (time.Time, bool) {
	t, ok := c.etas[key]
	return t, ok
}

func (c *memCache) SetETA(_ context.Context, key string, eta time.Time) error {
	c.etas[key] = eta
	return nil
}

func (c *memCache) SetRouteProgress(_ context.Context, dispatchID string, snapshot any) error {
	c.progress[dispatchID] = snapshot.(Progress)
	return nil
}

func (c *memCache) GetRouteProgress(_ context.Context, dispatchID string, dest any) (bool, error) {
	p, ok := c.progress[dispatchID]
	if !ok {
		return false, nil
	}
	*dest.(*Progress) = p
	return true, nil
}

// memStore records persisted ETAs.
type memStore struct {
	pickup      map[string]time.Time
	destination map[string]time.Time
}

func newMemStore() *memStore {
	return &memStore{pickup: map[string]time.Time{}, destination: map[string]time.Time{}}
}

func (s *memStore) SetETAPickup(_ context.Context, id string, eta time.Time) error {
	s.pickup[id] = eta
	return nil
}

func (s *memStore) SetETADestination(_ context.Context, id string, eta time.Time) error {
	s.destination[id] = eta
	return nil
}

func directionsBody(durationS, trafficS int) string {
	return fmt.Sprintf(`{
		"status": "OK",
		"routes": [{
			"summary": "A104",
			"legs": [{
				"distance": {"value": 35000},
				"duration": {"value": %d},
				"duration_in_traffic": {"value": %d}
			}]
		}]
	}`, durationS, trafficS)
}

var (
	from = geo.LatLng{Lat: 1.000, Lng: 36.000}
	to   = geo.LatLng{Lat: 1.200, Lng: 36.300}
)

func fixedEstimator(p DirectionsProvider, c ETACache, now time.Time) *Estimator {
	e := NewEstimator(p, c)
	e.now = func() time.Time { return now }
	return e
}

func TestEstimateETA_UsesTrafficDuration(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, directionsBody(1800, 2400))
	}))
	defer srv.Close()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	e := fixedEstimator(NewProvider(srv.URL, ""), newMemCache(), now)

	eta := e.EstimateETA(context.Background(), from, to)
	assert.Equal(t, now.Add(40*time.Minute), eta)
}

func TestEstimateETA_CacheHitSkipsProvider(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		fmt.Fprint(w, directionsBody(1800, 0))
	}))
	defer srv.Close()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	e := fixedEstimator(NewProvider(srv.URL, ""), newMemCache(), now)

	first := e.EstimateETA(context.Background(), from, to)
	second := e.EstimateETA(context.Background(), from, to)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestEstimateETA_FallbackOnProviderFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	e := fixedEstimator(NewProvider(srv.URL, ""), newMemCache(), now)

	eta := e.EstimateETA(context.Background(), from, to)

	// Straight-line ~34.9 km at 50 km/h ≈ 42 min. Never zero, never an error.
	require.False(t, eta.IsZero())
	assert.True(t, eta.After(now))
	assert.InDelta(t, 42.0, eta.Sub(now).Minutes(), 2.0)
}

func TestEstimateETA_FallbackWhenProviderUnreachable(t *testing.T) {
	// Closed port: connection refused immediately.
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	e := fixedEstimator(NewProvider("http://127.0.0.1:1", ""), newMemCache(), now)

	eta := e.EstimateETA(context.Background(), from, to)
	require.False(t, eta.IsZero())
	assert.True(t, eta.After(now))
}

func TestUpdateDispatchETAs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, directionsBody(600, 900))
	}))
	defer srv.Close()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	e := fixedEstimator(NewProvider(srv.URL, ""), newMemCache(), now)
	store := newMemStore()

	d := &dispatch.Dispatch{
		ID:          "d-1",
		Pickup:      dispatch.Location{Lat: 1.000, Lng: 36.000},
		Destination: dispatch.Location{Lat: 1.200, Lng: 36.300},
		Status:      dispatch.StatusEnRoutePickup,
	}
	pos := geo.LatLng{Lat: 0.990, Lng: 35.990}

	require.NoError(t, e.UpdateDispatchETAs(context.Background(), d, pos, store))
	require.NotNil(t, d.ETAPickup)
	assert.Equal(t, *d.ETAPickup, store.pickup["d-1"])
	assert.Empty(t, store.destination)

	d.Status = dispatch.StatusEnRouteDestination
	require.NoError(t, e.UpdateDispatchETAs(context.Background(), d, pos, store))
	require.NotNil(t, d.ETADestination)
	assert.Equal(t, *d.ETADestination, store.destination["d-1"])

	// No-op outside the two en-route legs.
	d2 := &dispatch.Dispatch{ID: "d-2", Status: dispatch.StatusAtPickup}
	require.NoError(t, e.UpdateDispatchETAs(context.Background(), d2, pos, store))
	assert.Nil(t, d2.ETAPickup)
	assert.Nil(t, d2.ETADestination)
}

func TestComputeRouteProgress(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	e := fixedEstimator(nil, newMemCache(), now)

	d := &dispatch.Dispatch{
		ID:          "d-1",
		Pickup:      dispatch.Location{Lat: 1.000, Lng: 36.000},
		Destination: dispatch.Location{Lat: 1.200, Lng: 36.300},
		Status:      dispatch.StatusEnRouteDestination,
	}

	// Still at the pickup: 0%.
	p := e.ComputeRouteProgress(d, geo.LatLng{Lat: 1.000, Lng: 36.000})
	assert.InDelta(t, 0, p.Percent, 0.01)

	// At the destination: 100%.
	p = e.ComputeRouteProgress(d, geo.LatLng{Lat: 1.200, Lng: 36.300})
	assert.InDelta(t, 100, p.Percent, 0.01)

	// Past the destination clamps at 100.
	p = e.ComputeRouteProgress(d, geo.LatLng{Lat: 1.300, Lng: 36.450})
	assert.Equal(t, 100.0, p.Percent)

	// Halfway-ish.
	p = e.ComputeRouteProgress(d, geo.LatLng{Lat: 1.100, Lng: 36.150})
	assert.InDelta(t, 50, p.Percent, 1.0)
}

func TestComputeRouteProgress_ZeroTotal(t *testing.T) {
	e := fixedEstimator(nil, newMemCache(), time.Now())
	d := &dispatch.Dispatch{
		Pickup:      dispatch.Location{Lat: 1.000, Lng: 36.000},
		Destination: dispatch.Location{Lat: 1.000, Lng: 36.000},
	}
	p := e.ComputeRouteProgress(d, geo.LatLng{Lat: 1.000, Lng: 36.000})
	assert.Equal(t, 0.0, p.Percent)
}

func TestRecordAndLoadProgress(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	cache := newMemCache()
	e := fixedEstimator(nil, cache, now)

	d := &dispatch.Dispatch{
		ID:          "d-1",
		Pickup:      dispatch.Location{Lat: 1.000, Lng: 36.000},
		Destination: dispatch.Location{Lat: 1.200, Lng: 36.300},
	}
	written, err := e.RecordRouteProgress(context.Background(), d, geo.LatLng{Lat: 1.100, Lng: 36.150})
	require.NoError(t, err)

	loaded, ok, err := e.Progress(context.Background(), "d-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, written, loaded)

	_, ok, err = e.Progress(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestETAKeyRoundsEndpoints(t *testing.T) {
	a := etaKey(geo.LatLng{Lat: 1.00012, Lng: 36.00049}, to)
	b := etaKey(geo.LatLng{Lat: 1.00008, Lng: 36.00051}, to)
	// Reports within ~100m of each other share one memo entry.
	assert.Equal(t, "1.000,36.000:1.200,36.300", a)
	assert.Equal(t, "1.000,36.001:1.200,36.300", b)
}
