package routing

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func alternativesBody() string {
	// Three alternatives: 10% delay, 40% delay, 80% delay.
	return `{
		"status": "OK",
		"routes": [
			{"summary": "Main Rd", "legs": [{"distance": {"value": 30000}, "duration": {"value": 1000}, "duration_in_traffic": {"value": 1100}}]},
			{"summary": "Ring Rd", "legs": [{"distance": {"value": 34000}, "duration": {"value": 1000}, "duration_in_traffic": {"value": 1400}}]},
			{"summary": "Old Hwy", "legs": [{"distance": {"value": 28000}, "duration": {"value": 1000}, "duration_in_traffic": {"value": 1800}}]}
		]
	}`
}

func TestRankRoutes_AnnotatesAlternatives(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("alternatives"))
		assert.Equal(t, "now", r.URL.Query().Get("departure_time"))
		fmt.Fprint(w, alternativesBody())
	}))
	defer srv.Close()

	ranker := NewRanker(NewProvider(srv.URL, ""))
	options := ranker.RankRoutes(context.Background(), from, to)
	require.Len(t, options, 3)

	// Provider order preserved, first route recommended.
	assert.True(t, options[0].Recommended)
	assert.False(t, options[1].Recommended)
	assert.False(t, options[2].Recommended)
	assert.Equal(t, "Main Rd", options[0].Summary)

	// Traffic tiers from the percentage delay.
	assert.Equal(t, TrafficLight, options[0].TrafficCondition)
	assert.Equal(t, TrafficModerate, options[1].TrafficCondition)
	assert.Equal(t, TrafficHeavy, options[2].TrafficCondition)

	for _, o := range options {
		assert.Equal(t, OptionOK, o.Status)
		assert.Empty(t, o.Warning)
	}

	// Fuel estimate: 30 km / 100 * 8 L at 1.50/unit.
	assert.InDelta(t, 2.4, options[0].FuelLiters, 1e-9)
	assert.InDelta(t, 3.6, options[0].FuelCost, 1e-9)
}

func TestRankRoutes_FallbackOnProviderFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"status": "OVER_QUERY_LIMIT", "routes": []}`)
	}))
	defer srv.Close()

	ranker := NewRanker(NewProvider(srv.URL, ""))
	options := ranker.RankRoutes(context.Background(), from, to)

	// Callers always receive at least one usable route.
	require.Len(t, options, 1)
	o := options[0]
	assert.Equal(t, OptionFallback, o.Status)
	assert.True(t, o.Recommended)
	assert.NotEmpty(t, o.Warning)
	assert.InDelta(t, 34.9, o.DistanceKm, 0.5)
	// ~34.9 km at 50 km/h ≈ 42 min.
	assert.InDelta(t, 42.0, o.DurationMin, 2.0)
}

func TestRankRoutes_FallbackWhenUnreachable(t *testing.T) {
	ranker := NewRanker(NewProvider("http://127.0.0.1:1", ""))
	options := ranker.RankRoutes(context.Background(), from, to)
	require.Len(t, options, 1)
	assert.Equal(t, OptionFallback, options[0].Status)
}

func TestTrafficTierBoundaries(t *testing.T) {
	assert.Equal(t, TrafficLight, trafficTier(0))
	assert.Equal(t, TrafficLight, trafficTier(24.9))
	assert.Equal(t, TrafficModerate, trafficTier(25))
	assert.Equal(t, TrafficModerate, trafficTier(50))
	assert.Equal(t, TrafficHeavy, trafficTier(50.1))
}

func TestProvider_NoTrafficDataFallsBackToNominal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{
			"status": "OK",
			"routes": [{"summary": "A2", "legs": [{"distance": {"value": 10000}, "duration": {"value": 600}}]}]
		}`)
	}))
	defer srv.Close()

	ranker := NewRanker(NewProvider(srv.URL, ""))
	options := ranker.RankRoutes(context.Background(), from, to)
	require.Len(t, options, 1)
	assert.Equal(t, options[0].DurationMin, options[0].TrafficMin)
	assert.Equal(t, TrafficLight, options[0].TrafficCondition)
	assert.Equal(t, OptionOK, options[0].Status)
}
