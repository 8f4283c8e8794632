package selection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch-service/internal/geo"
	"dispatch-service/internal/vehicles"
)

var pickup = geo.LatLng{Lat: 1.000, Lng: 36.000}

func candidate(id string, lat, lng float64) vehicles.Vehicle {
	return vehicles.Vehicle{
		ID:        id,
		Status:    vehicles.StatusAvailable,
		FuelLevel: 80,
		Equipment: map[string]int{"defibrillator": 1, "oxygen": 2},
		Position:  &vehicles.Position{Lat: lat, Lng: lng, RecordedAt: time.Now()},
	}
}

func TestDefaultWeightsSumToOne(t *testing.T) {
	w := DefaultWeights()
	assert.InDelta(t, 1.0, w.Distance+w.Fuel+w.Equipment+w.Crew+w.Maintenance, 1e-9)
}

func TestFindOptimal_EmptyPool(t *testing.T) {
	assert.Nil(t, FindOptimal(pickup, nil, Criteria{}, DefaultWeights()))
	assert.Nil(t, FindOptimal(pickup, []vehicles.Vehicle{}, Criteria{}, DefaultWeights()))
}

func TestFindOptimal_CloserWins(t *testing.T) {
	// Identical vehicles except distance: ~0km vs ~11km from pickup.
	near := candidate("near", 1.000, 36.000)
	far := candidate("far", 1.100, 36.000)

	best := FindOptimal(pickup, []vehicles.Vehicle{far, near}, Criteria{}, DefaultWeights())
	require.NotNil(t, best)
	assert.Equal(t, "near", best.Vehicle.ID)

	nearScore := Score(&near, pickup, Criteria{}, DefaultWeights())
	farScore := Score(&far, pickup, Criteria{}, DefaultWeights())
	assert.Greater(t, nearScore, farScore)
}

func TestFindOptimal_Deterministic(t *testing.T) {
	pool := []vehicles.Vehicle{
		candidate("a", 1.010, 36.010),
		candidate("b", 1.020, 36.020),
		candidate("c", 1.005, 36.005),
	}
	first := FindOptimal(pickup, pool, Criteria{}, DefaultWeights())
	require.NotNil(t, first)
	for i := 0; i < 10; i++ {
		again := FindOptimal(pickup, pool, Criteria{}, DefaultWeights())
		require.NotNil(t, again)
		assert.Equal(t, first.Vehicle.ID, again.Vehicle.ID)
	}
}

func TestFindOptimal_TieKeepsFirstSeen(t *testing.T) {
	a := candidate("first", 1.000, 36.000)
	b := candidate("second", 1.000, 36.000)

	best := FindOptimal(pickup, []vehicles.Vehicle{a, b}, Criteria{}, DefaultWeights())
	require.NotNil(t, best)
	assert.Equal(t, "first", best.Vehicle.ID)
}

func TestFindOptimal_SkipsUnusableCandidates(t *testing.T) {
	noPosition := candidate("no-pos", 0, 0)
	noPosition.Position = nil
	dispatched := candidate("busy", 1.000, 36.000)
	dispatched.Status = vehicles.StatusDispatched
	usable := candidate("usable", 1.050, 36.050)

	best := FindOptimal(pickup, []vehicles.Vehicle{noPosition, dispatched, usable}, Criteria{}, DefaultWeights())
	require.NotNil(t, best)
	assert.Equal(t, "usable", best.Vehicle.ID)
}

func TestScore_DistancePenaltyFloorsAtZero(t *testing.T) {
	// ~111km away: the raw distance sub-score would be -455, floored to 0.
	v := candidate("distant", 2.000, 36.000)
	w := Weights{Distance: 1}
	assert.Equal(t, 0.0, Score(&v, pickup, Criteria{}, w))
}

func TestScore_EquipmentRatio(t *testing.T) {
	v := candidate("v", 1.000, 36.000)
	w := Weights{Equipment: 1} // isolate the equipment sub-score

	assert.Equal(t, 100.0, Score(&v, pickup, Criteria{}, w))
	assert.Equal(t, 100.0, Score(&v, pickup, Criteria{RequiredEquipment: []string{"oxygen"}}, w))
	assert.Equal(t, 50.0, Score(&v, pickup, Criteria{RequiredEquipment: []string{"oxygen", "ventilator"}}, w))
	assert.Equal(t, 0.0, Score(&v, pickup, Criteria{RequiredEquipment: []string{"ventilator"}}, w))
}

func TestScore_MaintenanceFlag(t *testing.T) {
	v := candidate("v", 1.000, 36.000)
	w := Weights{Maintenance: 1}

	assert.Equal(t, 100.0, Score(&v, pickup, Criteria{}, w))
	v.NeedsMaintenance = true
	assert.Equal(t, 50.0, Score(&v, pickup, Criteria{}, w))
}

func TestScore_FuelUsedDirectly(t *testing.T) {
	v := candidate("v", 1.000, 36.000)
	v.FuelLevel = 37
	w := Weights{Fuel: 1}
	assert.Equal(t, 37.0, Score(&v, pickup, Criteria{}, w))
}
