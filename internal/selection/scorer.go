// Package selection picks the best-fit vehicle for a pickup point from the
// pool of available candidates.
package selection

import (
	"dispatch-service/internal/geo"
	"dispatch-service/internal/vehicles"
)

// Weights are the relative importance of each scoring criterion. They must
// sum to 1.0; the defaults are deliberate product choices.
type Weights struct {
	Distance    float64
	Fuel        float64
	Equipment   float64
	Crew        float64
	Maintenance float64
}

// DefaultWeights returns the standard 40/20/20/10/10 split.
func DefaultWeights() Weights {
	return Weights{
		Distance:    0.40,
		Fuel:        0.20,
		Equipment:   0.20,
		Crew:        0.10,
		Maintenance: 0.10,
	}
}

// Criteria narrows the candidate pool's fit beyond plain distance.
type Criteria struct {
	RequiredEquipment []string `json:"required_equipment,omitempty"`
}

// Candidate pairs a vehicle with its computed suitability score.
type Candidate struct {
	Vehicle *vehicles.Vehicle `json:"vehicle"`
	Score   float64           `json:"score"`
}

// Score computes the weighted suitability of one vehicle for a pickup point.
// Sub-scores are each on a 0-100 scale before weighting.
func Score(v *vehicles.Vehicle, pickup geo.LatLng, criteria Criteria, w Weights) float64 {
	// 5-point penalty per kilometer away, floored at zero.
	distScore := 0.0
	if v.Position != nil {
		km := geo.DistanceKm(geo.LatLng{Lat: v.Position.Lat, Lng: v.Position.Lng}, pickup)
		distScore = 100 - 5*km
		if distScore < 0 {
			distScore = 0
		}
	}

	fuelScore := float64(v.FuelLevel)

	equipScore := 100.0
	if len(criteria.RequiredEquipment) > 0 {
		matched := 0
		for _, item := range criteria.RequiredEquipment {
			if v.Equipment[item] > 0 {
				matched++
			}
		}
		equipScore = float64(matched) / float64(len(criteria.RequiredEquipment)) * 100
	}

	// Available vehicles are assumed crewed.
	crewScore := 100.0

	maintScore := 100.0
	if v.NeedsMaintenance {
		maintScore = 50
	}

	return distScore*w.Distance +
		fuelScore*w.Fuel +
		equipScore*w.Equipment +
		crewScore*w.Crew +
		maintScore*w.Maintenance
}

// FindOptimal returns the highest-scoring vehicle, or nil for an empty pool.
// Ties keep the first-seen candidate so selection stays deterministic for a
// fixed pool order. Read-only; safe to call speculatively.
func FindOptimal(pickup geo.LatLng, pool []vehicles.Vehicle, criteria Criteria, w Weights) *Candidate {
	var best *Candidate
	for i := range pool {
		v := &pool[i]
		if v.Status != vehicles.StatusAvailable || v.Position == nil {
			continue
		}
		score := Score(v, pickup, criteria, w)
		if best == nil || score > best.Score {
			best = &Candidate{Vehicle: v, Score: score}
		}
	}
	return best
}
