package routing

import (
	"context"
	"log"
	"math"

	"dispatch-service/internal/geo"
)

// Fuel-estimate defaults, overridable through NewRanker options.
const (
	DefaultLitersPer100Km = 8.0
	DefaultFuelUnitPrice  = 1.50
)

// Traffic-condition tiers derived from the percentage delay over the
// nominal duration.
const (
	TrafficLight    = "light"
	TrafficModerate = "moderate"
	TrafficHeavy    = "heavy"
)

// Route option statuses.
const (
	OptionOK       = "ok"
	OptionFallback = "fallback"
)

// RouteOption is one ranked candidate path with traffic and fuel annotations.
type RouteOption struct {
	Summary          string  `json:"summary,omitempty"`
	DistanceKm       float64 `json:"distance_km"`
	DurationMin      float64 `json:"duration_min"`
	TrafficMin       float64 `json:"traffic_min"`
	TrafficDelayPct  float64 `json:"traffic_delay_pct"`
	TrafficCondition string  `json:"traffic_condition"`
	FuelLiters       float64 `json:"fuel_liters"`
	FuelCost         float64 `json:"fuel_cost"`
	Recommended      bool    `json:"recommended"`
	Status           string  `json:"status"`
	Warning          string  `json:"warning,omitempty"`
}

// Ranker requests alternative routes and annotates each candidate.
type Ranker struct {
	provider       DirectionsProvider
	avgSpeedKmh    float64
	litersPer100Km float64
	fuelUnitPrice  float64
}

// NewRanker creates a route ranker over the shared provider.
func NewRanker(provider DirectionsProvider) *Ranker {
	return &Ranker{
		provider:       provider,
		avgSpeedKmh:    DefaultAverageSpeedKmh,
		litersPer100Km: DefaultLitersPer100Km,
		fuelUnitPrice:  DefaultFuelUnitPrice,
	}
}

// RankRoutes returns the provider's alternatives annotated with traffic tier
// and fuel estimate, provider order preserved and the first marked
// recommended. On provider failure it degrades to a single synthetic
// straight-line option so callers always receive at least one usable route.
func (r *Ranker) RankRoutes(ctx context.Context, from, to geo.LatLng) []RouteOption {
	routes, err := r.provider.Directions(ctx, from, to, true)
	if err != nil {
		log.Printf("[routing] ranker falling back to straight-line route: %v", err)
		return []RouteOption{r.fallbackOption(from, to)}
	}

	options := make([]RouteOption, 0, len(routes))
	for i, route := range routes {
		distanceKm := float64(route.DistanceM) / 1000
		nominal := float64(route.DurationS)
		traffic := float64(route.DurationTrafficS)
		if traffic == 0 {
			traffic = nominal
		}

		delayPct := 0.0
		if nominal > 0 {
			delayPct = (traffic - nominal) / nominal * 100
		}

		liters := distanceKm / 100 * r.litersPer100Km
		options = append(options, RouteOption{
			Summary:          route.Summary,
			DistanceKm:       distanceKm,
			DurationMin:      nominal / 60,
			TrafficMin:       traffic / 60,
			TrafficDelayPct:  delayPct,
			TrafficCondition: trafficTier(delayPct),
			FuelLiters:       liters,
			FuelCost:         round2(liters * r.fuelUnitPrice),
			Recommended:      i == 0,
			Status:           OptionOK,
		})
	}
	return options
}

func (r *Ranker) fallbackOption(from, to geo.LatLng) RouteOption {
	distanceKm := geo.DistanceKm(from, to)
	durationMin := distanceKm / r.avgSpeedKmh * 60
	liters := distanceKm / 100 * r.litersPer100Km

	return RouteOption{
		DistanceKm:       distanceKm,
		DurationMin:      durationMin,
		TrafficMin:       durationMin,
		TrafficCondition: TrafficLight,
		FuelLiters:       liters,
		FuelCost:         round2(liters * r.fuelUnitPrice),
		Recommended:      true,
		Status:           OptionFallback,
		Warning:          "routing provider unavailable; straight-line estimate",
	}
}

func trafficTier(delayPct float64) string {
	switch {
	case delayPct < 25:
		return TrafficLight
	case delayPct <= 50:
		return TrafficModerate
	default:
		return TrafficHeavy
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
