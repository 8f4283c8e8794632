package vehicles

import "time"

// Vehicle status values. A vehicle holds exactly one at any time.
const (
	StatusAvailable    = "AVAILABLE"
	StatusDispatched   = "DISPATCHED"
	StatusMaintenance  = "MAINTENANCE"
	StatusOutOfService = "OUT_OF_SERVICE"
)

// InService reports whether a vehicle in this status belongs in the
// nearby-lookup GEO index. MAINTENANCE and OUT_OF_SERVICE vehicles are
// invisible to proximity queries until they return.
func InService(status string) bool {
	return status == StatusAvailable || status == StatusDispatched
}

// OperatorSettable reports whether operators may set this status directly.
// DISPATCHED is reserved: only the dispatch lifecycle moves vehicles in and
// out of it.
func OperatorSettable(status string) bool {
	return status == StatusAvailable || status == StatusMaintenance || status == StatusOutOfService
}

// Position is a vehicle's point-in-time position snapshot. It is
// overwritten on every accepted report; history lives in location_history.
type Position struct {
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	AccuracyM  *float64  `json:"accuracy_m,omitempty"`
	SpeedKmh   *float64  `json:"speed_kmh,omitempty"`
	Heading    *float64  `json:"heading,omitempty"`
	AltitudeM  *float64  `json:"altitude_m,omitempty"`
	Source     string    `json:"source,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Vehicle represents a dispatchable unit owned by a facility.
type Vehicle struct {
	ID               string         `json:"id"`
	FacilityID       string         `json:"facility_id"`
	Callsign         string         `json:"callsign"`
	Status           string         `json:"status"`
	FuelLevel        int            `json:"fuel_level"`
	NeedsMaintenance bool           `json:"needs_maintenance"`
	Equipment        map[string]int `json:"equipment"`
	Position         *Position      `json:"position,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

// HistoryRecord is one accepted position report, append-only.
type HistoryRecord struct {
	ID         int64     `json:"id"`
	VehicleID  string    `json:"vehicle_id"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	AccuracyM  *float64  `json:"accuracy_m,omitempty"`
	SpeedKmh   *float64  `json:"speed_kmh,omitempty"`
	Heading    *float64  `json:"heading,omitempty"`
	AltitudeM  *float64  `json:"altitude_m,omitempty"`
	Source     string    `json:"source,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// CreateRequest is the body for POST /vehicles.
type CreateRequest struct {
	FacilityID string         `json:"facility_id"`
	Callsign   string         `json:"callsign"`
	FuelLevel  *int           `json:"fuel_level,omitempty"`
	Equipment  map[string]int `json:"equipment,omitempty"`
}

// StatusUpdateRequest is the body for PATCH /vehicles/:id/status.
type StatusUpdateRequest struct {
	Status string `json:"status"`
}

// ReportRequest is the body for POST /vehicles/:id/location.
type ReportRequest struct {
	Lat        float64  `json:"lat"`
	Lng        float64  `json:"lng"`
	AccuracyM  *float64 `json:"accuracy_m,omitempty"`
	SpeedKmh   *float64 `json:"speed_kmh,omitempty"`
	Heading    *float64 `json:"heading,omitempty"`
	AltitudeM  *float64 `json:"altitude_m,omitempty"`
	Source     string   `json:"source,omitempty"`
	RecordedAt *string  `json:"recorded_at,omitempty"` // RFC3339; defaults to server time
}
