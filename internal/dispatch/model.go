package dispatch

import (
	"errors"
	"fmt"
	"time"

	"dispatch-service/internal/geo"
	"dispatch-service/internal/vehicles"
)

// Dispatch status values. Forward transitions are linear; CANCELLED is
// reachable from any non-terminal state.
const (
	StatusCreated            = "CREATED"
	StatusDispatched         = "DISPATCHED"
	StatusEnRoutePickup      = "EN_ROUTE_PICKUP"
	StatusAtPickup           = "AT_PICKUP"
	StatusEnRouteDestination = "EN_ROUTE_DESTINATION"
	StatusAtDestination      = "AT_DESTINATION"
	StatusCompleted          = "COMPLETED"
	StatusCancelled          = "CANCELLED"
)

// Priority values.
const (
	PriorityRoutine   = "ROUTINE"
	PriorityUrgent    = "URGENT"
	PriorityEmergency = "EMERGENCY"
)

// ErrIllegalTransition is returned for out-of-order status requests.
// The dispatch is left unchanged.
var ErrIllegalTransition = errors.New("illegal dispatch status transition")

// ErrVehicleNotAvailable is returned when creating a dispatch on a vehicle
// that is not AVAILABLE.
var ErrVehicleNotAvailable = errors.New("vehicle is not available for dispatch")

// ErrNotFound is returned when a dispatch id does not exist.
var ErrNotFound = errors.New("dispatch not found")

// Location is a named point on the map.
type Location struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
}

// LatLng converts to the geo primitive.
func (l Location) LatLng() geo.LatLng { return geo.LatLng{Lat: l.Lat, Lng: l.Lng} }

// Dispatch represents one transport assignment of a vehicle.
type Dispatch struct {
	ID                   string     `json:"id"`
	VehicleID            string     `json:"vehicle_id"`
	RequestID            *string    `json:"request_id,omitempty"`
	Pickup               Location   `json:"pickup"`
	Destination          Location   `json:"destination"`
	Status               string     `json:"status"`
	Priority             string     `json:"priority"`
	CrewMembers          []string   `json:"crew_members"`
	SpecialInstructions  string     `json:"special_instructions,omitempty"`
	CreatedBy            *string    `json:"created_by,omitempty"`
	ETAPickup            *time.Time `json:"eta_pickup,omitempty"`
	ETADestination       *time.Time `json:"eta_destination,omitempty"`
	DispatchedAt         *time.Time `json:"dispatched_at,omitempty"`
	ArrivedPickupAt      *time.Time `json:"arrived_pickup_at,omitempty"`
	LeftPickupAt         *time.Time `json:"left_pickup_at,omitempty"`
	ArrivedDestinationAt *time.Time `json:"arrived_destination_at,omitempty"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
	CancelledAt          *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}

// next maps each state to its only legal forward successor.
var next = map[string]string{
	StatusCreated:            StatusDispatched,
	StatusDispatched:         StatusEnRoutePickup,
	StatusEnRoutePickup:      StatusAtPickup,
	StatusAtPickup:           StatusEnRouteDestination,
	StatusEnRouteDestination: StatusAtDestination,
	StatusAtDestination:      StatusCompleted,
}

// IsTerminal reports whether a dispatch in this status can never move again.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusCancelled
}

// VehicleStatusFor returns the vehicle status a dispatch in the given status
// implies: DISPATCHED while the dispatch is active, AVAILABLE once it closes.
// Both the claim on create and the release on close go through this mapping.
func VehicleStatusFor(dispatchStatus string) string {
	if IsTerminal(dispatchStatus) {
		return vehicles.StatusAvailable
	}
	return vehicles.StatusDispatched
}

// ValidStatus reports whether s is a known dispatch status.
func ValidStatus(s string) bool {
	if s == StatusCancelled || s == StatusCompleted {
		return true
	}
	_, ok := next[s]
	return ok
}

// CanTransition reports whether from→to is a legal move: one step forward,
// or a cancellation of any non-terminal dispatch.
func CanTransition(from, to string) bool {
	if to == StatusCancelled {
		return !IsTerminal(from)
	}
	return next[from] == to
}

// Transition applies from→to on the in-memory record, stamping the matching
// timestamp exactly once. Out-of-order requests return ErrIllegalTransition
// and leave the dispatch untouched.
func (d *Dispatch) Transition(to string, now time.Time) error {
	if !CanTransition(d.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, d.Status, to)
	}

	switch to {
	case StatusDispatched:
		if d.DispatchedAt == nil {
			d.DispatchedAt = &now
		}
	case StatusAtPickup:
		if d.ArrivedPickupAt == nil {
			d.ArrivedPickupAt = &now
		}
	case StatusEnRouteDestination:
		if d.LeftPickupAt == nil {
			d.LeftPickupAt = &now
		}
	case StatusAtDestination:
		if d.ArrivedDestinationAt == nil {
			d.ArrivedDestinationAt = &now
		}
	case StatusCompleted:
		if d.CompletedAt == nil {
			d.CompletedAt = &now
		}
	case StatusCancelled:
		if d.CancelledAt == nil {
			d.CancelledAt = &now
		}
	}
	d.Status = to
	return nil
}

// timestampColumn maps a target status to the dispatches column stamped by
// that transition ("" when the transition carries no timestamp).
func timestampColumn(to string) string {
	switch to {
	case StatusDispatched:
		return "dispatched_at"
	case StatusAtPickup:
		return "arrived_pickup_at"
	case StatusEnRouteDestination:
		return "left_pickup_at"
	case StatusAtDestination:
		return "arrived_destination_at"
	case StatusCompleted:
		return "completed_at"
	case StatusCancelled:
		return "cancelled_at"
	}
	return ""
}

// CreateRequest is the body for POST /dispatches.
type CreateRequest struct {
	VehicleID           string   `json:"vehicle_id"`
	RequestID           *string  `json:"request_id,omitempty"`
	Pickup              Location `json:"pickup"`
	Destination         Location `json:"destination"`
	Priority            string   `json:"priority,omitempty"`
	CrewMembers         []string `json:"crew_members,omitempty"`
	SpecialInstructions string   `json:"special_instructions,omitempty"`
}

// StatusUpdateRequest is the body for PATCH /dispatches/:id/status.
type StatusUpdateRequest struct {
	Status string `json:"status"`
}
