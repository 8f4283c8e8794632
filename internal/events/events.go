package events

// LatLng is a coordinate pair used in event payloads.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// LocationUpdatedEvent is published to vehicle.location.updated on every
// accepted position report.
type LocationUpdatedEvent struct {
	VehicleID  string  `json:"vehicle_id"`
	Position   LatLng  `json:"position"`
	SpeedKmh   float64 `json:"speed_kmh,omitempty"`
	Heading    float64 `json:"heading,omitempty"`
	RecordedAt string  `json:"recorded_at"`
}

// DispatchCreatedEvent is published to dispatch.created.
type DispatchCreatedEvent struct {
	DispatchID  string `json:"dispatch_id"`
	VehicleID   string `json:"vehicle_id"`
	Priority    string `json:"priority"`
	Pickup      LatLng `json:"pickup"`
	Destination LatLng `json:"destination"`
	CreatedBy   string `json:"created_by,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// PickupArrivalEvent is published to dispatch.pickup.arrival when the
// geofence check detects the vehicle at the pickup point.
type PickupArrivalEvent struct {
	DispatchID string `json:"dispatch_id"`
	VehicleID  string `json:"vehicle_id"`
	ArrivedAt  string `json:"arrived_at"`
}

// DestinationArrivalEvent is published to dispatch.destination.arrival.
type DestinationArrivalEvent struct {
	DispatchID string `json:"dispatch_id"`
	VehicleID  string `json:"vehicle_id"`
	ArrivedAt  string `json:"arrived_at"`
}

// DispatchClosedEvent is published to dispatch.closed for both completed
// and cancelled dispatches.
type DispatchClosedEvent struct {
	DispatchID string `json:"dispatch_id"`
	VehicleID  string `json:"vehicle_id"`
	Status     string `json:"status"`
	ClosedAt   string `json:"closed_at"`
}
