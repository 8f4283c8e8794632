package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"dispatch-service/internal/dispatch"
	"dispatch-service/internal/events"
	"dispatch-service/internal/geo"
	"dispatch-service/internal/geofence"
	"dispatch-service/internal/routing"
	"dispatch-service/internal/vehicles"
	"dispatch-service/pkg/kafka"
	rredis "dispatch-service/pkg/redis"
)

// Service runs the location ingest pipeline: history append, snapshot
// overwrite, geofence check, ETA refresh, progress snapshot, event fan-out.
type Service struct {
	vehicles  *vehicles.Service
	dispatch  *dispatch.Service
	estimator *routing.Estimator
	redis     *rredis.Client
	kafka     *kafka.Client
	hub       *Hub

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates the ingest pipeline.
func NewService(v *vehicles.Service, d *dispatch.Service, e *routing.Estimator,
	r *rredis.Client, k *kafka.Client, hub *Hub) *Service {
	return &Service{
		vehicles:  v,
		dispatch:  d,
		estimator: e,
		redis:     r,
		kafka:     k,
		hub:       hub,
		locks:     make(map[string]*sync.Mutex),
	}
}

// StartAssignmentFeed consumes dispatch.created events and pushes an
// assignment notice onto the assigned vehicle's live feed. Runs until ctx
// is cancelled.
func (s *Service) StartAssignmentFeed(ctx context.Context) {
	s.kafka.Subscribe(ctx, kafka.TopicDispatchCreated, "dispatch-service.assignments", s.handleAssignment)
}

func (s *Service) handleAssignment(data []byte) error {
	var ev events.DispatchCreatedEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("bad dispatch.created payload: %w", err)
	}
	if ev.VehicleID == "" {
		return fmt.Errorf("dispatch.created event %q has no vehicle", ev.DispatchID)
	}
	s.hub.BroadcastAssignment(ev.VehicleID, ev.DispatchID, ev.Priority)
	return nil
}

// lockFor returns the mutex serializing one vehicle's report stream.
// Vehicles report concurrently; only same-vehicle reports contend.
func (s *Service) lockFor(vehicleID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.locks[vehicleID]
	if !ok {
		m = &sync.Mutex{}
		s.locks[vehicleID] = m
	}
	return m
}

// ReportPosition ingests one raw position report. This is telemetry, not a
// transaction: each downstream effect is best-effort and a single failure is
// logged without rolling back the effects before it. Only precondition
// violations (unknown vehicle) fail the call.
func (s *Service) ReportPosition(ctx context.Context, vehicleID string, req vehicles.ReportRequest) error {
	lock := s.lockFor(vehicleID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.vehicles.GetByID(ctx, vehicleID); err != nil {
		return err
	}

	recordedAt := time.Now()
	if req.RecordedAt != nil {
		if t, err := time.Parse(time.RFC3339, *req.RecordedAt); err == nil {
			recordedAt = t
		}
	}
	pos := vehicles.Position{
		Lat: req.Lat, Lng: req.Lng,
		AccuracyM: req.AccuracyM, SpeedKmh: req.SpeedKmh,
		Heading: req.Heading, AltitudeM: req.AltitudeM,
		Source: req.Source, RecordedAt: recordedAt,
	}
	point := geo.LatLng{Lat: pos.Lat, Lng: pos.Lng}

	// (a) append-only history, in report order under the per-vehicle lock
	if err := s.vehicles.AppendHistory(ctx, vehicleID, pos); err != nil {
		log.Printf("[tracking] history append failed for %s: %v", vehicleID, err)
	}

	// (b) snapshot overwrite, refused for reports older than the stored one
	fresh, err := s.vehicles.UpdateSnapshot(ctx, vehicleID, pos)
	if err != nil {
		log.Printf("[tracking] snapshot update failed for %s: %v", vehicleID, err)
	} else if !fresh {
		log.Printf("[tracking] stale report for %s ignored (recorded_at %s)", vehicleID, recordedAt.Format(time.RFC3339))
	}
	if fresh {
		if err := s.redis.SetVehicleLocation(ctx, vehicleID, pos.Lat, pos.Lng); err != nil {
			log.Printf("[tracking] geo set update failed for %s: %v", vehicleID, err)
		}
	}

	// (c)-(e) dispatch-coupled effects
	s.updateActiveDispatch(ctx, vehicleID, point)

	// (f) fan-out
	go func() {
		ev := events.LocationUpdatedEvent{
			VehicleID:  vehicleID,
			Position:   events.LatLng{Lat: pos.Lat, Lng: pos.Lng},
			RecordedAt: recordedAt.Format(time.RFC3339),
		}
		if pos.SpeedKmh != nil {
			ev.SpeedKmh = *pos.SpeedKmh
		}
		if pos.Heading != nil {
			ev.Heading = *pos.Heading
		}
		if err := s.kafka.Publish(context.Background(), kafka.TopicLocationUpdated, vehicleID, ev); err != nil {
			log.Printf("[tracking] failed to publish location update for %s: %v", vehicleID, err)
		}
	}()
	s.hub.BroadcastLocation(vehicleID, pos.Lat, pos.Lng)

	return nil
}

// updateActiveDispatch runs the geofence check, ETA refresh, and progress
// snapshot for the vehicle's non-terminal dispatch, if any.
func (s *Service) updateActiveDispatch(ctx context.Context, vehicleID string, point geo.LatLng) {
	d, err := s.dispatch.GetActiveByVehicle(ctx, vehicleID)
	if err != nil {
		log.Printf("[tracking] active dispatch lookup failed for %s: %v", vehicleID, err)
		return
	}
	if d == nil {
		return
	}

	now := time.Now()
	if leg, ok := geofence.Evaluate(d, point); ok {
		switch leg {
		case geofence.LegPickup:
			fired, err := s.dispatch.MarkPickupArrival(ctx, d, now)
			if err != nil {
				log.Printf("[tracking] pickup arrival failed for dispatch %s: %v", d.ID, err)
			} else if fired {
				d.Status = dispatch.StatusAtPickup
				d.ArrivedPickupAt = &now
				log.Printf("[tracking] vehicle %s arrived at pickup (dispatch %s)", vehicleID, d.ID)
			}
		case geofence.LegDestination:
			fired, err := s.dispatch.MarkDestinationArrival(ctx, d, now)
			if err != nil {
				log.Printf("[tracking] destination arrival failed for dispatch %s: %v", d.ID, err)
			} else if fired {
				d.Status = dispatch.StatusAtDestination
				d.ArrivedDestinationAt = &now
				log.Printf("[tracking] vehicle %s arrived at destination (dispatch %s)", vehicleID, d.ID)
			}
		}
	}

	if err := s.estimator.UpdateDispatchETAs(ctx, d, point, s.dispatch); err != nil {
		log.Printf("[tracking] ETA update failed for dispatch %s: %v", d.ID, err)
	}

	if d.Status == dispatch.StatusEnRouteDestination {
		if _, err := s.estimator.RecordRouteProgress(ctx, d, point); err != nil {
			log.Printf("[tracking] progress snapshot failed for dispatch %s: %v", d.ID, err)
		}
	}
}
