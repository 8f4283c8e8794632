package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dispatch-service/internal/events"
	"dispatch-service/internal/geo"
	"dispatch-service/internal/vehicles"
	"dispatch-service/pkg/kafka"
)

// ETAEstimator produces a travel-time estimate between two points.
// Implemented by the routing estimator; never fails (falls back internally).
type ETAEstimator interface {
	EstimateETA(ctx context.Context, from, to geo.LatLng) time.Time
}

// Service owns the dispatch lifecycle.
type Service struct {
	db        *pgxpool.Pool
	kafka     *kafka.Client
	estimator ETAEstimator
}

// NewService creates a dispatch service.
func NewService(db *pgxpool.Pool, k *kafka.Client, estimator ETAEstimator) *Service {
	return &Service{db: db, kafka: k, estimator: estimator}
}

// Create assigns a vehicle to a new transport. The vehicle must currently be
// AVAILABLE; it is moved to DISPATCHED atomically with the insert.
func (s *Service) Create(ctx context.Context, req CreateRequest, createdBy string) (*Dispatch, error) {
	priority := req.Priority
	if priority == "" {
		priority = PriorityRoutine
	}
	if priority != PriorityRoutine && priority != PriorityUrgent && priority != PriorityEmergency {
		return nil, fmt.Errorf("unknown priority %q", priority)
	}

	id := uuid.New().String()
	now := time.Now()
	crew := req.CrewMembers
	if crew == nil {
		crew = []string{}
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE vehicles SET status=$1 WHERE id=$2 AND status=$3`,
		VehicleStatusFor(StatusDispatched), req.VehicleID, vehicles.StatusAvailable)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrVehicleNotAvailable
	}

	var createdByPtr *string
	if createdBy != "" {
		createdByPtr = &createdBy
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO dispatches
		   (id,vehicle_id,request_id,pickup_lat,pickup_lng,pickup_address,
		    destination_lat,destination_lng,destination_address,
		    status,priority,crew_members,special_instructions,created_by,dispatched_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		id, req.VehicleID, req.RequestID,
		req.Pickup.Lat, req.Pickup.Lng, req.Pickup.Address,
		req.Destination.Lat, req.Destination.Lng, req.Destination.Address,
		StatusDispatched, priority, crew, req.SpecialInstructions, createdByPtr, now)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	// Seed the pickup ETA from the vehicle's last known position, best-effort.
	var lat, lng *float64
	if err := s.db.QueryRow(ctx,
		`SELECT pos_lat, pos_lng FROM vehicles WHERE id=$1`, req.VehicleID).Scan(&lat, &lng); err == nil && lat != nil && lng != nil {
		eta := s.estimator.EstimateETA(ctx, geo.LatLng{Lat: *lat, Lng: *lng}, req.Pickup.LatLng())
		if err := s.SetETAPickup(ctx, id, eta); err != nil {
			log.Printf("[dispatch] failed to seed pickup ETA for %s: %v", id, err)
		}
	}

	go func() {
		ev := events.DispatchCreatedEvent{
			DispatchID: id,
			VehicleID:  req.VehicleID,
			Priority:   priority,
			Pickup:     events.LatLng{Lat: req.Pickup.Lat, Lng: req.Pickup.Lng},
			Destination: events.LatLng{
				Lat: req.Destination.Lat, Lng: req.Destination.Lng,
			},
			CreatedBy: createdBy,
			CreatedAt: now.Format(time.RFC3339),
		}
		if err := s.kafka.Publish(context.Background(), kafka.TopicDispatchCreated, id, ev); err != nil {
			log.Printf("[dispatch] failed to publish dispatch.created: %v", err)
		}
	}()

	return s.GetByID(ctx, id)
}

const dispatchColumns = `id,vehicle_id,request_id,pickup_lat,pickup_lng,pickup_address,
	destination_lat,destination_lng,destination_address,status,priority,crew_members,
	special_instructions,created_by,eta_pickup,eta_destination,dispatched_at,
	arrived_pickup_at,left_pickup_at,arrived_destination_at,completed_at,cancelled_at,created_at`

// GetByID fetches a dispatch by primary key.
func (s *Service) GetByID(ctx context.Context, id string) (*Dispatch, error) {
	row := s.db.QueryRow(ctx, `SELECT `+dispatchColumns+` FROM dispatches WHERE id=$1`, id)
	d, err := scanDispatch(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

// GetActiveByVehicle returns the vehicle's non-terminal dispatch, or nil
// when the vehicle is not currently assigned.
func (s *Service) GetActiveByVehicle(ctx context.Context, vehicleID string) (*Dispatch, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+dispatchColumns+` FROM dispatches
		 WHERE vehicle_id=$1 AND status NOT IN ($2,$3)
		 ORDER BY created_at DESC LIMIT 1`,
		vehicleID, StatusCompleted, StatusCancelled)
	d, err := scanDispatch(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return d, nil
}

// UpdateStatus applies an explicit transition request. Non-adjacent targets
// are rejected with ErrIllegalTransition and the row is untouched. COMPLETED
// and CANCELLED release the vehicle back to AVAILABLE in the same transaction.
func (s *Service) UpdateStatus(ctx context.Context, id, to string) (*Dispatch, error) {
	if !ValidStatus(to) {
		return nil, fmt.Errorf("unknown status %q", to)
	}

	d, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(d.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, d.Status, to)
	}

	now := time.Now()
	set := "status=$1"
	if col := timestampColumn(to); col != "" {
		// Column name comes from our own transition table, never from input.
		set += fmt.Sprintf(", %s=COALESCE(%s,$4)", col, col)
	}
	query := fmt.Sprintf(`UPDATE dispatches SET %s WHERE id=$2 AND status=$3`, set)
	args := []any{to, id, d.Status}
	if timestampColumn(to) != "" {
		args = append(args, now)
	}

	if IsTerminal(to) {
		tx, err := s.db.Begin(ctx)
		if err != nil {
			return nil, err
		}
		defer tx.Rollback(ctx)

		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		if tag.RowsAffected() == 0 {
			return nil, fmt.Errorf("%w: dispatch moved concurrently", ErrIllegalTransition)
		}
		// Releasing the vehicle is the only path back to AVAILABLE.
		if _, err := tx.Exec(ctx,
			`UPDATE vehicles SET status=$1 WHERE id=$2 AND status=$3`,
			VehicleStatusFor(to), d.VehicleID, vehicles.StatusDispatched); err != nil {
			return nil, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}

		go func() {
			ev := events.DispatchClosedEvent{
				DispatchID: id,
				VehicleID:  d.VehicleID,
				Status:     to,
				ClosedAt:   now.Format(time.RFC3339),
			}
			if err := s.kafka.Publish(context.Background(), kafka.TopicDispatchClosed, id, ev); err != nil {
				log.Printf("[dispatch] failed to publish dispatch.closed: %v", err)
			}
		}()
	} else {
		tag, err := s.db.Exec(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		if tag.RowsAffected() == 0 {
			return nil, fmt.Errorf("%w: dispatch moved concurrently", ErrIllegalTransition)
		}
	}

	return s.GetByID(ctx, id)
}

// MarkPickupArrival records geofence-detected arrival at the pickup point.
// The status+timestamp guard makes repeated calls no-ops, so N reports inside
// the fence produce exactly one transition and one event.
func (s *Service) MarkPickupArrival(ctx context.Context, d *Dispatch, now time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE dispatches SET status=$1, arrived_pickup_at=$2
		 WHERE id=$3 AND status=$4 AND arrived_pickup_at IS NULL`,
		StatusAtPickup, now, d.ID, StatusEnRoutePickup)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	go func() {
		ev := events.PickupArrivalEvent{
			DispatchID: d.ID,
			VehicleID:  d.VehicleID,
			ArrivedAt:  now.Format(time.RFC3339),
		}
		if err := s.kafka.Publish(context.Background(), kafka.TopicPickupArrival, d.ID, ev); err != nil {
			log.Printf("[dispatch] failed to publish pickup arrival: %v", err)
		}
	}()
	return true, nil
}

// MarkDestinationArrival records geofence-detected arrival at the destination.
func (s *Service) MarkDestinationArrival(ctx context.Context, d *Dispatch, now time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE dispatches SET status=$1, arrived_destination_at=$2
		 WHERE id=$3 AND status=$4 AND arrived_destination_at IS NULL`,
		StatusAtDestination, now, d.ID, StatusEnRouteDestination)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	go func() {
		ev := events.DestinationArrivalEvent{
			DispatchID: d.ID,
			VehicleID:  d.VehicleID,
			ArrivedAt:  now.Format(time.RFC3339),
		}
		if err := s.kafka.Publish(context.Background(), kafka.TopicDestinationArrival, d.ID, ev); err != nil {
			log.Printf("[dispatch] failed to publish destination arrival: %v", err)
		}
	}()
	return true, nil
}

// SetETAPickup persists a recomputed pickup ETA.
func (s *Service) SetETAPickup(ctx context.Context, dispatchID string, eta time.Time) error {
	_, err := s.db.Exec(ctx, `UPDATE dispatches SET eta_pickup=$1 WHERE id=$2`, eta, dispatchID)
	return err
}

// SetETADestination persists a recomputed destination ETA.
func (s *Service) SetETADestination(ctx context.Context, dispatchID string, eta time.Time) error {
	_, err := s.db.Exec(ctx, `UPDATE dispatches SET eta_destination=$1 WHERE id=$2`, eta, dispatchID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDispatch(row rowScanner) (*Dispatch, error) {
	var d Dispatch
	err := row.Scan(&d.ID, &d.VehicleID, &d.RequestID,
		&d.Pickup.Lat, &d.Pickup.Lng, &d.Pickup.Address,
		&d.Destination.Lat, &d.Destination.Lng, &d.Destination.Address,
		&d.Status, &d.Priority, &d.CrewMembers,
		&d.SpecialInstructions, &d.CreatedBy, &d.ETAPickup, &d.ETADestination,
		&d.DispatchedAt, &d.ArrivedPickupAt, &d.LeftPickupAt,
		&d.ArrivedDestinationAt, &d.CompletedAt, &d.CancelledAt, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
