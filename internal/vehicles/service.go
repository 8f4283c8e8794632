package vehicles

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	rredis "dispatch-service/pkg/redis"
)

// ErrNotFound is returned when a vehicle id does not exist.
var ErrNotFound = errors.New("vehicle not found")

// ErrOnActiveDispatch is returned when an operator status change hits a
// vehicle the dispatch lifecycle currently holds.
var ErrOnActiveDispatch = errors.New("vehicle is on an active dispatch")

// Service contains vehicle business logic.
type Service struct {
	db    *pgxpool.Pool
	redis *rredis.Client
}

// NewService creates a vehicle service.
func NewService(db *pgxpool.Pool, redis *rredis.Client) *Service {
	return &Service{db: db, redis: redis}
}

// Create registers a new vehicle under a facility. New vehicles start AVAILABLE.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Vehicle, error) {
	id := uuid.New().String()
	fuel := 100
	if req.FuelLevel != nil {
		fuel = *req.FuelLevel
	}
	equipment := req.Equipment
	if equipment == nil {
		equipment = map[string]int{}
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO vehicles (id,facility_id,callsign,status,fuel_level,equipment)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		id, req.FacilityID, req.Callsign, StatusAvailable, fuel, equipment)
	if err != nil {
		return nil, err
	}

	return &Vehicle{
		ID: id, FacilityID: req.FacilityID, Callsign: req.Callsign,
		Status: StatusAvailable, FuelLevel: fuel, Equipment: equipment,
		CreatedAt: time.Now(),
	}, nil
}

// UpdateStatus applies an operator status change (maintenance pull, return
// to service). Vehicles held by an active dispatch are refused; the guard
// lives in the WHERE clause so a concurrent claim cannot slip through.
// A vehicle leaving service also leaves the GEO index.
func (s *Service) UpdateStatus(ctx context.Context, id, to string) (*Vehicle, error) {
	if !OperatorSettable(to) {
		return nil, fmt.Errorf("status %q cannot be set directly", to)
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE vehicles SET status=$1 WHERE id=$2 AND status<>$3`,
		to, id, StatusDispatched)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrOnActiveDispatch
	}

	if !InService(to) {
		if err := s.redis.RemoveVehicleLocation(ctx, id); err != nil {
			log.Printf("[vehicles] geo removal failed for %s: %v", id, err)
		}
	}
	return s.GetByID(ctx, id)
}

const vehicleColumns = `id,facility_id,callsign,status,fuel_level,needs_maintenance,equipment,
	pos_lat,pos_lng,pos_accuracy,pos_speed_kmh,pos_heading,pos_altitude,pos_source,pos_recorded_at,created_at`

// GetByID fetches a vehicle by primary key.
func (s *Service) GetByID(ctx context.Context, id string) (*Vehicle, error) {
	row := s.db.QueryRow(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE id=$1`, id)
	v, err := scanVehicle(row)
	if err != nil {
		return nil, ErrNotFound
	}
	return v, nil
}

// ListAvailable returns all AVAILABLE vehicles that have a known position —
// the candidate pool for dispatch selection.
func (s *Service) ListAvailable(ctx context.Context) ([]Vehicle, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+vehicleColumns+` FROM vehicles
		 WHERE status=$1 AND pos_lat IS NOT NULL
		 ORDER BY created_at`, StatusAvailable)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pool []Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		pool = append(pool, *v)
	}
	return pool, rows.Err()
}

// UpdateSnapshot overwrites the vehicle's current-position snapshot.
// Reports older than the stored snapshot are refused (returned false) so a
// retried stale report cannot clobber a fresher position; they still belong
// in history.
func (s *Service) UpdateSnapshot(ctx context.Context, vehicleID string, pos Position) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE vehicles SET
		    pos_lat=$2, pos_lng=$3, pos_accuracy=$4, pos_speed_kmh=$5,
		    pos_heading=$6, pos_altitude=$7, pos_source=$8, pos_recorded_at=$9
		 WHERE id=$1 AND (pos_recorded_at IS NULL OR pos_recorded_at <= $9)`,
		vehicleID, pos.Lat, pos.Lng, pos.AccuracyM, pos.SpeedKmh,
		pos.Heading, pos.AltitudeM, pos.Source, pos.RecordedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// AppendHistory writes one accepted report to the append-only history.
func (s *Service) AppendHistory(ctx context.Context, vehicleID string, pos Position) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO location_history (vehicle_id,lat,lng,accuracy,speed_kmh,heading,altitude,source,recorded_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		vehicleID, pos.Lat, pos.Lng, pos.AccuracyM, pos.SpeedKmh,
		pos.Heading, pos.AltitudeM, pos.Source, pos.RecordedAt)
	return err
}

// History returns the vehicle's position history, oldest first, optionally
// bounded by [from, to].
func (s *Service) History(ctx context.Context, vehicleID string, from, to *time.Time) ([]HistoryRecord, error) {
	query := `SELECT id,vehicle_id,lat,lng,accuracy,speed_kmh,heading,altitude,source,recorded_at
	          FROM location_history WHERE vehicle_id=$1`
	args := []any{vehicleID}
	if from != nil {
		args = append(args, *from)
		query += ` AND recorded_at >= $2`
	}
	if to != nil {
		args = append(args, *to)
		if from != nil {
			query += ` AND recorded_at <= $3`
		} else {
			query += ` AND recorded_at <= $2`
		}
	}
	query += ` ORDER BY recorded_at`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []HistoryRecord
	for rows.Next() {
		var rec HistoryRecord
		var source *string
		if err := rows.Scan(&rec.ID, &rec.VehicleID, &rec.Lat, &rec.Lng,
			&rec.AccuracyM, &rec.SpeedKmh, &rec.Heading, &rec.AltitudeM,
			&source, &rec.RecordedAt); err != nil {
			return nil, err
		}
		if source != nil {
			rec.Source = *source
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetNearby returns vehicle IDs within radiusKm of the given point,
// nearest first, from the Redis GEO set.
func (s *Service) GetNearby(ctx context.Context, lat, lng, radiusKm float64) ([]string, error) {
	return s.redis.GetNearbyVehicles(ctx, lat, lng, radiusKm, 10)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVehicle(row rowScanner) (*Vehicle, error) {
	var v Vehicle
	var lat, lng, accuracy, speed, heading, altitude *float64
	var source *string
	var recordedAt *time.Time

	err := row.Scan(&v.ID, &v.FacilityID, &v.Callsign, &v.Status,
		&v.FuelLevel, &v.NeedsMaintenance, &v.Equipment,
		&lat, &lng, &accuracy, &speed, &heading, &altitude, &source, &recordedAt,
		&v.CreatedAt)
	if err != nil {
		return nil, err
	}

	if lat != nil && lng != nil {
		pos := &Position{
			Lat: *lat, Lng: *lng,
			AccuracyM: accuracy, SpeedKmh: speed, Heading: heading, AltitudeM: altitude,
		}
		if source != nil {
			pos.Source = *source
		}
		if recordedAt != nil {
			pos.RecordedAt = *recordedAt
		}
		v.Position = pos
	}
	return &v, nil
}
