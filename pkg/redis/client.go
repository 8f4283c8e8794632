package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// TTLs for the two cache families. Both are performance caches only —
// losing an entry changes latency, never behavior.
const (
	ETATTL      = 5 * time.Minute
	ProgressTTL = time.Hour
)

// Client wraps the Redis connection.
type Client struct {
	rdb *goredis.Client
}

// NewClient connects to Redis with retry.
func NewClient(addr string) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	for i := 0; i < 20; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := rdb.Ping(ctx).Err(); err == nil {
			cancel()
			log.Println("Connected to Redis")
			return &Client{rdb: rdb}, nil
		}
		cancel()
		log.Printf("Waiting for Redis... (%d/20)", i+1)
		time.Sleep(2 * time.Second)
	}
	return nil, fmt.Errorf("redis: failed to connect after 20 attempts")
}

// SetVehicleLocation stores a vehicle's position in a Redis GEO set.
func (c *Client) SetVehicleLocation(ctx context.Context, vehicleID string, lat, lng float64) error {
	return c.rdb.GeoAdd(ctx, "vehicle:locations", &goredis.GeoLocation{
		Name:      vehicleID,
		Longitude: lng,
		Latitude:  lat,
	}).Err()
}

// GetNearbyVehicles returns vehicle IDs within radiusKm of (lat,lng),
// nearest first.
func (c *Client) GetNearbyVehicles(ctx context.Context, lat, lng, radiusKm float64, count int) ([]string, error) {
	return c.rdb.GeoSearch(ctx, "vehicle:locations", &goredis.GeoSearchQuery{
		Longitude:  lng,
		Latitude:   lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Count:      count,
		Sort:       "ASC",
	}).Result()
}

// RemoveVehicleLocation removes a vehicle from the GEO set (e.g. when it
// goes out of service).
func (c *Client) RemoveVehicleLocation(ctx context.Context, vehicleID string) error {
	return c.rdb.ZRem(ctx, "vehicle:locations", vehicleID).Err()
}

// GetETA returns a memoized ETA for a route key, or ok=false on miss.
func (c *Client) GetETA(ctx context.Context, key string) (time.Time, bool) {
	raw, err := c.rdb.Get(ctx, "eta:"+key).Result()
	if err != nil {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// SetETA memoizes an ETA for a route key with a short TTL.
func (c *Client) SetETA(ctx context.Context, key string, eta time.Time) error {
	return c.rdb.Set(ctx, "eta:"+key, eta.Format(time.RFC3339), ETATTL).Err()
}

// SetRouteProgress stores a route-progress snapshot for a dispatch.
func (c *Client) SetRouteProgress(ctx context.Context, dispatchID string, snapshot any) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, "progress:"+dispatchID, data, ProgressTTL).Err()
}

// GetRouteProgress loads a route-progress snapshot into dest, ok=false on miss.
func (c *Client) GetRouteProgress(ctx context.Context, dispatchID string, dest any) (bool, error) {
	raw, err := c.rdb.Get(ctx, "progress:"+dispatchID).Bytes()
	if err == goredis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(raw, dest)
}

// Close tears down the Redis connection.
func (c *Client) Close() error { return c.rdb.Close() }
