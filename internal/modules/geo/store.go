// README: Geospatial store; last known driver coordinates in Redis GEO.
package geo

import (
	"context"

	"github.com/redis/go-redis/v9"

	"ridewire/internal/types"
)

// driverGeoKey holds one member per driver keyed by driver id.
const driverGeoKey = "drivers:locations"

type Store struct {
	redis *redis.Client
}

func NewStore(redis *redis.Client) *Store {
	return &Store{redis: redis}
}

// Upsert replaces the driver's last known coordinate.
func (s *Store) Upsert(ctx context.Context, driverID types.ID, pt types.Point) error {
	return s.redis.GeoAdd(ctx, driverGeoKey, &redis.GeoLocation{
		Name:      string(driverID),
		Longitude: pt.Lng,
		Latitude:  pt.Lat,
	}).Err()
}

// Nearby returns driver ids within radiusKm of pt, closest first.
func (s *Store) Nearby(ctx context.Context, pt types.Point, radiusKm float64) ([]types.ID, error) {
	results, err := s.redis.GeoSearch(ctx, driverGeoKey, &redis.GeoSearchQuery{
		Longitude:  pt.Lng,
		Latitude:   pt.Lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(results))
	for i, r := range results {
		ids[i] = types.ID(r)
	}
	return ids, nil
}

// Remove drops the driver from the index (driver went offline).
func (s *Store) Remove(ctx context.Context, driverID types.ID) error {
	return s.redis.ZRem(ctx, driverGeoKey, string(driverID)).Err()
}
