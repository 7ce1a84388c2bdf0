// README: Dispatch log backed by Redis: notified-rider sets and a live GEO mirror.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"dispatch/internal/types"
)

const (
	riderGeoKey        = "dispatch:riders"
	notifiedKeyPrefix  = "dispatch:order:%s:notified"
	dispatchKeyPrefix  = "dispatch:order:%s:dispatched_at"
	broadcastKeyPrefix = "dispatch:order:%s:broadcast"
	// TTL for per-order dispatch keys (deliveries resolve well within 48h).
	keyTTL = 48 * time.Hour
)

type Store struct {
	redis *redis.Client
}

func NewStore(redis *redis.Client) *Store {
	return &Store{redis: redis}
}

// RecordNotified adds riders to the order's notified set and stamps the first
// dispatch time.
func (s *Store) RecordNotified(ctx context.Context, orderID types.ID, riderIDs []types.ID) error {
	if len(riderIDs) == 0 {
		return nil
	}
	members := make([]interface{}, len(riderIDs))
	for i, id := range riderIDs {
		members[i] = string(id)
	}
	pipe := s.redis.Pipeline()
	pipe.SetNX(ctx, dispatchedAtKey(orderID), time.Now().UTC().Format(time.RFC3339), keyTTL)
	pipe.SAdd(ctx, notifiedKey(orderID), members...)
	pipe.Expire(ctx, notifiedKey(orderID), keyTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// NotifiedRiders returns the riders already offered this order.
func (s *Store) NotifiedRiders(ctx context.Context, orderID types.ID) ([]types.ID, error) {
	members, err := s.redis.SMembers(ctx, notifiedKey(orderID)).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(members))
	for i, m := range members {
		ids[i] = types.ID(m)
	}
	return ids, nil
}

// GetDispatchedAt returns when the order was first offered to riders, and
// whether it has been offered at all.
func (s *Store) GetDispatchedAt(ctx context.Context, orderID types.ID) (time.Time, bool, error) {
	val, err := s.redis.Get(ctx, dispatchedAtKey(orderID)).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

// MarkBroadcast marks an order as broadcast to the priority-radius set.
func (s *Store) MarkBroadcast(ctx context.Context, orderID types.ID) error {
	return s.redis.Set(ctx, broadcastKey(orderID), "1", keyTTL).Err()
}

// IsBroadcast reports whether an order was already broadcast.
func (s *Store) IsBroadcast(ctx context.Context, orderID types.ID) (bool, error) {
	val, err := s.redis.Get(ctx, broadcastKey(orderID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return val == "1", nil
}

// NearbyRiderIDs returns riders mirrored within radiusKm of origin, nearest
// first. The mirror is written best-effort, so callers treat the result as a
// pre-filter over the directory, never as the authoritative pool.
func (s *Store) NearbyRiderIDs(ctx context.Context, origin types.Point, radiusKm float64, limit int) ([]types.ID, error) {
	members, err := s.redis.GeoSearch(ctx, riderGeoKey, &redis.GeoSearchQuery{
		Longitude:  origin.Lng,
		Latitude:   origin.Lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
		Count:      limit,
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(members))
	for i, m := range members {
		ids[i] = types.ID(m)
	}
	return ids, nil
}

// SetRider mirrors a rider's live position into the GEO index.
func (s *Store) SetRider(ctx context.Context, id types.ID, pos types.Point) error {
	return s.redis.GeoAdd(ctx, riderGeoKey, &redis.GeoLocation{
		Name:      string(id),
		Longitude: pos.Lng,
		Latitude:  pos.Lat,
	}).Err()
}

// RemoveRider drops a rider from the GEO index when they go offline.
func (s *Store) RemoveRider(ctx context.Context, id types.ID) error {
	return s.redis.ZRem(ctx, riderGeoKey, string(id)).Err()
}

func notifiedKey(orderID types.ID) string {
	return fmt.Sprintf(notifiedKeyPrefix, string(orderID))
}

func dispatchedAtKey(orderID types.ID) string {
	return fmt.Sprintf(dispatchKeyPrefix, string(orderID))
}

func broadcastKey(orderID types.ID) string {
	return fmt.Sprintf(broadcastKeyPrefix, string(orderID))
}
