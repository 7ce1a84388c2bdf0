// README: Pickup ETA announcements published to Redis on assignment.
package eta

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"dispatch/internal/types"
)

const (
	// Channel carries one JSON AssignedEvent per courier assignment.
	Channel = "dispatch:events:assigned"
	// fallbackSpeedKmh approximates two-wheeler city traffic when the
	// directions API is unavailable.
	fallbackSpeedKmh = 20.0
)

// Estimator produces a road-network pickup estimate. Implemented by
// maps.RouteService.
type Estimator interface {
	PickupETA(ctx context.Context, from, to types.Point) (time.Duration, float64, error)
}

// AssignedEvent is the payload published for downstream consumers (customer
// tracking, restaurant display).
type AssignedEvent struct {
	OrderID        types.ID  `json:"order_id"`
	RiderID        types.ID  `json:"rider_id"`
	PickupETASec   int64     `json:"pickup_eta_sec"`
	PickupKm       float64   `json:"pickup_km"`
	EstimateSource string    `json:"estimate_source"` // "directions" or "heuristic"
	AssignedAt     time.Time `json:"assigned_at"`
}

// Notifier computes a pickup ETA for a fresh assignment and publishes it.
// Every failure degrades: a broken estimator falls back to a straight-line
// heuristic, a broken publish is just an error for the caller to log.
type Notifier struct {
	est   Estimator
	redis *redis.Client
	log   *zap.Logger
}

// NewNotifier builds a Notifier. est may be nil when no maps API key is
// configured; the heuristic then serves every estimate.
func NewNotifier(est Estimator, redis *redis.Client, log *zap.Logger) *Notifier {
	return &Notifier{est: est, redis: redis, log: log}
}

func (n *Notifier) OrderAssigned(ctx context.Context, orderID, riderID types.ID, riderPos, restaurantPos types.Point) error {
	ev := AssignedEvent{
		OrderID:    orderID,
		RiderID:    riderID,
		AssignedAt: time.Now().UTC(),
	}

	dur, km, src := n.estimate(ctx, orderID, riderPos, restaurantPos)
	ev.PickupETASec = int64(dur.Seconds())
	ev.PickupKm = km
	ev.EstimateSource = src

	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return n.redis.Publish(ctx, Channel, payload).Err()
}

func (n *Notifier) estimate(ctx context.Context, orderID types.ID, from, to types.Point) (time.Duration, float64, string) {
	if n.est != nil {
		dur, km, err := n.est.PickupETA(ctx, from, to)
		if err == nil {
			return dur, km, "directions"
		}
		n.log.Warn("directions estimate failed, using heuristic",
			zap.String("order_id", string(orderID)), zap.Error(err))
	}
	km := straightLineKm(from, to)
	dur := time.Duration(km / fallbackSpeedKmh * float64(time.Hour))
	return dur, km, "heuristic"
}

// NopNotifier discards assignment notifications.
type NopNotifier struct{}

func (NopNotifier) OrderAssigned(_ context.Context, _, _ types.ID, _, _ types.Point) error {
	return nil
}

func straightLineKm(a, b types.Point) float64 {
	const R = 6371.0
	lat1 := a.Lat * math.Pi / 180.0
	lat2 := b.Lat * math.Pi / 180.0
	dlat := (b.Lat - a.Lat) * math.Pi / 180.0
	dlng := (b.Lng - a.Lng) * math.Pi / 180.0
	h := math.Sin(dlat/2)*math.Sin(dlat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlng/2)*math.Sin(dlng/2)
	return 2 * R * math.Asin(math.Sqrt(h))
}
