// README: Matcher ranks eligible riders by pickup distance with COD fallback.
package dispatch

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"dispatch/internal/modules/rider"
	"dispatch/internal/modules/zone"
	"dispatch/internal/types"
)

// RiderDirectory supplies the raw dispatchable rider pool.
type RiderDirectory interface {
	FindAvailable(ctx context.Context, f rider.Filter) ([]rider.Rider, error)
}

// ZoneResolver resolves the active delivery zone of a restaurant, nil when
// none is configured.
type ZoneResolver interface {
	ActiveByRestaurant(ctx context.Context, restaurantID types.ID) (*zone.Zone, error)
}

// CashFilter lists riders under the COD cash-in-hand ceiling.
type CashFilter interface {
	EligibleRiderIDs(ctx context.Context, ceiling int64) ([]types.ID, error)
}

// Settings supplies business configuration such as the cash ceiling.
type Settings interface {
	DeliveryCashLimit(ctx context.Context) (int64, error)
}

// LivePool narrows the candidate pool from the Redis GEO mirror before the
// directory query. The mirror is best-effort, so its ids only ever feed an
// include filter that falls back to the full directory when it yields nothing.
type LivePool interface {
	NearbyRiderIDs(ctx context.Context, origin types.Point, radiusKm float64, limit int) ([]types.ID, error)
}

// livePoolLimit caps how many mirrored riders a pre-filter pulls.
const livePoolLimit = 200

type Matcher struct {
	riders   RiderDirectory
	zones    ZoneResolver
	wallets  CashFilter
	settings Settings
	live     LivePool
	log      *zap.Logger
}

func NewMatcher(riders RiderDirectory, zones ZoneResolver, wallets CashFilter, settings Settings, live LivePool, log *zap.Logger) *Matcher {
	return &Matcher{riders: riders, zones: zones, wallets: wallets, settings: settings, live: live, log: log}
}

// FindNearest returns the single nearest eligible rider within the radius,
// or nil when nobody is available. Nil is not an error; the caller retries
// later.
func (m *Matcher) FindNearest(ctx context.Context, origin types.Point, restaurantID types.ID, opts SearchOptions) (*RankedCandidate, error) {
	if opts.RadiusKm <= 0 {
		opts.RadiusKm = DefaultMaxRadiusKm
	}
	ranked, err := m.search(ctx, origin, restaurantID, opts)
	if err != nil {
		return nil, err
	}
	if len(ranked) == 0 {
		return nil, nil
	}
	best := ranked[0]
	return &best, nil
}

// FindAllWithinRadius returns all eligible riders within the priority radius,
// nearest first, optionally truncated to opts.Limit. Used for broadcast
// notification of new orders.
func (m *Matcher) FindAllWithinRadius(ctx context.Context, origin types.Point, restaurantID types.ID, opts SearchOptions) ([]RankedCandidate, error) {
	if opts.RadiusKm <= 0 {
		opts.RadiusKm = DefaultPriorityRadiusKm
	}
	ranked, err := m.search(ctx, origin, restaurantID, opts)
	if err != nil {
		return nil, err
	}
	if opts.Limit > 0 && len(ranked) > opts.Limit {
		ranked = ranked[:opts.Limit]
	}
	return ranked, nil
}

// search is the shared matching pipeline: resolve zone, apply the COD cash
// constraint, query the pool, filter by zone membership and radius, and rank
// by pickup distance. When the cash constraint empties the result, the search
// reruns relaxed — dispatch is never starved by an over-constrained filter.
func (m *Matcher) search(ctx context.Context, origin types.Point, restaurantID types.ID, opts SearchOptions) ([]RankedCandidate, error) {
	z := m.resolveZone(ctx, restaurantID)

	var include []types.ID
	if opts.COD {
		include = m.cashEligible(ctx)
	}

	ranked, err := m.queryAndRank(ctx, origin, z, include, opts)
	if err != nil {
		return nil, err
	}

	if len(ranked) == 0 && len(include) > 0 {
		m.log.Warn("no cash-eligible rider matched, relaxing cash constraint",
			zap.String("restaurant_id", string(restaurantID)))
		return m.queryAndRank(ctx, origin, z, nil, opts)
	}
	return ranked, nil
}

// queryAndRank tries the live GEO mirror as a pre-filter first. The COD
// include set takes precedence over the mirror, and an empty prefiltered
// result reruns against the full directory so a lagging mirror can never
// starve dispatch.
func (m *Matcher) queryAndRank(ctx context.Context, origin types.Point, z *zone.Zone, include []types.ID, opts SearchOptions) ([]RankedCandidate, error) {
	if m.live != nil && len(include) == 0 {
		if nearby := m.liveNearby(ctx, origin, opts.RadiusKm); len(nearby) > 0 {
			ranked, err := m.rankPool(ctx, origin, z, rider.Filter{IncludeIDs: nearby, ExcludeIDs: opts.ExcludeIDs}, opts)
			if err != nil {
				return nil, err
			}
			if len(ranked) > 0 {
				return ranked, nil
			}
		}
	}
	return m.rankPool(ctx, origin, z, rider.Filter{IncludeIDs: include, ExcludeIDs: opts.ExcludeIDs}, opts)
}

func (m *Matcher) rankPool(ctx context.Context, origin types.Point, z *zone.Zone, f rider.Filter, opts SearchOptions) ([]RankedCandidate, error) {
	pool, err := m.riders.FindAvailable(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("find candidates: %w", err)
	}

	ranked := make([]RankedCandidate, 0, len(pool))
	for _, r := range pool {
		loc := r.Availability.Location
		if loc.IsZero() {
			continue
		}
		if !z.Admits(r.ZoneID, loc) {
			continue
		}
		d := haversineKm(origin.Lat, origin.Lng, loc.Lat, loc.Lng)
		if d > opts.RadiusKm {
			continue
		}
		ranked = append(ranked, RankedCandidate{
			DeliveryPartnerID: r.ID,
			Name:              r.Name,
			Phone:             r.Phone,
			DistanceKm:        d,
			Location:          loc,
		})
	}

	sortByDistance(ranked, func(c RankedCandidate) float64 { return c.DistanceKm })
	return ranked, nil
}

// liveNearby is fail-open: a mirror failure degrades to a full directory
// query.
func (m *Matcher) liveNearby(ctx context.Context, origin types.Point, radiusKm float64) []types.ID {
	ids, err := m.live.NearbyRiderIDs(ctx, origin, radiusKm, livePoolLimit)
	if err != nil {
		m.log.Warn("live index lookup failed, querying full directory", zap.Error(err))
		return nil
	}
	return ids
}

// resolveZone is fail-open: a zone lookup failure degrades to no zone
// filtering rather than blocking dispatch.
func (m *Matcher) resolveZone(ctx context.Context, restaurantID types.ID) *zone.Zone {
	if m.zones == nil || restaurantID == "" {
		return nil
	}
	z, err := m.zones.ActiveByRestaurant(ctx, restaurantID)
	if err != nil {
		m.log.Warn("zone lookup failed, skipping zone filter",
			zap.String("restaurant_id", string(restaurantID)), zap.Error(err))
		return nil
	}
	return z
}

// cashEligible returns the rider ids under the cash ceiling, or nil when the
// filter cannot or should not constrain the search: lookup failure and an
// empty eligible set both degrade to an unconstrained query.
func (m *Matcher) cashEligible(ctx context.Context) []types.ID {
	ceiling, err := m.settings.DeliveryCashLimit(ctx)
	if err != nil {
		m.log.Warn("cash limit lookup failed, using default", zap.Int64("ceiling", ceiling), zap.Error(err))
	}
	eligible, err := m.wallets.EligibleRiderIDs(ctx, ceiling)
	if err != nil {
		m.log.Warn("wallet lookup failed, skipping cash filter", zap.Error(err))
		return nil
	}
	if len(eligible) == 0 {
		m.log.Warn("no rider under cash ceiling, skipping cash filter", zap.Int64("ceiling", ceiling))
		return nil
	}
	return eligible
}
