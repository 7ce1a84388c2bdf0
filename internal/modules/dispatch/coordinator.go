// README: Coordinator guards, persists, and announces courier assignments.
package dispatch

import (
	"context"
	"time"

	"go.uber.org/zap"

	"dispatch/internal/config"
	"dispatch/internal/modules/order"
	"dispatch/internal/types"
)

// Orders is the slice of the order store the coordinator needs.
type Orders interface {
	Get(ctx context.Context, id types.ID) (*order.Order, error)
	ListUnassigned(ctx context.Context, limit int) ([]*order.Order, error)
	AssignPartner(ctx context.Context, orderID, riderID types.ID, assignedBy string, pickupDistanceKm float64) (bool, error)
	AppendAssignmentEvent(ctx context.Context, e *order.AssignmentEvent) error
}

// DispatchLog records which riders have been offered an order.
type DispatchLog interface {
	RecordNotified(ctx context.Context, orderID types.ID, riderIDs []types.ID) error
	NotifiedRiders(ctx context.Context, orderID types.ID) ([]types.ID, error)
	MarkBroadcast(ctx context.Context, orderID types.ID) error
	IsBroadcast(ctx context.Context, orderID types.ID) (bool, error)
	GetDispatchedAt(ctx context.Context, orderID types.ID) (time.Time, bool, error)
}

// ETANotifier is told when a rider is assigned so delivery estimates can be
// recomputed. Fire-and-forget: failures are logged here and never propagate.
type ETANotifier interface {
	OrderAssigned(ctx context.Context, orderID, riderID types.ID, riderPos, restaurantPos types.Point) error
}

type Coordinator struct {
	orders  Orders
	matcher *Matcher
	dlog    DispatchLog
	eta     ETANotifier
	cfg     config.DispatchConfig
	log     *zap.Logger
}

func NewCoordinator(orders Orders, matcher *Matcher, dlog DispatchLog, eta ETANotifier, cfg config.DispatchConfig, log *zap.Logger) *Coordinator {
	return &Coordinator{orders: orders, matcher: matcher, dlog: dlog, eta: eta, cfg: cfg, log: log}
}

// Assign matches and persists the single best rider for an order. A nil
// result with nil error means "nobody available or not assignable, retry
// later". Only a failed order write is an error.
func (c *Coordinator) Assign(ctx context.Context, ord *order.Order, origin types.Point, restaurantID types.ID) (*AssignmentResult, error) {
	return c.assign(ctx, ord, origin, restaurantID, nil)
}

func (c *Coordinator) assign(ctx context.Context, ord *order.Order, origin types.Point, restaurantID types.ID, excludeIDs []types.ID) (*AssignmentResult, error) {
	if !c.assignable(ord) {
		return nil, nil
	}
	if restaurantID == "" {
		restaurantID = ord.RestaurantID
	}
	if origin.IsZero() {
		origin = ord.RestaurantLocation
	}

	best, err := c.matcher.FindNearest(ctx, origin, restaurantID, SearchOptions{
		RadiusKm:   c.cfg.MaxRadiusKm,
		ExcludeIDs: excludeIDs,
		COD:        ord.Payment.Method.IsCOD(),
	})
	if err != nil {
		return nil, err
	}
	if best == nil {
		c.log.Info("no rider available", zap.String("order_id", string(ord.ID)))
		return nil, nil
	}

	ok, err := c.orders.AssignPartner(ctx, ord.ID, best.DeliveryPartnerID, c.cfg.AssignedBy, best.DistanceKm)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Another attempt won the conditional write, or the order moved to a
		// terminal state between the precondition check and the update.
		c.log.Warn("assignment guard rejected write",
			zap.String("order_id", string(ord.ID)),
			zap.String("rider_id", string(best.DeliveryPartnerID)))
		return nil, nil
	}

	now := time.Now().UTC()
	ord.DeliveryPartnerID = &best.DeliveryPartnerID
	ord.DeliveryStatus = order.DeliveryAssigned
	ord.Assignment.DeliveryPartnerID = &best.DeliveryPartnerID
	ord.Assignment.AssignedAt = &now
	ord.Assignment.AssignedBy = c.cfg.AssignedBy
	if ord.Assignment.DistanceKm == nil {
		d := best.DistanceKm
		ord.Assignment.DistanceKm = &d
	}

	if err := c.orders.AppendAssignmentEvent(ctx, &order.AssignmentEvent{
		OrderID:          ord.ID,
		RiderID:          best.DeliveryPartnerID,
		AssignedBy:       c.cfg.AssignedBy,
		PickupDistanceKm: best.DistanceKm,
		CreatedAt:        now,
	}); err != nil {
		c.log.Warn("append assignment event", zap.String("order_id", string(ord.ID)), zap.Error(err))
	}

	if c.dlog != nil {
		if err := c.dlog.RecordNotified(ctx, ord.ID, []types.ID{best.DeliveryPartnerID}); err != nil {
			c.log.Warn("record notified rider", zap.String("order_id", string(ord.ID)), zap.Error(err))
		}
	}

	c.notifyETA(ctx, ord.ID, best.DeliveryPartnerID, best.Location, origin)

	c.log.Info("rider assigned",
		zap.String("order_id", string(ord.ID)),
		zap.String("rider_id", string(best.DeliveryPartnerID)),
		zap.Float64("pickup_distance_km", best.DistanceKm))

	return &AssignmentResult{
		OrderID:             ord.ID,
		DeliveryPartnerID:   best.DeliveryPartnerID,
		DeliveryPartnerName: best.Name,
		DistanceKm:          best.DistanceKm,
	}, nil
}

// Broadcast notifies every eligible rider inside the priority radius about a
// new order and records the notified set, so later single-rider attempts can
// exclude riders who already declined by silence.
func (c *Coordinator) Broadcast(ctx context.Context, ord *order.Order, origin types.Point, restaurantID types.ID) ([]RankedCandidate, error) {
	if !c.assignable(ord) {
		return nil, nil
	}
	if restaurantID == "" {
		restaurantID = ord.RestaurantID
	}
	if origin.IsZero() {
		origin = ord.RestaurantLocation
	}

	if c.dlog != nil {
		done, err := c.dlog.IsBroadcast(ctx, ord.ID)
		if err != nil {
			c.log.Warn("broadcast state lookup failed", zap.String("order_id", string(ord.ID)), zap.Error(err))
		} else if done {
			c.log.Info("order already broadcast", zap.String("order_id", string(ord.ID)))
			return nil, nil
		}
	}

	ranked, err := c.matcher.FindAllWithinRadius(ctx, origin, restaurantID, SearchOptions{
		RadiusKm: c.cfg.PriorityRadiusKm,
		COD:      ord.Payment.Method.IsCOD(),
	})
	if err != nil {
		return nil, err
	}
	if len(ranked) == 0 {
		return nil, nil
	}

	if c.dlog != nil {
		ids := make([]types.ID, len(ranked))
		for i, r := range ranked {
			ids[i] = r.DeliveryPartnerID
		}
		if err := c.dlog.RecordNotified(ctx, ord.ID, ids); err != nil {
			c.log.Warn("record broadcast set", zap.String("order_id", string(ord.ID)), zap.Error(err))
		}
		if err := c.dlog.MarkBroadcast(ctx, ord.ID); err != nil {
			c.log.Warn("mark broadcast", zap.String("order_id", string(ord.ID)), zap.Error(err))
		}
	}
	return ranked, nil
}

// DispatchState is the offer history of an order from the dispatch log.
type DispatchState struct {
	DispatchedAt   *time.Time
	Broadcast      bool
	NotifiedRiders []types.ID
}

// State reports when an order was first offered to riders, whether it was
// broadcast, and which riders were notified.
func (c *Coordinator) State(ctx context.Context, orderID types.ID) (*DispatchState, error) {
	st := &DispatchState{}
	if c.dlog == nil {
		return st, nil
	}
	at, ok, err := c.dlog.GetDispatchedAt(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if ok {
		st.DispatchedAt = &at
	}
	if st.Broadcast, err = c.dlog.IsBroadcast(ctx, orderID); err != nil {
		return nil, err
	}
	if st.NotifiedRiders, err = c.dlog.NotifiedRiders(ctx, orderID); err != nil {
		return nil, err
	}
	return st, nil
}

// assignable applies the precondition guards. Refusals are warnings, never
// errors: the storage-level conditional write remains the real gate.
func (c *Coordinator) assignable(ord *order.Order) bool {
	switch {
	case ord == nil:
		return false
	case ord.Status == order.StatusCancelled:
		c.log.Warn("refusing assignment on cancelled order", zap.String("order_id", string(ord.ID)))
		return false
	case ord.Terminal():
		c.log.Warn("refusing assignment on completed order", zap.String("order_id", string(ord.ID)))
		return false
	case ord.Assigned():
		c.log.Warn("order already has a delivery partner",
			zap.String("order_id", string(ord.ID)),
			zap.String("rider_id", string(*ord.DeliveryPartnerID)))
		return false
	}
	return true
}

func (c *Coordinator) notifyETA(ctx context.Context, orderID, riderID types.ID, riderPos, restaurantPos types.Point) {
	if c.eta == nil {
		return
	}
	if err := c.eta.OrderAssigned(ctx, orderID, riderID, riderPos, restaurantPos); err != nil {
		c.log.Warn("eta notification failed",
			zap.String("order_id", string(orderID)), zap.Error(err))
	}
}
