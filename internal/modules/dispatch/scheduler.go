// README: Retry loop re-attempting assignment for orders nobody took yet.
package dispatch

import (
	"context"
	"time"

	"go.uber.org/zap"

	"dispatch/internal/modules/order"
	"dispatch/internal/types"
)

const retryBatchSize = 50

// RunRetryLoop periodically re-attempts assignment for unassigned orders,
// excluding riders who were already notified and did not take the order.
// Blocks until ctx is cancelled.
func (c *Coordinator) RunRetryLoop(ctx context.Context, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tickRetry(ctx)
		}
	}
}

func (c *Coordinator) tickRetry(ctx context.Context) {
	orders, err := c.orders.ListUnassigned(ctx, retryBatchSize)
	if err != nil {
		c.log.Error("list unassigned orders", zap.Error(err))
		return
	}
	for _, ord := range orders {
		if _, err := c.Reattempt(ctx, ord); err != nil {
			c.log.Error("retry assignment", zap.String("order_id", string(ord.ID)), zap.Error(err))
		}
	}
}

// Reattempt runs one assignment attempt for an order, excluding riders from
// the notified set so the same unresponsive rider is not offered twice.
func (c *Coordinator) Reattempt(ctx context.Context, ord *order.Order) (*AssignmentResult, error) {
	var exclude []types.ID
	if c.dlog != nil {
		ids, err := c.dlog.NotifiedRiders(ctx, ord.ID)
		if err != nil {
			c.log.Warn("notified riders lookup failed, retrying without exclusions",
				zap.String("order_id", string(ord.ID)), zap.Error(err))
		} else {
			exclude = ids
		}
	}
	return c.assign(ctx, ord, ord.RestaurantLocation, ord.RestaurantID, exclude)
}
