// README: Order store backed by PostgreSQL; assignment is an atomic conditional update.
package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"dispatch/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, o *Order) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO orders (
			id, restaurant_id, customer_id,
			restaurant_lat, restaurant_lng, dropoff_lat, dropoff_lng,
			status, delivery_status, payment_method,
			delivery_fee, currency, assignment_distance_km, created_at
		) VALUES (
			$1, $2, $3,
			$4, $5, $6, $7,
			$8, $9, $10,
			$11, $12, $13, $14
		)`,
		string(o.ID),
		string(o.RestaurantID),
		string(o.CustomerID),
		o.RestaurantLocation.Lat, o.RestaurantLocation.Lng,
		o.Dropoff.Lat, o.Dropoff.Lng,
		string(o.Status),
		string(o.DeliveryStatus),
		string(o.Payment.Method),
		o.DeliveryFee.Amount,
		o.DeliveryFee.Currency,
		o.Assignment.DistanceKm,
		o.CreatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Order, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, restaurant_id, customer_id,
		       restaurant_lat, restaurant_lng, dropoff_lat, dropoff_lng,
		       status, delivery_status, payment_method,
		       delivery_fee, currency,
		       delivery_partner_id, assignment_distance_km, assigned_at, assigned_by,
		       created_at, delivered_at, cancelled_at
		FROM orders
		WHERE id = $1`, string(id),
	)

	var o Order
	var partnerID, assignedBy sql.NullString
	var distanceKm sql.NullFloat64
	var assignedAt, deliveredAt, cancelledAt sql.NullTime

	err := row.Scan(
		&o.ID, &o.RestaurantID, &o.CustomerID,
		&o.RestaurantLocation.Lat, &o.RestaurantLocation.Lng,
		&o.Dropoff.Lat, &o.Dropoff.Lng,
		&o.Status, &o.DeliveryStatus, &o.Payment.Method,
		&o.DeliveryFee.Amount, &o.DeliveryFee.Currency,
		&partnerID, &distanceKm, &assignedAt, &assignedBy,
		&o.CreatedAt, &deliveredAt, &cancelledAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if partnerID.Valid {
		id := types.ID(partnerID.String)
		o.DeliveryPartnerID = &id
		o.Assignment.DeliveryPartnerID = &id
	}
	if distanceKm.Valid {
		d := distanceKm.Float64
		o.Assignment.DistanceKm = &d
	}
	o.Assignment.AssignedAt = toTimePtr(assignedAt)
	if assignedBy.Valid {
		o.Assignment.AssignedBy = assignedBy.String
	}
	o.DeliveredAt = toTimePtr(deliveredAt)
	o.CancelledAt = toTimePtr(cancelledAt)
	return &o, nil
}

// AssignPartner sets the courier on an order if and only if no courier holds
// it yet and the order is still dispatchable. The canonical restaurant→customer
// distance is preserved: the rider→restaurant distance only fills the column
// when nothing was recorded before. Returns false when the guard did not hold,
// which is how a lost assignment race surfaces.
func (s *Store) AssignPartner(ctx context.Context, orderID, riderID types.ID, assignedBy string, pickupDistanceKm float64) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET delivery_partner_id = $1,
		    delivery_status = 'assigned',
		    assigned_at = NOW(),
		    assigned_by = $2,
		    assignment_distance_km = COALESCE(assignment_distance_km, $3)
		WHERE id = $4
		  AND delivery_partner_id IS NULL
		  AND status NOT IN ('cancelled', 'delivered')
		  AND delivery_status NOT IN ('completed', 'delivered')`,
		string(riderID),
		assignedBy,
		pickupDistanceKm,
		string(orderID),
	)
	if err != nil {
		return false, fmt.Errorf("assign partner: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateStatus moves the order between statuses with a compare-and-swap guard.
func (s *Store) UpdateStatus(ctx context.Context, id types.ID, from, to Status) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET status = $1,
		    delivered_at = CASE WHEN $1 = 'delivered' THEN NOW() ELSE delivered_at END,
		    cancelled_at = CASE WHEN $1 = 'cancelled' THEN NOW() ELSE cancelled_at END
		WHERE id = $2 AND status = $3`,
		string(to), string(id), string(from),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListUnassigned returns dispatchable orders with no courier yet, oldest first,
// for the retry loop.
func (s *Store) ListUnassigned(ctx context.Context, limit int) ([]*Order, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id
		FROM orders
		WHERE delivery_partner_id IS NULL
		  AND status IN ('confirmed', 'preparing', 'ready')
		ORDER BY created_at
		LIMIT $1`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []types.ID
	for rows.Next() {
		var id types.ID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	orders := make([]*Order, 0, len(ids))
	for _, id := range ids {
		o, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func (s *Store) AppendAssignmentEvent(ctx context.Context, e *AssignmentEvent) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO order_assignment_events (
			order_id, rider_id, assigned_by, pickup_distance_km, created_at
		) VALUES ($1, $2, $3, $4, $5)`,
		string(e.OrderID),
		string(e.RiderID),
		e.AssignedBy,
		e.PickupDistanceKm,
		e.CreatedAt,
	)
	return err
}

func toTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
