// README: Order service implements creation, status transitions, and persistence.
package order

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"

	"dispatch/internal/types"
)

type Pricing interface {
	Quote(ctx context.Context, distanceKm float64) (types.Money, error)
}

var (
	ErrNotFound     = errors.New("order not found")
	ErrInvalidState = errors.New("invalid state transition")
	ErrConflict     = errors.New("order state conflict")
	ErrBadRequest   = errors.New("bad request")
)

type Service struct {
	store   *Store
	pricing Pricing
}

func NewService(store *Store, pricing Pricing) *Service {
	return &Service{store: store, pricing: pricing}
}

type CreateCommand struct {
	RestaurantID       types.ID
	CustomerID         types.ID
	RestaurantLocation types.Point
	Dropoff            types.Point
	PaymentMethod      PaymentMethod
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (types.ID, error) {
	if cmd.RestaurantID == "" || cmd.CustomerID == "" {
		return "", ErrBadRequest
	}
	if cmd.RestaurantLocation.IsZero() || cmd.Dropoff.IsZero() {
		return "", ErrBadRequest
	}

	id := types.ID(uuid.NewString())
	now := time.Now().UTC()

	// Canonical restaurant→customer distance, recorded once at creation.
	dist := distanceKm(cmd.RestaurantLocation, cmd.Dropoff)

	fee := types.Money{Amount: 0, Currency: "INR"}
	if s.pricing != nil {
		if m, err := s.pricing.Quote(ctx, dist); err == nil {
			fee = m
		}
	}

	o := &Order{
		ID:                 id,
		RestaurantID:       cmd.RestaurantID,
		CustomerID:         cmd.CustomerID,
		RestaurantLocation: cmd.RestaurantLocation,
		Dropoff:            cmd.Dropoff,
		Status:             StatusPending,
		DeliveryStatus:     DeliveryNone,
		Payment:            Payment{Method: cmd.PaymentMethod},
		DeliveryFee:        fee,
		Assignment:         Assignment{DistanceKm: &dist},
		CreatedAt:          now,
	}
	if err := s.store.Create(ctx, o); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Order, error) {
	return s.store.Get(ctx, id)
}

type TransitionCommand struct {
	OrderID types.ID
	To      Status
}

func (s *Service) Transition(ctx context.Context, cmd TransitionCommand) error {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if !CanTransition(o.Status, cmd.To) {
		return ErrInvalidState
	}
	ok, err := s.store.UpdateStatus(ctx, o.ID, o.Status, cmd.To)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	return nil
}

func (s *Service) Cancel(ctx context.Context, id types.ID) error {
	return s.Transition(ctx, TransitionCommand{OrderID: id, To: StatusCancelled})
}

func (s *Service) ListUnassigned(ctx context.Context, limit int) ([]*Order, error) {
	return s.store.ListUnassigned(ctx, limit)
}

func distanceKm(a, b types.Point) float64 {
	const R = 6371.0
	lat1 := a.Lat * math.Pi / 180.0
	lat2 := b.Lat * math.Pi / 180.0
	dlat := (b.Lat - a.Lat) * math.Pi / 180.0
	dlng := (b.Lng - a.Lng) * math.Pi / 180.0
	h := math.Sin(dlat/2)*math.Sin(dlat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlng/2)*math.Sin(dlng/2)
	return 2 * R * math.Asin(math.Sqrt(h))
}
