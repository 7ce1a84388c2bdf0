// README: Rider service handles availability toggles and high-frequency location updates.
package rider

import (
	"context"
	"time"

	"go.uber.org/zap"

	"dispatch/internal/types"
)

// LiveIndex mirrors rider positions into a fast geo index for ops tooling.
// It is best-effort; failures never block a location update.
type LiveIndex interface {
	SetRider(ctx context.Context, id types.ID, pos types.Point) error
	RemoveRider(ctx context.Context, id types.ID) error
}

type Service struct {
	store *Store
	geo   LiveIndex
	log   *zap.Logger
}

func NewService(store *Store, geo LiveIndex, log *zap.Logger) *Service {
	return &Service{store: store, geo: geo, log: log}
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Rider, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) SetOnline(ctx context.Context, id types.ID, online bool) error {
	if err := s.store.SetOnline(ctx, id, online); err != nil {
		return err
	}
	if !online && s.geo != nil {
		if err := s.geo.RemoveRider(ctx, id); err != nil {
			s.log.Warn("remove rider from live index", zap.String("rider_id", string(id)), zap.Error(err))
		}
	}
	return nil
}

func (s *Service) UpdateLocation(ctx context.Context, id types.ID, pos types.Point) error {
	if err := s.store.UpdateLocation(ctx, id, pos, time.Now().UTC()); err != nil {
		return err
	}
	if s.geo != nil && !pos.IsZero() {
		if err := s.geo.SetRider(ctx, id, pos); err != nil {
			s.log.Warn("mirror rider location", zap.String("rider_id", string(id)), zap.Error(err))
		}
	}
	return nil
}
