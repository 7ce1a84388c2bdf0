// README: Pricing service computes delivery fee quotes from the canonical distance.
package pricing

import (
	"context"
	"math"

	"dispatch/internal/types"
)

type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

// Quote prices a delivery over the canonical restaurant→customer distance.
// Distance is billed per started kilometre.
func (s *Service) Quote(ctx context.Context, distanceKm float64) (types.Money, error) {
	rate, err := s.store.CurrentRate(ctx)
	if err != nil {
		return types.Money{}, err
	}
	return quote(rate, distanceKm), nil
}

func quote(rate Rate, distanceKm float64) types.Money {
	km := int64(math.Ceil(distanceKm))
	if km < 0 {
		km = 0
	}
	return types.Money{
		Amount:   rate.BaseFare + km*rate.PerKm,
		Currency: rate.Currency,
	}
}
