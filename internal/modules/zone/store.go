// README: Zone store backed by PostgreSQL; boundary stored as JSONB.
package zone

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dispatch/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

type boundaryPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ActiveByRestaurant returns the first active zone for a restaurant, or nil
// when the restaurant has no zone configured. Absence is not an error.
func (s *Store) ActiveByRestaurant(ctx context.Context, restaurantID types.ID) (*Zone, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, restaurant_id, name, is_active, boundary
		FROM zones
		WHERE restaurant_id = $1 AND is_active = TRUE
		ORDER BY created_at
		LIMIT 1`, string(restaurantID),
	)

	var z Zone
	var raw []byte
	err := row.Scan(&z.ID, &z.RestaurantID, &z.Name, &z.IsActive, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query zone: %w", err)
	}

	if len(raw) > 0 {
		var pts []boundaryPoint
		if err := json.Unmarshal(raw, &pts); err != nil {
			return nil, fmt.Errorf("decode zone boundary: %w", err)
		}
		z.Boundary = make([]types.Point, len(pts))
		for i, p := range pts {
			z.Boundary[i] = types.Point{Lat: p.Latitude, Lng: p.Longitude}
		}
	}
	return &z, nil
}
