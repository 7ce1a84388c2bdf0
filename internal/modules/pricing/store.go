// README: Delivery rate store backed by PostgreSQL.
package pricing

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNoRate = errors.New("no delivery rate configured")

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) CurrentRate(ctx context.Context) (Rate, error) {
	row := s.db.QueryRow(ctx, `
		SELECT base_fare, per_km, currency
		FROM delivery_rates
		WHERE is_active = TRUE
		ORDER BY created_at DESC
		LIMIT 1`,
	)
	var r Rate
	err := row.Scan(&r.BaseFare, &r.PerKm, &r.Currency)
	if errors.Is(err, pgx.ErrNoRows) {
		return Rate{}, ErrNoRate
	}
	if err != nil {
		return Rate{}, err
	}
	return r, nil
}
