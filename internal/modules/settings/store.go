// README: Business settings store; key/value reads with wired defaults.
package settings

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cast"
)

const keyDeliveryCashLimit = "delivery_cash_limit"

type Store struct {
	db               *pgxpool.Pool
	cashLimitDefault int64
}

func NewStore(db *pgxpool.Pool, cashLimitDefault int64) *Store {
	return &Store{db: db, cashLimitDefault: cashLimitDefault}
}

// DeliveryCashLimit returns the COD cash-in-hand ceiling. A missing row falls
// back to the configured default; a read error is returned alongside the
// default so callers can degrade without losing the signal.
func (s *Store) DeliveryCashLimit(ctx context.Context) (int64, error) {
	val, err := s.get(ctx, keyDeliveryCashLimit)
	if errors.Is(err, pgx.ErrNoRows) {
		return s.cashLimitDefault, nil
	}
	if err != nil {
		return s.cashLimitDefault, err
	}
	limit := cast.ToInt64(val)
	if limit <= 0 {
		return s.cashLimitDefault, nil
	}
	return limit, nil
}

func (s *Store) get(ctx context.Context, key string) (string, error) {
	var val string
	err := s.db.QueryRow(ctx, `
		SELECT value FROM business_settings WHERE key = $1`, key,
	).Scan(&val)
	return val, err
}
