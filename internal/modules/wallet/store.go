// README: Wallet store backed by PostgreSQL (read-only for dispatch).
package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dispatch/internal/types"
)

var ErrNotFound = errors.New("wallet not found")

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// EligibleRiderIDs returns riders holding strictly less uncleared cash than the
// ceiling. Riders without a wallet row have no cash in hand and are eligible,
// which is why the filter is applied as an inclusion set only when non-empty.
func (s *Store) EligibleRiderIDs(ctx context.Context, ceiling int64) ([]types.ID, error) {
	rows, err := s.db.Query(ctx, `
		SELECT rider_id
		FROM wallets
		WHERE cash_in_hand < $1`, ceiling,
	)
	if err != nil {
		return nil, fmt.Errorf("query eligible riders: %w", err)
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
	return ids, rows.Err()
}

func (s *Store) ByRider(ctx context.Context, riderID types.ID) (*Wallet, error) {
	row := s.db.QueryRow(ctx, `
		SELECT rider_id, cash_in_hand, currency, updated_at
		FROM wallets
		WHERE rider_id = $1`, string(riderID),
	)

	var w Wallet
	err := row.Scan(&w.RiderID, &w.CashInHand.Amount, &w.CashInHand.Currency, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}
