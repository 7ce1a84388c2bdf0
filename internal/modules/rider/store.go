// README: Rider store backed by PostgreSQL; candidate pool queries for dispatch.
package rider

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dispatch/internal/types"
)

var ErrNotFound = errors.New("rider not found")

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Filter narrows the candidate pool by identity. Geography and zone
// membership are applied by the matcher, not here.
type Filter struct {
	// IncludeIDs, when non-empty, restricts the pool to these riders
	// (the cash-eligible set for COD orders).
	IncludeIDs []types.ID
	// ExcludeIDs removes riders already notified for the order.
	ExcludeIDs []types.ID
}

const riderColumns = `
	id, name, phone, status, is_active, zone_id,
	is_online, current_lat, current_lng, last_location_update`

// FindAvailable returns the raw dispatchable pool: online, approved or active,
// not soft-disabled, with a non-zero location fix. No ordering is guaranteed.
func (s *Store) FindAvailable(ctx context.Context, f Filter) ([]Rider, error) {
	query := `
		SELECT ` + riderColumns + `
		FROM riders
		WHERE is_online = TRUE
		  AND status IN ('approved', 'active')
		  AND (is_active IS NULL OR is_active = TRUE)
		  AND current_lat IS NOT NULL
		  AND current_lng IS NOT NULL
		  AND NOT (current_lat = 0 AND current_lng = 0)`

	var args []interface{}
	if len(f.IncludeIDs) > 0 {
		args = append(args, idStrings(f.IncludeIDs))
		query += ` AND id = ANY($` + strconv.Itoa(len(args)) + `)`
	}
	if len(f.ExcludeIDs) > 0 {
		args = append(args, idStrings(f.ExcludeIDs))
		query += ` AND NOT (id = ANY($` + strconv.Itoa(len(args)) + `))`
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query riders: %w", err)
	}
	defer rows.Close()

	var riders []Rider
	for rows.Next() {
		r, err := scanRider(rows)
		if err != nil {
			return nil, err
		}
		riders = append(riders, r)
	}
	return riders, rows.Err()
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Rider, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+riderColumns+`
		FROM riders
		WHERE id = $1`, string(id),
	)
	r, err := scanRider(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) SetOnline(ctx context.Context, id types.ID, online bool) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE riders SET is_online = $1 WHERE id = $2`, online, string(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) UpdateLocation(ctx context.Context, id types.ID, pos types.Point, at time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE riders
		SET current_lat = $1, current_lng = $2, last_location_update = $3
		WHERE id = $4`,
		pos.Lat, pos.Lng, at, string(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRider(row rowScanner) (Rider, error) {
	var r Rider
	var isActive *bool
	var zoneID *string
	var lat, lng *float64
	var lastUpdate *time.Time

	err := row.Scan(
		&r.ID, &r.Name, &r.Phone, &r.Status, &isActive, &zoneID,
		&r.Availability.IsOnline, &lat, &lng, &lastUpdate,
	)
	if err != nil {
		return Rider{}, err
	}

	r.IsActive = isActive
	if zoneID != nil {
		z := types.ID(*zoneID)
		r.ZoneID = &z
	}
	if lat != nil && lng != nil {
		r.Availability.Location = types.Point{Lat: *lat, Lng: *lng}
	}
	r.Availability.LastUpdate = lastUpdate
	return r, nil
}

func idStrings(ids []types.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
