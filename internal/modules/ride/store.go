// README: Ride ledger backed by PostgreSQL.
package ride

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"fareway/internal/types"
)

type Store struct {
	db    *pgxpool.Pool
	clock types.Clock
	loc   *time.Location
}

func NewStore(db *pgxpool.Pool, clock types.Clock, loc *time.Location) *Store {
	if clock == nil {
		clock = types.SystemClock
	}
	if loc == nil {
		loc = time.Local
	}
	return &Store{db: db, clock: clock, loc: loc}
}

func (s *Store) Append(ctx context.Context, r Ride) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO rides (
			id, user_id, source, destination,
			distance_miles, time_minutes, fare, carpool_count, booked_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		string(r.ID),
		string(r.UserID),
		r.Source,
		r.Destination,
		r.Distance,
		r.Time,
		r.Fare,
		toInt32Ptr(r.CarpoolCount),
		r.Date,
	)
	if err != nil {
		return fmt.Errorf("insert ride %s: %w", r.ID, err)
	}
	return nil
}

func (s *Store) ListByUser(ctx context.Context, userID types.ID) ([]Ride, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, source, destination,
		       distance_miles, time_minutes, fare, carpool_count, booked_at
		FROM rides
		WHERE user_id = $1
		ORDER BY booked_at DESC, id`, string(userID),
	)
	if err != nil {
		return nil, fmt.Errorf("list rides: %w", err)
	}
	defer rows.Close()

	var out []Ride
	for rows.Next() {
		var r Ride
		var carpool sql.NullInt32
		if err := rows.Scan(
			&r.ID, &r.UserID, &r.Source, &r.Destination,
			&r.Distance, &r.Time, &r.Fare, &carpool, &r.Date,
		); err != nil {
			return nil, fmt.Errorf("scan ride: %w", err)
		}
		if carpool.Valid {
			n := int(carpool.Int32)
			r.CarpoolCount = &n
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rides: %w", err)
	}
	return out, nil
}

// HasRideToday compares against the local day window, not a rolling 24h.
func (s *Store) HasRideToday(ctx context.Context, userID types.ID) (bool, error) {
	start, end := DayBounds(s.clock(), s.loc)
	row := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM rides
			WHERE user_id = $1
			  AND booked_at >= $2
			  AND booked_at < $3
		)`, string(userID), start, end,
	)
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("check daily ride: %w", err)
	}
	return exists, nil
}

func toInt32Ptr(v *int) *int32 {
	if v == nil {
		return nil
	}
	n := int32(*v)
	return &n
}
