package allocator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"uniparking/pkg/db/postgres"
	"uniparking/pkg/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

func (s *pgStore) Location(ctx context.Context, id int64) (*model.Location, error) {
	query := `
		SELECT id, name, code, total_spaces, hourly_rate, status, status_note, created_at, updated_at
		FROM locations
		WHERE id = $1
	`
	var loc model.Location
	err := postgres.Conn(ctx, s.pool).QueryRow(ctx, query, id).Scan(
		&loc.ID,
		&loc.Name,
		&loc.Code,
		&loc.TotalSpaces,
		&loc.HourlyRate,
		&loc.Status,
		&loc.StatusNote,
		&loc.CreatedAt,
		&loc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLocationNotFound
		}
		return nil, fmt.Errorf("select location: %w", err)
	}
	return &loc, nil
}

func (s *pgStore) CandidateSpaces(ctx context.Context, locationID int64, spaceType model.SpaceType) ([]model.Space, error) {
	query := `
		SELECT id, location_id, space_number, special_type, is_disabled
		FROM spaces
		WHERE location_id = $1 AND special_type = $2 AND NOT is_disabled
		ORDER BY space_number
	`
	rows, err := postgres.Conn(ctx, s.pool).Query(ctx, query, locationID, spaceType)
	if err != nil {
		return nil, fmt.Errorf("select spaces: %w", err)
	}
	defer rows.Close()

	var spaces []model.Space
	for rows.Next() {
		var sp model.Space
		if err := rows.Scan(&sp.ID, &sp.LocationID, &sp.Number, &sp.SpecialType, &sp.IsDisabled); err != nil {
			return nil, fmt.Errorf("scan space: %w", err)
		}
		spaces = append(spaces, sp)
	}
	return spaces, rows.Err()
}

func (s *pgStore) BlockingIntervals(ctx context.Context, locationID int64, window model.Interval, now time.Time) ([]Blocker, error) {
	query := `
		SELECT r.space_id, r.start_time, r.end_time, r.id, 0::bigint
		FROM reservations r
		WHERE r.location_id = $1
		  AND r.space_id IS NOT NULL
		  AND r.status IN ('pending', 'confirmed')
		  AND (r.payment_status = 'paid' OR r.hold_expires_at > $4)
		  AND r.start_time < $3 AND r.end_time > $2
		UNION ALL
		SELECT s.space_id, s.time_in, s.time_in + make_interval(hours => s.duration_hours), 0::bigint, s.id
		FROM parking_sessions s
		WHERE s.location_id = $1
		  AND s.space_id IS NOT NULL
		  AND s.time_out IS NULL
		  AND s.time_in < $3
		  AND s.time_in + make_interval(hours => s.duration_hours) > $2
	`
	rows, err := postgres.Conn(ctx, s.pool).Query(ctx, query, locationID, window.Start, window.End, now)
	if err != nil {
		return nil, fmt.Errorf("select blocking intervals: %w", err)
	}
	defer rows.Close()

	var blockers []Blocker
	for rows.Next() {
		var b Blocker
		if err := rows.Scan(&b.SpaceID, &b.Window.Start, &b.Window.End, &b.ReservationID, &b.SessionID); err != nil {
			return nil, fmt.Errorf("scan blocking interval: %w", err)
		}
		blockers = append(blockers, b)
	}
	return blockers, rows.Err()
}

func (s *pgStore) OccupiedSpaces(ctx context.Context, locationID int64) (map[int64]struct{}, error) {
	query := `
		SELECT space_id
		FROM parking_sessions
		WHERE location_id = $1 AND time_out IS NULL AND space_id IS NOT NULL
	`
	rows, err := postgres.Conn(ctx, s.pool).Query(ctx, query, locationID)
	if err != nil {
		return nil, fmt.Errorf("select occupied spaces: %w", err)
	}
	defer rows.Close()

	occupied := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan occupied space: %w", err)
		}
		occupied[id] = struct{}{}
	}
	return occupied, rows.Err()
}
