package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	locationserrors "uniparking/internal/locations/errors"
	"uniparking/pkg/config"
	"uniparking/pkg/db/postgres"
	"uniparking/pkg/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const CodeUniqueConstraint = "locations_code_key"

type LocationRepository interface {
	Create(ctx context.Context, loc *model.Location, accessible int) error
	FindByID(ctx context.Context, id int64) (*model.Location, error)
	FindByIDForUpdate(ctx context.Context, id int64) (*model.Location, error)
	FindSummaries(ctx context.Context, now time.Time) ([]*model.LocationSummary, error)
	FindSummary(ctx context.Context, id int64, now time.Time) (*model.LocationSummary, error)
	AddSpaces(ctx context.Context, locationID int64, count int, spaceType model.SpaceType) error
	RemoveSpaces(ctx context.Context, locationID int64, count int, now time.Time) (int, error)
	SyncTotal(ctx context.Context, locationID int64) (*model.Location, error)
	SetStatus(ctx context.Context, locationID int64, status model.LocationStatus, note string) (*model.Location, error)
	UpdateSpace(ctx context.Context, locationID int64, number int, update *model.SpaceUpdate) (*model.Space, error)
	HasFutureReservations(ctx context.Context, locationID int64, now time.Time) (bool, error)
	HasOpenSessions(ctx context.Context, locationID int64) (bool, error)
	Delete(ctx context.Context, locationID int64) error
	ExecuteTransaction(ctx context.Context, fn postgres.TransactionFunc) error
}

type pgLocationRepository struct {
	cfg       *config.Config
	pool      *pgxpool.Pool
	txManager postgres.TransactionManager
}

func NewPostgresLocationRepository(cfg *config.Config) LocationRepository {
	return &pgLocationRepository{
		cfg:       cfg,
		pool:      cfg.Client.Postgres,
		txManager: postgres.NewTransactionManager(cfg.Client.Postgres),
	}
}

const locationColumns = `
	l.id, l.name, l.code, l.total_spaces, l.hourly_rate, l.status, l.status_note,
	l.created_at, l.updated_at
`

// availableSpaces counts enabled spaces with no open session and no paid,
// live reservation covering $1.
const availableSpaces = `
	(SELECT COUNT(*) FROM spaces sp
	 WHERE sp.location_id = l.id AND NOT sp.is_disabled
	   AND NOT EXISTS (
	       SELECT 1 FROM parking_sessions s
	       WHERE s.space_id = sp.id AND s.time_out IS NULL
	   )
	   AND NOT EXISTS (
	       SELECT 1 FROM reservations r
	       WHERE r.space_id = sp.id
	         AND r.payment_status = 'paid'
	         AND r.status IN ('pending', 'confirmed')
	         AND r.start_time <= $1 AND r.end_time > $1
	   )
	) AS available_spaces
`

func scanLocation(row pgx.Row, extra ...any) (*model.Location, error) {
	var loc model.Location
	dest := []any{
		&loc.ID,
		&loc.Name,
		&loc.Code,
		&loc.TotalSpaces,
		&loc.HourlyRate,
		&loc.Status,
		&loc.StatusNote,
		&loc.CreatedAt,
		&loc.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &loc, nil
}

func (r *pgLocationRepository) one(ctx context.Context, query string, args ...any) (*model.Location, error) {
	loc, err := scanLocation(postgres.Conn(ctx, r.pool).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, locationserrors.ErrNotFound
		}
		return nil, fmt.Errorf("select location: %w", err)
	}
	return loc, nil
}

// Create inserts the location and numbers its spaces from 1. The first
// accessible spaces are reserved for disabled drivers.
func (r *pgLocationRepository) Create(ctx context.Context, loc *model.Location, accessible int) error {
	conn := postgres.Conn(ctx, r.pool)

	query := `
		INSERT INTO locations (name, code, total_spaces, hourly_rate, status, status_note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING id
	`
	err := conn.QueryRow(ctx, query,
		loc.Name,
		loc.Code,
		loc.TotalSpaces,
		loc.HourlyRate,
		loc.Status,
		loc.StatusNote,
		loc.CreatedAt,
	).Scan(&loc.ID)
	if err != nil {
		return fmt.Errorf("insert location: %w", err)
	}
	loc.UpdatedAt = loc.CreatedAt

	_, err = conn.Exec(ctx, `
		INSERT INTO spaces (location_id, space_number, special_type)
		SELECT $1, n, CASE WHEN n <= $3 THEN 'disabled' ELSE 'standard' END
		FROM generate_series(1, $2::int) AS n
	`, loc.ID, loc.TotalSpaces, accessible)
	if err != nil {
		return fmt.Errorf("insert spaces: %w", err)
	}
	return nil
}

func (r *pgLocationRepository) FindByID(ctx context.Context, id int64) (*model.Location, error) {
	return r.one(ctx, `SELECT `+locationColumns+` FROM locations l WHERE l.id = $1`, id)
}

func (r *pgLocationRepository) FindByIDForUpdate(ctx context.Context, id int64) (*model.Location, error) {
	return r.one(ctx, `SELECT `+locationColumns+` FROM locations l WHERE l.id = $1 FOR UPDATE`, id)
}

func (r *pgLocationRepository) FindSummaries(ctx context.Context, now time.Time) ([]*model.LocationSummary, error) {
	query := `SELECT ` + locationColumns + `, ` + availableSpaces + `
		FROM locations l
		ORDER BY l.name
	`
	rows, err := postgres.Conn(ctx, r.pool).Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("select locations: %w", err)
	}
	defer rows.Close()

	summaries := []*model.LocationSummary{}
	for rows.Next() {
		var available int
		loc, err := scanLocation(rows, &available)
		if err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		summaries = append(summaries, &model.LocationSummary{Location: *loc, AvailableSpaces: available})
	}
	return summaries, rows.Err()
}

func (r *pgLocationRepository) FindSummary(ctx context.Context, id int64, now time.Time) (*model.LocationSummary, error) {
	query := `SELECT ` + locationColumns + `, ` + availableSpaces + `
		FROM locations l
		WHERE l.id = $2
	`
	var available int
	loc, err := scanLocation(postgres.Conn(ctx, r.pool).QueryRow(ctx, query, now, id), &available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, locationserrors.ErrNotFound
		}
		return nil, fmt.Errorf("select location: %w", err)
	}
	return &model.LocationSummary{Location: *loc, AvailableSpaces: available}, nil
}

// AddSpaces appends count spaces after the current highest number.
func (r *pgLocationRepository) AddSpaces(ctx context.Context, locationID int64, count int, spaceType model.SpaceType) error {
	_, err := postgres.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO spaces (location_id, space_number, special_type)
		SELECT $1, base.max_number + n, $3
		FROM (SELECT COALESCE(MAX(space_number), 0) AS max_number FROM spaces WHERE location_id = $1) base,
		     generate_series(1, $2::int) AS n
	`, locationID, count, spaceType)
	if err != nil {
		return fmt.Errorf("add spaces: %w", err)
	}
	return nil
}

// RemoveSpaces deletes up to count of the highest-numbered spaces that no
// open session or unfinished reservation holds. It returns how many went.
func (r *pgLocationRepository) RemoveSpaces(ctx context.Context, locationID int64, count int, now time.Time) (int, error) {
	tag, err := postgres.Conn(ctx, r.pool).Exec(ctx, `
		WITH victims AS (
			SELECT sp.id FROM spaces sp
			WHERE sp.location_id = $1
			  AND NOT EXISTS (
			      SELECT 1 FROM parking_sessions s
			      WHERE s.space_id = sp.id AND s.time_out IS NULL
			  )
			  AND NOT EXISTS (
			      SELECT 1 FROM reservations res
			      WHERE res.space_id = sp.id
			        AND res.status IN ('pending', 'confirmed')
			        AND res.end_time > $3
			  )
			ORDER BY sp.space_number DESC
			LIMIT $2
			FOR UPDATE
		)
		DELETE FROM spaces WHERE id IN (SELECT id FROM victims)
	`, locationID, count, now)
	if err != nil {
		return 0, fmt.Errorf("remove spaces: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// SyncTotal sets total_spaces to the number of space rows.
func (r *pgLocationRepository) SyncTotal(ctx context.Context, locationID int64) (*model.Location, error) {
	query := `
		UPDATE locations l
		SET total_spaces = (SELECT COUNT(*) FROM spaces WHERE location_id = l.id),
		    updated_at = NOW()
		WHERE l.id = $1
		RETURNING ` + locationColumns
	return r.one(ctx, query, locationID)
}

func (r *pgLocationRepository) SetStatus(ctx context.Context, locationID int64, status model.LocationStatus, note string) (*model.Location, error) {
	query := `
		UPDATE locations l
		SET status = $2, status_note = $3, updated_at = NOW()
		WHERE l.id = $1
		RETURNING ` + locationColumns
	return r.one(ctx, query, locationID, status, note)
}

func (r *pgLocationRepository) UpdateSpace(ctx context.Context, locationID int64, number int, update *model.SpaceUpdate) (*model.Space, error) {
	query := `
		UPDATE spaces
		SET is_disabled = COALESCE($3, is_disabled),
		    special_type = COALESCE(NULLIF($4, ''), special_type)
		WHERE location_id = $1 AND space_number = $2
		RETURNING id, location_id, space_number, special_type, is_disabled
	`
	var sp model.Space
	err := postgres.Conn(ctx, r.pool).QueryRow(ctx, query,
		locationID, number, update.IsDisabled, string(update.SpecialType),
	).Scan(&sp.ID, &sp.LocationID, &sp.Number, &sp.SpecialType, &sp.IsDisabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, locationserrors.ErrSpaceNotFound
		}
		return nil, fmt.Errorf("update space: %w", err)
	}
	return &sp, nil
}

func (r *pgLocationRepository) HasFutureReservations(ctx context.Context, locationID int64, now time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM reservations
			WHERE location_id = $1
			  AND status IN ('pending', 'confirmed')
			  AND end_time > $2
		)
	`
	var exists bool
	if err := postgres.Conn(ctx, r.pool).QueryRow(ctx, query, locationID, now).Scan(&exists); err != nil {
		return false, fmt.Errorf("check future reservations: %w", err)
	}
	return exists, nil
}

func (r *pgLocationRepository) HasOpenSessions(ctx context.Context, locationID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM parking_sessions
			WHERE location_id = $1 AND time_out IS NULL
		)
	`
	var exists bool
	if err := postgres.Conn(ctx, r.pool).QueryRow(ctx, query, locationID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check open sessions: %w", err)
	}
	return exists, nil
}

func (r *pgLocationRepository) Delete(ctx context.Context, locationID int64) error {
	tag, err := postgres.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM locations WHERE id = $1`, locationID)
	if err != nil {
		return fmt.Errorf("delete location: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return locationserrors.ErrNotFound
	}
	return nil
}

func (r *pgLocationRepository) ExecuteTransaction(ctx context.Context, fn postgres.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
