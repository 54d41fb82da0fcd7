package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	sessionserrors "uniparking/internal/sessions/errors"
	"uniparking/pkg/config"
	"uniparking/pkg/db/postgres"
	"uniparking/pkg/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type SessionRepository interface {
	Create(ctx context.Context, s *model.Session) error
	FindOpenByReference(ctx context.Context, ref string) (*model.Session, error)
	FindOpenByUser(ctx context.Context, userID int64) (*model.Session, error)
	HasOpenSession(ctx context.Context, userID int64, vehicleIDs []int64) (bool, error)
	HasCurrentReservation(ctx context.Context, userID int64, vehicleIDs []int64, now time.Time) (bool, error)
	Extend(ctx context.Context, ref string, hours int, cost decimal.Decimal) (*model.Session, error)
	End(ctx context.Context, ref string, userID int64, at time.Time) (*model.Session, error)
	CloseElapsed(ctx context.Context, now time.Time) ([]*model.Session, error)
	History(ctx context.Context, userID int64, limit int, offset int64) ([]*model.Session, error)
	CountHistory(ctx context.Context, userID int64) (int64, error)
	ExecuteTransaction(ctx context.Context, fn postgres.TransactionFunc) error
}

type pgSessionRepository struct {
	cfg       *config.Config
	pool      *pgxpool.Pool
	txManager postgres.TransactionManager
}

func NewPostgresSessionRepository(cfg *config.Config) SessionRepository {
	return &pgSessionRepository{
		cfg:       cfg,
		pool:      cfg.Client.Postgres,
		txManager: postgres.NewTransactionManager(cfg.Client.Postgres),
	}
}

const sessionColumns = `
	s.id, s.user_id, s.vehicle_id, s.location_id, COALESCE(s.space_id, 0), s.space_number,
	s.time_in, s.time_out, s.duration_hours, s.amount_paid, s.reference_number,
	s.payment_status, s.hourly_rate, l.name
`

func scanSession(row pgx.Row) (*model.Session, error) {
	var s model.Session
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.VehicleID,
		&s.LocationID,
		&s.SpaceID,
		&s.SpaceNumber,
		&s.TimeIn,
		&s.TimeOut,
		&s.DurationHours,
		&s.AmountPaid,
		&s.ReferenceNumber,
		&s.PaymentStatus,
		&s.HourlyRate,
		&s.LocationName,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *pgSessionRepository) one(ctx context.Context, query string, args ...any) (*model.Session, error) {
	s, err := scanSession(postgres.Conn(ctx, r.pool).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sessionserrors.ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

func (r *pgSessionRepository) many(ctx context.Context, query string, args ...any) ([]*model.Session, error) {
	rows, err := postgres.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []*model.Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *pgSessionRepository) Create(ctx context.Context, s *model.Session) error {
	query := `
		INSERT INTO parking_sessions (
			user_id, vehicle_id, location_id, space_id, space_number, time_in,
			duration_hours, amount_paid, hourly_rate, reference_number, payment_status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`
	err := postgres.Conn(ctx, r.pool).QueryRow(ctx, query,
		s.UserID,
		s.VehicleID,
		s.LocationID,
		s.SpaceID,
		s.SpaceNumber,
		s.TimeIn,
		s.DurationHours,
		s.AmountPaid,
		s.HourlyRate,
		s.ReferenceNumber,
		s.PaymentStatus,
	).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *pgSessionRepository) FindOpenByReference(ctx context.Context, ref string) (*model.Session, error) {
	query := `SELECT ` + sessionColumns + `
		FROM parking_sessions s JOIN locations l ON l.id = s.location_id
		WHERE s.reference_number = $1 AND s.time_out IS NULL
		FOR UPDATE OF s
	`
	return r.one(ctx, query, ref)
}

func (r *pgSessionRepository) FindOpenByUser(ctx context.Context, userID int64) (*model.Session, error) {
	query := `SELECT ` + sessionColumns + `
		FROM parking_sessions s JOIN locations l ON l.id = s.location_id
		WHERE s.user_id = $1 AND s.time_out IS NULL
		ORDER BY s.time_in DESC
		LIMIT 1
	`
	return r.one(ctx, query, userID)
}

func (r *pgSessionRepository) HasOpenSession(ctx context.Context, userID int64, vehicleIDs []int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM parking_sessions
			WHERE time_out IS NULL AND (user_id = $1 OR vehicle_id = ANY($2))
		)
	`
	var exists bool
	if err := postgres.Conn(ctx, r.pool).QueryRow(ctx, query, userID, vehicleIDs).Scan(&exists); err != nil {
		return false, fmt.Errorf("check open session: %w", err)
	}
	return exists, nil
}

// HasCurrentReservation looks for a paid, live reservation whose window
// contains now.
func (r *pgSessionRepository) HasCurrentReservation(ctx context.Context, userID int64, vehicleIDs []int64, now time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM reservations
			WHERE (user_id = $1 OR vehicle_id = ANY($2))
			  AND payment_status = 'paid'
			  AND status IN ('pending', 'confirmed')
			  AND start_time <= $3 AND end_time > $3
		)
	`
	var exists bool
	if err := postgres.Conn(ctx, r.pool).QueryRow(ctx, query, userID, vehicleIDs, now).Scan(&exists); err != nil {
		return false, fmt.Errorf("check current reservation: %w", err)
	}
	return exists, nil
}

// Extend only matches open rows, so an extension racing an end reports
// ErrNotFound instead of reviving the session.
func (r *pgSessionRepository) Extend(ctx context.Context, ref string, hours int, cost decimal.Decimal) (*model.Session, error) {
	query := `
		WITH s AS (
			UPDATE parking_sessions
			SET duration_hours = duration_hours + $2,
			    amount_paid = amount_paid + $3
			WHERE reference_number = $1 AND time_out IS NULL
			RETURNING *
		)
		SELECT ` + sessionColumns + `
		FROM s JOIN locations l ON l.id = s.location_id
	`
	return r.one(ctx, query, ref, hours, cost)
}

// End closes the open row for ref. userID 0 matches any owner.
func (r *pgSessionRepository) End(ctx context.Context, ref string, userID int64, at time.Time) (*model.Session, error) {
	query := `
		WITH s AS (
			UPDATE parking_sessions
			SET time_out = $3
			WHERE reference_number = $1 AND time_out IS NULL AND ($2::bigint = 0 OR user_id = $2::bigint)
			RETURNING *
		)
		SELECT ` + sessionColumns + `
		FROM s JOIN locations l ON l.id = s.location_id
	`
	return r.one(ctx, query, ref, userID, at)
}

// CloseElapsed stamps time_out at the paid-for end of every overdue session.
func (r *pgSessionRepository) CloseElapsed(ctx context.Context, now time.Time) ([]*model.Session, error) {
	query := `
		WITH s AS (
			UPDATE parking_sessions
			SET time_out = time_in + make_interval(hours => duration_hours)
			WHERE time_out IS NULL
			  AND time_in + make_interval(hours => duration_hours) <= $1
			RETURNING *
		)
		SELECT ` + sessionColumns + `
		FROM s JOIN locations l ON l.id = s.location_id
	`
	sessions, err := r.many(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("close elapsed sessions: %w", err)
	}
	return sessions, nil
}

func (r *pgSessionRepository) History(ctx context.Context, userID int64, limit int, offset int64) ([]*model.Session, error) {
	query := `SELECT ` + sessionColumns + `
		FROM parking_sessions s JOIN locations l ON l.id = s.location_id
		WHERE s.user_id = $1
		ORDER BY s.time_in DESC
		LIMIT $2 OFFSET $3
	`
	sessions, err := r.many(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("select session history: %w", err)
	}
	return sessions, nil
}

func (r *pgSessionRepository) CountHistory(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := postgres.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM parking_sessions WHERE user_id = $1`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count session history: %w", err)
	}
	return count, nil
}

func (r *pgSessionRepository) ExecuteTransaction(ctx context.Context, fn postgres.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
