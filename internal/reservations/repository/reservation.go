package repository

import (
	"context"
	"errors"
	"fmt"

	reservationserrors "uniparking/internal/reservations/errors"
	"uniparking/pkg/config"
	"uniparking/pkg/db/postgres"
	"uniparking/pkg/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ReservationRepository interface {
	Create(ctx context.Context, r *model.Reservation) error
	FindByID(ctx context.Context, id int64) (*model.Reservation, error)
	FindByIDForUpdate(ctx context.Context, id int64) (*model.Reservation, error)
	Update(ctx context.Context, r *model.Reservation) error
	FindByUser(ctx context.Context, userID int64, limit int, offset int64) ([]*model.Reservation, error)
	CountByUser(ctx context.Context, userID int64) (int64, error)
	FindAll(ctx context.Context, status model.ReservationStatus, limit int, offset int64) ([]*model.Reservation, error)
	Count(ctx context.Context, status model.ReservationStatus) (int64, error)
	ExecuteTransaction(ctx context.Context, fn postgres.TransactionFunc) error
}

type pgReservationRepository struct {
	cfg       *config.Config
	pool      *pgxpool.Pool
	txManager postgres.TransactionManager
}

func NewPostgresReservationRepository(cfg *config.Config) ReservationRepository {
	return &pgReservationRepository{
		cfg:       cfg,
		pool:      cfg.Client.Postgres,
		txManager: postgres.NewTransactionManager(cfg.Client.Postgres),
	}
}

const reservationColumns = `
	r.id, r.user_id, r.vehicle_id, r.location_id, r.space_id, sp.space_number,
	r.start_time, r.end_time, r.duration_hours, r.amount_paid, r.reference_number,
	r.payment_status, r.status, r.rejection_reason, r.cancellation_reason,
	r.processed_by, r.needs_disabled, r.hold_expires_at, r.created_at, r.updated_at
`

const reservationFrom = `
	FROM reservations r LEFT JOIN spaces sp ON sp.id = r.space_id
`

func scanReservation(row pgx.Row) (*model.Reservation, error) {
	var r model.Reservation
	err := row.Scan(
		&r.ID,
		&r.UserID,
		&r.VehicleID,
		&r.LocationID,
		&r.SpaceID,
		&r.SpaceNumber,
		&r.StartTime,
		&r.EndTime,
		&r.DurationHours,
		&r.AmountPaid,
		&r.ReferenceNumber,
		&r.PaymentStatus,
		&r.Status,
		&r.RejectionReason,
		&r.CancellationReason,
		&r.ProcessedBy,
		&r.NeedsDisabled,
		&r.HoldExpiresAt,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (p *pgReservationRepository) one(ctx context.Context, query string, args ...any) (*model.Reservation, error) {
	r, err := scanReservation(postgres.Conn(ctx, p.pool).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, reservationserrors.ErrNotFound
		}
		return nil, fmt.Errorf("select reservation: %w", err)
	}
	return r, nil
}

func (p *pgReservationRepository) many(ctx context.Context, query string, args ...any) ([]*model.Reservation, error) {
	rows, err := postgres.Conn(ctx, p.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reservations := []*model.Reservation{}
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		reservations = append(reservations, r)
	}
	return reservations, rows.Err()
}

func (p *pgReservationRepository) Create(ctx context.Context, r *model.Reservation) error {
	query := `
		INSERT INTO reservations (
			user_id, vehicle_id, location_id, space_id, start_time, end_time,
			duration_hours, amount_paid, reference_number, payment_status, status,
			needs_disabled, hold_expires_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)
		RETURNING id
	`
	err := postgres.Conn(ctx, p.pool).QueryRow(ctx, query,
		r.UserID,
		r.VehicleID,
		r.LocationID,
		r.SpaceID,
		r.StartTime,
		r.EndTime,
		r.DurationHours,
		r.AmountPaid,
		r.ReferenceNumber,
		r.PaymentStatus,
		r.Status,
		r.NeedsDisabled,
		r.HoldExpiresAt,
		r.CreatedAt,
	).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	r.UpdatedAt = r.CreatedAt
	return nil
}

func (p *pgReservationRepository) FindByID(ctx context.Context, id int64) (*model.Reservation, error) {
	return p.one(ctx, `SELECT `+reservationColumns+reservationFrom+`WHERE r.id = $1`, id)
}

// FindByIDForUpdate locks the row for the rest of the caller's transaction.
func (p *pgReservationRepository) FindByIDForUpdate(ctx context.Context, id int64) (*model.Reservation, error) {
	return p.one(ctx, `SELECT `+reservationColumns+reservationFrom+`WHERE r.id = $1 FOR UPDATE OF r`, id)
}

// Update writes the fields the lifecycle can change.
func (p *pgReservationRepository) Update(ctx context.Context, r *model.Reservation) error {
	query := `
		UPDATE reservations
		SET space_id = $2,
		    payment_status = $3,
		    status = $4,
		    rejection_reason = $5,
		    cancellation_reason = $6,
		    processed_by = $7,
		    hold_expires_at = $8,
		    updated_at = $9
		WHERE id = $1
	`
	tag, err := postgres.Conn(ctx, p.pool).Exec(ctx, query,
		r.ID,
		r.SpaceID,
		r.PaymentStatus,
		r.Status,
		r.RejectionReason,
		r.CancellationReason,
		r.ProcessedBy,
		r.HoldExpiresAt,
		r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update reservation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return reservationserrors.ErrNotFound
	}
	return nil
}

func (p *pgReservationRepository) FindByUser(ctx context.Context, userID int64, limit int, offset int64) ([]*model.Reservation, error) {
	query := `SELECT ` + reservationColumns + reservationFrom + `
		WHERE r.user_id = $1
		ORDER BY r.start_time DESC
		LIMIT $2 OFFSET $3
	`
	reservations, err := p.many(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("select user reservations: %w", err)
	}
	return reservations, nil
}

func (p *pgReservationRepository) CountByUser(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := postgres.Conn(ctx, p.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM reservations WHERE user_id = $1`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count user reservations: %w", err)
	}
	return count, nil
}

// FindAll lists every reservation, newest first. An empty status matches all.
func (p *pgReservationRepository) FindAll(ctx context.Context, status model.ReservationStatus, limit int, offset int64) ([]*model.Reservation, error) {
	query := `SELECT ` + reservationColumns + reservationFrom + `
		WHERE ($1::text = '' OR r.status = $1::text)
		ORDER BY r.created_at DESC
		LIMIT $2 OFFSET $3
	`
	reservations, err := p.many(ctx, query, string(status), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("select reservations: %w", err)
	}
	return reservations, nil
}

func (p *pgReservationRepository) Count(ctx context.Context, status model.ReservationStatus) (int64, error) {
	var count int64
	err := postgres.Conn(ctx, p.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM reservations WHERE ($1::text = '' OR status = $1::text)`, string(status),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count reservations: %w", err)
	}
	return count, nil
}

func (p *pgReservationRepository) ExecuteTransaction(ctx context.Context, fn postgres.TransactionFunc) error {
	return p.txManager.ExecuteTransaction(ctx, fn)
}
