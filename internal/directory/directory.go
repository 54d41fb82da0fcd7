// Package directory resolves vehicle ownership from the users and vehicles
// tables. Those tables are owned by the registration service; this package
// only reads them.
package directory

import (
	"context"
	"errors"
	"fmt"

	"uniparking/pkg/db/postgres"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrVehicleNotFound = errors.New("vehicle not found")
	ErrNotOwner        = errors.New("vehicle belongs to another user")
)

type Directory interface {
	VehicleOwner(ctx context.Context, vehicleID int64) (int64, error)
	VehicleIDs(ctx context.Context, userID int64) ([]int64, error)
}

type pgDirectory struct {
	pool *pgxpool.Pool
}

func NewPostgresDirectory(pool *pgxpool.Pool) Directory {
	return &pgDirectory{pool: pool}
}

func (d *pgDirectory) VehicleOwner(ctx context.Context, vehicleID int64) (int64, error) {
	var userID int64
	err := postgres.Conn(ctx, d.pool).QueryRow(ctx,
		`SELECT user_id FROM vehicles WHERE id = $1`, vehicleID,
	).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrVehicleNotFound
		}
		return 0, fmt.Errorf("select vehicle owner: %w", err)
	}
	return userID, nil
}

func (d *pgDirectory) VehicleIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := postgres.Conn(ctx, d.pool).Query(ctx,
		`SELECT id FROM vehicles WHERE user_id = $1 ORDER BY id`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select vehicles: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan vehicle id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RequireOwner returns ErrVehicleNotFound for unknown vehicles and
// ErrNotOwner when the vehicle belongs to someone else.
func RequireOwner(ctx context.Context, d Directory, userID, vehicleID int64) error {
	owner, err := d.VehicleOwner(ctx, vehicleID)
	if err != nil {
		return err
	}
	if owner != userID {
		return ErrNotOwner
	}
	return nil
}
