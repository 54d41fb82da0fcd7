package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate applies the schema. Every statement is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	migrations := []string{
		migrationCreateExtensions,
		migrationCreateUsers,
		migrationCreateVehicles,
		migrationCreateLocations,
		migrationCreateSpaces,
		migrationCreateReservations,
		migrationAddReservationOverlapGuard,
		migrationCreateSessions,
	}

	for i, m := range migrations {
		if _, err := pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("execute migration %d: %w", i+1, err)
		}
	}

	return nil
}

const migrationCreateExtensions = `
CREATE EXTENSION IF NOT EXISTS btree_gist;
`

const migrationCreateUsers = `
CREATE TABLE IF NOT EXISTS users (
    id BIGSERIAL PRIMARY KEY,
    email VARCHAR(255) NOT NULL UNIQUE,
    full_name VARCHAR(255) NOT NULL DEFAULT '',
    role VARCHAR(20) NOT NULL DEFAULT 'user' CHECK (role IN ('user', 'admin')),
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
`

const migrationCreateVehicles = `
CREATE TABLE IF NOT EXISTS vehicles (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    plate VARCHAR(20) NOT NULL UNIQUE,
    make VARCHAR(50) NOT NULL DEFAULT '',
    model VARCHAR(50) NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_vehicles_user_id ON vehicles(user_id);
`

const migrationCreateLocations = `
CREATE TABLE IF NOT EXISTS locations (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(100) NOT NULL,
    code VARCHAR(4) NOT NULL,
    total_spaces INT NOT NULL CHECK (total_spaces >= 1),
    hourly_rate NUMERIC(10, 2) NOT NULL CHECK (hourly_rate > 0),
    status VARCHAR(20) NOT NULL DEFAULT 'open'
        CHECK (status IN ('open', 'closed', 'maintenance', 'event_only')),
    status_note TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    CONSTRAINT locations_code_key UNIQUE (code)
);
`

const migrationCreateSpaces = `
CREATE TABLE IF NOT EXISTS spaces (
    id BIGSERIAL PRIMARY KEY,
    location_id BIGINT NOT NULL REFERENCES locations(id) ON DELETE CASCADE,
    space_number INT NOT NULL CHECK (space_number >= 1),
    special_type VARCHAR(20) NOT NULL DEFAULT 'standard'
        CHECK (special_type IN ('standard', 'disabled')),
    is_disabled BOOLEAN NOT NULL DEFAULT FALSE,
    CONSTRAINT spaces_location_number_key UNIQUE (location_id, space_number)
);
CREATE INDEX IF NOT EXISTS idx_spaces_location_type ON spaces(location_id, special_type);
`

const migrationCreateReservations = `
CREATE TABLE IF NOT EXISTS reservations (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL,
    vehicle_id BIGINT NOT NULL,
    location_id BIGINT NOT NULL REFERENCES locations(id) ON DELETE CASCADE,
    space_id BIGINT REFERENCES spaces(id) ON DELETE SET NULL,
    start_time TIMESTAMP WITH TIME ZONE NOT NULL,
    end_time TIMESTAMP WITH TIME ZONE NOT NULL,
    duration_hours INT NOT NULL CHECK (duration_hours >= 1),
    amount_paid NUMERIC(10, 2) NOT NULL CHECK (amount_paid >= 0),
    reference_number VARCHAR(16) NOT NULL,
    payment_status VARCHAR(10) NOT NULL DEFAULT 'unpaid'
        CHECK (payment_status IN ('unpaid', 'paid')),
    status VARCHAR(10) NOT NULL DEFAULT 'pending'
        CHECK (status IN ('pending', 'confirmed', 'rejected', 'cancelled')),
    rejection_reason TEXT NOT NULL DEFAULT '',
    cancellation_reason TEXT NOT NULL DEFAULT '',
    processed_by BIGINT,
    needs_disabled BOOLEAN NOT NULL DEFAULT FALSE,
    hold_expires_at TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    CONSTRAINT reservations_reference_key UNIQUE (reference_number),
    CONSTRAINT reservations_window_check CHECK (end_time > start_time)
);
CREATE INDEX IF NOT EXISTS idx_reservations_user_id ON reservations(user_id);
CREATE INDEX IF NOT EXISTS idx_reservations_location_window ON reservations(location_id, start_time, end_time);
`

// Two paid, live reservations can never share a space over overlapping time.
const migrationAddReservationOverlapGuard = `
DO $$
BEGIN
    IF NOT EXISTS (
        SELECT 1 FROM pg_constraint WHERE conname = 'reservations_no_overlap'
    ) THEN
        ALTER TABLE reservations ADD CONSTRAINT reservations_no_overlap
            EXCLUDE USING gist (
                space_id WITH =,
                tstzrange(start_time, end_time, '[)') WITH &&
            ) WHERE (payment_status = 'paid' AND status IN ('pending', 'confirmed'));
    END IF;
END
$$;
`

const migrationCreateSessions = `
CREATE TABLE IF NOT EXISTS parking_sessions (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL,
    vehicle_id BIGINT NOT NULL,
    location_id BIGINT NOT NULL REFERENCES locations(id) ON DELETE CASCADE,
    space_id BIGINT REFERENCES spaces(id) ON DELETE SET NULL,
    space_number INT NOT NULL,
    time_in TIMESTAMP WITH TIME ZONE NOT NULL,
    time_out TIMESTAMP WITH TIME ZONE,
    duration_hours INT NOT NULL CHECK (duration_hours >= 1),
    amount_paid NUMERIC(10, 2) NOT NULL CHECK (amount_paid >= 0),
    hourly_rate NUMERIC(10, 2) NOT NULL,
    reference_number VARCHAR(16) NOT NULL,
    payment_status VARCHAR(10) NOT NULL DEFAULT 'paid',
    CONSTRAINT parking_sessions_reference_key UNIQUE (reference_number)
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_open_vehicle ON parking_sessions(vehicle_id) WHERE time_out IS NULL;
CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_open_space ON parking_sessions(space_id) WHERE time_out IS NULL;
CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_open_user ON parking_sessions(user_id) WHERE time_out IS NULL;
CREATE INDEX IF NOT EXISTS idx_sessions_location_open ON parking_sessions(location_id) WHERE time_out IS NULL;
`
