package postgres

import (
	"context"
	"errors"
	"fmt"

	apperrors "uniparking/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TransactionFunc receives a context carrying the open transaction. Repository
// calls made with that context run inside it.
type TransactionFunc func(ctx context.Context) error

type TransactionManager interface {
	ExecuteTransaction(ctx context.Context, fn TransactionFunc) error
}

type pgTransactionManager struct {
	pool    *pgxpool.Pool
	retries int
}

// NewTransactionManager runs every unit of work at SERIALIZABLE and retries it
// once when Postgres reports a serialization or constraint collision.
func NewTransactionManager(pool *pgxpool.Pool) TransactionManager {
	return &pgTransactionManager{
		pool:    pool,
		retries: 1,
	}
}

func (m *pgTransactionManager) ExecuteTransaction(ctx context.Context, fn TransactionFunc) error {
	if InTransaction(ctx) {
		return fn(ctx)
	}

	var err error
	for attempt := 0; attempt <= m.retries; attempt++ {
		err = m.run(ctx, fn)
		if err == nil {
			return nil
		}
		if !IsConflict(err) {
			break
		}
	}

	if IsConflict(err) {
		return apperrors.StorageConflict(err)
	}
	if apperrors.IsAppError(err) {
		return err
	}
	return fmt.Errorf("transaction failed: %w", err)
}

func (m *pgTransactionManager) run(ctx context.Context, fn TransactionFunc) (err error) {
	tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeExclusionViolation   = "23P01"
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
)

// IsConflict reports whether err is a collision with a concurrent writer that
// is worth retrying.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case codeSerializationFailure, codeDeadlockDetected, codeExclusionViolation, codeUniqueViolation:
		return true
	}
	return false
}

// IsUniqueViolation matches a unique violation, optionally on a named
// constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != codeUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeForeignKeyViolation
}
