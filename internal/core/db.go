// Package core holds the warroom's durable store services. Each service talks
// to PostgreSQL through the DB interface so tests can substitute a mock.
package core

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/edvin/warroom/internal/fault"
)

// DB defines the database operations used by the store services.
// *pgxpool.Pool satisfies this interface.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// storeErr tags a database failure. A missing row becomes ErrNotFound,
// anything else ErrStoreUnavailable.
func storeErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fault.Wrap(fault.ErrNotFound, op, err)
	}
	return fault.Wrap(fault.ErrStoreUnavailable, op, err)
}
