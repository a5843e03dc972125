package repository

import (
	"context"
	"database/sql"
)

type scanner interface {
	Scan(dest ...any) error
}

// Querier is satisfied by both *sql.DB and *sql.Tx so lookups can run inside
// a locked transaction or on the pool.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)
)
