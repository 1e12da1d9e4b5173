// Package database is the pgx storage layer. Orders, provider orders and
// pending service requests are stored one row per aggregate with the
// embedded document in a JSONB column. Every mutable row carries a version
// counter; updates are compare-and-set on that counter, so racing writers
// are serialized at the store and the loser observes pgx.ErrNoRows.
package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries bundles all storage operations over a pool or a transaction.
type Queries struct {
	db DBTX
}

// New creates Queries from a DBTX (pool or tx).
func New(db DBTX) *Queries {
	return &Queries{db: db}
}
