package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque executor handle. Postgres repositories accept pgx.Tx,
// *pgxpool.Conn, *pgxpool.Pool or nil (use the pool).
type Tx interface{}

var NoTX interface{}

// TransactionManager runs fn inside a database transaction and passes the
// handle through tx. Repositories called with that handle join the
// transaction. Processor and chat calls must never run inside fn.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
