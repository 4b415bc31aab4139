package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager executes a function within a database transaction,
// passing the underlying transaction handle via `tx`.
//
// Repositories accept `tx Tx` and detect a live transaction implementation-
// side; they MUST gracefully accept nil (non-transactional path). The
// concrete type of `tx` is infra-defined (pgx.Tx for Postgres).
//
// All atomicity the core needs is either a single conditional statement or
// a short WithTx scope; no transaction ever spans a call to an external
// service.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
