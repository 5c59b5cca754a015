package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

// TransactionManager executes a function within a database transaction,
// passing the underlying handle via the `tx` argument.
//
// Repository methods accept `tx Tx` and detect a live transaction
// implementation-side (e.g. pgx.Tx) to run SELECT ... FOR UPDATE and
// tx-bound Exec/Query. They MUST gracefully accept nil tx (the
// non-transactional path).
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
