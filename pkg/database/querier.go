package database

import (
	"context"
	"database/sql"
)

// Querier is the statement surface shared by the connection pool and an open
// transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
}

// QuerierFrom returns the open transaction carried by the context, falling back
// to the pool. Repositories route every statement through this so all writes
// inside a merge share one transaction and roll back together.
func QuerierFrom(ctx context.Context, db DB) Querier {
	tx, ok := ctx.Value(txKey).(Tx)
	if ok && tx != nil && tx.IsOpen() {
		status, ok := ctx.Value(txStatusKey).(string)
		if ok && status == "open" {
			return tx
		}
	}
	return db
}
