// Package tx runs a function inside a SQL transaction with rollback on error.
package tx

import (
	"context"
	"database/sql"
	"time"
)

const defaultTimeout = 5 * time.Second

// Run begins a transaction, invokes fn, and commits if fn returns nil.
// Any error rolls the transaction back. A deadline is added when the caller's
// context carries none so an abandoned transaction cannot hold locks forever.
func Run(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTimeout)
		defer cancel()
	}

	t, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = t.Rollback()
	}()

	if err := fn(t); err != nil {
		return err
	}
	return t.Commit()
}
