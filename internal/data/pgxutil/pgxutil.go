// Package pgxutil bridges the worker's *sql.DB pool to pgx-native calls.
// Repositories hold database/sql handles so migrations, tests, and the admin
// CLI share one pool, but row collection helpers (pgx.CollectRows and
// friends) need the underlying *pgx.Conn.
package pgxutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

// SQLTxConfig carries the transaction options and body for WithSQLTx.
type SQLTxConfig struct {
	Opts *sql.TxOptions
	Fn   func(*sql.Tx) error
}

// WithSQLTx runs fn inside a database/sql transaction, committing on nil
// error and rolling back otherwise. A rollback failure is joined onto the
// returned error rather than swallowed.
func WithSQLTx(ctx context.Context, db *sql.DB, cfg SQLTxConfig) (err error) {
	tx, err := db.BeginTx(ctx, cfg.Opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
	}()
	if err = cfg.Fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// WithPgxConn checks a connection out of the pool, unwraps it to the pgx
// driver connection, and hands it to fn. The connection returns to the pool
// when fn finishes, so fn must not retain it.
func WithPgxConn(ctx context.Context, db *sql.DB, fn func(*pgx.Conn) error) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get conn from pool: %w", err)
	}
	defer func() {
		// Close only releases the connection back to the pool.
		_ = conn.Close()
	}()

	return conn.Raw(func(driverConn any) error {
		std, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return errors.New("unexpected driver connection type; expected *stdlib.Conn")
		}
		return fn(std.Conn())
	})
}
