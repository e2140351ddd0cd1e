package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// active renders the soft-delete filter for a table alias. Every read path
// goes through it so inactive rows never leak into results.
func active(alias string) string {
	if alias == "" {
		return "is_active = TRUE"
	}
	return alias + ".is_active = TRUE"
}

// withTx runs fn inside a transaction, committing when fn returns nil and
// rolling back otherwise.
func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = fmt.Errorf("commit tx: %w", cerr)
		}
	}()
	return fn(tx)
}
