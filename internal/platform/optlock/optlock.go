// Package optlock implements optimistic concurrency for versioned rows.
// Every update statement is conditional on the version the client last read;
// a zero-row result is resolved into either a missing record or a stale
// version, never guessed.
package optlock

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrConflict means the row exists but its version moved past the one
	// the caller read.
	ErrConflict = errors.New("version conflict")
	// ErrNotFound means the row does not exist.
	ErrNotFound = errors.New("record not found")
)

// Queryable is the subset of pgx used here, satisfied by pools, connections
// and transactions alike.
type Queryable interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// Apply executes updateSQL, which must be an UPDATE filtered by both primary
// key and expected version. When no row is touched the table is probed by
// idColumn=id to distinguish ErrNotFound from ErrConflict.
func Apply(ctx context.Context, q Queryable, table, idColumn string, id int64, updateSQL string, args ...interface{}) error {
	tag, err := q.Exec(ctx, updateSQL, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	probe := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE %s = $1)`, table, idColumn)
	if err := q.QueryRow(ctx, probe, id).Scan(&exists); err != nil {
		return fmt.Errorf("probe %s: %w", table, err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConflict
}
