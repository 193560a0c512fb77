// Package repo holds the Postgres-backed implementations of the stores the
// gateway core consumes: device registration, the local send queue, and the
// read-only inbound message store.
package repo

import (
	"context"
	"database/sql"
	_ "embed"
)

//go:embed schema.sql
var schema string

// EnsureSchema creates all tables when they do not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}
