package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// The partial unique index is the reservation invariant: at most one
// booking per (type, slot) that is neither canceled nor soft-deleted.
// Reserve relies on the resulting 23505 instead of a read-then-insert.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS appointment_types (
		id         uuid PRIMARY KEY,
		name       text NOT NULL UNIQUE,
		created_at timestamptz NOT NULL DEFAULT now(),
		updated_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id                  uuid PRIMARY KEY,
		appointment_type_id uuid NOT NULL REFERENCES appointment_types (id),
		subject_id          uuid NOT NULL,
		slot_start          timestamptz NOT NULL,
		canceled_at         timestamptz,
		created_at          timestamptz NOT NULL DEFAULT now(),
		updated_at          timestamptz NOT NULL DEFAULT now(),
		deleted_at          timestamptz
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS bookings_active_type_slot_key
		ON bookings (appointment_type_id, slot_start)
		WHERE canceled_at IS NULL AND deleted_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS bookings_subject_idx
		ON bookings (subject_id, slot_start)`,
}

// EnsureSchema applies the schema idempotently. The service owns its
// two tables, so plain DDL on startup stands in for a migration tool.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
