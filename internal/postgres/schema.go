package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id          BIGINT PRIMARY KEY,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		price_cents BIGINT NOT NULL CHECK (price_cents > 0),
		image_url   TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id                BIGSERIAL PRIMARY KEY,
		email             TEXT NOT NULL,
		amount_cents      BIGINT NOT NULL,
		status            TEXT NOT NULL,
		stripe_session_id TEXT,
		shipping_address  JSONB,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS orders_email_created_idx ON orders (email, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		order_id    BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		position    INTEGER NOT NULL,
		product_id  BIGINT NOT NULL,
		quantity    BIGINT NOT NULL CHECK (quantity > 0),
		price_cents BIGINT NOT NULL CHECK (price_cents > 0),
		PRIMARY KEY (order_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS stock (
		product_id BIGINT PRIMARY KEY,
		total      BIGINT NOT NULL,
		reserved   BIGINT NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT stock_reserved_bounds CHECK (reserved >= 0 AND reserved <= total)
	)`,
}

// Migrate creates the tables both services use. Every statement is
// idempotent so each binary runs it on startup.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i, err)
		}
	}
	return nil
}
