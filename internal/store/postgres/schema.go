package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE EXTENSION IF NOT EXISTS pgcrypto;

CREATE TABLE IF NOT EXISTS users (
	id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	name text NOT NULL,
	email text NOT NULL UNIQUE,
	role text NOT NULL DEFAULT 'user',
	status text NOT NULL DEFAULT 'active',
	password_hash text NOT NULL,
	password_changed_at timestamptz,
	password_reset_token text,
	password_reset_expires timestamptz,
	created_at timestamptz NOT NULL DEFAULT now(),
	updated_at timestamptz NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS users_password_reset_token_idx
	ON users (password_reset_token)
	WHERE password_reset_token IS NOT NULL;

CREATE TABLE IF NOT EXISTS links (
	id uuid PRIMARY KEY,
	owner_id uuid NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	created_at timestamptz NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS links_owner_id_idx ON links (owner_id);

CREATE TABLE IF NOT EXISTS link_responses (
	id bigserial PRIMARY KEY,
	link_id uuid NOT NULL REFERENCES links(id) ON DELETE CASCADE,
	body text NOT NULL,
	created_at timestamptz NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS link_responses_link_id_idx ON link_responses (link_id);
`

// EnsureSchema applies the idempotent DDL. The statements are additive only;
// destructive changes need a manual migration.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
