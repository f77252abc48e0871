package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS topics (
		id            UUID PRIMARY KEY,
		name          TEXT NOT NULL,
		visibility    TEXT NOT NULL DEFAULT 'public',
		member_count  INT NOT NULL DEFAULT 0,
		message_count INT NOT NULL DEFAULT 0,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS topic_members (
		topic_id   UUID NOT NULL REFERENCES topics(id) ON DELETE CASCADE,
		user_id    UUID NOT NULL,
		role       TEXT NOT NULL DEFAULT 'member',
		can_write  BOOLEAN NOT NULL DEFAULT TRUE,
		joined_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (topic_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id           UUID PRIMARY KEY,
		topic_id     UUID NOT NULL REFERENCES topics(id) ON DELETE CASCADE,
		author_id    UUID NOT NULL,
		author_name  TEXT NOT NULL DEFAULT '',
		author_avatar TEXT NOT NULL DEFAULT '',
		kind         TEXT NOT NULL DEFAULT 'text',
		content      TEXT NOT NULL DEFAULT '',
		payload      JSONB,
		reply_to_id  UUID,
		is_edited    BOOLEAN NOT NULL DEFAULT FALSE,
		edited_at    TIMESTAMPTZ,
		deleted_at   TIMESTAMPTZ,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_topic_created
		ON messages (topic_id, created_at DESC, id DESC)`,
	`CREATE TABLE IF NOT EXISTS message_reactions (
		message_id UUID NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
		user_id    UUID NOT NULL,
		emoji      TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (message_id, user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reactions_message
		ON message_reactions (message_id)`,
}

// Migrate applies the schema statements in order. Every statement is
// idempotent, so running it repeatedly is safe.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}
