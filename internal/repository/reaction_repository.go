package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"piazza-chat/internal/domain/message"
)

type PostgresReactionRepository struct {
	db DBTX
}

func NewReactionRepository(db DBTX) ReactionRepository {
	return &PostgresReactionRepository{db: db}
}

// Toggle enforces one reaction per user per message. Toggling the emoji
// the user already has removes it; any other emoji replaces the previous
// one. The read and the write happen in the same transaction so two
// concurrent toggles cannot leave a user with two rows.
func (r *PostgresReactionRepository) Toggle(ctx context.Context, messageID, userID uuid.UUID, emoji string) (ToggleOutcome, error) {
	var outcome ToggleOutcome
	err := WithTx(ctx, r.db, func(tx DBTX) error {
		var previous string
		err := tx.QueryRow(ctx, `
			SELECT emoji FROM message_reactions
			WHERE message_id = $1 AND user_id = $2
			FOR UPDATE`,
			messageID, userID).Scan(&previous)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		outcome.Previous = previous

		if previous == emoji {
			_, err := tx.Exec(ctx, `
				DELETE FROM message_reactions
				WHERE message_id = $1 AND user_id = $2`,
				messageID, userID)
			if err != nil {
				return err
			}
			outcome.Removed = true
			return nil
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO message_reactions (message_id, user_id, emoji, created_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (message_id, user_id) DO UPDATE SET emoji = $3, created_at = $4`,
			messageID, userID, emoji, time.Now())
		return err
	})
	if err != nil {
		return ToggleOutcome{}, err
	}
	return outcome, nil
}

func (r *PostgresReactionRepository) ListForMessages(ctx context.Context, messageIDs []uuid.UUID) ([]message.Reaction, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `
		SELECT message_id, user_id, emoji, created_at
		FROM message_reactions
		WHERE message_id = ANY($1)
		ORDER BY created_at ASC`,
		messageIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []message.Reaction
	for rows.Next() {
		var (
			msgID  uuid.UUID
			userID uuid.UUID
			rxn    message.Reaction
		)
		if err := rows.Scan(&msgID, &userID, &rxn.Emoji, &rxn.CreatedAt); err != nil {
			return nil, err
		}
		rxn.MessageID = msgID.String()
		rxn.UserID = userID.String()
		out = append(out, rxn)
	}
	return out, rows.Err()
}
