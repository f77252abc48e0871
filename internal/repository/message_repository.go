package repository

import (
	"errors"
	"time"

	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"piazza-chat/internal/domain/message"
	piazza_errors "piazza-chat/pkg/errors"
)

type PostgresMessageRepository struct {
	db DBTX
}

func NewMessageRepository(db DBTX) MessageRepository {
	return &PostgresMessageRepository{db: db}
}

const messageColumns = `id, topic_id, author_id, author_name, author_avatar, kind, content,
	payload, reply_to_id, is_edited, edited_at, deleted_at, created_at, updated_at`

func (r *PostgresMessageRepository) Create(ctx context.Context, m *message.Message) error {
	payload, err := message.EncodePayload(m.Payload)
	if err != nil {
		return err
	}

	var replyTo *uuid.UUID
	if m.ReplyToID != "" {
		id, err := uuid.Parse(m.ReplyToID)
		if err != nil {
			return piazza_errors.ErrInvalidInput
		}
		replyTo = &id
	}

	var author message.Author
	if m.Author != nil {
		author = *m.Author
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO messages (id, topic_id, author_id, author_name, author_avatar, kind, content,
			payload, reply_to_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		m.ID, m.TopicID, m.AuthorID, author.Name, author.Avatar, string(m.Kind), m.Content,
		payload, replyTo, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return piazza_errors.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *PostgresMessageRepository) GetByID(ctx context.Context, id uuid.UUID) (message.Message, error) {
	row := r.db.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id)
	m, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return message.Message{}, piazza_errors.ErrNotFound
		}
		return message.Message{}, err
	}
	return m, nil
}

func (r *PostgresMessageRepository) UpdateContent(ctx context.Context, id uuid.UUID, content string, editedAt time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE messages
		SET content = $2, is_edited = TRUE, edited_at = $3, updated_at = $3
		WHERE id = $1 AND deleted_at IS NULL`,
		id, content, editedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return piazza_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresMessageRepository) SoftDelete(ctx context.Context, id uuid.UUID, deletedAt time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE messages
		SET deleted_at = $2, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL`,
		id, deletedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return piazza_errors.ErrNotFound
	}
	return nil
}

// ListBefore returns up to limit messages older than the cursor, newest first.
// A nil cursor starts from the newest message in the topic.
func (r *PostgresMessageRepository) ListBefore(ctx context.Context, topicID uuid.UUID, before *message.Message, limit int) ([]message.Message, error) {
	var rows pgx.Rows
	var err error
	if before == nil {
		rows, err = r.db.Query(ctx, `
			SELECT `+messageColumns+` FROM messages
			WHERE topic_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2`,
			topicID, limit)
	} else {
		rows, err = r.db.Query(ctx, `
			SELECT `+messageColumns+` FROM messages
			WHERE topic_id = $1 AND (created_at, id::text) < ($2, $3)
			ORDER BY created_at DESC, id DESC
			LIMIT $4`,
			topicID, before.CreatedAt, before.ID, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []message.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMessage(row pgx.Row) (message.Message, error) {
	var (
		m         message.Message
		author    message.Author
		id        uuid.UUID
		topicID   uuid.UUID
		authorID  uuid.UUID
		kind      string
		payload   []byte
		replyTo   *uuid.UUID
		editedAt  *time.Time
		deletedAt *time.Time
	)
	err := row.Scan(&id, &topicID, &authorID, &author.Name, &author.Avatar, &kind, &m.Content,
		&payload, &replyTo, &m.IsEdited, &editedAt, &deletedAt, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return message.Message{}, err
	}

	m.ID = id.String()
	m.TopicID = topicID.String()
	m.AuthorID = authorID.String()
	author.ID = m.AuthorID
	m.Author = &author
	m.Kind = message.Kind(kind)
	m.State = message.StateConfirmed
	if replyTo != nil {
		m.ReplyToID = replyTo.String()
	}
	if editedAt != nil {
		m.EditedAt = editedAt
	}
	if deletedAt != nil {
		m.IsDeleted = true
		m.DeletedAt = deletedAt
	}
	if len(payload) > 0 {
		p, err := message.DecodePayload(m.Kind, payload)
		if err != nil {
			return message.Message{}, err
		}
		m.Payload = p
	}
	return m, nil
}
