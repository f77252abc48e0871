package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"piazza-chat/internal/domain/topic"
	piazza_errors "piazza-chat/pkg/errors"
)

type PostgresTopicRepository struct {
	db DBTX
}

func NewTopicRepository(db DBTX) TopicRepository {
	return &PostgresTopicRepository{db: db}
}

func (r *PostgresTopicRepository) Create(ctx context.Context, t *topic.Topic) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO topics (id, name, visibility, created_at)
		VALUES ($1, $2, $3, $4)`,
		t.ID, t.Name, string(t.Visibility), t.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return piazza_errors.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *PostgresTopicRepository) GetByID(ctx context.Context, id uuid.UUID) (topic.Topic, error) {
	var t topic.Topic
	var visibility string
	err := r.db.QueryRow(ctx, `
		SELECT id, name, visibility, member_count, message_count, created_at
		FROM topics WHERE id = $1`,
		id).Scan(&t.ID, &t.Name, &visibility, &t.MemberCount, &t.MessageCount, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return topic.Topic{}, piazza_errors.ErrNotFound
		}
		return topic.Topic{}, err
	}
	t.Visibility = topic.Visibility(visibility)
	return t, nil
}

func (r *PostgresTopicRepository) GetMembership(ctx context.Context, topicID, userID uuid.UUID) (topic.Membership, error) {
	var m topic.Membership
	var role string
	err := r.db.QueryRow(ctx, `
		SELECT topic_id, user_id, role, can_write
		FROM topic_members WHERE topic_id = $1 AND user_id = $2`,
		topicID, userID).Scan(&m.TopicID, &m.UserID, &role, &m.CanWrite)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return topic.Membership{}, piazza_errors.ErrForbidden
		}
		return topic.Membership{}, err
	}
	m.Role = topic.Role(role)
	return m, nil
}

func (r *PostgresTopicRepository) AddMember(ctx context.Context, m *topic.Membership) error {
	err := WithTx(ctx, r.db, func(tx DBTX) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO topic_members (topic_id, user_id, role, can_write)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (topic_id, user_id) DO NOTHING`,
			m.TopicID, m.UserID, string(m.Role), m.CanWrite)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		_, err = tx.Exec(ctx, `
			UPDATE topics SET member_count = member_count + 1 WHERE id = $1`,
			m.TopicID)
		return err
	})
	return err
}

func (r *PostgresTopicRepository) IncrementMessageCount(ctx context.Context, id uuid.UUID, delta int) error {
	_, err := r.db.Exec(ctx, `
		UPDATE topics SET message_count = message_count + $2 WHERE id = $1`,
		id, delta)
	return err
}
