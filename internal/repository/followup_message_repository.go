package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vetlink/consultation-service/internal/domain"
)

// FollowUpMessageRepository manages the append-only thread message log.
// Ordering is always created_at ascending with id as the tie-breaker, so a
// message's position is fixed by its persisted timestamp regardless of the
// send order any one client observed.
type FollowUpMessageRepository interface {
	Create(ctx context.Context, msg *domain.FollowUpMessage) error
	ListByThread(ctx context.Context, threadID string) ([]domain.FollowUpMessage, error)
	MarkReadForRecipient(ctx context.Context, threadID string, reader domain.SenderRole) error
}

type followUpMessageRepository struct {
	pool *pgxpool.Pool
}

// NewFollowUpMessageRepository builds repository.
func NewFollowUpMessageRepository(pool *pgxpool.Pool) FollowUpMessageRepository {
	return &followUpMessageRepository{pool: pool}
}

func (r *followUpMessageRepository) Create(ctx context.Context, msg *domain.FollowUpMessage) error {
	const query = `
        INSERT INTO follow_up_messages (thread_id, sender_id, sender_role, message_type, content, attachment_url)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, is_read, created_at`
	return r.pool.QueryRow(ctx, query,
		msg.ThreadID,
		msg.SenderID,
		msg.SenderRole,
		msg.MessageType,
		msg.Content,
		msg.AttachmentURL,
	).Scan(&msg.ID, &msg.IsRead, &msg.CreatedAt)
}

func (r *followUpMessageRepository) ListByThread(ctx context.Context, threadID string) ([]domain.FollowUpMessage, error) {
	const query = `
        SELECT id, thread_id, sender_id, sender_role, message_type, content, attachment_url, is_read, created_at
        FROM follow_up_messages WHERE thread_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.FollowUpMessage
	for rows.Next() {
		var msg domain.FollowUpMessage
		if err := rows.Scan(
			&msg.ID,
			&msg.ThreadID,
			&msg.SenderID,
			&msg.SenderRole,
			&msg.MessageType,
			&msg.Content,
			&msg.AttachmentURL,
			&msg.IsRead,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}

// MarkReadForRecipient flips is_read on every message the reader did not
// author. The flag only ever moves false to true.
func (r *followUpMessageRepository) MarkReadForRecipient(ctx context.Context, threadID string, reader domain.SenderRole) error {
	const query = `
        UPDATE follow_up_messages SET is_read=TRUE
        WHERE thread_id=$1 AND sender_role <> $2 AND is_read=FALSE`
	_, err := r.pool.Exec(ctx, query, threadID, reader)
	return err
}
