package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vetlink/consultation-service/internal/domain"
)

const threadChannelPrefix = "followup.thread."

// MessageBus fans accepted follow-up messages out to live readers. The
// service publishes after a successful append; subscribers get new messages
// without polling the store. Delivery is best-effort; the message log in
// Postgres stays the source of truth.
type MessageBus interface {
	PublishMessage(ctx context.Context, msg *domain.FollowUpMessage) error
	// SubscribeMessages streams messages for one thread until cancel is
	// called or ctx is done.
	SubscribeMessages(ctx context.Context, threadID string) (<-chan domain.FollowUpMessage, func())
}

type redisMessageBus struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisMessageBus builds a MessageBus over Redis pub/sub.
func NewRedisMessageBus(client *redis.Client, logger *zap.Logger) MessageBus {
	return &redisMessageBus{client: client, logger: logger}
}

func threadChannel(threadID string) string {
	return threadChannelPrefix + threadID
}

func (b *redisMessageBus) PublishMessage(ctx context.Context, msg *domain.FollowUpMessage) error {
	payload, err := json.Marshal(busEnvelope{
		ID:            msg.ID,
		ThreadID:      msg.ThreadID,
		SenderID:      msg.SenderID,
		SenderRole:    msg.SenderRole,
		MessageType:   msg.MessageType,
		Content:       msg.Content,
		AttachmentURL: msg.AttachmentURL,
		CreatedAt:     msg.CreatedAt,
	})
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, threadChannel(msg.ThreadID), payload).Err()
}

func (b *redisMessageBus) SubscribeMessages(ctx context.Context, threadID string) (<-chan domain.FollowUpMessage, func()) {
	sub := b.client.Subscribe(ctx, threadChannel(threadID))
	out := make(chan domain.FollowUpMessage, 16)

	go func() {
		defer close(out)
		for redisMsg := range sub.Channel() {
			var envelope busEnvelope
			if err := json.Unmarshal([]byte(redisMsg.Payload), &envelope); err != nil {
				b.logger.Warn("discarding malformed bus payload",
					zap.String("thread_id", threadID), zap.Error(err))
				continue
			}
			select {
			case out <- envelope.toDomain():
			case <-ctx.Done():
				return
			}
		}
	}()

	cancel := func() {
		_ = sub.Close()
	}
	return out, cancel
}

type busEnvelope struct {
	ID            string                     `json:"id"`
	ThreadID      string                     `json:"thread_id"`
	SenderID      string                     `json:"sender_id"`
	SenderRole    domain.SenderRole          `json:"sender_role"`
	MessageType   domain.FollowUpMessageType `json:"message_type"`
	Content       string                     `json:"content"`
	AttachmentURL *string                    `json:"attachment_url,omitempty"`
	CreatedAt     time.Time                  `json:"created_at"`
}

func (e busEnvelope) toDomain() domain.FollowUpMessage {
	return domain.FollowUpMessage{
		ID:            e.ID,
		ThreadID:      e.ThreadID,
		SenderID:      e.SenderID,
		SenderRole:    e.SenderRole,
		MessageType:   e.MessageType,
		Content:       e.Content,
		AttachmentURL: e.AttachmentURL,
		CreatedAt:     e.CreatedAt,
	}
}
