package cache

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const (
	consultationKeyPrefix = "consultation:"
	invalidationChannel   = "consultation.invalidated"
)

// Invalidator tells downstream readers a consultation record changed.
// Calls are fire-and-forget from the caller's point of view; failures are
// the caller's to log, never to propagate.
type Invalidator interface {
	Invalidate(ctx context.Context, consultationID string) error
}

type redisInvalidator struct {
	client *redis.Client
}

// NewRedisInvalidator builds an Invalidator over Redis. Cached detail views
// are deleted by key and the change is announced on a pub/sub channel for
// any reader holding its own copy.
func NewRedisInvalidator(client *redis.Client) Invalidator {
	return &redisInvalidator{client: client}
}

func (i *redisInvalidator) Invalidate(ctx context.Context, consultationID string) error {
	if err := i.client.Del(ctx, consultationKeyPrefix+consultationID).Err(); err != nil {
		return err
	}
	return i.client.Publish(ctx, invalidationChannel, consultationID).Err()
}
