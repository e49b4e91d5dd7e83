package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisBus carries realtime fan-out for chat and notifications. Redis
// is best-effort delivery here; the database row is always the source
// of truth and clients fall back to polling when Redis is unavailable.
type RedisBus struct {
	client *redis.Client
}

func NewRedisBus(addr string, password string, db int) (*RedisBus, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisBus{client: client}, nil
}

func (b *RedisBus) Close() error {
	return b.client.Close()
}

// ChatChannel is the pub/sub channel for one conversation.
func ChatChannel(conversationID string) string {
	return "chat:" + conversationID
}

// NotifyChannel is the pub/sub channel for one user's notifications.
func NotifyChannel(externalUserID string) string {
	return "notify:" + externalUserID
}

// Publish marshals payload to JSON and publishes it on channel.
func (b *RedisBus) Publish(ctx context.Context, channel string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload for %s: %w", channel, err)
	}
	if err := b.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish on %s: %w", channel, err)
	}
	return nil
}

// Subscribe opens a pub/sub subscription on the given channels. The
// caller owns the returned PubSub and must Close it.
func (b *RedisBus) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	return b.client.Subscribe(ctx, channels...)
}
