// Package history keeps per-conversation message logs in redis.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/docassist/docassist/models"
)

// Log stores conversation messages as a redis list per conversation,
// refreshed with a sliding TTL on every append.
type Log struct {
	client *redis.Client
	ttl    time.Duration
}

func New(client *redis.Client, ttl time.Duration) *Log {
	return &Log{client: client, ttl: ttl}
}

// Conn opens a redis connection and verifies it with a ping.
func Conn(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if pong != "PONG" {
		return nil, fmt.Errorf("redis ping: unexpected reply %q", pong)
	}
	return client, nil
}

func key(conversationID string) string {
	return "chat:" + conversationID
}

// Append pushes a message onto the conversation's list and refreshes its TTL.
func (l *Log) Append(ctx context.Context, conversationID string, msg models.ConversationMessage) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	pipe := l.client.TxPipeline()
	pipe.RPush(ctx, key(conversationID), raw)
	pipe.Expire(ctx, key(conversationID), l.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// Recent returns up to the last limit messages in chronological order.
// Entries that fail to decode are skipped.
func (l *Log) Recent(ctx context.Context, conversationID string, limit int) ([]models.ConversationMessage, error) {
	if limit <= 0 {
		return nil, nil
	}
	raws, err := l.client.LRange(ctx, key(conversationID), int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	msgs := make([]models.ConversationMessage, 0, len(raws))
	for _, raw := range raws {
		var msg models.ConversationMessage
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}
