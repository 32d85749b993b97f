package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ziadkadry99/policyvoice/internal/llm"
)

const sessionsIndexKey = "policyvoice:sessions"

// RedisStore keeps each conversation in a Redis list of JSON messages, with a
// sorted set indexing sessions by last update.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to the Redis instance at redisURL.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// messagesKey returns the key for a session's message list.
func messagesKey(sessionID string) string {
	return fmt.Sprintf("policyvoice:session:%s:messages", sessionID)
}

// createdKey returns the key holding a session's creation time.
func createdKey(sessionID string) string {
	return fmt.Sprintf("policyvoice:session:%s:created", sessionID)
}

func (s *RedisStore) Load(ctx context.Context, sessionID string) ([]llm.Message, error) {
	raw, err := s.client.LRange(ctx, messagesKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading messages: %w", err)
	}

	messages := make([]llm.Message, 0, len(raw))
	for _, r := range raw {
		var m llm.Message
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			return nil, fmt.Errorf("decoding message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, nil
}

// Append pushes all messages with a single RPUSH inside MULTI/EXEC, so
// concurrent appends to one session never interleave.
func (s *RedisStore) Append(ctx context.Context, sessionID string, msgs ...llm.Message) error {
	if err := validate(sessionID, msgs); err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}

	values := make([]any, 0, len(msgs))
	for _, m := range msgs {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("encoding message: %w", err)
		}
		values = append(values, data)
	}

	now := time.Now().UTC()
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, messagesKey(sessionID), values...)
		pipe.SetNX(ctx, createdKey(sessionID), now.UnixMilli(), 0)
		pipe.ZAdd(ctx, sessionsIndexKey, redis.Z{Score: float64(now.UnixMilli()), Member: sessionID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("appending messages: %w", err)
	}
	return nil
}

func (s *RedisStore) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	entries, err := s.client.ZRevRangeWithScores(ctx, sessionsIndexKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}

	sessions := make([]Session, 0, len(entries))
	for _, e := range entries {
		id, _ := e.Member.(string)
		count, err := s.client.LLen(ctx, messagesKey(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("counting messages for %s: %w", id, err)
		}
		createdMs, err := s.client.Get(ctx, createdKey(id)).Int64()
		if err != nil && err != redis.Nil {
			return nil, fmt.Errorf("reading created time for %s: %w", id, err)
		}
		sessions = append(sessions, Session{
			ID:           id,
			MessageCount: int(count),
			CreatedAt:    time.UnixMilli(createdMs).UTC(),
			UpdatedAt:    time.UnixMilli(int64(e.Score)).UTC(),
		})
	}
	return sessions, nil
}

func (s *RedisStore) CountSessions(ctx context.Context) (int, error) {
	n, err := s.client.ZCard(ctx, sessionsIndexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("counting sessions: %w", err)
	}
	return int(n), nil
}
