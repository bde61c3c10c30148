package continuation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps one string key per conversation. TTL is refreshed on every write, so a
// conversation expires ttl after its last successful turn.
type RedisStore struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	closer func() error
}

func NewRedisStore(rdb redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// NewRedisStoreFromURL parses a redis:// (or rediss://) URL, pings the server and owns the client.
func NewRedisStoreFromURL(ctx context.Context, url string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.DialTimeout = 5 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	s := NewRedisStore(client, ttl)
	s.closer = client.Close
	return s, nil
}

func (s *RedisStore) key(conversationID string) string {
	return fmt.Sprintf("conversation:%s:last_response", conversationID)
}

func (s *RedisStore) Get(ctx context.Context, conversationID string) (string, bool, error) {
	id, err := s.rdb.Get(ctx, s.key(conversationID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, storeErr("redis get", err)
	}
	return id, true, nil
}

func (s *RedisStore) Set(ctx context.Context, conversationID, responseID string) error {
	// ttl == 0: ключ без срока жизни
	if err := s.rdb.Set(ctx, s.key(conversationID), responseID, s.ttl).Err(); err != nil {
		return storeErr("redis set", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

var _ Backend = (*RedisStore)(nil)
