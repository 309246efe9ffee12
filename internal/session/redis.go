package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "plating:session:"

// RedisStore keeps sessions in Redis with the key TTL set to the session expiry,
// so several console instances can share sign-ins.
type RedisStore struct {
	Client *redis.Client
	Now    func() time.Time
}

func NewRedisStore(addr string) *RedisStore {
	return &RedisStore{Client: redis.NewClient(&redis.Options{Addr: addr}), Now: time.Now}
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.Client.Ping(ctx).Err()
}

func (s *RedisStore) Save(ctx context.Context, sess *Session) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	ttl := time.Duration(0)
	if !sess.ExpiresAt.IsZero() {
		ttl = sess.ExpiresAt.Sub(s.Now())
		if ttl <= 0 {
			return s.Delete(ctx, sess.Token)
		}
	}
	return s.Client.Set(ctx, redisKeyPrefix+sess.Token, b, ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, token string) (*Session, error) {
	b, err := s.Client.Get(ctx, redisKeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(b, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *RedisStore) Delete(ctx context.Context, token string) error {
	return s.Client.Del(ctx, redisKeyPrefix+token).Err()
}

func (s *RedisStore) Close() error { return s.Client.Close() }
