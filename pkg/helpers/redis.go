package helpers

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient initializes a redis client
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// SessionKey is the redis hash holding the active session of a user.
func SessionKey(userID string) string {
	return "user:session:" + userID
}

// SaveSession writes the session hash and refreshes its TTL in one pipeline.
func SaveSession(ctx context.Context, rdb *redis.Client, userID string, fields map[string]any, ttl time.Duration) error {
	key := SessionKey(userID)
	pipe := rdb.Pipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// SessionID returns the sid stored for userID, or "" when no session exists.
func SessionID(ctx context.Context, rdb *redis.Client, userID string) (string, error) {
	sid, err := rdb.HGet(ctx, SessionKey(userID), "sid").Result()
	if err == redis.Nil {
		return "", nil
	}
	return sid, err
}

func DeleteSession(ctx context.Context, rdb *redis.Client, userID string) error {
	return rdb.Del(ctx, SessionKey(userID)).Err()
}
