package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atinyakov/GTDKeeper/internal/models"
)

// RedisSessionRepository stores sessions in Redis so several server
// instances can share them. Each token key expires after ttl; a zero ttl
// keeps sessions until logout.
type RedisSessionRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSessionRepository creates a session store using client.
func NewRedisSessionRepository(client *redis.Client, ttl time.Duration) *RedisSessionRepository {
	if ttl < 0 {
		ttl = 0
	}
	return &RedisSessionRepository{client: client, ttl: ttl}
}

func sessionKey(token string) string {
	return fmt.Sprintf("session:%s", token)
}

func userSessionsKey(username string) string {
	return fmt.Sprintf("user-sessions:%s", username)
}

// CreateSession records the token and indexes it under its owner.
func (r *RedisSessionRepository) CreateSession(ctx context.Context, s models.Session) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(s.Token), s.Username, r.ttl)
		pipe.SAdd(ctx, userSessionsKey(s.Username), s.Token)
		// the index outlives its newest token by at most ttl
		if r.ttl > 0 {
			pipe.Expire(ctx, userSessionsKey(s.Username), r.ttl)
		}
		return nil
	})
	return err
}

// GetSession returns the session for token, or nil if unknown or expired.
func (r *RedisSessionRepository) GetSession(ctx context.Context, token string) (*models.Session, error) {
	username, err := r.client.Get(ctx, sessionKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &models.Session{Token: token, Username: username}, nil
}

// DeleteSession removes token if present.
func (r *RedisSessionRepository) DeleteSession(ctx context.Context, token string) error {
	username, err := r.client.GetDel(ctx, sessionKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	return r.client.SRem(ctx, userSessionsKey(username), token).Err()
}

// DeleteUserSessions removes every token indexed under username.
func (r *RedisSessionRepository) DeleteUserSessions(ctx context.Context, username string) error {
	tokens, err := r.client.SMembers(ctx, userSessionsKey(username)).Result()
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(tokens)+1)
	for _, t := range tokens {
		keys = append(keys, sessionKey(t))
	}
	keys = append(keys, userSessionsKey(username))
	return r.client.Del(ctx, keys...).Err()
}
