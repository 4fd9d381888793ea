package repository

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/atinyakov/GTDKeeper/internal/models"
)

func newRedisSessions(t *testing.T, ttl time.Duration) (*RedisSessionRepository, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSessionRepository(client, ttl), mr
}

func TestRedisSessions_CreateGetDelete(t *testing.T) {
	repo, _ := newRedisSessions(t, 0)
	ctx := context.Background()

	if err := repo.CreateSession(ctx, models.Session{Token: "t1", Username: "alice"}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	s, err := repo.GetSession(ctx, "t1")
	if err != nil || s == nil || s.Username != "alice" {
		t.Fatalf("GetSession = %+v, %v", s, err)
	}

	if err := repo.DeleteSession(ctx, "t1"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if err := repo.DeleteSession(ctx, "t1"); err != nil {
		t.Fatalf("DeleteSession must be idempotent: %v", err)
	}
	if s, err := repo.GetSession(ctx, "t1"); err != nil || s != nil {
		t.Errorf("GetSession after delete = %+v, %v; want nil, nil", s, err)
	}
}

func TestRedisSessions_DeleteUserSessions(t *testing.T) {
	repo, mr := newRedisSessions(t, 0)
	ctx := context.Background()

	for _, s := range []models.Session{
		{Token: "a1", Username: "alice"},
		{Token: "a2", Username: "alice"},
		{Token: "b1", Username: "bob"},
	} {
		if err := repo.CreateSession(ctx, s); err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
	}

	if err := repo.DeleteUserSessions(ctx, "alice"); err != nil {
		t.Fatalf("DeleteUserSessions: %v", err)
	}
	if mr.Exists(sessionKey("a1")) || mr.Exists(sessionKey("a2")) || mr.Exists(userSessionsKey("alice")) {
		t.Errorf("alice's sessions were not removed")
	}
	if s, _ := repo.GetSession(ctx, "b1"); s == nil {
		t.Errorf("bob's session must survive")
	}
	if err := repo.DeleteUserSessions(ctx, "nobody"); err != nil {
		t.Errorf("DeleteUserSessions for unknown user: %v", err)
	}
}

func TestRedisSessions_Expire(t *testing.T) {
	repo, mr := newRedisSessions(t, time.Hour)
	ctx := context.Background()

	if err := repo.CreateSession(ctx, models.Session{Token: "t1", Username: "alice"}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if ttl := mr.TTL(sessionKey("t1")); ttl != time.Hour {
		t.Errorf("TTL = %v; want %v", ttl, time.Hour)
	}

	mr.FastForward(2 * time.Hour)
	if s, err := repo.GetSession(ctx, "t1"); err != nil || s != nil {
		t.Errorf("GetSession after expiry = %+v, %v; want nil, nil", s, err)
	}
}

func TestRedisSessions_IndexExpires(t *testing.T) {
	repo, mr := newRedisSessions(t, time.Hour)
	ctx := context.Background()

	if err := repo.CreateSession(ctx, models.Session{Token: "t1", Username: "alice"}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	mr.FastForward(30 * time.Minute)
	if err := repo.CreateSession(ctx, models.Session{Token: "t2", Username: "alice"}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if ttl := mr.TTL(userSessionsKey("alice")); ttl != time.Hour {
		t.Errorf("index TTL = %v; want %v", ttl, time.Hour)
	}

	mr.FastForward(2 * time.Hour)
	if mr.Exists(userSessionsKey("alice")) {
		t.Errorf("index of expired sessions was kept")
	}
}

func TestRedisSessions_NoTTLKeepsIndex(t *testing.T) {
	repo, mr := newRedisSessions(t, 0)
	ctx := context.Background()

	if err := repo.CreateSession(ctx, models.Session{Token: "t1", Username: "alice"}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if ttl := mr.TTL(userSessionsKey("alice")); ttl != 0 {
		t.Errorf("index TTL = %v; want none", ttl)
	}
}
