package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/config"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/logger"
)

const sessionKeyPrefix = "session:"

// RedisSessionStore keeps sessions in Redis with a key TTL equal to the session lifetime.
type RedisSessionStore struct {
	log *logger.Logger
	rdb *goredis.Client
}

// NewRedisSessionStore connects to Redis and checks it answers.
func NewRedisSessionStore(ctx context.Context, log *logger.Logger, cfg config.SessionConfig) (*RedisSessionStore, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisSessionStore{log: log.With("service", "RedisSessionStore"), rdb: rdb}, nil
}

func (s *RedisSessionStore) Create(ctx context.Context, username string, ttl time.Duration) (Session, error) {
	now := time.Now().UTC()
	session := Session{
		ID:        uuid.NewString(),
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	raw, err := json.Marshal(session)
	if err != nil {
		return Session{}, err
	}
	if err := s.rdb.Set(ctx, sessionKeyPrefix+session.ID, raw, ttl).Err(); err != nil {
		return Session{}, fmt.Errorf("store session: %w", err)
	}
	return session, nil
}

func (s *RedisSessionStore) Get(ctx context.Context, id string) (Session, error) {
	raw, err := s.rdb.Get(ctx, sessionKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, fmt.Errorf("load session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	return session, nil
}

func (s *RedisSessionStore) Revoke(ctx context.Context, id string) error {
	n, err := s.rdb.Del(ctx, sessionKeyPrefix+id).Result()
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *RedisSessionStore) Valid(ctx context.Context, id string) bool {
	_, err := s.Get(ctx, id)
	if err != nil && !errors.Is(err, ErrSessionNotFound) {
		s.log.Warn("session lookup failed", "session_id", id, "error", err)
	}
	return err == nil
}

func (s *RedisSessionStore) Close() error {
	return s.rdb.Close()
}
