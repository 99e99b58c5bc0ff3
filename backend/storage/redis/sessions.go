// Copyright (C) 2025 efchat.net <tj@efchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/efchatnet/relay/backend/models"
	"github.com/efchatnet/relay/backend/storage"
)

const (
	// DefaultSessionTTL bounds how long a disconnected client can resume
	// the same identity.
	DefaultSessionTTL = 7 * 24 * time.Hour

	sessionPrefix = "session:" // session:{token} - identity payload
)

// SessionStore keeps session-token to identity mappings in Redis. Sessions
// are ephemeral by design: durable chat state lives in Postgres, and an
// expired token simply produces a fresh identity on the next connect.
type SessionStore struct {
	rdb *redis.Client
	ttl time.Duration
	ctx context.Context
}

func NewSessionStore(rdb *redis.Client, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{
		rdb: rdb,
		ttl: ttl,
		ctx: context.Background(),
	}
}

// SaveSession stores the identity under its token and (re)arms the TTL.
func (s *SessionStore) SaveSession(token string, info models.ClientInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.rdb.Set(s.ctx, sessionPrefix+token, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// FindSession resolves a token and refreshes its TTL on hit.
func (s *SessionStore) FindSession(token string) (models.ClientInfo, error) {
	data, err := s.rdb.Get(s.ctx, sessionPrefix+token).Result()
	if err == redis.Nil {
		return models.ClientInfo{}, storage.ErrSessionNotFound
	}
	if err != nil {
		return models.ClientInfo{}, fmt.Errorf("failed to get session: %w", err)
	}

	var info models.ClientInfo
	if err := json.Unmarshal([]byte(data), &info); err != nil {
		return models.ClientInfo{}, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	s.rdb.Expire(s.ctx, sessionPrefix+token, s.ttl)
	return info, nil
}
