// Package cache keeps a Redis copy of active sessions so that the bearer
// guard does not hit MySQL on every request.  MySQL stays authoritative:
// entries expire quickly and logoff overwrites them with a tombstone.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/resource-api/internal/model"
	"github.com/iliyamo/resource-api/internal/utils"
)

// SessionCache is a read-through cache keyed by the token digest.
type SessionCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	now    func() time.Time
}

func NewSessionCache(rdb *redis.Client, ttl time.Duration, prefix string) *SessionCache {
	return &SessionCache{rdb: rdb, ttl: ttl, prefix: prefix, now: time.Now}
}

type entry struct {
	Status    string    `json:"status"`
	ID        uint64    `json:"id,omitempty"`
	UserID    uint64    `json:"user_id,omitempty"`
	UserName  string    `json:"user_name,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (c *SessionCache) key(token string) string {
	return c.prefix + ":" + utils.HashToken(token)
}

// Get returns the cached session for token.  A miss is (nil, false, nil).
// A tombstone comes back as a session whose status is inactive.
func (c *SessionCache) Get(ctx context.Context, token string) (*model.Session, bool, error) {
	raw, err := c.rdb.Get(ctx, c.key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, false, err
	}
	return &model.Session{
		ID: e.ID, Status: e.Status, UserID: e.UserID, UserName: e.UserName, Token: token,
		SessionID: e.SessionID, IssuedAt: e.IssuedAt, ExpiresAt: e.ExpiresAt,
	}, true, nil
}

// Fill stores an active session unless the key already exists, so a fill
// racing a logoff can never replace the tombstone.
func (c *SessionCache) Fill(ctx context.Context, s *model.Session) error {
	ttl := c.ttl
	if left := s.ExpiresAt.Sub(c.now()); left < ttl {
		ttl = left
	}
	if ttl <= 0 || s.Status != model.SessionActive {
		return nil
	}
	b, err := json.Marshal(entry{
		Status: s.Status, ID: s.ID, UserID: s.UserID, UserName: s.UserName,
		SessionID: s.SessionID, IssuedAt: s.IssuedAt, ExpiresAt: s.ExpiresAt,
	})
	if err != nil {
		return err
	}
	return c.rdb.SetNX(ctx, c.key(s.Token), b, ttl).Err()
}

// Revoke overwrites whatever is cached for token with a tombstone.
func (c *SessionCache) Revoke(ctx context.Context, token string) error {
	b, _ := json.Marshal(entry{Status: model.SessionInactive})
	return c.rdb.Set(ctx, c.key(token), b, c.ttl).Err()
}
