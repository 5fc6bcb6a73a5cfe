package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"onboarding-service/internal/client"
)

// Session is the cached refresh-token record. Rotation deletes the old
// token's entry and writes the new one.
type Session struct {
	AppUserID string    `json:"appUserId"`
	DeviceID  string    `json:"deviceId"`
	Role      string    `json:"role"`
	IssuedAt  time.Time `json:"issuedAt"`
}

type SessionCache interface {
	Store(ctx context.Context, refreshTokenID string, session *Session, ttl time.Duration) error
	Get(ctx context.Context, refreshTokenID string) (*Session, error)
	Revoke(ctx context.Context, refreshTokenID string) error
	RevokeAllForUser(ctx context.Context, appUserID string) error
}

type sessionCache struct {
	client *client.RedisClient
}

func NewSessionCache(c *client.RedisClient) SessionCache {
	return &sessionCache{client: c}
}

func sessionKey(tokenID string) string {
	return "session:refresh:" + tokenID
}

func userSessionsKey(appUserID string) string {
	return "session:user:" + appUserID
}

func (s *sessionCache) Store(ctx context.Context, refreshTokenID string, session *Session, ttl time.Duration) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(refreshTokenID), payload, ttl); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	if err := s.client.SAdd(ctx, userSessionsKey(session.AppUserID), refreshTokenID); err != nil {
		return fmt.Errorf("failed to index session: %w", err)
	}
	return s.client.Expire(ctx, userSessionsKey(session.AppUserID), ttl)
}

func (s *sessionCache) Get(ctx context.Context, refreshTokenID string) (*Session, error) {
	exists, err := s.client.Exists(ctx, sessionKey(refreshTokenID))
	if err != nil {
		return nil, fmt.Errorf("session lookup failed: %w", err)
	}
	if !exists {
		return nil, nil
	}
	raw, err := s.client.Get(ctx, sessionKey(refreshTokenID))
	if err != nil {
		return nil, fmt.Errorf("session lookup failed: %w", err)
	}
	var session Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &session, nil
}

func (s *sessionCache) Revoke(ctx context.Context, refreshTokenID string) error {
	session, err := s.Get(ctx, refreshTokenID)
	if err != nil {
		return err
	}
	if session != nil {
		_ = s.client.SRem(ctx, userSessionsKey(session.AppUserID), refreshTokenID)
	}
	return s.client.Del(ctx, sessionKey(refreshTokenID))
}

// RevokeAllForUser clears every cached session, used on lockout and MPIN
// reset.
func (s *sessionCache) RevokeAllForUser(ctx context.Context, appUserID string) error {
	tokenIDs, err := s.client.SMembers(ctx, userSessionsKey(appUserID))
	if err != nil {
		return fmt.Errorf("failed to list user sessions: %w", err)
	}
	for _, id := range tokenIDs {
		if err := s.client.Del(ctx, sessionKey(id)); err != nil {
			return fmt.Errorf("failed to revoke session %s: %w", id, err)
		}
	}
	return s.client.Del(ctx, userSessionsKey(appUserID))
}
