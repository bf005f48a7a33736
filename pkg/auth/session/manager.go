// Package session tracks refresh sessions in Redis, one entry per access
// token ID. A login mints a session, a refresh rotates it, a logout or
// admin revocation deletes it. An access token whose session entry is gone
// is dead even if its signature is still valid.
package session

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"

	"github.com/mwangikariuki/shopkit-backend/pkg/config"
	redisclient "github.com/mwangikariuki/shopkit-backend/pkg/redis"
)

const refreshSecretBytes = 32

var ErrInvalidRefreshToken = errors.New("invalid refresh token")

// sessionBackend is the slice of the redis client the manager needs.
type sessionBackend interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	AccessSessionKey(accessID string) string
}

// AccessSessionChecker exposes the read-only surface needed by middleware.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

// Manager mints, rotates, and revokes refresh sessions.
type Manager struct {
	backend sessionBackend
	ttl     time.Duration
}

func NewManager(client *redisclient.Client, cfg config.JWTConfig) (*Manager, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	ttl := cfg.RefreshTokenTTL()
	if ttl <= 0 {
		return nil, fmt.Errorf("refresh token ttl must be positive")
	}
	if accessTTL := time.Duration(cfg.ExpirationMinutes) * time.Minute; ttl <= accessTTL {
		return nil, fmt.Errorf("refresh token ttl (%s) must exceed access token ttl (%s)", ttl, accessTTL)
	}
	return &Manager{backend: client, ttl: ttl}, nil
}

// Generate mints a refresh secret for the access ID and stores it under
// the session key with the configured TTL.
func (m *Manager) Generate(ctx context.Context, accessID string) (string, error) {
	if err := requireAccessID(accessID); err != nil {
		return "", err
	}
	secret, err := mintRefreshSecret()
	if err != nil {
		return "", err
	}
	if err := m.backend.Set(ctx, m.backend.AccessSessionKey(accessID), secret, m.ttl); err != nil {
		return "", err
	}
	return secret, nil
}

// Rotate checks the presented secret against the stored one, then replaces
// the session under a fresh access ID. The old entry is removed so a
// stolen refresh token can be used at most once.
func (m *Manager) Rotate(ctx context.Context, oldAccessID, presented string) (string, string, error) {
	if strings.TrimSpace(oldAccessID) == "" || strings.TrimSpace(presented) == "" {
		return "", "", ErrInvalidRefreshToken
	}

	oldKey := m.backend.AccessSessionKey(oldAccessID)
	stored, err := m.backend.Get(ctx, oldKey)
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return "", "", ErrInvalidRefreshToken
		}
		return "", "", err
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) != 1 {
		return "", "", ErrInvalidRefreshToken
	}

	accessID := NewAccessID()
	secret, err := mintRefreshSecret()
	if err != nil {
		return "", "", err
	}
	if err := m.backend.Set(ctx, m.backend.AccessSessionKey(accessID), secret, m.ttl); err != nil {
		return "", "", err
	}
	if err := m.backend.Del(ctx, oldKey); err != nil {
		return "", "", err
	}
	return accessID, secret, nil
}

// Revoke removes the session tied to the access ID.
func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	if err := requireAccessID(accessID); err != nil {
		return err
	}
	return m.backend.Del(ctx, m.backend.AccessSessionKey(accessID))
}

// HasSession reports whether the access ID still has a live session entry.
func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	if err := requireAccessID(accessID); err != nil {
		return false, err
	}
	if _, err := m.backend.Get(ctx, m.backend.AccessSessionKey(accessID)); err != nil {
		if errors.Is(err, redislib.Nil) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// NewAccessID produces the identifier shared by the JWT jti claim and the
// Redis session key.
func NewAccessID() string {
	return uuid.NewString()
}

func requireAccessID(accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return fmt.Errorf("access id is required")
	}
	return nil
}

func mintRefreshSecret() (string, error) {
	buf := make([]byte, refreshSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
