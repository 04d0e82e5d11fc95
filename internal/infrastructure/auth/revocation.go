package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationList answers whether a token was revoked before it expired.
// The identity provider writes entries; this service only reads them, the
// write methods exist for operators and tests.
type RevocationList interface {
	// IsRevoked reports whether the token id was revoked
	IsRevoked(ctx context.Context, jti string) (bool, error)
	// IsSessionRevoked reports whether every token of the user issued at or
	// before the revocation time was invalidated
	IsSessionRevoked(ctx context.Context, userID string, issuedAt time.Time) (bool, error)
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	RevokeSessions(ctx context.Context, userID string, ttl time.Duration) error
}

const revocationKeyPrefix = "auth:revoked:"

// RedisRevocationList reads revocations from the shared Redis
type RedisRevocationList struct {
	client redis.UniversalClient
	prefix string
}

var _ RevocationList = (*RedisRevocationList)(nil)

// NewRedisRevocationList wraps an existing client
func NewRedisRevocationList(client redis.UniversalClient) *RedisRevocationList {
	return &RedisRevocationList{client: client, prefix: revocationKeyPrefix}
}

func (r *RedisRevocationList) jtiKey(jti string) string { return r.prefix + "jti:" + jti }

func (r *RedisRevocationList) userKey(userID string) string { return r.prefix + "user:" + userID }

// IsRevoked checks the jti key
func (r *RedisRevocationList) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.client.Exists(ctx, r.jtiKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return n > 0, nil
}

// IsSessionRevoked compares iat with the stored unix timestamp
func (r *RedisRevocationList) IsSessionRevoked(ctx context.Context, userID string, issuedAt time.Time) (bool, error) {
	raw, err := r.client.Get(ctx, r.userKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check revoked sessions: %w", err)
	}
	revokedAt, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, fmt.Errorf("parse revocation timestamp %q: %w", raw, err)
	}
	return issuedAt.Unix() <= revokedAt, nil
}

// Revoke stores the jti until the token would have expired anyway
func (r *RedisRevocationList) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.jtiKey(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// RevokeSessions invalidates every token of the user issued up to now
func (r *RedisRevocationList) RevokeSessions(ctx context.Context, userID string, ttl time.Duration) error {
	now := strconv.FormatInt(time.Now().Unix(), 10)
	if err := r.client.Set(ctx, r.userKey(userID), now, ttl).Err(); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	return nil
}

// InMemoryRevocationList is for single instance deployments and tests
type InMemoryRevocationList struct {
	mu       sync.Mutex
	tokens   map[string]time.Time
	sessions map[string]time.Time
	now      func() time.Time
}

var _ RevocationList = (*InMemoryRevocationList)(nil)

// NewInMemoryRevocationList creates an empty list
func NewInMemoryRevocationList() *InMemoryRevocationList {
	return &InMemoryRevocationList{
		tokens:   make(map[string]time.Time),
		sessions: make(map[string]time.Time),
		now:      time.Now,
	}
}

func (m *InMemoryRevocationList) IsRevoked(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.tokens[jti]
	if !ok {
		return false, nil
	}
	if m.now().After(until) {
		delete(m.tokens, jti)
		return false, nil
	}
	return true, nil
}

func (m *InMemoryRevocationList) IsSessionRevoked(_ context.Context, userID string, issuedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	revokedAt, ok := m.sessions[userID]
	if !ok {
		return false, nil
	}
	return !issuedAt.After(revokedAt), nil
}

func (m *InMemoryRevocationList) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[jti] = m.now().Add(ttl)
	return nil
}

func (m *InMemoryRevocationList) RevokeSessions(_ context.Context, userID string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[userID] = m.now()
	return nil
}
