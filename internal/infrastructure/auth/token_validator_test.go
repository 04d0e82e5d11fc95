package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-at-least-32-chars"

func testConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:   testSecret,
		Issuer:   "opencrm-identity",
		Audience: "opencrm-api",
		Leeway:   time.Second,
	}
}

func validClaims() *Claims {
	now := time.Now()
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    "opencrm-identity",
			Subject:   "user-subject",
			Audience:  jwt.ClaimStrings{"opencrm-api"},
			ExpiresAt: jwt.NewNumericDate(now.Add(15 * time.Minute)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
		TenantID:  uuid.NewString(),
		UserID:    uuid.NewString(),
		Username:  "ana",
		Roles:     []string{"sales"},
		TokenType: TokenTypeAccess,
	}
}

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestTokenValidator_Valid(t *testing.T) {
	v := NewTokenValidator(testConfig())
	in := validClaims()

	claims, err := v.ValidateAccessToken(sign(t, jwt.SigningMethodHS256, []byte(testSecret), in))

	require.NoError(t, err)
	assert.Equal(t, in.TenantID, claims.TenantID)
	assert.Equal(t, in.UserID, claims.UserID)
	assert.True(t, claims.HasRole("sales"))
	assert.False(t, claims.HasRole("admin"))

	tenantID, err := claims.TenantUUID()
	require.NoError(t, err)
	assert.Equal(t, in.TenantID, tenantID.String())
	assert.Greater(t, claims.RemainingTTL(), 14*time.Minute)
	assert.False(t, claims.IssuedAtTime().IsZero())
}

func TestTokenValidator_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Claims)
		method  jwt.SigningMethod
		key     any
		wantErr error
	}{
		{
			name:    "expired",
			mutate:  func(c *Claims) { c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute)) },
			wantErr: ErrExpiredToken,
		},
		{
			name:    "not yet valid",
			mutate:  func(c *Claims) { c.NotBefore = jwt.NewNumericDate(time.Now().Add(time.Hour)) },
			wantErr: ErrTokenNotYetValid,
		},
		{
			name:    "missing exp",
			mutate:  func(c *Claims) { c.ExpiresAt = nil },
			wantErr: ErrInvalidToken,
		},
		{
			name:    "wrong issuer",
			mutate:  func(c *Claims) { c.Issuer = "someone-else" },
			wantErr: ErrInvalidToken,
		},
		{
			name:    "wrong audience",
			mutate:  func(c *Claims) { c.Audience = jwt.ClaimStrings{"billing"} },
			wantErr: ErrInvalidToken,
		},
		{
			name:    "wrong secret",
			key:     []byte("another-secret-key-at-least-32-chars"),
			wantErr: ErrInvalidToken,
		},
		{
			name:    "other hmac algorithm",
			method:  jwt.SigningMethodHS512,
			wantErr: ErrInvalidToken,
		},
		{
			name:    "refresh token",
			mutate:  func(c *Claims) { c.TokenType = "refresh" },
			wantErr: ErrInvalidTokenType,
		},
		{
			name:    "missing tenant",
			mutate:  func(c *Claims) { c.TenantID = "" },
			wantErr: ErrMissingTenantID,
		},
		{
			name:    "malformed tenant",
			mutate:  func(c *Claims) { c.TenantID = "acme" },
			wantErr: ErrInvalidClaims,
		},
		{
			name:    "missing user and subject",
			mutate:  func(c *Claims) { c.UserID, c.Subject = "", "" },
			wantErr: ErrMissingUserID,
		},
	}

	v := NewTokenValidator(testConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := validClaims()
			if tt.mutate != nil {
				tt.mutate(claims)
			}
			method := tt.method
			if method == nil {
				method = jwt.SigningMethodHS256
			}
			key := tt.key
			if key == nil {
				key = []byte(testSecret)
			}

			_, err := v.ValidateAccessToken(sign(t, method, key, claims))

			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestTokenValidator_Garbage(t *testing.T) {
	v := NewTokenValidator(testConfig())
	for _, token := range []string{"", "abc", "a.b.c"} {
		_, err := v.ValidateAccessToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken, token)
	}
}

func TestTokenValidator_SubjectFallbackAndOptionalChecks(t *testing.T) {
	v := NewTokenValidator(config.JWTConfig{Secret: testSecret})
	claims := validClaims()
	claims.UserID = ""
	claims.TokenType = ""
	claims.Issuer = "any"
	claims.Audience = nil

	got, err := v.ValidateAccessToken(sign(t, jwt.SigningMethodHS256, []byte(testSecret), claims))

	require.NoError(t, err)
	assert.Equal(t, "user-subject", got.UserID)
}

func TestInMemoryRevocationList(t *testing.T) {
	ctx := context.Background()
	list := NewInMemoryRevocationList()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	list.now = func() time.Time { return now }

	revoked, err := list.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, list.Revoke(ctx, "jti-1", time.Minute))
	revoked, _ = list.IsRevoked(ctx, "jti-1")
	assert.True(t, revoked)

	now = now.Add(2 * time.Minute)
	revoked, _ = list.IsRevoked(ctx, "jti-1")
	assert.False(t, revoked, "entry expires with the token")

	require.NoError(t, list.RevokeSessions(ctx, "user-1", time.Hour))
	old, _ := list.IsSessionRevoked(ctx, "user-1", now.Add(-time.Second))
	fresh, _ := list.IsSessionRevoked(ctx, "user-1", now.Add(time.Second))
	other, _ := list.IsSessionRevoked(ctx, "user-2", now.Add(-time.Second))
	assert.True(t, old)
	assert.False(t, fresh)
	assert.False(t, other)
}
