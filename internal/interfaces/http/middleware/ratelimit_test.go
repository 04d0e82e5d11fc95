package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opencrm/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(rl *RateLimiter, start time.Time) *time.Time {
	now := start
	rl.now = func() time.Time { return now }
	return &now
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	now := fixedClock(rl, time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))

	ok, remaining := rl.Allow("a")
	assert.True(t, ok)
	assert.Equal(t, 1, remaining)

	ok, remaining = rl.Allow("a")
	assert.True(t, ok)
	assert.Equal(t, 0, remaining)

	ok, _ = rl.Allow("a")
	assert.False(t, ok)

	ok, _ = rl.Allow("b")
	assert.True(t, ok, "keys are independent")

	// one token comes back every window/limit
	*now = now.Add(30 * time.Second)
	ok, _ = rl.Allow("a")
	assert.True(t, ok)
}

func TestRateLimiter_Sweep(t *testing.T) {
	rl := NewRateLimiter(5, time.Minute)
	now := fixedClock(rl, time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))

	rl.Allow("old")
	*now = now.Add(90 * time.Second)
	rl.Allow("fresh")
	*now = now.Add(60 * time.Second)

	assert.Equal(t, 1, rl.Sweep())
	assert.Len(t, rl.buckets, 1)
	assert.Contains(t, rl.buckets, "fresh")
}

func TestRateLimit_Middleware(t *testing.T) {
	rl := NewRateLimiter(1, time.Hour)
	r := newEngine(RequestID(), Auth(AuthConfig{AllowHeaderIdentity: true}), RateLimit(rl))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	call := func(tenant string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set(HeaderTenantID, tenant)
		return serve(r, req)
	}

	first := call(testTenant.String())
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", first.Header().Get("X-RateLimit-Remaining"))

	second := call(testTenant.String())
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
	assert.Equal(t, dto.ErrCodeRateLimited, decodeError(t, second).Code)

	other := call("0d8f1c4e-2b3a-4c5d-9e6f-7a8b9c0d1e2f")
	assert.Equal(t, http.StatusOK, other.Code, "buckets are per tenant")

	assert.Contains(t, rl.buckets, "tenant:"+testTenant.String())
}

func TestRateLimit_AnonymousByIP(t *testing.T) {
	rl := NewRateLimiter(1, time.Hour)
	r := newEngine(RateLimit(rl))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.RemoteAddr = "203.0.113.7:4000"
	assert.Equal(t, http.StatusOK, serve(r, req).Code)
	assert.Contains(t, rl.buckets, "ip:203.0.113.7")
}
