package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	marketingapp "github.com/opencrm/backend/internal/application/marketing"
	"github.com/opencrm/backend/internal/domain/marketing"
	"github.com/opencrm/backend/internal/infrastructure/persistence"
	"github.com/opencrm/backend/internal/interfaces/http/dto"
	"github.com/opencrm/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTrackingEngine(t *testing.T) *gin.Engine {
	t.Helper()
	r, _ := newTrackingEngineWithDB(t)
	return r
}

func newTrackingEngineWithDB(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	db := newSQLiteDB(t)
	h := NewTrackingHandler(marketingapp.NewTrackingService(
		persistence.NewGormCampaignRepository(db),
		persistence.NewGormRecipientRepository(db),
		persistence.NewGormInteractionRepository(db),
		persistence.NewGormTransactionManager(db),
	))

	r := gin.New()
	r.Use(middleware.RequestID())
	r.GET("/track/open/:recipient_id", h.Open)
	r.GET("/track/click/:recipient_id", h.Click)
	return r, db
}

// seedRecipient stores a launched campaign with one recipient
func seedRecipient(t *testing.T, db *gorm.DB, cancel bool) *marketing.Recipient {
	t.Helper()
	ctx := context.Background()
	campaign, err := marketing.NewCampaign(uuid.New(), "Spring launch", marketing.CampaignTypeEmail)
	require.NoError(t, err)
	require.NoError(t, campaign.Execute(1))
	if cancel {
		require.NoError(t, campaign.Cancel())
	}
	require.NoError(t, persistence.NewGormCampaignRepository(db).Save(ctx, campaign))

	recipient := marketing.NewRecipient(campaign.TenantID, campaign.ID, uuid.New(), "a@example.com", time.Now())
	require.NoError(t, persistence.NewGormRecipientRepository(db).SaveBatch(ctx, []*marketing.Recipient{recipient}))
	return recipient
}

func TestTrackingHandler_OpenAlwaysServesPixel(t *testing.T) {
	r := newTrackingEngine(t)

	for _, id := range []string{uuid.NewString(), "not-a-uuid"} {
		w := do(r, http.MethodGet, "/track/open/"+id, "", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "image/gif", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Cache-Control"), "no-store")
		assert.Equal(t, transparentGIF, w.Body.Bytes())
	}
}

func TestTrackingHandler_Click(t *testing.T) {
	r, db := newTrackingEngineWithDB(t)
	recipient := uuid.NewString()
	target := "https://shop.example.com/spring?utm=mail"

	t.Run("unknown recipient is not redirected", func(t *testing.T) {
		w := do(r, http.MethodGet, "/track/click/"+recipient+"?url="+url.QueryEscape(target), "", nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Empty(t, w.Header().Get("Location"))
		env := decode(t, w)
		require.NotNil(t, env.Error)
		assert.Equal(t, dto.ErrCodeNotFound, env.Error.Code)
	})

	t.Run("known recipient is redirected and counted", func(t *testing.T) {
		known := seedRecipient(t, db, false)

		w := do(r, http.MethodGet, "/track/click/"+known.ID.String()+"?url="+url.QueryEscape(target), "", nil)

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, target, w.Header().Get("Location"))
		found, err := persistence.NewGormRecipientRepository(db).FindByID(context.Background(), known.ID)
		require.NoError(t, err)
		assert.Equal(t, marketing.RecipientStatusClicked, found.Status)
	})

	t.Run("cancelled campaign still redirects", func(t *testing.T) {
		known := seedRecipient(t, db, true)

		w := do(r, http.MethodGet, "/track/click/"+known.ID.String()+"?url="+url.QueryEscape(target), "", nil)

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, target, w.Header().Get("Location"))
	})

	tests := []struct {
		name     string
		path     string
		wantCode string
	}{
		{name: "javascript scheme", path: "/track/click/" + recipient + "?url=" + url.QueryEscape("javascript:alert(1)"), wantCode: "ERR_INVALID_URL"},
		{name: "relative target", path: "/track/click/" + recipient + "?url=%2Flogin", wantCode: "ERR_INVALID_URL"},
		{name: "missing target", path: "/track/click/" + recipient, wantCode: "ERR_INVALID_URL"},
		{name: "bad recipient", path: "/track/click/abc?url=https%3A%2F%2Fexample.com", wantCode: dto.ErrCodeInvalidID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodGet, tt.path, "", nil)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, w.Header().Get("Location"))
			env := decode(t, w)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantCode, env.Error.Code)
		})
	}
}

func TestHealthHandler(t *testing.T) {
	newEngine := func(checks map[string]HealthCheck) *gin.Engine {
		h := NewHealthHandler("opencrm", "1.2.3", checks)
		r := gin.New()
		r.GET("/health", h.Health)
		r.GET("/info", h.SystemInfo)
		return r
	}
	ok := func(context.Context) error { return nil }

	t.Run("healthy", func(t *testing.T) {
		w := do(newEngine(map[string]HealthCheck{"database": ok, "redis": nil}), http.MethodGet, "/health", "", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp HealthResponse
		decodeJSON(t, w, &resp)
		assert.Equal(t, "healthy", resp.Status)
		assert.Equal(t, map[string]string{"database": "ok", "redis": "disabled"}, resp.Checks)
	})

	t.Run("dependency down", func(t *testing.T) {
		down := func(context.Context) error { return errors.New("dial tcp: refused") }
		w := do(newEngine(map[string]HealthCheck{"database": ok, "redis": down}), http.MethodGet, "/health", "", nil)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		var resp HealthResponse
		decodeJSON(t, w, &resp)
		assert.Equal(t, "unhealthy", resp.Status)
		assert.Equal(t, "error", resp.Checks["redis"])
		assert.NotContains(t, w.Body.String(), "refused")
	})

	t.Run("check sees a deadline", func(t *testing.T) {
		var hasDeadline bool
		check := func(ctx context.Context) error {
			_, hasDeadline = ctx.Deadline()
			return nil
		}
		do(newEngine(map[string]HealthCheck{"database": check}), http.MethodGet, "/health", "", nil)
		assert.True(t, hasDeadline)
	})

	t.Run("system info", func(t *testing.T) {
		w := do(newEngine(nil), http.MethodGet, "/info", "", nil)

		require.Equal(t, http.StatusOK, w.Code)
		var info SystemInfoResponse
		decodeData(t, w, &info)
		assert.Equal(t, "opencrm", info.Name)
		assert.Equal(t, "1.2.3", info.Version)
		assert.NotEmpty(t, info.GoVersion)
	})
}
