package handler

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	crmapp "github.com/opencrm/backend/internal/application/crm"
	"github.com/opencrm/backend/internal/infrastructure/persistence"
	"github.com/opencrm/backend/internal/infrastructure/persistence/models"
	"github.com/opencrm/backend/internal/interfaces/http/dto"
	"github.com/opencrm/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	testTenant  = "6f1c2d3e-4a5b-4c6d-8e9f-0a1b2c3d4e5f"
	otherTenant = "0b9a8c7d-6e5f-4a3b-9c2d-1e0f9a8b7c6d"
	testUser    = "2d4f6a8c-1b3d-4e5f-8a9b-0c1d2e3f4a5b"
)

func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{SkipDefaultTransaction: true, TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func identity(tenant string) map[string]string {
	return map[string]string{
		middleware.HeaderTenantID: tenant,
		middleware.HeaderUserID:   testUser,
	}
}

// newCRMEngine serves customers and notes over real repositories
func newCRMEngine(t *testing.T) *gin.Engine {
	t.Helper()
	db := newSQLiteDB(t)

	customers := NewCustomerHandler(crmapp.NewCustomerService(
		persistence.NewGormCustomerRepository(db),
		persistence.NewGormContactRepository(db),
		persistence.NewGormOpportunityRepository(db),
		persistence.NewGormActivityRepository(db),
	))
	notes := NewNoteHandler(crmapp.NewNoteService(persistence.NewGormNoteRepository(db)))

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Auth(middleware.AuthConfig{AllowHeaderIdentity: true}))
	r.POST("/customers", customers.Create)
	r.GET("/customers", customers.List)
	r.GET("/customers/:id", customers.GetByID)
	r.PUT("/customers/:id", customers.Update)
	r.DELETE("/customers/:id", customers.Delete)
	r.POST("/customers/:id/status", customers.ChangeStatus)
	r.POST("/notes", notes.Create)
	r.GET("/notes", notes.List)
	r.POST("/notes/:id/pin", notes.Pin)
	return r
}

func createCustomer(t *testing.T, r *gin.Engine, tenant, body string) crmapp.CustomerResponse {
	t.Helper()
	w := do(r, http.MethodPost, "/customers", body, identity(tenant))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var customer crmapp.CustomerResponse
	decodeData(t, w, &customer)
	return customer
}

func TestCustomerHandler_CreateAndGet(t *testing.T) {
	r := newCRMEngine(t)

	created := createCustomer(t, r, testTenant, `{"name":"Acme Ltd","email":"ops@acme.test"}`)

	assert.Equal(t, "Acme Ltd", created.Name)
	assert.Equal(t, "organization", created.Type)
	assert.Equal(t, "lead", created.Status)
	assert.Equal(t, testTenant, created.TenantID.String())
	require.NotNil(t, created.CreatedBy)
	assert.Equal(t, testUser, created.CreatedBy.String())

	w := do(r, http.MethodGet, "/customers/"+created.ID.String(), "", identity(testTenant))
	require.Equal(t, http.StatusOK, w.Code)
	var got crmapp.CustomerResponse
	decodeData(t, w, &got)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "ops@acme.test", got.Email)
}

func TestCustomerHandler_Errors(t *testing.T) {
	r := newCRMEngine(t)
	created := createCustomer(t, r, testTenant, `{"name":"Acme Ltd","email":"ops@acme.test"}`)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		tenant     string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "missing name",
			method:     http.MethodPost,
			path:       "/customers",
			body:       `{"email":"x@acme.test"}`,
			tenant:     testTenant,
			wantStatus: http.StatusBadRequest,
			wantCode:   dto.ErrCodeValidation,
		},
		{
			name:       "duplicate email",
			method:     http.MethodPost,
			path:       "/customers",
			body:       `{"name":"Acme Again","email":"ops@acme.test"}`,
			tenant:     testTenant,
			wantStatus: http.StatusConflict,
			wantCode:   dto.ErrCodeAlreadyExists,
		},
		{
			name:       "invalid id",
			method:     http.MethodGet,
			path:       "/customers/42",
			tenant:     testTenant,
			wantStatus: http.StatusBadRequest,
			wantCode:   dto.ErrCodeInvalidID,
		},
		{
			name:       "unknown id",
			method:     http.MethodGet,
			path:       "/customers/" + uuid.NewString(),
			tenant:     testTenant,
			wantStatus: http.StatusNotFound,
			wantCode:   dto.ErrCodeNotFound,
		},
		{
			name:       "other tenant",
			method:     http.MethodGet,
			path:       "/customers/" + created.ID.String(),
			tenant:     otherTenant,
			wantStatus: http.StatusNotFound,
			wantCode:   dto.ErrCodeNotFound,
		},
		{
			name:       "same status",
			method:     http.MethodPost,
			path:       "/customers/" + created.ID.String() + "/status",
			body:       `{"status":"lead"}`,
			tenant:     testTenant,
			wantStatus: http.StatusBadRequest,
			wantCode:   dto.ErrCodeInvalidState,
		},
		{
			name:       "unknown status",
			method:     http.MethodPost,
			path:       "/customers/" + created.ID.String() + "/status",
			body:       `{"status":"vip"}`,
			tenant:     testTenant,
			wantStatus: http.StatusBadRequest,
			wantCode:   dto.ErrCodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, tt.method, tt.path, tt.body, identity(tt.tenant))

			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			env := decode(t, w)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantCode, env.Error.Code)
		})
	}
}

func TestCustomerHandler_StatusAndDelete(t *testing.T) {
	r := newCRMEngine(t)
	created := createCustomer(t, r, testTenant, `{"name":"Globex"}`)
	path := "/customers/" + created.ID.String()

	w := do(r, http.MethodPost, path+"/status", `{"status":"prospect"}`, identity(testTenant))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var moved crmapp.CustomerResponse
	decodeData(t, w, &moved)
	assert.Equal(t, "prospect", moved.Status)
	assert.Greater(t, moved.Version, created.Version)

	w = do(r, http.MethodDelete, path, "", identity(otherTenant))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodDelete, path, "", identity(testTenant))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())

	w = do(r, http.MethodGet, path, "", identity(testTenant))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCustomerHandler_List(t *testing.T) {
	r := newCRMEngine(t)
	for i := 0; i < 3; i++ {
		createCustomer(t, r, testTenant, fmt.Sprintf(`{"name":"Customer %d"}`, i))
	}
	createCustomer(t, r, otherTenant, `{"name":"Elsewhere"}`)

	w := do(r, http.MethodGet, "/customers?take=2", "", identity(testTenant))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	env := decode(t, w)
	require.NotNil(t, env.Meta)
	assert.Equal(t, int64(3), env.Meta.Total)
	assert.Equal(t, 2, env.Meta.Take)
	assert.Equal(t, 2, env.Meta.TotalPages)
	var page []crmapp.CustomerResponse
	decodeData(t, w, &page)
	assert.Len(t, page, 2)
	for _, c := range page {
		assert.Equal(t, testTenant, c.TenantID.String())
	}

	w = do(r, http.MethodGet, "/customers?status=vip", "", identity(testTenant))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCustomerHandler_RequiresTenant(t *testing.T) {
	r := newCRMEngine(t)

	w := do(r, http.MethodGet, "/customers", "", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestNoteHandler(t *testing.T) {
	r := newCRMEngine(t)
	customer := createCustomer(t, r, testTenant, `{"name":"Initech"}`)

	body := fmt.Sprintf(`{"entity_type":"customer","entity_id":%q,"content":"Call back on Monday"}`, customer.ID)
	w := do(r, http.MethodPost, "/notes", body, identity(testTenant))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var note crmapp.NoteResponse
	decodeData(t, w, &note)
	assert.False(t, note.IsPinned)
	require.NotNil(t, note.AuthorID)
	assert.Equal(t, testUser, note.AuthorID.String())

	w = do(r, http.MethodPost, "/notes/"+note.ID.String()+"/pin", "", identity(testTenant))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decodeData(t, w, &note)
	assert.True(t, note.IsPinned)

	w = do(r, http.MethodGet, "/notes?entity_type=customer&entity_id="+customer.ID.String(), "", identity(testTenant))
	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.Equal(t, int64(1), env.Meta.Total)

	w = do(r, http.MethodPost, "/notes", `{"entity_type":"invoice","entity_id":"`+customer.ID.String()+`","content":"x"}`, identity(testTenant))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
