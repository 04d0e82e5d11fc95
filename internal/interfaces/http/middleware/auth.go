package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/infrastructure/auth"
	"github.com/opencrm/backend/internal/infrastructure/logger"
	"github.com/opencrm/backend/internal/infrastructure/telemetry"
	"github.com/opencrm/backend/internal/interfaces/http/dto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Request headers read by the auth middleware
const (
	HeaderAuthorization = "Authorization"
	HeaderTenantID      = "X-Tenant-ID"
	HeaderUserID        = "X-User-ID"
	HeaderUserRoles     = "X-User-Roles"

	bearerPrefix = "Bearer "
	principalKey = "crm_principal"
)

// Principal is the authenticated caller of a request
type Principal struct {
	TenantID uuid.UUID
	UserID   string
	Username string
	Roles    []string
	// Claims is nil when the caller was identified by development headers
	Claims *auth.Claims
}

// HasAnyRole reports whether the principal holds one of roles
func (p *Principal) HasAnyRole(roles ...string) bool {
	for _, want := range roles {
		for _, have := range p.Roles {
			if strings.EqualFold(have, want) {
				return true
			}
		}
	}
	return false
}

// AuthConfig configures Auth
type AuthConfig struct {
	Validator *auth.TokenValidator
	// Revocations is optional. Lookup failures let the request through.
	Revocations auth.RevocationList
	// AllowHeaderIdentity accepts X-Tenant-ID, X-User-ID and X-User-Roles in
	// place of a bearer token. Development only.
	AllowHeaderIdentity bool
	Logger              *zap.Logger
}

// Auth authenticates the request and scopes it to the caller's tenant. The
// tenant and user are added to the request context, the context logger and
// the active span.
func Auth(cfg AuthConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		header := c.GetHeader(HeaderAuthorization)

		var (
			p   *Principal
			err error
		)
		switch {
		case header != "":
			p, err = fromBearer(c, cfg, header)
		case cfg.AllowHeaderIdentity:
			p, err = fromHeaders(c)
		default:
			err = errMissingCredentials
		}
		if err != nil {
			log.Debug("authentication failed",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
			abortUnauthorized(c, err)
			return
		}

		setPrincipal(c, p)
		c.Next()
	}
}

var errMissingCredentials = errors.New("missing credentials")

func fromBearer(c *gin.Context, cfg AuthConfig, header string) (*Principal, error) {
	token, ok := strings.CutPrefix(header, bearerPrefix)
	if !ok || strings.TrimSpace(token) == "" {
		return nil, auth.ErrInvalidToken
	}
	if cfg.Validator == nil {
		return nil, auth.ErrInvalidToken
	}
	claims, err := cfg.Validator.ValidateAccessToken(strings.TrimSpace(token))
	if err != nil {
		return nil, err
	}
	if revoked(c, cfg, claims) {
		return nil, auth.ErrTokenRevoked
	}
	tenantID, err := claims.TenantUUID()
	if err != nil {
		return nil, auth.ErrInvalidClaims
	}
	return &Principal{
		TenantID: tenantID,
		UserID:   claims.UserID,
		Username: claims.Username,
		Roles:    claims.Roles,
		Claims:   claims,
	}, nil
}

// revoked checks the revocation list. The list is advisory and a lookup
// failure never blocks the request.
func revoked(c *gin.Context, cfg AuthConfig, claims *auth.Claims) bool {
	if cfg.Revocations == nil {
		return false
	}
	ctx := c.Request.Context()
	if claims.ID != "" {
		hit, err := cfg.Revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			logger.FromContext(ctx).Warn("token revocation lookup failed", zap.Error(err))
		} else if hit {
			return true
		}
	}
	hit, err := cfg.Revocations.IsSessionRevoked(ctx, claims.UserID, claims.IssuedAtTime())
	if err != nil {
		logger.FromContext(ctx).Warn("session revocation lookup failed", zap.Error(err))
		return false
	}
	return hit
}

func fromHeaders(c *gin.Context) (*Principal, error) {
	raw := strings.TrimSpace(c.GetHeader(HeaderTenantID))
	if raw == "" {
		return nil, errMissingCredentials
	}
	tenantID, err := uuid.Parse(raw)
	if err != nil {
		return nil, auth.ErrInvalidClaims
	}
	p := &Principal{
		TenantID: tenantID,
		UserID:   strings.TrimSpace(c.GetHeader(HeaderUserID)),
	}
	for _, role := range strings.Split(c.GetHeader(HeaderUserRoles), ",") {
		if role = strings.TrimSpace(role); role != "" {
			p.Roles = append(p.Roles, role)
		}
	}
	return p, nil
}

func setPrincipal(c *gin.Context, p *Principal) {
	c.Set(principalKey, p)

	ctx := logger.WithTenantID(c.Request.Context(), p.TenantID.String())
	attrs := []attribute.KeyValue{attribute.String(telemetry.SpanAttrTenantID, p.TenantID.String())}
	if p.UserID != "" {
		ctx = logger.WithUserID(ctx, p.UserID)
		attrs = append(attrs, attribute.String(telemetry.SpanAttrUserID, p.UserID))
	}
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
	c.Request = c.Request.WithContext(ctx)
}

func abortUnauthorized(c *gin.Context, err error) {
	code, message := dto.ErrCodeUnauthorized, "Authentication required"
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		code, message = dto.ErrCodeTokenExpired, "Token has expired"
	case errors.Is(err, auth.ErrTokenRevoked):
		code, message = dto.ErrCodeTokenRevoked, "Token has been revoked"
	case errors.Is(err, errMissingCredentials):
	default:
		code, message = dto.ErrCodeTokenInvalid, "Invalid token"
	}
	abort(c, http.StatusUnauthorized, code, message)
}

// CurrentPrincipal returns the caller set by Auth
func CurrentPrincipal(c *gin.Context) (*Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*Principal)
	return p, ok && p != nil
}

// TenantID returns the caller's tenant, or uuid.Nil outside Auth
func TenantID(c *gin.Context) uuid.UUID {
	if p, ok := CurrentPrincipal(c); ok {
		return p.TenantID
	}
	return uuid.Nil
}

// UserID returns the caller's user id, which may be empty
func UserID(c *gin.Context) string {
	if p, ok := CurrentPrincipal(c); ok {
		return p.UserID
	}
	return ""
}

// abort writes an error envelope carrying the request id and stops the chain
func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, dto.NewErrorResponse(code, message, c.GetString(logger.RequestIDKey)))
}
