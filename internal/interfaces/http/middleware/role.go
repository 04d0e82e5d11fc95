package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opencrm/backend/internal/interfaces/http/dto"
)

// RequireAnyRole lets the request through when the caller holds at least one
// of roles. It must run after Auth. An empty role list allows everyone.
func RequireAnyRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(roles) == 0 {
			c.Next()
			return
		}
		p, ok := CurrentPrincipal(c)
		if !ok {
			abort(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Authentication required")
			return
		}
		if !p.HasAnyRole(roles...) {
			abort(c, http.StatusForbidden, dto.ErrCodeForbidden, "Insufficient role for this operation")
			return
		}
		c.Next()
	}
}
