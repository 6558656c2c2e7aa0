package middleware

import (
	"context"
	"net/http"

	"bitwise74/marketplace-auth/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RoleChecker is satisfied by service.Roles
type RoleChecker interface {
	HasRoleBySlug(ctx context.Context, userID int64, slug string) (bool, error)
}

// RequireRole lets admins through, and anyone holding at least one of slugs.
// It must run after NewAuthMiddleware.
func RequireRole(roles RoleChecker, slugs ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := Identity(c)
		if id == nil {
			response.Abort(c, http.StatusUnauthorized, "Authentication required")
			return
		}

		if id.IsAdmin {
			c.Next()
			return
		}

		for _, slug := range slugs {
			ok, err := roles.HasRoleBySlug(c.Request.Context(), id.UserID, slug)
			if err != nil {
				zap.L().Error("Failed to check role", zap.Error(err), zap.String("role", slug), zap.String("requestID", response.RequestID(c)))
				response.Abort(c, http.StatusInternalServerError, "Internal server error")
				return
			}

			if ok {
				c.Next()
				return
			}
		}

		response.Abort(c, http.StatusForbidden, "Missing required role")
	}
}

// RequireAdmin only lets admins through
func RequireAdmin() gin.HandlerFunc {
	return RequireRole(nil)
}
