package middleware

import (
	"errors"
	"net/http"

	"bitwise74/marketplace-auth/internal/authn"
	"bitwise74/marketplace-auth/pkg/observability"
	"bitwise74/marketplace-auth/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const identityKey = "identity"

// NewAuthMiddleware runs the configured strategy on the Authorization header
// and stores the identity as "identity" and its id as "userID". Every
// failure renders a 401.
func NewAuthMiddleware(s authn.Strategy, m *observability.Metrics) gin.HandlerFunc {
	strategy := s.Kind().String()

	return func(c *gin.Context) {
		id, err := s.Authenticate(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			reason, _ := authn.ReasonOf(err)
			m.AuthAttempt(strategy, string(reason))

			msg := "Authentication failed"
			var f *authn.Failure
			if errors.As(err, &f) {
				msg = f.Message()
			}

			if reason == authn.AuthenticationError {
				zap.L().Error("Authentication backend failed", zap.Error(err), zap.String("requestID", response.RequestID(c)))
			}

			response.Abort(c, http.StatusUnauthorized, msg)
			return
		}

		m.AuthAttempt(strategy, "ok")

		c.Set(identityKey, id)
		c.Set("userID", id.UserID)
		c.Next()
	}
}

// Identity returns what NewAuthMiddleware stored, or nil
func Identity(c *gin.Context) *authn.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}

	id, _ := v.(*authn.Identity)
	return id
}
