// Package auth contains the endpoints sibling services authenticate against
package auth

import (
	"net/http"
	"strconv"
	"time"

	"bitwise74/marketplace-auth/app/status"
	"bitwise74/marketplace-auth/internal"
	"bitwise74/marketplace-auth/internal/authn"
	"bitwise74/marketplace-auth/internal/model"
	"bitwise74/marketplace-auth/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultAssertionTTL = time.Minute

// GetByToken resolves a session token to its owner
func GetByToken(c *gin.Context, d *internal.Deps) {
	ctx := c.Request.Context()

	t, err := d.Sessions.Lookup(ctx, c.Param("token"))
	if err != nil {
		status.Fail(c, err, "Failed to look up session")
		return
	}

	user, err := d.Sessions.Owner(ctx, t)
	if err != nil {
		status.Fail(c, err, "Failed to resolve session owner")
		return
	}

	if _, err := d.Sessions.Touch(ctx, t); err != nil {
		zap.L().Warn("Failed to refresh session last access", zap.Error(err), zap.String("requestID", response.RequestID(c)))
	}

	writeUser(c, d, user)
}

func GetByEmail(c *gin.Context, d *internal.Deps) {
	user, err := d.Credentials.UserByEmail(c.Request.Context(), c.Param("email"))
	if err != nil {
		status.Fail(c, err, "Failed to look up user by email")
		return
	}

	writeUser(c, d, user)
}

func GetByID(c *gin.Context, d *internal.Deps) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Fail(c, http.StatusBadRequest, "Invalid user id")
		return
	}

	user, err := d.Credentials.UserByID(c.Request.Context(), id)
	if err != nil {
		status.Fail(c, err, "Failed to look up user by id")
		return
	}

	writeUser(c, d, user)
}

// writeUser answers with user and, when a shared secret is configured, a
// signed assertion the remote client checks the body against
func writeUser(c *gin.Context, d *internal.Deps, user *model.User) {
	if len(d.AssertionSecret) > 0 {
		ttl := d.AssertionTTL
		if ttl <= 0 {
			ttl = defaultAssertionTTL
		}

		raw, err := authn.SignAssertion(d.AssertionSecret, authn.NewIdentity(user), ttl)
		if err != nil {
			response.Fail(c, http.StatusInternalServerError, "Internal server error")
			zap.L().Error("Failed to sign identity assertion", zap.Error(err), zap.String("requestID", response.RequestID(c)))
			return
		}

		c.Header(authn.AssertionHeader, raw)
	}

	response.OK(c, http.StatusOK, user)
}
