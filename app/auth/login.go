package auth

import (
	"net/http"

	"bitwise74/marketplace-auth/app/status"
	"bitwise74/marketplace-auth/internal"
	"bitwise74/marketplace-auth/internal/authn"
	"bitwise74/marketplace-auth/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func bindLogin(c *gin.Context) (*loginBody, bool) {
	var data loginBody
	if err := c.ShouldBindJSON(&data); err != nil {
		response.Fail(c, http.StatusBadRequest, "Invalid request body")
		zap.L().Debug("Can't bind request body", zap.Error(err), zap.String("requestID", response.RequestID(c)))
		return nil, false
	}

	return &data, true
}

// LoginWithEmail checks an email and password pair and returns the user
func LoginWithEmail(c *gin.Context, d *internal.Deps) {
	data, ok := bindLogin(c)
	if !ok {
		return
	}

	user, err := d.Credentials.LoginWithEmail(c.Request.Context(), data.Email, data.Password)
	if err != nil {
		status.Fail(c, err, "Failed to log in user")
		return
	}

	response.OK(c, http.StatusOK, user)
}

// IssueToken logs the user in and issues a session bound to the caller's
// device fingerprint, address and user agent
func IssueToken(c *gin.Context, d *internal.Deps) {
	data, ok := bindLogin(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()

	user, err := d.Credentials.LoginWithEmail(ctx, data.Email, data.Password)
	if err != nil {
		status.Fail(c, err, "Failed to log in user")
		return
	}

	t, err := d.Sessions.Issue(ctx, user.ID, c.ClientIP(), c.Request.UserAgent(), c.GetHeader(authn.FingerprintHeader))
	if err != nil {
		status.Fail(c, err, "Failed to issue session token")
		return
	}

	d.Metrics.SessionIssued()
	response.OK(c, http.StatusOK, t)
}
