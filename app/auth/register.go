package auth

import (
	"net/http"

	"bitwise74/marketplace-auth/app/status"
	"bitwise74/marketplace-auth/internal"
	"bitwise74/marketplace-auth/internal/service"
	"bitwise74/marketplace-auth/pkg/response"
	"bitwise74/marketplace-auth/pkg/validators"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type registerBody struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

func Register(c *gin.Context, d *internal.Deps) {
	var data registerBody
	if err := c.ShouldBindJSON(&data); err != nil {
		response.Fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	// Accounts may be created without a password and set one later
	if data.Password != "" {
		if err := validators.PasswordValidator(data.Password); err != nil {
			status.Invalid(c, err)
			return
		}
	}

	user, err := d.Credentials.Register(c.Request.Context(), service.RegisterOpts{
		Email:    data.Email,
		Name:     data.Name,
		Password: data.Password,
	})
	if err != nil {
		status.Fail(c, err, "Failed to register user")
		return
	}

	zap.L().Debug("New user registered", zap.Int64("userID", user.ID), zap.String("requestID", response.RequestID(c)))
	response.OK(c, http.StatusCreated, user)
}
