package auth

import (
	"net/http"

	"bitwise74/marketplace-auth/app/status"
	"bitwise74/marketplace-auth/internal"
	"bitwise74/marketplace-auth/pkg/middleware"
	"bitwise74/marketplace-auth/pkg/response"
	"bitwise74/marketplace-auth/pkg/validators"

	"github.com/gin-gonic/gin"
)

type changePasswordBody struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// ChangePassword replaces the caller's password after checking the old one
func ChangePassword(c *gin.Context, d *internal.Deps) {
	var data changePasswordBody
	if err := c.ShouldBindJSON(&data); err != nil {
		response.Fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validators.PasswordValidator(data.NewPassword); err != nil {
		status.Invalid(c, err)
		return
	}

	id := middleware.Identity(c)

	if err := d.Credentials.ChangePasswordChecked(c.Request.Context(), id.UserID, data.OldPassword, data.NewPassword); err != nil {
		status.Fail(c, err, "Failed to change password")
		return
	}

	response.OK(c, http.StatusOK, nil)
}

// SendRecoveryMail mails a one time recovery link to the owner of :email
func SendRecoveryMail(c *gin.Context, d *internal.Deps) {
	if err := d.Recovery.SendRecoveryMail(c.Request.Context(), c.Param("email")); err != nil {
		status.Fail(c, err, "Failed to send recovery mail")
		return
	}

	response.OK(c, http.StatusOK, nil)
}

type recoveryBody struct {
	RecoveryHash string `json:"recoveryHash"`
	NewPassword  string `json:"newPassword"`
}

// ChangePasswordUsingHash redeems a recovery hash. A hash works once.
func ChangePasswordUsingHash(c *gin.Context, d *internal.Deps) {
	var data recoveryBody
	if err := c.ShouldBindJSON(&data); err != nil {
		response.Fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	if data.RecoveryHash == "" {
		response.Fail(c, http.StatusBadRequest, "Recovery hash can't be empty")
		return
	}

	if err := validators.PasswordValidator(data.NewPassword); err != nil {
		status.Invalid(c, err)
		return
	}

	if err := d.Credentials.ChangePasswordUsingHash(c.Request.Context(), data.RecoveryHash, data.NewPassword); err != nil {
		status.Fail(c, err, "Failed to redeem recovery hash")
		return
	}

	response.OK(c, http.StatusOK, nil)
}
