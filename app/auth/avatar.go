package auth

import (
	"net/http"

	"bitwise74/marketplace-auth/app/status"
	"bitwise74/marketplace-auth/internal"
	"bitwise74/marketplace-auth/pkg/middleware"
	"bitwise74/marketplace-auth/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UploadImageUser stores the multipart "image" field as the caller's avatar
func UploadImageUser(c *gin.Context, d *internal.Deps) {
	requestID := response.RequestID(c)

	fh, err := c.FormFile("image")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, "No image provided")
		zap.L().Debug("Can't read image form field", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	f, err := fh.Open()
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, "Internal server error")
		zap.L().Error("Failed to open uploaded image", zap.Error(err), zap.String("requestID", requestID))
		return
	}
	defer f.Close()

	key, err := d.Avatars.Upload(c.Request.Context(), middleware.Identity(c).UserID, f, fh.Size)
	if err != nil {
		status.Fail(c, err, "Failed to upload avatar")
		return
	}

	response.OK(c, http.StatusOK, gin.H{"avatarKey": key})
}
