// Package status maps service errors onto HTTP responses
package status

import (
	"errors"
	"net/http"
	"strings"

	"bitwise74/marketplace-auth/internal/service"
	"bitwise74/marketplace-auth/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Code returns the status err should be answered with and a message that is
// safe to show to the client
func Code(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge, "Image is too large"
	case errors.Is(err, service.ErrInvalidArgument):
		return http.StatusBadRequest, capitalize(strings.TrimPrefix(err.Error(), service.ErrInvalidArgument.Error()+": "))
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, service.ErrInvalidSession):
		return http.StatusUnauthorized, "Invalid or expired session"
	case errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, service.ErrEmailTaken):
		return http.StatusConflict, "Email is already registered"
	case errors.Is(err, service.ErrRoleExists):
		return http.StatusConflict, "Role already exists"
	case errors.Is(err, service.ErrStorageDisabled):
		return http.StatusServiceUnavailable, "Avatar uploads are disabled"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// Fail answers with the status of err. Only unexpected errors are logged
// under msg.
func Fail(c *gin.Context, err error, msg string) {
	code, text := Code(err)
	if code == http.StatusInternalServerError {
		zap.L().Error(msg, zap.Error(err), zap.String("requestID", response.RequestID(c)))
	}

	response.Fail(c, code, text)
}

// Invalid answers 400 with the message of a validation error
func Invalid(c *gin.Context, err error) {
	response.Fail(c, http.StatusBadRequest, capitalize(err.Error()))
}

func capitalize(s string) string {
	if s == "" {
		return "Invalid request"
	}

	return strings.ToUpper(s[:1]) + s[1:]
}
