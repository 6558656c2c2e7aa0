package root

import (
	"net/http"

	"bitwise74/marketplace-auth/pkg/middleware"
	"bitwise74/marketplace-auth/pkg/response"

	"github.com/gin-gonic/gin"
)

// Validate answers with the identity the bearer token resolved to
func Validate(c *gin.Context) {
	response.OK(c, http.StatusOK, middleware.Identity(c))
}
