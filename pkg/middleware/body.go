package middleware

import (
	"net/http"

	"bitwise74/marketplace-auth/pkg/response"

	"github.com/gin-gonic/gin"
)

// BodySizeLimiter rejects bodies over maxBytes. Declared lengths are checked
// up front, streamed bodies fail on read.
func BodySizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			response.Abort(c, http.StatusRequestEntityTooLarge, "Request body size exceeds limit")
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
