// Package response writes the JSON envelope every endpoint answers with
package response

import (
	"github.com/gin-gonic/gin"
)

// RequestID returns the id set by the request id middleware
func RequestID(c *gin.Context) string {
	return c.GetString("requestID")
}

func OK(c *gin.Context, code int, data any) {
	c.JSON(code, gin.H{
		"success":   true,
		"data":      data,
		"requestID": RequestID(c),
	})
}

func Fail(c *gin.Context, code int, msg string) {
	c.JSON(code, gin.H{
		"success":   false,
		"error":     msg,
		"requestID": RequestID(c),
	})
}

// Abort is Fail that also stops the handler chain
func Abort(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, gin.H{
		"success":   false,
		"error":     msg,
		"requestID": RequestID(c),
	})
}
