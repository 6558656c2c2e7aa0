package middleware

import (
	"github.com/chenyahui/gin-cache/persist"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DropCached removes keys from store once the handler answered with a 2xx
// status, so reads cached by path see the change on the next request
func DropCached(store persist.CacheStore, keys ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if s := c.Writer.Status(); s < 200 || s >= 300 {
			return
		}

		// The memory store reports keys that were never cached as an error
		for _, key := range keys {
			if err := store.Delete(key); err != nil {
				zap.L().Debug("Cached response not dropped", zap.String("key", key), zap.Error(err))
			}
		}
	}
}
