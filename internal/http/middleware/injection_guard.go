package middleware

import (
	"bytes"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/adcraft-ai/adcraft-backend/internal/pkg/logger"
	"github.com/adcraft-ai/adcraft-backend/internal/services"
)

const guardBodyLimit = 64 << 10

// InjectionGuard classifies request bodies for prompt-injection markers.
// Detect-and-log only; blocking here would burn legitimate product copy that
// happens to trip a pattern. The body is restored for downstream handlers.
func InjectionGuard(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body == nil || c.Request.Method == "GET" {
			c.Next()
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, guardBodyLimit))
		if err != nil {
			c.Next()
			return
		}
		c.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), c.Request.Body))

		if res := services.DetectInjection(string(body)); res.Detected {
			log.Warn("injection patterns in request body",
				"path", c.Request.URL.Path,
				"user_id", c.GetHeader("X-User-ID"),
				"patterns", res.Patterns)
		}

		c.Next()
	}
}
