package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oms/backend/internal/interfaces/http/dto"
)

// BodyLimit caps request body size. Requests declaring a larger
// Content-Length are rejected with 413 up front; bodies without a declared
// length are capped while being read, so an oversized carrier payload cannot
// buffer unbounded memory.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
				dto.NewErrorResponse("REQUEST_TOO_LARGE", "Request body exceeds maximum allowed size"))
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
