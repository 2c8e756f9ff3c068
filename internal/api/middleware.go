package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/septivank/campus-water-monitor/internal/logging"
)

// CORS allows the dashboard at origin to call the API. "*" allows any origin.
func CORS(origin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", origin)
		if origin != "*" {
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, "+logging.RequestIDHeader)
		c.Header("Access-Control-Expose-Headers", logging.RequestIDHeader)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
