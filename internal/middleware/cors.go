package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tourforge/backend/internal/config"
)

// CORS reflects allowed origins and answers preflight requests. The editor
// frontend is the only intended browser client; its origins come from
// ALLOWED_ORIGINS, and in development any origin passes so a local editor can
// talk to a local API without config churn.
func CORS(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := normalizeOrigin(c.Request.Header.Get("Origin"))

		h := c.Writer.Header()
		h.Add("Vary", "Origin")
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Content-Length, Accept-Encoding, Origin, Cache-Control, X-Requested-With")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Max-Age", "86400") // cache preflight for 24h

		if origin != "" && originAllowed(cfg, origin) {
			h.Set("Access-Control-Allow-Origin", origin)
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func originAllowed(cfg *config.Config, origin string) bool {
	for _, allowed := range cfg.AllowedOrigins {
		if normalizeOrigin(allowed) == origin {
			return true
		}
	}
	return cfg.Env == "development"
}

// normalizeOrigin makes trailing-slash and whitespace variants compare equal
func normalizeOrigin(origin string) string {
	return strings.TrimRight(strings.TrimSpace(origin), "/")
}
