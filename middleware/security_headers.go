package middleware

import (
	"github.com/HydroTrack/hydrotrack-backend/config"
	"github.com/gin-gonic/gin"
)

// SecurityHeadersMiddleware adds security headers to every response. Health and
// diagnostics payloads describe live state, so responses are never cached.
func SecurityHeadersMiddleware(cfg *config.ServerConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Cache-Control", "no-store")

		// HSTS only in production to avoid pinning local development hosts
		if cfg.Environment == config.EnvProduction {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
