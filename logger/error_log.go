package logger

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// RequestFields returns the request context worth attaching to an error log entry
// as alternating key/value pairs. Sensitive headers are redacted, and headers are
// omitted altogether in production mode.
func RequestFields(c *gin.Context) []interface{} {
	if c == nil || c.Request == nil {
		return nil
	}

	fields := []interface{}{
		"path", c.Request.URL.Path,
		"method", c.Request.Method,
		"client_ip", c.ClientIP(),
	}
	if requestID := c.GetString("request_id"); requestID != "" {
		fields = append(fields, "request_id", requestID)
	}
	if CurrentMode() != ModeProduction {
		fields = append(fields, "headers", filterSensitiveHeaders(c.Request.Header))
	}
	return fields
}

// filterSensitiveHeaders removes sensitive information from headers before logging
func filterSensitiveHeaders(headers http.Header) map[string]string {
	filtered := make(map[string]string)

	for name, values := range headers {
		lower := strings.ToLower(name)
		if strings.EqualFold(name, "Authorization") ||
			strings.EqualFold(name, "Cookie") ||
			strings.Contains(lower, "token") ||
			strings.Contains(lower, "key") ||
			strings.Contains(lower, "secret") {
			filtered[name] = "[REDACTED]"
			continue
		}

		if len(values) > 0 {
			filtered[name] = values[0]
		}
	}

	return filtered
}
