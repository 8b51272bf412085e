package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"realtime-service/internal/telemetry"
)

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router *gin.Engine, emitter *telemetry.AuditEmitter, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		var userID *string
		if id := userIDFromContext(c); id != "" {
			userID = &id
		}
		emitter.Emit(c.Request.Context(), "INFO", "audit_test", requestIDFromContext(c), userID)
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
