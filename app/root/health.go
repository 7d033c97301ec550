package root

import (
	"bitwise74/user-api/internal"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Health reports whether the API and its database are reachable
func Health(c *gin.Context, d *internal.Deps) {
	status := "ok"
	code := http.StatusOK

	sqlDB, err := d.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable

		zap.L().Warn("Database ping failed", zap.Error(err), zap.String("requestID", c.GetString("requestID")))
	}

	c.JSON(code, gin.H{
		"status":      status,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"environment": d.Env,
		"mailQueue":   d.MailQueue.Pending(),
	})
}
