package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/playearn/backend/internal/admin"
	"github.com/playearn/backend/internal/config"
	"github.com/redis/go-redis/v9"
)

var startTime = time.Now()

const version = "1.0.0"

// HealthCheck returns server health status
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "playearn-api",
		"version": version,
		"uptime":  time.Since(startTime).String(),
	})
}

// MaintenanceStatus is polled by the client shell.
func MaintenanceStatus(rdb *redis.Client, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, admin.GetMaintenance(c.Request.Context(), rdb, cfg))
	}
}
