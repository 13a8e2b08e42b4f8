package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/playearn/backend/internal/admin"
	"github.com/playearn/backend/internal/config"
	"github.com/playearn/backend/internal/notify"
	"github.com/redis/go-redis/v9"
)

// GetAdminRuntimeConfig returns all runtime config entries
func GetAdminRuntimeConfig(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		configs, err := admin.GetAllRuntimeConfig(c.Request.Context(), db)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"configs": configs})
	}
}

// UpdateAdminRuntimeConfig updates a single runtime config value and
// re-applies the policy in memory. Maintenance keys are also pushed to the
// shared cache the gate reads.
func UpdateAdminRuntimeConfig(db *sqlx.DB, rdb *redis.Client, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Param("key")
		var req struct {
			Value string `json:"value" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, errBadRequest.WithMessage("value is required"))
			return
		}
		details := map[string]interface{}{"key": key, "value": req.Value}

		ctx := c.Request.Context()
		if err := admin.UpdateRuntimeConfigValue(ctx, db, key, req.Value, adminID(c)); err != nil {
			audit(c, db, "update_config", details, false)
			respondError(c, err)
			return
		}
		if err := admin.ApplyRuntimeConfigToConfig(ctx, db, cfg); err != nil {
			log.Printf("[ADMIN] Warning: failed to apply runtime config: %v", err)
		} else if admin.IsMaintenanceKey(key) {
			admin.RefreshMaintenance(ctx, rdb, cfg)
		}
		audit(c, db, "update_config", details, true)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// AdminSetMaintenance toggles maintenance mode for all instances.
func AdminSetMaintenance(db *sqlx.DB, rdb *redis.Client, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Enabled bool   `json:"enabled"`
			Message string `json:"message"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, errBadRequest)
			return
		}
		details := map[string]interface{}{"enabled": req.Enabled, "message": req.Message}
		m, err := admin.SetMaintenance(c.Request.Context(), db, rdb, cfg, adminID(c), req.Enabled, req.Message)
		if err != nil {
			audit(c, db, "set_maintenance", details, false)
			respondError(c, err)
			return
		}
		audit(c, db, "set_maintenance", details, true)
		c.JSON(http.StatusOK, m)
	}
}

// AdminSendNotification sends to one user, or to everyone when user_id is omitted.
func AdminSendNotification(db *sqlx.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in notify.Input
		if err := c.ShouldBindJSON(&in); err != nil {
			respondError(c, errBadRequest)
			return
		}
		details := map[string]interface{}{"user_id": in.UserID, "title": in.Title}
		n, err := notify.Send(c.Request.Context(), db, rdb, in)
		if err != nil {
			audit(c, db, "send_notification", details, false)
			respondError(c, err)
			return
		}
		audit(c, db, "send_notification", details, true)
		c.JSON(http.StatusCreated, n)
	}
}

// GetAdminAuditLogs returns paginated audit log entries. Viewing the log is
// not itself audited.
func GetAdminAuditLogs(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := paging(c, 25, 200)
		logs, total, err := admin.GetAdminAuditLogs(c.Request.Context(), db, c.Query("admin_id"), limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"logs": logs, "total": total, "limit": limit, "offset": offset})
	}
}
