package handlers

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/playearn/backend/internal/admin"
)

// audit records an admin action against the matched route.
func audit(c *gin.Context, db *sqlx.DB, action string, details map[string]interface{}, success bool) {
	if err := admin.LogAdminAction(db, adminID(c), c.ClientIP(), c.FullPath(), action, details, success); err != nil {
		log.Printf("[ADMIN] Failed to write audit for %s: %v", action, err)
	}
}
