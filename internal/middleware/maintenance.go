package middleware

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/playearn/backend/internal/admin"
	"github.com/playearn/backend/internal/config"
	"github.com/playearn/backend/internal/errs"
	"github.com/redis/go-redis/v9"
)

var ErrMaintenance = errs.New(errs.KindExternal, "maintenance", "the service is under maintenance")

// MaintenanceGate answers 503 on user routes while maintenance mode is on.
// Admins pass through so they can keep operating.
func MaintenanceGate(db *sqlx.DB, rdb *redis.Client, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		m := admin.GetMaintenance(c.Request.Context(), rdb, cfg)
		if !m.Enabled {
			c.Next()
			return
		}

		if ok, err := admin.IsAdmin(c.Request.Context(), db, c.GetString(KeyUserID)); err != nil {
			log.Printf("[MAINTENANCE] Roster lookup failed: %v", err)
		} else if ok {
			c.Next()
			return
		}

		abortWith(c, http.StatusServiceUnavailable, ErrMaintenance.WithMessage(m.Message))
	}
}
