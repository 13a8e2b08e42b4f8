package middleware

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/playearn/backend/internal/admin"
	"github.com/playearn/backend/internal/errs"
	"github.com/redis/go-redis/v9"
)

// RejectBanned answers 403 for users banned after their token was issued.
// Must run after AuthMiddleware.
func RejectBanned(db *sqlx.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		banned, err := admin.IsBanned(c.Request.Context(), db, rdb, c.GetString(KeyUserID))
		if err != nil {
			log.Printf("[AUTH] Ban lookup failed: %v", err)
			abortWith(c, http.StatusInternalServerError, errs.ErrInternal)
			return
		}
		if banned {
			abortWith(c, http.StatusForbidden, errs.ErrUserBanned)
			return
		}
		c.Next()
	}
}
