package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/playearn/backend/internal/admin"
	"github.com/playearn/backend/internal/auth"
	"github.com/playearn/backend/internal/errs"
)

// context keys set by the middleware
const (
	KeyUserID  = "user_id"
	KeyEmail   = "email"
	KeyToken   = "token"
	KeyAdminID = "admin_id"
)

// Authenticator validates a session token.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.Claims, error)
}

func abortWith(c *gin.Context, status int, e *errs.Error) {
	c.AbortWithStatusJSON(status, e)
}

// BearerToken extracts the session token from the Authorization header. Browsers
// cannot set headers on a websocket handshake, so upgrades may use ?token=.
func BearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	if isWebSocketUpgrade(c) {
		return c.Query("token")
	}
	return ""
}

// AuthMiddleware requires a valid, not signed-out session token.
func AuthMiddleware(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			abortWith(c, http.StatusUnauthorized, errs.ErrUnauthenticated)
			return
		}

		claims, err := a.Authenticate(c.Request.Context(), token)
		if err != nil {
			e, ok := errs.From(err)
			if !ok {
				e = errs.ErrUnauthenticated
			}
			abortWith(c, http.StatusUnauthorized, e)
			return
		}

		c.Set(KeyUserID, claims.UserID)
		c.Set(KeyEmail, claims.Email)
		c.Set(KeyToken, token)
		c.Next()
	}
}

// RequireAdmin allows only users on the admin roster. Must run after AuthMiddleware.
func RequireAdmin(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(KeyUserID)
		ok, err := admin.IsAdmin(c.Request.Context(), db, userID)
		if err != nil {
			log.Printf("[ADMIN] Roster lookup failed: %v", err)
			abortWith(c, http.StatusInternalServerError, errs.ErrInternal)
			return
		}
		if !ok {
			abortWith(c, http.StatusForbidden, errs.ErrNotAdmin)
			return
		}
		c.Set(KeyAdminID, userID)
		c.Next()
	}
}
