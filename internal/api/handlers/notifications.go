package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/playearn/backend/internal/notify"
	"github.com/playearn/backend/internal/ws"
)

// ListNotifications returns the user's own and broadcast notifications with
// the unread count.
func ListNotifications(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		uid := userID(c)
		limit, _ := paging(c, 20, 50)
		list, err := notify.ListForUser(ctx, db, uid, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		unread, err := notify.UnreadCount(ctx, db, uid)
		if err != nil {
			log.Printf("[NOTIFY] Unread count for %s failed: %v", uid, err)
		}
		c.JSON(http.StatusOK, gin.H{"notifications": list, "unread": unread})
	}
}

func MarkNotificationRead(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		if err := notify.MarkRead(c.Request.Context(), db, userID(c), id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// Realtime upgrades to the per-user websocket feed.
func Realtime(hub *ws.Hub) gin.HandlerFunc {
	return ws.HandleWebSocket(hub)
}
