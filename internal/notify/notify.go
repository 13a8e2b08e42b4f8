// Package notify stores in-app notifications and publishes realtime events
// for the websocket fan-out.
package notify

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/playearn/backend/internal/errs"
	"github.com/playearn/backend/internal/models"
	appredis "github.com/playearn/backend/internal/redis"
	"github.com/redis/go-redis/v9"
)

// notification types
const (
	TypeInfo       = "info"
	TypeSuccess    = "success"
	TypeWarning    = "warning"
	TypeWithdrawal = "withdrawal"
)

var (
	ErrInvalidNotification = errs.Validation("invalid_notification", "title and message are required")
	ErrNotificationMissing = errs.NotFound("notification_not_found", "notification not found")
)

const notificationColumns = `id, user_id, title, message, type, is_read, created_at`

// Input is what an admin (or the system) sends. A nil UserID broadcasts.
type Input struct {
	UserID  *string `json:"user_id"`
	Title   string  `json:"title"`
	Message string  `json:"message"`
	Type    string  `json:"type"`
}

// Event is the envelope published on every realtime channel. An empty UserID
// reaches every connected client.
type Event struct {
	Type   string      `json:"type"`
	UserID string      `json:"user_id,omitempty"`
	Data   interface{} `json:"data"`
}

// Send stores the notification and publishes it on the notifications channel.
// A publish failure is logged; the stored row is still returned.
func Send(ctx context.Context, db *sqlx.DB, rdb *redis.Client, in Input) (*models.Notification, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Message = strings.TrimSpace(in.Message)
	if in.Title == "" || in.Message == "" {
		return nil, ErrInvalidNotification
	}
	if in.Type == "" {
		in.Type = TypeInfo
	}
	if in.UserID != nil && *in.UserID == "" {
		in.UserID = nil
	}

	var n models.Notification
	err := db.QueryRowxContext(ctx, `
		INSERT INTO notifications (user_id, title, message, type, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING `+notificationColumns,
		in.UserID, in.Title, in.Message, in.Type).StructScan(&n)
	if err != nil {
		return nil, err
	}

	ev := Event{Type: "notification", Data: n}
	if n.UserID != nil {
		ev.UserID = *n.UserID
	}
	Publish(ctx, rdb, appredis.ChannelNotifications, ev)
	return &n, nil
}

// Publish marshals ev onto channel. Best effort.
func Publish(ctx context.Context, rdb *redis.Client, channel string, ev Event) {
	if rdb == nil {
		return
	}
	b, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[NOTIFY] marshal %s event: %v", ev.Type, err)
		return
	}
	if err := rdb.Publish(ctx, channel, b).Err(); err != nil {
		log.Printf("[NOTIFY] publish on %s failed: %v", channel, err)
	}
}

// WalletChanged tells the user's open sessions to refresh balances.
func WalletChanged(ctx context.Context, rdb *redis.Client, userID string, balances interface{}) {
	Publish(ctx, rdb, appredis.ChannelWalletEvents, Event{Type: "wallet_updated", UserID: userID, Data: balances})
}

// ListForUser returns the user's own notifications plus broadcasts, newest first.
func ListForUser(ctx context.Context, db *sqlx.DB, userID string, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	out := []models.Notification{}
	err := db.SelectContext(ctx, &out, `
		SELECT n.id, n.user_id, n.title, n.message, n.type,
		       (n.is_read OR r.user_id IS NOT NULL) AS is_read, n.created_at
		FROM notifications n
		LEFT JOIN notification_reads r ON r.notification_id = n.id AND r.user_id = $1
		WHERE n.user_id = $1 OR n.user_id IS NULL
		ORDER BY n.created_at DESC, n.id DESC
		LIMIT $2`, userID, limit)
	return out, err
}

// MarkRead marks a notification read for userID. Broadcasts are marked per user.
func MarkRead(ctx context.Context, db *sqlx.DB, userID string, id int64) error {
	res, err := db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	res, err = db.ExecContext(ctx, `
		INSERT INTO notification_reads (notification_id, user_id, read_at)
		SELECT id, $2, NOW() FROM notifications WHERE id = $1 AND user_id IS NULL
		ON CONFLICT DO NOTHING`, id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists bool
		if err := db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM notifications WHERE id = $1 AND user_id IS NULL)`, id); err != nil {
			return err
		}
		if !exists {
			return ErrNotificationMissing
		}
	}
	return nil
}

// UnreadCount counts unread notifications visible to userID.
func UnreadCount(ctx context.Context, db *sqlx.DB, userID string) (int, error) {
	var n int
	err := db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM notifications n
		LEFT JOIN notification_reads r ON r.notification_id = n.id AND r.user_id = $1
		WHERE (n.user_id = $1 OR n.user_id IS NULL) AND NOT n.is_read AND r.user_id IS NULL`, userID)
	return n, err
}

// Notice sends a system notification to one user, logging instead of failing.
func Notice(ctx context.Context, db *sqlx.DB, rdb *redis.Client, userID, typ, title, message string) {
	if _, err := Send(ctx, db, rdb, Input{UserID: &userID, Title: title, Message: message, Type: typ}); err != nil {
		log.Printf("[NOTIFY] notice to %s failed: %v", userID, err)
	}
}
