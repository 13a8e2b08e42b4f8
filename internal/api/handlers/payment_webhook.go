package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/playearn/backend/internal/config"
	"github.com/playearn/backend/internal/notify"
	"github.com/playearn/backend/internal/payment"
	"github.com/redis/go-redis/v9"
)

// PaystackWebhook settles charge.success events. Any signed event is
// acknowledged with 200 so the provider stops retrying; settlement is idempotent.
func PaystackWebhook(db *sqlx.DB, rdb *redis.Client, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := c.GetRawData()
		if err != nil {
			respondError(c, errBadRequest)
			return
		}
		ctx := c.Request.Context()

		valid := payment.ValidSignature(cfg.PaystackSecretKey, body, c.GetHeader("x-paystack-signature"))
		event, ver, parseErr := payment.ParseChargeEvent(body)
		reference := ""
		if ver != nil {
			reference = ver.Reference
		}
		logID := logWebhook(ctx, db, event, reference, valid, body)

		if !valid {
			log.Printf("[WEBHOOK] Rejected unsigned %q event for ref=%s", event, reference)
			respondError(c, errBadSignature)
			return
		}
		if parseErr != nil {
			log.Printf("[WEBHOOK] Unparseable event: %v", parseErr)
			c.JSON(http.StatusOK, gin.H{"ok": true})
			return
		}

		log.Printf("[WEBHOOK] %s ref=%s status=%s amount=%s", event, reference, ver.Status, ver.Amount.StringFixed(2))
		if event != "charge.success" || !ver.Succeeded() || ver.Purpose == payment.PurposeEditFee {
			c.JSON(http.StatusOK, gin.H{"ok": true})
			return
		}

		uid := ver.UserID
		if uid == "" {
			uid, err = depositOwner(ctx, db, reference)
			if err != nil {
				log.Printf("[WEBHOOK] No deposit owner for ref=%s: %v", reference, err)
				c.JSON(http.StatusOK, gin.H{"ok": true})
				return
			}
		}

		s, err := payment.Settle(ctx, db, uid, ver)
		if err != nil {
			log.Printf("[WEBHOOK] Settle ref=%s failed: %v", reference, err)
			c.JSON(http.StatusOK, gin.H{"ok": true})
			return
		}
		markWebhookProcessed(ctx, db, logID)
		if !s.AlreadyCredited {
			notify.WalletChanged(ctx, rdb, uid, gin.H{"funding_balance": s.FundingBalance})
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

func depositOwner(ctx context.Context, db *sqlx.DB, reference string) (string, error) {
	var uid string
	err := db.GetContext(ctx, &uid, `SELECT user_id FROM deposits WHERE transaction_reference = $1 ORDER BY created_at DESC LIMIT 1`, reference)
	if errors.Is(err, sql.ErrNoRows) {
		return "", errors.New("unknown reference")
	}
	return uid, err
}

func logWebhook(ctx context.Context, db *sqlx.DB, event, reference string, valid bool, body []byte) int64 {
	var payload interface{}
	if json.Valid(body) {
		payload = string(body)
	}
	var id int64
	err := db.GetContext(ctx, &id, `
		INSERT INTO payment_webhooks (event, reference, signature_valid, payload, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id`, event, reference, valid, payload)
	if err != nil {
		log.Printf("[WEBHOOK] Failed to log webhook: %v", err)
		return 0
	}
	return id
}

func markWebhookProcessed(ctx context.Context, db *sqlx.DB, id int64) {
	if id == 0 {
		return
	}
	if _, err := db.ExecContext(ctx, `UPDATE payment_webhooks SET processed = TRUE WHERE id = $1`, id); err != nil {
		log.Printf("[WEBHOOK] Failed to mark webhook %d processed: %v", id, err)
	}
}
