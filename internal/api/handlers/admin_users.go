package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/playearn/backend/internal/admin"
	"github.com/playearn/backend/internal/config"
	"github.com/playearn/backend/internal/notify"
	"github.com/playearn/backend/internal/plans"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// AdminSearchUsers searches profiles by email, name or phone.
func AdminSearchUsers(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := paging(c, 25, 200)
		users, total, err := admin.SearchUsers(c.Request.Context(), db, c.Query("q"), c.DefaultQuery("status", "all"), limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"users": users, "total": total, "limit": limit, "offset": offset})
	}
}

// AdminBanUser bans or unbans a user.
func AdminBanUser(db *sqlx.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Banned bool   `json:"banned"`
			Reason string `json:"reason"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, errBadRequest)
			return
		}
		target := c.Param("id")
		details := map[string]interface{}{"user_id": target, "banned": req.Banned, "reason": req.Reason}
		p, err := admin.BanUser(c.Request.Context(), db, adminID(c), target, req.Banned, req.Reason)
		if err != nil {
			audit(c, db, "ban_user", details, false)
			respondError(c, err)
			return
		}
		admin.ForgetBanState(c.Request.Context(), rdb, target)
		audit(c, db, "ban_user", details, true)
		c.JSON(http.StatusOK, p)
	}
}

// AdminSetUserPlan puts a user on a plan with an optional expiry.
func AdminSetUserPlan(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Plan      string     `json:"plan"`
			ExpiresAt *time.Time `json:"expires_at"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.Plan == "" {
			respondError(c, errBadRequest)
			return
		}
		target := c.Param("id")
		details := map[string]interface{}{"user_id": target, "plan": req.Plan, "expires_at": req.ExpiresAt}
		if err := plans.SetUserPlan(c.Request.Context(), db, adminID(c), target, req.Plan, req.ExpiresAt); err != nil {
			audit(c, db, "set_plan", details, false)
			respondError(c, err)
			return
		}
		audit(c, db, "set_plan", details, true)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// AdminAdjustBalance credits or debits either wallet with a ledger entry.
func AdminAdjustBalance(db *sqlx.DB, rdb *redis.Client, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Wallet string          `json:"wallet"`
			Amount decimal.Decimal `json:"amount"`
			Reason string          `json:"reason"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, errBadRequest)
			return
		}
		ctx := c.Request.Context()
		target := c.Param("id")
		details := map[string]interface{}{"user_id": target, "wallet": req.Wallet, "amount": req.Amount.String(), "reason": req.Reason}
		entry, err := admin.AdjustBalance(ctx, db, cfg.Policy(), adminID(c), admin.Adjustment{
			UserID: target,
			Wallet: req.Wallet,
			Amount: req.Amount,
			Reason: req.Reason,
		})
		if err != nil {
			audit(c, db, "adjust_balance", details, false)
			respondError(c, err)
			return
		}
		audit(c, db, "adjust_balance", details, true)
		notify.WalletChanged(ctx, rdb, target, gin.H{entry.Wallet + "_balance": entry.BalanceAfter})
		c.JSON(http.StatusOK, entry)
	}
}
