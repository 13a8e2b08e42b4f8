package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/playearn/backend/internal/config"
	"github.com/playearn/backend/internal/notify"
	"github.com/playearn/backend/internal/plans"
	"github.com/redis/go-redis/v9"
)

// ListPlans returns the active plans.
func ListPlans(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := plans.List(c.Request.Context(), db)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"plans": list})
	}
}

// RenewPlan buys or extends a plan from the funding wallet.
func RenewPlan(db *sqlx.DB, rdb *redis.Client, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		uid := userID(c)
		r, err := plans.Renew(ctx, db, cfg.Policy().ReferralBonus, uid, c.Param("code"), time.Now())
		if err != nil {
			respondError(c, err)
			return
		}
		notify.WalletChanged(ctx, rdb, uid, gin.H{"funding_balance": r.FundingBalance})
		c.JSON(http.StatusOK, r)
	}
}

// ListReferrals returns who the user has referred.
func ListReferrals(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := plans.ListReferrals(c.Request.Context(), db, userID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"referrals": list})
	}
}
