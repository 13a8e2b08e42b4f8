package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/playearn/backend/internal/config"
	"github.com/playearn/backend/internal/gameplay"
	"github.com/playearn/backend/internal/notify"
	"github.com/redis/go-redis/v9"
)

// StartGame opens a play session if today's limit allows it.
func StartGame(db *sqlx.DB, rdb *redis.Client, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ttl := time.Duration(cfg.GameSessionTTLMinutes) * time.Minute
		s, err := gameplay.StartPlay(c.Request.Context(), db, rdb, cfg.Policy().GamePointValue, ttl, userID(c), c.Param("type"), time.Now())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, s)
	}
}

// FinishGame submits a score and credits the capped earning.
func FinishGame(db *sqlx.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Score int64 `json:"score"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, errBadRequest)
			return
		}
		ctx := c.Request.Context()
		uid := userID(c)
		res, err := gameplay.FinishPlay(ctx, db, rdb, uid, c.Param("token"), req.Score)
		if err != nil {
			respondError(c, err)
			return
		}
		if res.Earned.IsPositive() {
			notify.WalletChanged(ctx, rdb, uid, gin.H{"earnings_balance": res.EarningsBalance})
		}
		c.JSON(http.StatusOK, res)
	}
}

// PlaysToday returns today's per-game play counts.
func PlaysToday(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := gameplay.PlaysToday(c.Request.Context(), db, userID(c), time.Now())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, s)
	}
}
