package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/playearn/backend/internal/admin"
)

// AdminListDeposits lists deposits across users.
func AdminListDeposits(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := paging(c, 25, 200)
		rows, total, err := admin.ListDeposits(c.Request.Context(), db, c.Query("status"), limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deposits": rows, "total": total, "limit": limit, "offset": offset})
	}
}

// AdminListTransactions lists ledger entries filtered by user, wallet and type.
func AdminListTransactions(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := paging(c, 50, 500)
		f := admin.TransactionFilter{UserID: c.Query("user_id"), Wallet: c.Query("wallet"), Type: c.Query("type")}
		rows, total, err := admin.ListTransactions(c.Request.Context(), db, f, limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"transactions": rows, "total": total, "limit": limit, "offset": offset})
	}
}

// AdminStats returns dashboard totals. since defaults to the last 24 hours.
func AdminStats(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		since := time.Now().Add(-24 * time.Hour)
		if s := c.Query("since"); s != "" {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				respondError(c, errBadRequest.WithMessage("since must be RFC3339"))
				return
			}
			since = t
		}
		stats, err := admin.GetStats(c.Request.Context(), db, since)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}
