package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/playearn/backend/internal/notify"
	"github.com/playearn/backend/internal/shop"
	"github.com/redis/go-redis/v9"
)

func ListStoreItems(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := shop.ListItems(c.Request.Context(), db)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

// PurchaseItem buys quantity units of an item with funding balance.
func PurchaseItem(db *sqlx.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		req := struct {
			Quantity int `json:"quantity"`
		}{Quantity: 1}
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, errBadRequest)
				return
			}
		}
		ctx := c.Request.Context()
		uid := userID(c)
		r, err := shop.Purchase(ctx, db, uid, id, req.Quantity)
		if err != nil {
			respondError(c, err)
			return
		}
		notify.WalletChanged(ctx, rdb, uid, gin.H{"funding_balance": r.FundingBalance})
		c.JSON(http.StatusCreated, r)
	}
}

func ListPurchases(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := shop.ListPurchases(c.Request.Context(), db, userID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"purchases": list})
	}
}
