package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/playearn/backend/internal/config"
	"github.com/playearn/backend/internal/notify"
	"github.com/playearn/backend/internal/payment"
	"github.com/playearn/backend/internal/withdrawals"
	"github.com/redis/go-redis/v9"
)

// WithdrawalEligibility reports whether the user may withdraw right now.
func WithdrawalEligibility(db *sqlx.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := withdrawals.CheckEligibility(c.Request.Context(), db, cfg.Policy(), userID(c), time.Now())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

// CreateWithdrawal debits earnings (amount) and funding (fee) and queues a
// pending withdrawal.
func CreateWithdrawal(db *sqlx.DB, rdb *redis.Client, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req withdrawals.CreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, errBadRequest)
			return
		}
		ctx := c.Request.Context()
		uid := userID(c)
		w, err := withdrawals.Create(ctx, db, cfg.Policy(), uid, req, time.Now())
		if err != nil {
			respondError(c, err)
			return
		}
		notify.WalletChanged(ctx, rdb, uid, gin.H{"withdrawal_id": w.ID})
		c.JSON(http.StatusCreated, w)
	}
}

// ListWithdrawals returns the user's withdrawals, newest first.
func ListWithdrawals(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := paging(c, 20, 100)
		list, total, err := withdrawals.ListForUser(c.Request.Context(), db, userID(c), limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"withdrawals": list, "total": total, "limit": limit, "offset": offset})
	}
}

// InitializeEditFee issues the checkout reference and metadata an edit-fee
// payment must carry.
func InitializeEditFee(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		fee := cfg.Policy().EditRequestFee
		c.JSON(http.StatusCreated, gin.H{
			"withdrawal_id": id,
			"reference":     payment.NewReference("EDIT"),
			"amount":        fee,
			"amount_kobo":   payment.NairaToKobo(fee),
			"public_key":    cfg.PaystackPublicKey,
			"metadata":      gin.H{"user_id": userID(c), "purpose": payment.PurposeEditFee},
		})
	}
}

// SubmitEditRequest asks for new bank details on a processing withdrawal.
func SubmitEditRequest(db *sqlx.DB, v payment.Verifier, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var in withdrawals.EditRequestInput
		if err := c.ShouldBindJSON(&in); err != nil {
			respondError(c, errBadRequest)
			return
		}
		req, err := withdrawals.SubmitEditRequest(c.Request.Context(), db, v, cfg.Policy(), userID(c), id, in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, req)
	}
}

// ListMyEditRequests returns the user's edit requests.
func ListMyEditRequests(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := paging(c, 20, 100)
		list, total, err := withdrawals.ListEditRequests(c.Request.Context(), db, userID(c), c.Query("status"), limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"edit_requests": list, "total": total})
	}
}
