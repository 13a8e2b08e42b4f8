package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/playearn/backend/internal/config"
	"github.com/playearn/backend/internal/errs"
	"github.com/playearn/backend/internal/notify"
	"github.com/playearn/backend/internal/payment"
	"github.com/playearn/backend/internal/wallet"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// GetWallet returns both balances.
func GetWallet(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		b, err := wallet.GetBalances(c.Request.Context(), db, userID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, b)
	}
}

// GetTransactions returns the ledger, optionally for one wallet.
func GetTransactions(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := paging(c, 50, 200)
		entries, total, err := wallet.History(c.Request.Context(), db, userID(c), c.Query("wallet"), limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"transactions": entries, "total": total, "limit": limit, "offset": offset})
	}
}

// InitializeDeposit creates a pending deposit and returns what the checkout
// widget needs.
func InitializeDeposit(db *sqlx.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Amount decimal.Decimal `json:"amount"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, errBadRequest)
			return
		}
		d, err := payment.InitializeDeposit(c.Request.Context(), db, cfg.Policy().MinDepositAmount, userID(c), req.Amount.Round(2))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"deposit":     d,
			"reference":   d.TransactionReference,
			"amount_kobo": payment.NairaToKobo(d.Amount),
			"public_key":  cfg.PaystackPublicKey,
			"metadata":    gin.H{"user_id": d.UserID, "purpose": payment.PurposeDeposit},
		})
	}
}

// VerifyDeposit re-verifies a checkout reference and credits funding once.
func VerifyDeposit(db *sqlx.DB, rdb *redis.Client, v payment.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Reference string `json:"reference"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, errBadRequest)
			return
		}
		uid := userID(c)
		s, err := payment.VerifyDeposit(c.Request.Context(), db, v, uid, req.Reference)
		if err != nil {
			respondError(c, err)
			return
		}
		if !s.AlreadyCredited {
			notify.WalletChanged(c.Request.Context(), rdb, uid, gin.H{"funding_balance": s.FundingBalance})
		}
		c.JSON(http.StatusOK, s)
	}
}

// ListDeposits returns the user's deposits.
func ListDeposits(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := paging(c, 20, 100)
		deposits, err := payment.ListDeposits(c.Request.Context(), db, userID(c), limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deposits": deposits, "limit": limit, "offset": offset})
	}
}

var errBadSignature = errs.New(errs.KindUnauthenticated, "invalid_signature", "invalid webhook signature")
