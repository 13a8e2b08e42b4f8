package handlers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/playearn/backend/internal/models"
	"github.com/playearn/backend/internal/notify"
	"github.com/playearn/backend/internal/sms"
	"github.com/playearn/backend/internal/withdrawals"
	"github.com/redis/go-redis/v9"
)

// AdminListWithdrawals lists withdrawals, optionally by status.
func AdminListWithdrawals(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := paging(c, 25, 200)
		list, total, err := withdrawals.ListAll(c.Request.Context(), db, c.Query("status"), limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"withdrawals": list, "total": total, "limit": limit, "offset": offset})
	}
}

// AdminUpdateWithdrawalStatus moves a withdrawal through its lifecycle and
// tells the user about it.
func AdminUpdateWithdrawalStatus(db *sqlx.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var req struct {
			Status string `json:"status"`
			Notes  string `json:"notes"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, errBadRequest)
			return
		}
		details := map[string]interface{}{"withdrawal_id": id, "status": req.Status}

		ctx := c.Request.Context()
		w, err := withdrawals.Transition(ctx, db, withdrawals.TransitionRequest{
			AdminID:      adminID(c),
			WithdrawalID: id,
			Status:       req.Status,
			Notes:        req.Notes,
		}, time.Now())
		if err != nil {
			audit(c, db, "withdrawal_status", details, false)
			respondError(c, err)
			return
		}
		audit(c, db, "withdrawal_status", details, true)

		title, msg := withdrawalMessage(w)
		typ := notify.TypeWithdrawal
		if w.Status == withdrawals.StatusRejected {
			typ = notify.TypeWarning
		}
		notify.Notice(ctx, db, rdb, w.UserID, typ, title, msg)
		if w.Status == withdrawals.StatusRejected {
			notify.WalletChanged(ctx, rdb, w.UserID, gin.H{"withdrawal_id": w.ID})
		}
		sms.Notify(userPhone(ctx, db, w.UserID), msg)

		c.JSON(http.StatusOK, w)
	}
}

func withdrawalMessage(w *models.Withdrawal) (string, string) {
	amount := w.Amount.StringFixed(2)
	switch w.Status {
	case withdrawals.StatusCompleted:
		return "Withdrawal completed", fmt.Sprintf("Your withdrawal %s of N%s has been paid to %s.", withdrawals.Reference(w.ID), amount, w.BankName)
	case withdrawals.StatusRejected:
		return "Withdrawal rejected", fmt.Sprintf("Your withdrawal %s of N%s was rejected and refunded.", withdrawals.Reference(w.ID), amount)
	}
	return "Withdrawal update", fmt.Sprintf("Your withdrawal %s of N%s is now %s.", withdrawals.Reference(w.ID), amount, w.Status)
}

func userPhone(ctx context.Context, db *sqlx.DB, userID string) string {
	var phone string
	if err := db.GetContext(ctx, &phone, `SELECT phone FROM profiles WHERE id = $1`, userID); err != nil {
		log.Printf("[ADMIN] Phone lookup for %s failed: %v", userID, err)
		return ""
	}
	return phone
}

// AdminUpdateWithdrawalDetails corrects bank details on an open withdrawal.
func AdminUpdateWithdrawalDetails(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var bank withdrawals.BankDetails
		if err := c.ShouldBindJSON(&bank); err != nil {
			respondError(c, errBadRequest)
			return
		}
		details := map[string]interface{}{"withdrawal_id": id, "bank_code": bank.BankCode, "account_number": bank.AccountNumber}
		w, err := withdrawals.UpdateDetails(c.Request.Context(), db, adminID(c), id, bank)
		if err != nil {
			audit(c, db, "withdrawal_details", details, false)
			respondError(c, err)
			return
		}
		audit(c, db, "withdrawal_details", details, true)
		c.JSON(http.StatusOK, w)
	}
}

// AdminListEditRequests lists edit requests across users.
func AdminListEditRequests(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := paging(c, 25, 200)
		list, total, err := withdrawals.ListEditRequests(c.Request.Context(), db, "", c.DefaultQuery("status", "pending"), limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"edit_requests": list, "total": total, "limit": limit, "offset": offset})
	}
}

// AdminProcessEditRequest approves or rejects a pending edit request.
func AdminProcessEditRequest(db *sqlx.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var req struct {
			Approve bool   `json:"approve"`
			Notes   string `json:"notes"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, errBadRequest)
			return
		}
		details := map[string]interface{}{"request_id": id, "approve": req.Approve}

		ctx := c.Request.Context()
		er, err := withdrawals.ProcessEditRequest(ctx, db, withdrawals.ReviewRequest{
			AdminID:   adminID(c),
			RequestID: id,
			Approve:   req.Approve,
			Notes:     req.Notes,
		}, time.Now())
		if err != nil {
			audit(c, db, "process_edit_request", details, false)
			respondError(c, err)
			return
		}
		audit(c, db, "process_edit_request", details, true)

		if req.Approve {
			notify.Notice(ctx, db, rdb, er.UserID, notify.TypeSuccess, "Bank details updated",
				fmt.Sprintf("Your new bank details for %s were approved.", withdrawals.Reference(er.WithdrawalID)))
		} else {
			notify.Notice(ctx, db, rdb, er.UserID, notify.TypeWarning, "Bank details change rejected",
				fmt.Sprintf("Your bank details change for %s was not approved.", withdrawals.Reference(er.WithdrawalID)))
		}
		c.JSON(http.StatusOK, er)
	}
}
