package withdrawals

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/playearn/backend/internal/admin"
	"github.com/playearn/backend/internal/config"
	"github.com/playearn/backend/internal/models"
	"github.com/playearn/backend/internal/payment"
)

// edit request statuses
const (
	EditPending  = "pending"
	EditApproved = "approved"
	EditRejected = "rejected"
)

const onePendingIndex = "uq_edit_requests_one_pending"

// EditRequestInput proposes new bank details, paid for by a provider payment.
type EditRequestInput struct {
	BankDetails
	PaymentReference string `json:"payment_reference"`
}

// SubmitEditRequest records a paid request to change the bank details of a
// processing withdrawal and moves the withdrawal to editing. The fee payment
// is verified with the provider before any row is touched.
func SubmitEditRequest(ctx context.Context, db *sqlx.DB, v payment.Verifier, p config.Policy, userID string, withdrawalID int64, in EditRequestInput) (*models.WithdrawalEditRequest, error) {
	bank := in.BankDetails.Normalize()
	if err := bank.Validate(); err != nil {
		return nil, err
	}
	ref := strings.TrimSpace(in.PaymentReference)
	if ref == "" {
		return nil, payment.ErrReferenceRequired
	}
	if v == nil {
		return nil, payment.ErrProviderUnavailable
	}

	ver, err := v.Verify(ctx, ref)
	if err != nil {
		log.Printf("[WITHDRAW] Edit fee verification failed for %s: %v", ref, err)
		return nil, payment.ErrProviderUnavailable
	}
	if !ver.Succeeded() {
		msg := ver.GatewayResponse
		if msg == "" {
			msg = ver.Message
		}
		if msg == "" {
			return nil, ErrEditFeeNotPaid
		}
		return nil, ErrEditFeeNotPaid.WithMessage(msg)
	}
	// edit fees are only paid through the edit-fee checkout, which always tags both
	if ver.UserID != userID {
		return nil, payment.ErrReferenceOwner
	}
	if ver.Purpose != payment.PurposeEditFee {
		return nil, payment.ErrWrongPurpose
	}
	if ver.Amount.LessThan(p.EditRequestFee) {
		return nil, ErrEditFeeTooSmall.WithMessagef("edit fee is ₦%s", p.EditRequestFee.StringFixed(0))
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := payment.LockReference(ctx, tx, ref); err != nil {
		return nil, err
	}

	var w models.Withdrawal
	err = tx.GetContext(ctx, &w, `SELECT `+models.WithdrawalColumns+` FROM withdrawals WHERE id = $1 AND user_id = $2 FOR UPDATE`, withdrawalID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if w.Status == StatusEditing {
		return nil, ErrEditRequestPending
	}
	if w.Status != StatusProcessing {
		return nil, ErrNotProcessing
	}

	var used bool
	err = tx.GetContext(ctx, &used, `
		SELECT EXISTS (SELECT 1 FROM withdrawal_edit_requests WHERE fee_reference = $1)
			OR EXISTS (SELECT 1 FROM deposits WHERE transaction_reference = $1)`, ref)
	if err != nil {
		return nil, err
	}
	if used {
		return nil, ErrEditFeeReused
	}

	var r models.WithdrawalEditRequest
	err = tx.QueryRowxContext(ctx, `
		INSERT INTO withdrawal_edit_requests (withdrawal_id, user_id, bank_name, bank_code, account_number, account_name,
			fee, fee_paid, fee_reference, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, $8, 'pending', NOW())
		RETURNING `+models.EditRequestColumns,
		w.ID, userID, bank.BankName, bank.BankCode, bank.AccountNumber, bank.AccountName, ver.Amount, ref).StructScan(&r)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			if pqErr.Constraint == onePendingIndex {
				return nil, ErrEditRequestPending
			}
			return nil, ErrEditFeeReused
		}
		return nil, fmt.Errorf("insert edit request: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE withdrawals SET status = 'editing', updated_at = NOW() WHERE id = $1`, w.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Printf("[WITHDRAW] Edit request %d submitted for withdrawal %d by user %s (fee ref %s)", r.ID, w.ID, userID, ref)
	return &r, nil
}

// ReviewRequest is an admin decision on an edit request.
type ReviewRequest struct {
	AdminID   string
	RequestID int64
	Approve   bool
	Notes     string
}

// ProcessEditRequest approves or rejects a pending edit request. Approval
// copies the proposed bank details onto the withdrawal; either way a
// withdrawal in editing returns to processing. The edit fee is not refunded.
func ProcessEditRequest(ctx context.Context, db *sqlx.DB, req ReviewRequest, now time.Time) (*models.WithdrawalEditRequest, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := admin.RequireAdmin(ctx, tx, req.AdminID); err != nil {
		return nil, err
	}

	// withdrawal first, then request: the same order SubmitEditRequest takes
	var withdrawalID int64
	err = tx.GetContext(ctx, &withdrawalID, `
		SELECT w.id FROM withdrawals w
		JOIN withdrawal_edit_requests r ON r.withdrawal_id = w.id
		WHERE r.id = $1
		FOR UPDATE OF w`, req.RequestID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEditRequestNotFound
	}
	if err != nil {
		return nil, err
	}

	var r models.WithdrawalEditRequest
	err = tx.GetContext(ctx, &r, `SELECT `+models.EditRequestColumns+` FROM withdrawal_edit_requests WHERE id = $1 FOR UPDATE`, req.RequestID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEditRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	if r.Status != EditPending {
		return nil, ErrEditRequestClosed
	}

	decision := EditRejected
	if req.Approve {
		decision = EditApproved
		_, err = tx.ExecContext(ctx, `
			UPDATE withdrawals SET bank_name = $2, bank_code = $3, account_number = $4, account_name = $5,
				status = CASE WHEN status = 'editing' THEN 'processing' ELSE status END,
				updated_at = $6
			WHERE id = $1`,
			withdrawalID, r.BankName, r.BankCode, r.AccountNumber, r.AccountName, now)
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE withdrawals SET status = CASE WHEN status = 'editing' THEN 'processing' ELSE status END, updated_at = $2
			WHERE id = $1`, withdrawalID, now)
	}
	if err != nil {
		return nil, fmt.Errorf("update withdrawal: %w", err)
	}

	var reviewed models.WithdrawalEditRequest
	err = tx.QueryRowxContext(ctx, `
		UPDATE withdrawal_edit_requests SET status = $2, reviewed_by = $3, reviewed_at = $4, review_notes = NULLIF($5, '')
		WHERE id = $1
		RETURNING `+models.EditRequestColumns,
		r.ID, decision, req.AdminID, now, strings.TrimSpace(req.Notes)).StructScan(&reviewed)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Printf("[WITHDRAW] Edit request %d %s by admin %s", r.ID, decision, req.AdminID)
	return &reviewed, nil
}
