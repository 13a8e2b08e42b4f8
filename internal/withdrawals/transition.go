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
	"github.com/playearn/backend/internal/admin"
	"github.com/playearn/backend/internal/models"
	"github.com/playearn/backend/internal/wallet"
)

// allowed admin moves; editing is entered and left only through edit requests
var transitions = map[string][]string{
	StatusPending:    {StatusProcessing, StatusApproved, StatusCompleted, StatusRejected},
	StatusProcessing: {StatusApproved, StatusCompleted, StatusRejected},
	StatusApproved:   {StatusCompleted},
}

// ValidStatus reports whether s is a known withdrawal status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusProcessing, StatusEditing, StatusApproved, StatusCompleted, StatusRejected:
		return true
	}
	return false
}

// CanTransition reports whether an admin may move a withdrawal from one status to another.
func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TransitionRequest is an admin status change.
type TransitionRequest struct {
	AdminID      string
	WithdrawalID int64
	Status       string
	Notes        string
}

// Transition applies an admin status change. Rejecting refunds the amount to
// earnings and the fee to funding in the same transaction; the row lock plus
// the status check guarantee the refund happens at most once.
func Transition(ctx context.Context, db *sqlx.DB, req TransitionRequest, now time.Time) (*models.Withdrawal, error) {
	target := strings.ToLower(strings.TrimSpace(req.Status))
	if !ValidStatus(target) {
		return nil, ErrInvalidStatus
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := admin.RequireAdmin(ctx, tx, req.AdminID); err != nil {
		return nil, err
	}

	w, err := lockWithdrawal(ctx, tx, req.WithdrawalID)
	if err != nil {
		return nil, err
	}

	switch {
	case w.Status == StatusRejected && target == StatusRejected:
		return nil, ErrAlreadyRejected
	case w.Status == StatusRejected || w.Status == StatusCompleted:
		return nil, ErrFinalized.WithMessagef("withdrawal is already %s", w.Status)
	case w.Status == target:
		return nil, ErrInvalidTransition.WithMessagef("withdrawal is already %s", w.Status)
	case w.Status == StatusEditing:
		return nil, ErrInvalidTransition.WithMessage("resolve the pending edit request first")
	case !CanTransition(w.Status, target):
		return nil, ErrInvalidTransition.WithMessagef("cannot move withdrawal from %s to %s", w.Status, target)
	}

	if target == StatusRejected {
		if err := refund(ctx, tx, w); err != nil {
			return nil, err
		}
	}

	final := target == StatusApproved || target == StatusCompleted || target == StatusRejected
	var updated models.Withdrawal
	err = tx.QueryRowxContext(ctx, `
		UPDATE withdrawals SET
			status = $2,
			notes = COALESCE(NULLIF($3, ''), notes),
			processed_by = CASE WHEN $4::boolean THEN $5 ELSE processed_by END,
			processed_at = CASE WHEN $4::boolean THEN $6 ELSE processed_at END,
			refunded_at = CASE WHEN $2 = 'rejected' THEN $6 ELSE refunded_at END,
			updated_at = $6
		WHERE id = $1
		RETURNING `+models.WithdrawalColumns,
		w.ID, target, strings.TrimSpace(req.Notes), final, req.AdminID, now).StructScan(&updated)
	if err != nil {
		return nil, fmt.Errorf("update withdrawal: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Printf("[WITHDRAW] Withdrawal %d %s -> %s by admin %s", w.ID, w.Status, target, req.AdminID)
	return &updated, nil
}

func refund(ctx context.Context, tx *sqlx.Tx, w *models.Withdrawal) error {
	ref := Reference(w.ID)
	if _, err := wallet.Apply(ctx, tx, wallet.Mutation{
		UserID:      w.UserID,
		Wallet:      wallet.Earnings,
		Amount:      w.Amount,
		Type:        wallet.TypeWithdrawalRefund,
		Description: "Withdrawal rejected, amount refunded",
		Reference:   ref,
	}); err != nil {
		return fmt.Errorf("refund amount: %w", err)
	}
	if w.Fee.IsPositive() {
		if _, err := wallet.Apply(ctx, tx, wallet.Mutation{
			UserID:      w.UserID,
			Wallet:      wallet.Funding,
			Amount:      w.Fee,
			Type:        wallet.TypeWithdrawalRefund,
			Description: "Withdrawal rejected, fee refunded",
			Reference:   ref,
		}); err != nil {
			return fmt.Errorf("refund fee: %w", err)
		}
	}
	return nil
}

func lockWithdrawal(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Withdrawal, error) {
	var w models.Withdrawal
	err := tx.GetContext(ctx, &w, `SELECT `+models.WithdrawalColumns+` FROM withdrawals WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// UpdateDetails lets an admin correct the bank details of a withdrawal that
// has not been paid out yet.
func UpdateDetails(ctx context.Context, db *sqlx.DB, adminID string, id int64, details BankDetails) (*models.Withdrawal, error) {
	bank := details.Normalize()
	if err := bank.Validate(); err != nil {
		return nil, err
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := admin.RequireAdmin(ctx, tx, adminID); err != nil {
		return nil, err
	}
	w, err := lockWithdrawal(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	switch w.Status {
	case StatusPending, StatusProcessing:
	case StatusEditing:
		return nil, ErrEditRequestPending
	default:
		return nil, ErrFinalized.WithMessagef("withdrawal is already %s", w.Status)
	}

	var updated models.Withdrawal
	err = tx.QueryRowxContext(ctx, `
		UPDATE withdrawals SET bank_name = $2, bank_code = $3, account_number = $4, account_name = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING `+models.WithdrawalColumns,
		id, bank.BankName, bank.BankCode, bank.AccountNumber, bank.AccountName).StructScan(&updated)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Printf("[WITHDRAW] Admin %s updated bank details of withdrawal %d", adminID, id)
	return &updated, nil
}
