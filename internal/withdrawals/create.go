// Package withdrawals owns the withdrawal lifecycle: creation, admin status
// transitions and bank-detail edit requests. Every balance change goes through
// wallet.Apply inside one transaction with the status change it belongs to.
package withdrawals

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/playearn/backend/internal/config"
	"github.com/playearn/backend/internal/errs"
	"github.com/playearn/backend/internal/models"
	"github.com/playearn/backend/internal/wallet"
	"github.com/shopspring/decimal"
)

// withdrawal statuses
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusEditing    = "editing"
	StatusApproved   = "approved"
	StatusCompleted  = "completed"
	StatusRejected   = "rejected"
)

// CreateRequest is the user's withdrawal request.
type CreateRequest struct {
	Amount decimal.Decimal `json:"amount"`
	BankDetails
}

// Reference is the ledger reference shared by every entry of one withdrawal.
func Reference(id int64) string {
	return fmt.Sprintf("WD-%d", id)
}

// Create debits the amount from earnings and the fee from funding, records a
// pending withdrawal and starts the user's cooldown, all or nothing. The
// profile row stays locked from the eligibility read to commit, so two
// concurrent requests cannot both pass the cooldown check.
func Create(ctx context.Context, db *sqlx.DB, p config.Policy, userID string, req CreateRequest, now time.Time) (*models.Withdrawal, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	s, err := LoadStanding(ctx, tx, userID, true)
	if err != nil {
		return nil, err
	}
	// banned first, then input, then plan and cooldown
	if s.IsBanned {
		return nil, errs.ErrUserBanned
	}
	bank := req.BankDetails.Normalize()
	if err := bank.Validate(); err != nil {
		return nil, err
	}
	amount := req.Amount.Round(2)
	if !amount.IsPositive() || amount.LessThan(p.MinWithdrawAmount) {
		return nil, ErrBelowMinimum.WithMessagef("minimum withdrawal is ₦%s", p.MinWithdrawAmount.StringFixed(0))
	}
	fee := FeeFor(p, amount)
	if err := Eligibility(*s, now); err != nil {
		return nil, err
	}
	if s.EarningsBalance.LessThan(amount) {
		return nil, ErrInsufficientEarnings
	}
	if s.FundingBalance.LessThan(fee) {
		return nil, ErrInsufficientFundingForFee
	}

	var w models.Withdrawal
	err = tx.QueryRowxContext(ctx, `
		INSERT INTO withdrawals (user_id, amount, fee, bank_name, bank_code, account_number, account_name, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending', $8, $8)
		RETURNING `+models.WithdrawalColumns,
		userID, amount, fee, bank.BankName, bank.BankCode, bank.AccountNumber, bank.AccountName, now).StructScan(&w)
	if err != nil {
		return nil, fmt.Errorf("insert withdrawal: %w", err)
	}

	ref := Reference(w.ID)
	if _, err := wallet.Apply(ctx, tx, wallet.Mutation{
		UserID:      userID,
		Wallet:      wallet.Earnings,
		Amount:      amount.Neg(),
		Type:        wallet.TypeWithdrawal,
		Description: fmt.Sprintf("Withdrawal to %s %s", bank.BankName, bank.AccountNumber),
		Reference:   ref,
	}); err != nil {
		return nil, err
	}
	if fee.IsPositive() {
		if _, err := wallet.Apply(ctx, tx, wallet.Mutation{
			UserID:      userID,
			Wallet:      wallet.Funding,
			Amount:      fee.Neg(),
			Type:        wallet.TypeWithdrawalFee,
			Description: "Withdrawal fee",
			Reference:   ref,
		}); err != nil {
			return nil, err
		}
	}

	next := now.Add(Cooldown(p, *s))
	if err := UpdateNextWithdrawalTime(ctx, tx, userID, &next); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Printf("[WITHDRAW] Created withdrawal %d user=%s amount=%s fee=%s next_withdraw_at=%s",
		w.ID, userID, amount.StringFixed(2), fee.StringFixed(2), next.Format(time.RFC3339))
	return &w, nil
}
