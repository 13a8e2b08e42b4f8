package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/playearn/backend/internal/errs"
	"github.com/playearn/backend/internal/models"
	"github.com/playearn/backend/internal/wallet"
	"github.com/shopspring/decimal"
)

var (
	ErrDepositTooSmall     = errs.Validation("deposit_too_small", "deposit amount is below the minimum")
	ErrReferenceRequired   = errs.Validation("reference_required", "transaction reference is required")
	ErrPaymentNotConfirmed = errs.External("payment_not_confirmed", "payment could not be confirmed")
	ErrProviderUnavailable = errs.External("provider_unavailable", "payment provider is unavailable, please try again")
	ErrCurrencyMismatch    = errs.Validation("currency_mismatch", "only NGN payments are accepted")
	ErrReferenceOwner      = errs.Authorization("reference_owner_mismatch", "this payment belongs to another account")
	ErrWrongPurpose        = errs.Validation("wrong_payment_purpose", "this payment was made for a different purpose")
	ErrReferenceUsed       = errs.BusinessRule("reference_already_used", "this payment reference has already been used")
)

// LockReference serializes every settlement of one provider reference for the
// rest of tx, whichever table it ends up in.
func LockReference(ctx context.Context, tx *sqlx.Tx, reference string) error {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, reference); err != nil {
		return fmt.Errorf("lock reference: %w", err)
	}
	return nil
}

// Settlement is the outcome of crediting a verified deposit.
type Settlement struct {
	DepositID       int64           `json:"deposit_id,omitempty"`
	Reference       string          `json:"reference"`
	Amount          decimal.Decimal `json:"amount"`
	AlreadyCredited bool            `json:"already_credited"`
	FundingBalance  decimal.Decimal `json:"funding_balance"`
}

// NewReference returns a fresh checkout reference.
func NewReference(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// InitializeDeposit records a pending deposit the checkout widget can complete.
func InitializeDeposit(ctx context.Context, db *sqlx.DB, minAmount decimal.Decimal, userID string, amount decimal.Decimal) (*models.Deposit, error) {
	if amount.LessThan(minAmount) {
		return nil, ErrDepositTooSmall.WithMessagef("minimum deposit is ₦%s", minAmount.StringFixed(0))
	}

	var d models.Deposit
	err := db.QueryRowxContext(ctx, `
		INSERT INTO deposits (user_id, transaction_reference, amount, status, created_at)
		VALUES ($1, $2, $3, 'pending', NOW())
		RETURNING `+models.DepositColumns,
		userID, NewReference("DEP"), amount).StructScan(&d)
	if err != nil {
		return nil, err
	}
	log.Printf("[PAYMENT] Deposit initialized: user=%s ref=%s amount=%s", userID, d.TransactionReference, amount.StringFixed(2))
	return &d, nil
}

// VerifyDeposit re-confirms reference with the provider and credits the funding
// wallet at most once per reference.
func VerifyDeposit(ctx context.Context, db *sqlx.DB, v Verifier, userID, reference string) (*Settlement, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, ErrReferenceRequired
	}
	if v == nil {
		return nil, ErrProviderUnavailable
	}

	ver, err := v.Verify(ctx, reference)
	if err != nil {
		log.Printf("[PAYMENT] Verify %s failed: %v", reference, err)
		return nil, ErrProviderUnavailable
	}
	if !ver.Succeeded() {
		msg := ver.GatewayResponse
		if msg == "" {
			msg = ver.Message
		}
		if msg == "" {
			msg = "payment status: " + ver.Status
		}
		return nil, ErrPaymentNotConfirmed.WithMessage(msg)
	}
	if ver.UserID != "" && ver.UserID != userID {
		return nil, ErrReferenceOwner
	}
	if ver.Purpose == PurposeEditFee {
		return nil, ErrWrongPurpose
	}
	if ver.Reference == "" {
		ver.Reference = reference
	}

	return Settle(ctx, db, userID, ver)
}

// Settle records a successful verification and credits the funding wallet when
// this call is the one that moved the deposit into success. Webhook, reconciler
// and user-triggered verification all converge here.
func Settle(ctx context.Context, db *sqlx.DB, userID string, ver *Verification) (*Settlement, error) {
	if ver.Currency != "" && ver.Currency != "NGN" {
		return nil, ErrCurrencyMismatch
	}
	if !ver.Amount.IsPositive() {
		return nil, ErrPaymentNotConfirmed.WithMessage("payment amount is zero")
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := LockReference(ctx, tx, ver.Reference); err != nil {
		return nil, err
	}
	var spent bool
	if err := tx.GetContext(ctx, &spent, `SELECT EXISTS (SELECT 1 FROM withdrawal_edit_requests WHERE fee_reference = $1)`, ver.Reference); err != nil {
		return nil, err
	}
	if spent {
		log.Printf("[PAYMENT] ⚠️ Reference %s already paid an edit fee, refusing deposit for user %s", ver.Reference, userID)
		return nil, ErrReferenceUsed
	}

	var depositID int64
	err = tx.QueryRowxContext(ctx, `
		INSERT INTO deposits (user_id, transaction_reference, amount, status, provider_status, gateway_response, verified_at, created_at)
		VALUES ($1, $2, $3, 'success', $4, $5, NOW(), NOW())
		ON CONFLICT (transaction_reference) DO UPDATE SET
			status = 'success',
			amount = EXCLUDED.amount,
			provider_status = EXCLUDED.provider_status,
			gateway_response = EXCLUDED.gateway_response,
			verified_at = NOW()
		WHERE deposits.status <> 'success' AND deposits.user_id = EXCLUDED.user_id
		RETURNING id`,
		userID, ver.Reference, ver.Amount, ver.Status, ver.GatewayResponse).Scan(&depositID)
	if errors.Is(err, sql.ErrNoRows) {
		var owner string
		if err := tx.GetContext(ctx, &owner, `SELECT user_id FROM deposits WHERE transaction_reference = $1`, ver.Reference); err != nil {
			return nil, err
		}
		if owner != userID {
			log.Printf("[PAYMENT] ⚠️ Reference %s belongs to user %s, not %s", ver.Reference, owner, userID)
			return nil, ErrReferenceOwner
		}
		b, berr := wallet.GetBalances(ctx, tx, userID)
		if berr != nil {
			return nil, berr
		}
		log.Printf("[PAYMENT] Deposit %s for user %s already credited, skipping", ver.Reference, userID)
		return &Settlement{Reference: ver.Reference, Amount: ver.Amount, AlreadyCredited: true, FundingBalance: b.Funding}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("upsert deposit: %w", err)
	}

	entry, err := wallet.Apply(ctx, tx, wallet.Mutation{
		UserID:      userID,
		Wallet:      wallet.Funding,
		Amount:      ver.Amount,
		Type:        wallet.TypeDeposit,
		Description: "Wallet funding",
		Reference:   ver.Reference,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Printf("[PAYMENT] ✓ Deposit credited: user=%s ref=%s amount=%s", userID, ver.Reference, ver.Amount.StringFixed(2))
	return &Settlement{
		DepositID:      depositID,
		Reference:      ver.Reference,
		Amount:         ver.Amount,
		FundingBalance: entry.BalanceAfter,
	}, nil
}

// MarkFailed flips a still-pending deposit to failed.
func MarkFailed(ctx context.Context, db *sqlx.DB, reference, providerStatus, gatewayResponse string) error {
	res, err := db.ExecContext(ctx, `
		UPDATE deposits SET status = 'failed', provider_status = $2, gateway_response = $3
		WHERE transaction_reference = $1 AND status = 'pending'`,
		reference, providerStatus, gatewayResponse)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		log.Printf("[PAYMENT] Deposit %s marked failed (%s)", reference, providerStatus)
	}
	return nil
}

// ListDeposits returns a user's deposits newest first.
func ListDeposits(ctx context.Context, db *sqlx.DB, userID string, limit, offset int) ([]models.Deposit, error) {
	deposits := []models.Deposit{}
	err := db.SelectContext(ctx, &deposits, `
		SELECT `+models.DepositColumns+`
		FROM deposits
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	return deposits, err
}
