// Package wallet is the only write path for profile balances. Every mutation is a
// single-statement increment plus one ledger row, inside the caller's transaction.
package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/playearn/backend/internal/errs"
	"github.com/playearn/backend/internal/models"
	"github.com/shopspring/decimal"
)

// wallets
const (
	Funding  = "funding"
	Earnings = "earnings"
)

// ledger entry types
const (
	TypeDeposit          = "deposit"
	TypeWithdrawal       = "withdrawal"
	TypeWithdrawalFee    = "withdrawal_fee"
	TypeWithdrawalRefund = "withdrawal_refund"
	TypeGameEarning      = "game_earning"
	TypePlanPurchase     = "plan_purchase"
	TypeReferralBonus    = "referral_bonus"
	TypePurchase         = "purchase"
	TypeAdminAdjustment  = "admin_adjustment"
)

var (
	ErrInvalidWallet       = errs.Validation("invalid_wallet", "wallet must be funding or earnings")
	ErrZeroAmount          = errs.Validation("invalid_amount", "amount must not be zero")
	ErrInsufficientBalance = errs.BusinessRule("insufficient_balance", "insufficient balance")
	ErrProfileNotFound     = errs.NotFound("profile_not_found", "user not found")
)

// Mutation describes one signed change to one wallet.
type Mutation struct {
	UserID      string
	Wallet      string
	Amount      decimal.Decimal
	Type        string
	Description string
	Reference   string
	// AllowNegative skips the floor check. Only the admin adjustment path sets it.
	AllowNegative bool
}

// Balances is a snapshot of both wallets.
type Balances struct {
	Funding  decimal.Decimal `db:"funding_balance" json:"funding_balance"`
	Earnings decimal.Decimal `db:"earnings_balance" json:"earnings_balance"`
}

func column(w string) (string, error) {
	switch w {
	case Funding:
		return "funding_balance", nil
	case Earnings:
		return "earnings_balance", nil
	}
	return "", ErrInvalidWallet
}

// Apply adds m.Amount to the selected wallet and appends the matching ledger row.
// The UPDATE takes the profile row lock, so concurrent callers serialize and no
// credit is lost. A debit that would cross zero matches no row and fails with
// ErrInsufficientBalance.
func Apply(ctx context.Context, tx *sqlx.Tx, m Mutation) (*models.LedgerEntry, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx is nil")
	}
	col, err := column(m.Wallet)
	if err != nil {
		return nil, err
	}
	if m.Amount.IsZero() {
		return nil, ErrZeroAmount
	}

	query := fmt.Sprintf(`UPDATE profiles SET %[1]s = %[1]s + $1, updated_at = NOW()
		WHERE id = $2 AND (%[1]s + $1 >= 0 OR $3::boolean)
		RETURNING %[1]s`, col)

	var balance decimal.Decimal
	err = tx.QueryRowxContext(ctx, query, m.Amount, m.UserID, m.AllowNegative).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM profiles WHERE id = $1)`, m.UserID); err != nil {
			return nil, err
		}
		if !exists {
			return nil, ErrProfileNotFound
		}
		return nil, ErrInsufficientBalance.WithMessagef("insufficient %s balance", m.Wallet)
	}
	if err != nil {
		return nil, err
	}

	var entry models.LedgerEntry
	err = tx.QueryRowxContext(ctx, `
		INSERT INTO transactions (user_id, wallet, type, amount, balance_after, description, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING `+models.LedgerColumns,
		m.UserID, m.Wallet, m.Type, m.Amount, balance, m.Description, m.Reference).StructScan(&entry)
	if err != nil {
		return nil, err
	}

	log.Printf("[WALLET] %s %s user=%s amount=%s balance_after=%s ref=%s", m.Type, m.Wallet, m.UserID, m.Amount.StringFixed(2), balance.StringFixed(2), m.Reference)
	return &entry, nil
}

// UpdateBalance runs a single mutation in its own transaction.
func UpdateBalance(ctx context.Context, db *sqlx.DB, m Mutation) (*models.LedgerEntry, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	entry, err := Apply(ctx, tx, m)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return entry, nil
}

// GetBalances reads the cached balances of a user.
func GetBalances(ctx context.Context, q sqlx.QueryerContext, userID string) (*Balances, error) {
	var b Balances
	err := sqlx.GetContext(ctx, q, &b, `SELECT funding_balance, earnings_balance FROM profiles WHERE id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// History lists ledger entries newest first. An empty wallet lists both.
func History(ctx context.Context, db *sqlx.DB, userID, walletName string, limit, offset int) ([]models.LedgerEntry, int, error) {
	if walletName != "" {
		if _, err := column(walletName); err != nil {
			return nil, 0, err
		}
	}

	type row struct {
		models.LedgerEntry
		TotalCount int `db:"total_count"`
	}
	var rows []row
	err := db.SelectContext(ctx, &rows, `
		SELECT `+models.LedgerColumns+`, COUNT(*) OVER() AS total_count
		FROM transactions
		WHERE user_id = $1 AND ($2 = '' OR wallet = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4`, userID, walletName, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	entries := make([]models.LedgerEntry, 0, len(rows))
	total := 0
	for _, r := range rows {
		entries = append(entries, r.LedgerEntry)
		total = r.TotalCount
	}
	return entries, total, nil
}
