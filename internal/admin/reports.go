package admin

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/playearn/backend/internal/models"
	"github.com/shopspring/decimal"
)

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// DepositRow is a deposit with its owner's email.
type DepositRow struct {
	models.Deposit
	UserEmail  string `db:"user_email" json:"user_email"`
	TotalCount int    `db:"total_count" json:"-"`
}

// ListDeposits returns deposits newest first, optionally filtered by status.
func ListDeposits(ctx context.Context, db *sqlx.DB, status string, limit, offset int) ([]DepositRow, int, error) {
	rows := []DepositRow{}
	err := db.SelectContext(ctx, &rows, `
		SELECT d.id, d.user_id, d.transaction_reference, d.amount, d.status, d.provider_status,
			d.gateway_response, d.verified_at, d.created_at, p.email AS user_email,
			COUNT(*) OVER() AS total_count
		FROM deposits d
		JOIN profiles p ON p.id = d.user_id
		WHERE ($1 = '' OR d.status = $1)
		ORDER BY d.created_at DESC, d.id DESC
		LIMIT $2 OFFSET $3
	`, status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total := 0
	if len(rows) > 0 {
		total = rows[0].TotalCount
	}
	return rows, total, nil
}

// TransactionFilter narrows the ledger listing. Empty fields match everything.
type TransactionFilter struct {
	UserID string
	Wallet string
	Type   string
}

// TransactionRow is a ledger entry with its owner's email.
type TransactionRow struct {
	models.LedgerEntry
	UserEmail  string `db:"user_email" json:"user_email"`
	TotalCount int    `db:"total_count" json:"-"`
}

// ListTransactions returns ledger entries across users, newest first.
func ListTransactions(ctx context.Context, db *sqlx.DB, f TransactionFilter, limit, offset int) ([]TransactionRow, int, error) {
	rows := []TransactionRow{}
	err := db.SelectContext(ctx, &rows, `
		SELECT t.id, t.user_id, t.wallet, t.type, t.amount, t.balance_after, t.description, t.reference, t.created_at,
			p.email AS user_email, COUNT(*) OVER() AS total_count
		FROM transactions t
		JOIN profiles p ON p.id = t.user_id
		WHERE ($1 = '' OR t.user_id::text = $1)
			AND ($2 = '' OR t.wallet = $2)
			AND ($3 = '' OR t.type = $3)
		ORDER BY t.created_at DESC, t.id DESC
		LIMIT $4 OFFSET $5
	`, f.UserID, f.Wallet, f.Type, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total := 0
	if len(rows) > 0 {
		total = rows[0].TotalCount
	}
	return rows, total, nil
}

// Stats is the dashboard summary.
type Stats struct {
	Users                int             `db:"users" json:"users"`
	BannedUsers          int             `db:"banned_users" json:"banned_users"`
	PaidUsers            int             `db:"paid_users" json:"paid_users"`
	TotalFunding         decimal.Decimal `db:"total_funding" json:"total_funding"`
	TotalEarnings        decimal.Decimal `db:"total_earnings" json:"total_earnings"`
	PendingWithdrawals   int             `db:"pending_withdrawals" json:"pending_withdrawals"`
	PendingWithdrawalSum decimal.Decimal `db:"pending_withdrawal_sum" json:"pending_withdrawal_sum"`
	PendingEditRequests  int             `db:"pending_edit_requests" json:"pending_edit_requests"`
	DepositsToday        int             `db:"deposits_today" json:"deposits_today"`
	DepositsTodaySum     decimal.Decimal `db:"deposits_today_sum" json:"deposits_today_sum"`
}

// GetStats aggregates the dashboard numbers. since marks the start of "today".
func GetStats(ctx context.Context, db *sqlx.DB, since time.Time) (*Stats, error) {
	var s Stats
	err := db.GetContext(ctx, &s, `
		SELECT
			(SELECT COUNT(*) FROM profiles) AS users,
			(SELECT COUNT(*) FROM profiles WHERE is_banned) AS banned_users,
			(SELECT COUNT(*) FROM profiles WHERE current_plan <> 'free_trial') AS paid_users,
			(SELECT COALESCE(SUM(funding_balance), 0) FROM profiles) AS total_funding,
			(SELECT COALESCE(SUM(earnings_balance), 0) FROM profiles) AS total_earnings,
			(SELECT COUNT(*) FROM withdrawals WHERE status IN ('pending', 'processing', 'editing')) AS pending_withdrawals,
			(SELECT COALESCE(SUM(amount), 0) FROM withdrawals WHERE status IN ('pending', 'processing', 'editing')) AS pending_withdrawal_sum,
			(SELECT COUNT(*) FROM withdrawal_edit_requests WHERE status = 'pending') AS pending_edit_requests,
			(SELECT COUNT(*) FROM deposits WHERE status = 'success' AND verified_at >= $1) AS deposits_today,
			(SELECT COALESCE(SUM(amount), 0) FROM deposits WHERE status = 'success' AND verified_at >= $1) AS deposits_today_sum
	`, since)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
