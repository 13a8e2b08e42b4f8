package admin

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/playearn/backend/internal/config"
	"github.com/playearn/backend/internal/errs"
	"github.com/playearn/backend/internal/models"
	"github.com/playearn/backend/internal/wallet"
	"github.com/shopspring/decimal"
)

var (
	ErrReasonRequired = errs.Validation("reason_required", "a reason is required")
	ErrSelfBan        = errs.Validation("cannot_ban_self", "admins cannot ban their own account")
)

// BanUser sets or clears a user's ban.
func BanUser(ctx context.Context, db *sqlx.DB, adminID, userID string, banned bool, reason string) (*models.Profile, error) {
	reason = strings.TrimSpace(reason)
	if banned && reason == "" {
		return nil, ErrReasonRequired
	}
	if banned && adminID == userID {
		return nil, ErrSelfBan
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := RequireAdmin(ctx, tx, adminID); err != nil {
		return nil, err
	}

	var banReason *string
	if banned {
		banReason = &reason
	}
	var p models.Profile
	err = tx.QueryRowxContext(ctx, `
		UPDATE profiles SET is_banned = $2, ban_reason = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING `+models.ProfileColumns, userID, banned, banReason).StructScan(&p)
	if err != nil {
		if isNoRows(err) {
			return nil, wallet.ErrProfileNotFound
		}
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Printf("[ADMIN] %s set banned=%v on user %s", adminID, banned, userID)
	return &p, nil
}

// Adjustment is a manual correction to one wallet.
type Adjustment struct {
	UserID string
	Wallet string
	Amount decimal.Decimal
	Reason string
}

// AdjustBalance applies a signed admin correction through the wallet primitive.
// Whether it may drive the balance below zero is the policy's AdminAllowNegative.
func AdjustBalance(ctx context.Context, db *sqlx.DB, p config.Policy, adminID string, adj Adjustment) (*models.LedgerEntry, error) {
	adj.Reason = strings.TrimSpace(adj.Reason)
	if adj.Reason == "" {
		return nil, ErrReasonRequired
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := RequireAdmin(ctx, tx, adminID); err != nil {
		return nil, err
	}
	entry, err := wallet.Apply(ctx, tx, wallet.Mutation{
		UserID:        adj.UserID,
		Wallet:        adj.Wallet,
		Amount:        adj.Amount.Round(2),
		Type:          wallet.TypeAdminAdjustment,
		Description:   adj.Reason,
		Reference:     fmt.Sprintf("ADJ-%d", time.Now().Unix()),
		AllowNegative: p.AdminAllowNegative,
	})
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return entry, nil
}

// UserRow is one line of the admin user search.
type UserRow struct {
	ID              string          `db:"id" json:"id"`
	Email           string          `db:"email" json:"email"`
	FullName        string          `db:"full_name" json:"full_name"`
	Phone           string          `db:"phone" json:"phone"`
	FundingBalance  decimal.Decimal `db:"funding_balance" json:"funding_balance"`
	EarningsBalance decimal.Decimal `db:"earnings_balance" json:"earnings_balance"`
	CurrentPlan     string          `db:"current_plan" json:"current_plan"`
	PlanExpiresAt   *time.Time      `db:"plan_expires_at" json:"plan_expires_at"`
	IsBanned        bool            `db:"is_banned" json:"is_banned"`
	BanReason       *string         `db:"ban_reason" json:"ban_reason"`
	IsAdmin         bool            `db:"is_admin" json:"is_admin"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	TotalCount      int             `db:"total_count" json:"-"`
}

// SearchUsers lists users matching q on email, name or phone. status is
// all, banned or active.
func SearchUsers(ctx context.Context, db *sqlx.DB, q, status string, limit, offset int) ([]UserRow, int, error) {
	rows := []UserRow{}
	err := db.SelectContext(ctx, &rows, `
		SELECT p.id, p.email, p.full_name, p.phone, p.funding_balance, p.earnings_balance,
			p.current_plan, p.plan_expires_at, p.is_banned, p.ban_reason,
			(a.user_id IS NOT NULL) AS is_admin, p.created_at,
			COUNT(*) OVER() AS total_count
		FROM profiles p
		LEFT JOIN admin_users a ON a.user_id = p.id
		WHERE ($1 = '' OR p.email ILIKE '%' || $1 || '%' OR p.full_name ILIKE '%' || $1 || '%' OR p.phone ILIKE '%' || $1 || '%')
			AND ($2 = 'all' OR ($2 = 'banned' AND p.is_banned) OR ($2 = 'active' AND NOT p.is_banned))
		ORDER BY p.created_at DESC
		LIMIT $3 OFFSET $4
	`, strings.TrimSpace(q), status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total := 0
	if len(rows) > 0 {
		total = rows[0].TotalCount
	}
	return rows, total, nil
}
