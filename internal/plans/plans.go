// Package plans sells subscription tiers from the funding wallet and pays the
// one-time referral bonus on a referred user's first paid plan.
package plans

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/playearn/backend/internal/admin"
	"github.com/playearn/backend/internal/errs"
	"github.com/playearn/backend/internal/models"
	"github.com/playearn/backend/internal/wallet"
	"github.com/shopspring/decimal"
)

const FreeTrial = "free_trial"

var (
	ErrPlanNotFound        = errs.NotFound("plan_not_found", "plan not found")
	ErrPlanNotForSale      = errs.Validation("plan_not_for_sale", "this plan cannot be purchased")
	ErrInsufficientFunding = errs.BusinessRule("insufficient_funding", "insufficient funding balance for this plan")
)

// List returns the active plans in display order.
func List(ctx context.Context, db *sqlx.DB) ([]models.Plan, error) {
	plans := []models.Plan{}
	err := db.SelectContext(ctx, &plans, `SELECT `+models.PlanColumns+` FROM plans WHERE is_active ORDER BY sort_order, code`)
	return plans, err
}

// Get returns one plan by code.
func Get(ctx context.Context, q sqlx.QueryerContext, code string) (*models.Plan, error) {
	var p models.Plan
	err := sqlx.GetContext(ctx, q, &p, `SELECT `+models.PlanColumns+` FROM plans WHERE code = $1`, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Renewal is the outcome of a plan purchase.
type Renewal struct {
	Plan           models.Plan     `json:"plan"`
	ExpiresAt      time.Time       `json:"expires_at"`
	FundingBalance decimal.Decimal `json:"funding_balance"`
	ReferralPaid   bool            `json:"referral_paid"`
}

type renewalProfile struct {
	IsBanned      bool       `db:"is_banned"`
	CurrentPlan   string     `db:"current_plan"`
	PlanExpiresAt *time.Time `db:"plan_expires_at"`
}

// Expiry extends an unexpired subscription to the same plan, otherwise starts from now.
func Expiry(currentPlan string, currentExpiry *time.Time, newPlan string, durationDays int, now time.Time) time.Time {
	start := now
	if currentPlan == newPlan && currentExpiry != nil && currentExpiry.After(now) {
		start = *currentExpiry
	}
	return start.AddDate(0, 0, durationDays)
}

// Renew charges the plan price to funding, switches the user to the plan and,
// on a referred user's first paid plan, credits the referrer's earnings once.
func Renew(ctx context.Context, db *sqlx.DB, referralBonus decimal.Decimal, userID, planCode string, now time.Time) (*Renewal, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var prof renewalProfile
	err = tx.GetContext(ctx, &prof, `SELECT is_banned, current_plan, plan_expires_at FROM profiles WHERE id = $1 FOR UPDATE`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wallet.ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	if prof.IsBanned {
		return nil, errs.ErrUserBanned
	}

	plan, err := Get(ctx, tx, planCode)
	if err != nil {
		return nil, err
	}
	if !plan.IsActive || plan.Code == FreeTrial || !plan.Price.IsPositive() {
		return nil, ErrPlanNotForSale
	}

	entry, err := wallet.Apply(ctx, tx, wallet.Mutation{
		UserID:      userID,
		Wallet:      wallet.Funding,
		Amount:      plan.Price.Neg(),
		Type:        wallet.TypePlanPurchase,
		Description: fmt.Sprintf("%s plan (%d days)", plan.Name, plan.DurationDays),
		Reference:   "PLAN-" + plan.Code,
	})
	if errors.Is(err, wallet.ErrInsufficientBalance) {
		return nil, ErrInsufficientFunding
	}
	if err != nil {
		return nil, err
	}

	expires := Expiry(prof.CurrentPlan, prof.PlanExpiresAt, plan.Code, plan.DurationDays, now)
	if _, err := tx.ExecContext(ctx, `UPDATE profiles SET current_plan = $2, plan_expires_at = $3, updated_at = NOW() WHERE id = $1`,
		userID, plan.Code, expires); err != nil {
		return nil, err
	}

	paid, err := payReferralBonus(ctx, tx, referralBonus, userID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Printf("[PLANS] user=%s plan=%s expires=%s referral_paid=%v", userID, plan.Code, expires.Format(time.RFC3339), paid)
	return &Renewal{Plan: *plan, ExpiresAt: expires, FundingBalance: entry.BalanceAfter, ReferralPaid: paid}, nil
}

// payReferralBonus marks the referral paid and credits the referrer. The
// conditional UPDATE is the once-only guard.
func payReferralBonus(ctx context.Context, tx *sqlx.Tx, bonus decimal.Decimal, referredID string) (bool, error) {
	if !bonus.IsPositive() {
		return false, nil
	}
	var referrerID string
	err := tx.GetContext(ctx, &referrerID, `
		UPDATE referrals SET bonus_paid = TRUE, bonus_amount = $2
		WHERE referred_id = $1 AND NOT bonus_paid
		RETURNING referrer_id`, referredID, bonus)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if _, err := wallet.Apply(ctx, tx, wallet.Mutation{
		UserID:      referrerID,
		Wallet:      wallet.Earnings,
		Amount:      bonus,
		Type:        wallet.TypeReferralBonus,
		Description: "Referral bonus",
		Reference:   "REF-" + referredID,
	}); err != nil {
		return false, err
	}
	return true, nil
}

// SetUserPlan lets an admin put a user on any plan with an explicit expiry.
func SetUserPlan(ctx context.Context, db *sqlx.DB, adminID, userID, planCode string, expiresAt *time.Time) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := admin.RequireAdmin(ctx, tx, adminID); err != nil {
		return err
	}
	if _, err := Get(ctx, tx, planCode); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE profiles SET current_plan = $2, plan_expires_at = $3, updated_at = NOW() WHERE id = $1`,
		userID, planCode, expiresAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return wallet.ErrProfileNotFound
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	log.Printf("[PLANS] Admin %s set user %s to plan %s", adminID, userID, planCode)
	return nil
}

// Referral is one row of a referrer's list.
type Referral struct {
	ReferredName string          `db:"referred_name" json:"referred_name"`
	BonusPaid    bool            `db:"bonus_paid" json:"bonus_paid"`
	BonusAmount  decimal.Decimal `db:"bonus_amount" json:"bonus_amount"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// ListReferrals returns the users referred by userID.
func ListReferrals(ctx context.Context, db *sqlx.DB, userID string) ([]Referral, error) {
	out := []Referral{}
	err := db.SelectContext(ctx, &out, `
		SELECT p.full_name AS referred_name, r.bonus_paid, r.bonus_amount, r.created_at
		FROM referrals r
		JOIN profiles p ON p.id = r.referred_id
		WHERE r.referrer_id = $1
		ORDER BY r.created_at DESC`, userID)
	return out, err
}
