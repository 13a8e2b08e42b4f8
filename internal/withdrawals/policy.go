package withdrawals

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/playearn/backend/internal/config"
	"github.com/playearn/backend/internal/errs"
	"github.com/playearn/backend/internal/wallet"
	"github.com/shopspring/decimal"
)

const FreeTrialPlan = "free_trial"

// FeeFor returns the fee charged to the funding wallet for a withdrawal of amount.
func FeeFor(p config.Policy, amount decimal.Decimal) decimal.Decimal {
	if amount.GreaterThanOrEqual(p.WithdrawFeeThreshold) {
		return p.WithdrawFeeHigh
	}
	return p.WithdrawFeeLow
}

// Standing is what eligibility and creation need to know about a user.
type Standing struct {
	IsBanned         bool            `db:"is_banned" json:"is_banned"`
	CurrentPlan      string          `db:"current_plan" json:"current_plan"`
	PlanCanWithdraw  bool            `db:"can_withdraw" json:"plan_can_withdraw"`
	PlanCooldownDays *int            `db:"withdraw_cooldown_days" json:"-"`
	NextWithdrawAt   *time.Time      `db:"next_withdraw_at" json:"next_withdraw_at"`
	FundingBalance   decimal.Decimal `db:"funding_balance" json:"funding_balance"`
	EarningsBalance  decimal.Decimal `db:"earnings_balance" json:"earnings_balance"`
}

const standingQuery = `
	SELECT p.is_banned, p.current_plan, p.next_withdraw_at, p.funding_balance, p.earnings_balance,
		pl.can_withdraw, pl.withdraw_cooldown_days
	FROM profiles p
	JOIN plans pl ON pl.code = p.current_plan
	WHERE p.id = $1`

// LoadStanding reads a user's standing, locking the profile row when forUpdate is set.
func LoadStanding(ctx context.Context, q sqlx.QueryerContext, userID string, forUpdate bool) (*Standing, error) {
	query := standingQuery
	if forUpdate {
		query += ` FOR UPDATE OF p`
	}
	var s Standing
	err := sqlx.GetContext(ctx, q, &s, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wallet.ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Eligibility returns the first reason the user may not withdraw at now, or nil.
// The cooldown boundary is inclusive: at exactly next_withdraw_at the user is eligible.
func Eligibility(s Standing, now time.Time) error {
	if s.IsBanned {
		return errs.ErrUserBanned
	}
	if s.CurrentPlan == FreeTrialPlan || !s.PlanCanWithdraw {
		return ErrPlanForbids
	}
	if s.NextWithdrawAt != nil && now.Before(*s.NextWithdrawAt) {
		return ErrCooldownActive.WithMessagef("your next withdrawal is available from %s", s.NextWithdrawAt.UTC().Format(time.RFC1123))
	}
	return nil
}

// CanWithdraw is the boolean form of Eligibility.
func CanWithdraw(s Standing, now time.Time) bool {
	return Eligibility(s, now) == nil
}

// Cooldown is the plan's withdrawal interval, falling back to the policy default.
func Cooldown(p config.Policy, s Standing) time.Duration {
	if s.PlanCooldownDays != nil && *s.PlanCooldownDays > 0 {
		return time.Duration(*s.PlanCooldownDays) * 24 * time.Hour
	}
	return p.WithdrawCooldown
}

// EligibilityReport is the read model behind can_user_withdraw.
type EligibilityReport struct {
	CanWithdraw    bool            `json:"can_withdraw"`
	Reason         string          `json:"reason,omitempty"`
	ReasonCode     string          `json:"reason_code,omitempty"`
	NextWithdrawAt *time.Time      `json:"next_withdraw_at"`
	MinAmount      decimal.Decimal `json:"min_amount"`
	FeeThreshold   decimal.Decimal `json:"fee_threshold"`
	FeeLow         decimal.Decimal `json:"fee_low"`
	FeeHigh        decimal.Decimal `json:"fee_high"`
}

// CheckEligibility answers can_user_withdraw for userID.
func CheckEligibility(ctx context.Context, db *sqlx.DB, p config.Policy, userID string, now time.Time) (*EligibilityReport, error) {
	s, err := LoadStanding(ctx, db, userID, false)
	if err != nil {
		return nil, err
	}
	report := &EligibilityReport{
		CanWithdraw:    true,
		NextWithdrawAt: s.NextWithdrawAt,
		MinAmount:      p.MinWithdrawAmount,
		FeeThreshold:   p.WithdrawFeeThreshold,
		FeeLow:         p.WithdrawFeeLow,
		FeeHigh:        p.WithdrawFeeHigh,
	}
	if err := Eligibility(*s, now); err != nil {
		report.CanWithdraw = false
		if e, ok := errs.From(err); ok {
			report.Reason = e.Message
			report.ReasonCode = e.Code
		}
	}
	return report, nil
}

// UpdateNextWithdrawalTime moves the cooldown marker of a user.
func UpdateNextWithdrawalTime(ctx context.Context, ext sqlx.ExecerContext, userID string, at *time.Time) error {
	res, err := ext.ExecContext(ctx, `UPDATE profiles SET next_withdraw_at = $2, updated_at = NOW() WHERE id = $1`, userID, at)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return wallet.ErrProfileNotFound
	}
	return nil
}
