package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Profile represents a user and their cached wallet balances
type Profile struct {
	ID              string          `db:"id" json:"id"`
	Email           string          `db:"email" json:"email"`
	PasswordHash    string          `db:"password_hash" json:"-"`
	FullName        string          `db:"full_name" json:"full_name"`
	Phone           string          `db:"phone" json:"phone"`
	FundingBalance  decimal.Decimal `db:"funding_balance" json:"funding_balance"`
	EarningsBalance decimal.Decimal `db:"earnings_balance" json:"earnings_balance"`
	CurrentPlan     string          `db:"current_plan" json:"current_plan"`
	PlanExpiresAt   *time.Time      `db:"plan_expires_at" json:"plan_expires_at"`
	NextWithdrawAt  *time.Time      `db:"next_withdraw_at" json:"next_withdraw_at"`
	IsBanned        bool            `db:"is_banned" json:"is_banned"`
	BanReason       *string         `db:"ban_reason" json:"ban_reason,omitempty"`
	EmailVerified   bool            `db:"email_verified" json:"email_verified"`
	ReferralCode    string          `db:"referral_code" json:"referral_code"`
	ReferredBy      *string         `db:"referred_by" json:"referred_by,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// ProfileColumns is the column list matching Profile
const ProfileColumns = `id, email, password_hash, full_name, phone, funding_balance, earnings_balance,
	current_plan, plan_expires_at, next_withdraw_at, is_banned, ban_reason, email_verified,
	referral_code, referred_by, created_at, updated_at`

// Plan is a subscription tier
type Plan struct {
	Code                 string          `db:"code" json:"code"`
	Name                 string          `db:"name" json:"name"`
	Price                decimal.Decimal `db:"price" json:"price"`
	DurationDays         int             `db:"duration_days" json:"duration_days"`
	DailyPlayLimit       int             `db:"daily_play_limit" json:"daily_play_limit"`
	MaxGameEarning       decimal.Decimal `db:"max_game_earning" json:"max_game_earning"`
	CanWithdraw          bool            `db:"can_withdraw" json:"can_withdraw"`
	WithdrawCooldownDays *int            `db:"withdraw_cooldown_days" json:"withdraw_cooldown_days,omitempty"`
	IsActive             bool            `db:"is_active" json:"is_active"`
	SortOrder            int             `db:"sort_order" json:"sort_order"`
}

const PlanColumns = `code, name, price, duration_days, daily_play_limit, max_game_earning,
	can_withdraw, withdraw_cooldown_days, is_active, sort_order`

// Withdrawal is a payout request with snapshotted bank details
type Withdrawal struct {
	ID            int64           `db:"id" json:"id"`
	UserID        string          `db:"user_id" json:"user_id"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	Fee           decimal.Decimal `db:"fee" json:"fee"`
	BankName      string          `db:"bank_name" json:"bank_name"`
	BankCode      string          `db:"bank_code" json:"bank_code"`
	AccountNumber string          `db:"account_number" json:"account_number"`
	AccountName   string          `db:"account_name" json:"account_name"`
	Status        string          `db:"status" json:"status"`
	Notes         *string         `db:"notes" json:"notes,omitempty"`
	ProcessedBy   *string         `db:"processed_by" json:"processed_by,omitempty"`
	ProcessedAt   *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	RefundedAt    *time.Time      `db:"refunded_at" json:"refunded_at,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

const WithdrawalColumns = `id, user_id, amount, fee, bank_name, bank_code, account_number, account_name,
	status, notes, processed_by, processed_at, refunded_at, created_at, updated_at`

// WithdrawalEditRequest proposes replacement bank details for a withdrawal
type WithdrawalEditRequest struct {
	ID            int64           `db:"id" json:"id"`
	WithdrawalID  int64           `db:"withdrawal_id" json:"withdrawal_id"`
	UserID        string          `db:"user_id" json:"user_id"`
	BankName      string          `db:"bank_name" json:"bank_name"`
	BankCode      string          `db:"bank_code" json:"bank_code"`
	AccountNumber string          `db:"account_number" json:"account_number"`
	AccountName   string          `db:"account_name" json:"account_name"`
	Fee           decimal.Decimal `db:"fee" json:"fee"`
	FeePaid       bool            `db:"fee_paid" json:"fee_paid"`
	FeeReference  string          `db:"fee_reference" json:"fee_reference"`
	Status        string          `db:"status" json:"status"`
	ReviewedBy    *string         `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time      `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ReviewNotes   *string         `db:"review_notes" json:"review_notes,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

const EditRequestColumns = `id, withdrawal_id, user_id, bank_name, bank_code, account_number, account_name,
	fee, fee_paid, fee_reference, status, reviewed_by, reviewed_at, review_notes, created_at`

// LedgerEntry is one append-only row of the transactions table
type LedgerEntry struct {
	ID           int64           `db:"id" json:"id"`
	UserID       string          `db:"user_id" json:"user_id"`
	Wallet       string          `db:"wallet" json:"wallet"`
	Type         string          `db:"type" json:"type"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	BalanceAfter decimal.Decimal `db:"balance_after" json:"balance_after"`
	Description  string          `db:"description" json:"description"`
	Reference    string          `db:"reference" json:"reference"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

const LedgerColumns = `id, user_id, wallet, type, amount, balance_after, description, reference, created_at`

// Deposit is a funding event reconciled against the payment provider
type Deposit struct {
	ID                   int64           `db:"id" json:"id"`
	UserID               string          `db:"user_id" json:"user_id"`
	TransactionReference string          `db:"transaction_reference" json:"transaction_reference"`
	Amount               decimal.Decimal `db:"amount" json:"amount"`
	Status               string          `db:"status" json:"status"`
	ProviderStatus       *string         `db:"provider_status" json:"provider_status,omitempty"`
	GatewayResponse      *string         `db:"gateway_response" json:"gateway_response,omitempty"`
	VerifiedAt           *time.Time      `db:"verified_at" json:"verified_at,omitempty"`
	CreatedAt            time.Time       `db:"created_at" json:"created_at"`
}

const DepositColumns = `id, user_id, transaction_reference, amount, status, provider_status,
	gateway_response, verified_at, created_at`

// Notification is either addressed to one user or broadcast (UserID nil)
type Notification struct {
	ID        int64     `db:"id" json:"id"`
	UserID    *string   `db:"user_id" json:"user_id,omitempty"`
	Title     string    `db:"title" json:"title"`
	Message   string    `db:"message" json:"message"`
	Type      string    `db:"type" json:"type"`
	IsRead    bool      `db:"is_read" json:"is_read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// StoreItem is a catalog entry purchasable from the funding wallet
type StoreItem struct {
	ID          int64           `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Description string          `db:"description" json:"description"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Stock       *int            `db:"stock" json:"stock,omitempty"`
	IsActive    bool            `db:"is_active" json:"is_active"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// Purchase records a store item bought by a user
type Purchase struct {
	ID         int64           `db:"id" json:"id"`
	UserID     string          `db:"user_id" json:"user_id"`
	ItemID     int64           `db:"item_id" json:"item_id"`
	Quantity   int             `db:"quantity" json:"quantity"`
	TotalPrice decimal.Decimal `db:"total_price" json:"total_price"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// Referral links a referred user to their referrer
type Referral struct {
	ID          int64           `db:"id" json:"id"`
	ReferrerID  string          `db:"referrer_id" json:"referrer_id"`
	ReferredID  string          `db:"referred_id" json:"referred_id"`
	BonusPaid   bool            `db:"bonus_paid" json:"bonus_paid"`
	BonusAmount decimal.Decimal `db:"bonus_amount" json:"bonus_amount"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// AdminAudit represents an admin audit log entry
type AdminAudit struct {
	ID        int             `db:"id" json:"id"`
	AdminID   string          `db:"admin_id" json:"admin_id"`
	IP        string          `db:"ip" json:"ip"`
	Route     string          `db:"route" json:"route"`
	Action    string          `db:"action" json:"action"`
	Details   json.RawMessage `db:"details" json:"details"`
	Success   bool            `db:"success" json:"success"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// RuntimeConfig represents a runtime-adjustable config entry
type RuntimeConfig struct {
	Key         string    `db:"key" json:"key"`
	Value       string    `db:"value" json:"value"`
	ValueType   string    `db:"value_type" json:"value_type"`
	Description *string   `db:"description" json:"description,omitempty"`
	UpdatedBy   *string   `db:"updated_by" json:"updated_by,omitempty"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
