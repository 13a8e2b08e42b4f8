package withdrawals

import "github.com/playearn/backend/internal/errs"

var (
	ErrInvalidBankDetails        = errs.Validation("invalid_bank_details", "bank details are incomplete or invalid")
	ErrBelowMinimum              = errs.Validation("amount_below_minimum", "withdrawal amount is below the minimum")
	ErrPlanForbids               = errs.BusinessRule("plan_forbids_withdrawal", "your current plan does not allow withdrawals")
	ErrCooldownActive            = errs.BusinessRule("cooldown_active", "you have withdrawn recently, please wait for your next withdrawal window")
	ErrInsufficientEarnings      = errs.BusinessRule("insufficient_earnings", "insufficient earnings balance")
	ErrInsufficientFundingForFee = errs.BusinessRule("insufficient_funding_for_fee", "insufficient funding balance for fee")

	ErrNotFound          = errs.NotFound("withdrawal_not_found", "withdrawal not found")
	ErrInvalidStatus     = errs.Validation("invalid_status", "unknown withdrawal status")
	ErrInvalidTransition = errs.BusinessRule("invalid_status_transition", "this status change is not allowed")
	ErrAlreadyRejected   = errs.BusinessRule("already_rejected", "withdrawal has already been rejected and refunded")
	ErrFinalized         = errs.BusinessRule("withdrawal_finalized", "withdrawal is already finalized")

	ErrNotProcessing       = errs.BusinessRule("withdrawal_not_processing", "bank details can only be changed while the withdrawal is processing")
	ErrEditRequestPending  = errs.Validation("edit_request_pending", "an edit request for this withdrawal is already awaiting review")
	ErrEditRequestNotFound = errs.NotFound("edit_request_not_found", "edit request not found")
	ErrEditRequestClosed   = errs.BusinessRule("edit_request_closed", "edit request has already been reviewed")
	ErrEditFeeNotPaid      = errs.Validation("edit_fee_not_paid", "edit fee payment could not be confirmed")
	ErrEditFeeTooSmall     = errs.Validation("edit_fee_insufficient", "edit fee payment is less than the required fee")
	ErrEditFeeReused       = errs.Validation("edit_fee_reused", "this payment reference has already been used")
)
