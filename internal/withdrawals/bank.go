package withdrawals

import (
	"strings"

	"github.com/playearn/backend/internal/validation"
)

// BankDetails is the payout destination snapshotted onto a withdrawal.
// Account numbers are 10-digit NUBAN.
type BankDetails struct {
	BankName      string `json:"bank_name" validate:"required,max=100"`
	BankCode      string `json:"bank_code" validate:"required,numeric,min=3,max=6"`
	AccountNumber string `json:"account_number" validate:"required,numeric,len=10"`
	AccountName   string `json:"account_name" validate:"required,min=3,max=100"`
}

// Normalize trims surrounding whitespace from every field.
func (b BankDetails) Normalize() BankDetails {
	return BankDetails{
		BankName:      strings.TrimSpace(b.BankName),
		BankCode:      strings.TrimSpace(b.BankCode),
		AccountNumber: strings.TrimSpace(b.AccountNumber),
		AccountName:   strings.TrimSpace(b.AccountName),
	}
}

// Validate reports per-field problems as an ErrInvalidBankDetails with details.
func (b BankDetails) Validate() error {
	return validation.Struct(b, ErrInvalidBankDetails)
}
