package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/playearn/backend/internal/config"
)

// GetConfig returns the money rules the frontend displays
func GetConfig(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := cfg.Policy()
		c.JSON(http.StatusOK, gin.H{
			"min_withdraw_amount":    p.MinWithdrawAmount,
			"withdraw_fee_threshold": p.WithdrawFeeThreshold,
			"withdraw_fee_low":       p.WithdrawFeeLow,
			"withdraw_fee_high":      p.WithdrawFeeHigh,
			"withdraw_cooldown_days": int(p.WithdrawCooldown.Hours() / 24),
			"edit_request_fee":       p.EditRequestFee,
			"min_deposit_amount":     p.MinDepositAmount,
			"referral_bonus":         p.ReferralBonus,
			"paystack_public_key":    cfg.PaystackPublicKey,
		})
	}
}
