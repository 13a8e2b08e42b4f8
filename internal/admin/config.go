package admin

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/playearn/backend/internal/config"
	"github.com/playearn/backend/internal/errs"
	"github.com/playearn/backend/internal/models"
	"github.com/shopspring/decimal"
)

var (
	ErrConfigKeyNotFound  = errs.NotFound("config_key_not_found", "config key not found")
	ErrInvalidConfigValue = errs.Validation("invalid_config_value", "value does not match the key's type")
)

// GetAllRuntimeConfig returns all runtime config entries
func GetAllRuntimeConfig(ctx context.Context, db sqlx.QueryerContext) ([]models.RuntimeConfig, error) {
	configs := []models.RuntimeConfig{}
	err := sqlx.SelectContext(ctx, db, &configs, `
		SELECT key, value, value_type, description, updated_by, updated_at
		FROM runtime_config
		ORDER BY key
	`)
	return configs, err
}

// GetRuntimeConfigValue returns a single runtime config value
func GetRuntimeConfigValue(ctx context.Context, db sqlx.QueryerContext, key string) (*models.RuntimeConfig, error) {
	var cfg models.RuntimeConfig
	err := sqlx.GetContext(ctx, db, &cfg, `SELECT key, value, value_type, description, updated_by, updated_at FROM runtime_config WHERE key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConfigKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ValidateConfigValue checks value against a runtime_config value_type.
func ValidateConfigValue(valueType, value string) error {
	switch valueType {
	case "int":
		if v, err := strconv.Atoi(value); err != nil || v < 0 {
			return ErrInvalidConfigValue.WithMessagef("invalid integer value: %s", value)
		}
	case "decimal":
		if d, err := decimal.NewFromString(value); err != nil || d.IsNegative() {
			return ErrInvalidConfigValue.WithMessagef("invalid decimal value: %s", value)
		}
	case "bool":
		if value != "true" && value != "false" {
			return ErrInvalidConfigValue.WithMessagef("invalid boolean value: %s (must be 'true' or 'false')", value)
		}
	}
	return nil
}

// UpdateRuntimeConfigValue updates a single runtime config value
func UpdateRuntimeConfigValue(ctx context.Context, db *sqlx.DB, key, value, adminID string) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := RequireAdmin(ctx, tx, adminID); err != nil {
		return err
	}
	existing, err := GetRuntimeConfigValue(ctx, tx, key)
	if err != nil {
		return err
	}
	if err := ValidateConfigValue(existing.ValueType, value); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE runtime_config SET value = $1, updated_by = $2, updated_at = NOW() WHERE key = $3
	`, value, adminID, key); err != nil {
		return err
	}
	return tx.Commit()
}

// ApplyRuntimeConfigToConfig loads runtime config from DB and applies overrides to the policy
func ApplyRuntimeConfigToConfig(ctx context.Context, db *sqlx.DB, cfg *config.Config) error {
	configs, err := GetAllRuntimeConfig(ctx, db)
	if err != nil {
		return err
	}

	cfg.UpdatePolicy(func(p *config.Policy) {
		for _, c := range configs {
			applyOverride(p, c.Key, c.Value)
		}
	})

	log.Printf("[CONFIG] Applied %d runtime config overrides from database", len(configs))
	return nil
}

func applyOverride(p *config.Policy, key, value string) {
	dec := func(dst *decimal.Decimal) {
		if d, err := decimal.NewFromString(value); err == nil && !d.IsNegative() {
			*dst = d
		}
	}

	switch key {
	case "min_withdraw_amount":
		dec(&p.MinWithdrawAmount)
	case "withdraw_fee_threshold":
		dec(&p.WithdrawFeeThreshold)
	case "withdraw_fee_low":
		dec(&p.WithdrawFeeLow)
	case "withdraw_fee_high":
		dec(&p.WithdrawFeeHigh)
	case "withdraw_cooldown_days":
		if v, err := strconv.Atoi(value); err == nil && v >= 0 {
			p.WithdrawCooldown = time.Duration(v) * 24 * time.Hour
		}
	case "edit_request_fee":
		dec(&p.EditRequestFee)
	case "referral_bonus":
		dec(&p.ReferralBonus)
	case "min_deposit_amount":
		dec(&p.MinDepositAmount)
	case "game_point_value":
		dec(&p.GamePointValue)
	case "admin_allow_negative":
		p.AdminAllowNegative = value == "true"
	case "maintenance_mode":
		p.MaintenanceMode = value == "true"
	case "maintenance_message":
		if value != "" {
			p.MaintenanceMessage = value
		}
	default:
		log.Printf("[CONFIG] Unknown runtime config key %q ignored", key)
	}
}
