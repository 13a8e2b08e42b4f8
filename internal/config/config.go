package config

import (
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	// Environment
	Environment string
	MockMode    bool

	// Database
	DatabaseURL    string
	DBMaxOpenConns int
	DBMaxIdleConns int
	MigrationsDir  string

	// Redis
	RedisURL string

	// Server
	Port        string
	FrontendURL string

	// Security
	JWTSecret      string
	JWTExpiryHours int

	// Paystack
	PaystackBaseURL        string
	PaystackSecretKey      string
	PaystackPublicKey      string
	PaystackTimeoutSeconds int
	DepositReconcileMins   int

	// SMS gateway
	SMSBaseURL          string
	SMSAPIKey           string
	SMSSenderID         string
	SMSRateLimitSeconds int

	// Game sessions
	GameSessionTTLMinutes int
	PlanSweepMinutes      int

	mu     sync.RWMutex
	policy Policy
}

// Policy holds the money and gating rules that admins can override at runtime
// through the runtime_config table.
type Policy struct {
	MinWithdrawAmount    decimal.Decimal
	WithdrawFeeThreshold decimal.Decimal
	WithdrawFeeLow       decimal.Decimal
	WithdrawFeeHigh      decimal.Decimal
	WithdrawCooldown     time.Duration
	EditRequestFee       decimal.Decimal
	ReferralBonus        decimal.Decimal
	MinDepositAmount     decimal.Decimal
	GamePointValue       decimal.Decimal
	AdminAllowNegative   bool
	MaintenanceMode      bool
	MaintenanceMessage   string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Environment: getEnv("APP_ENV", "development"),
		MockMode:    getEnvBool("MOCK_MODE", false),

		DatabaseURL:    getEnv("DATABASE_URL", "postgres://localhost:5432/playearn?sslmode=disable"),
		DBMaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
		MigrationsDir:  getEnv("MIGRATIONS_DIR", "migrations"),

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		Port:        getEnv("APP_PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),

		JWTSecret:      getEnv("JWT_SECRET", "change-me-in-production"),
		JWTExpiryHours: getEnvInt("JWT_EXPIRY_HOURS", 24),

		PaystackBaseURL:        getEnv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
		PaystackSecretKey:      getEnv("PAYSTACK_SECRET_KEY", ""),
		PaystackPublicKey:      getEnv("PAYSTACK_PUBLIC_KEY", ""),
		PaystackTimeoutSeconds: getEnvInt("PAYSTACK_TIMEOUT_SECONDS", 15),
		DepositReconcileMins:   getEnvInt("DEPOSIT_RECONCILE_MINUTES", 2),

		SMSBaseURL:          getEnv("SMS_BASE_URL", ""),
		SMSAPIKey:           getEnv("SMS_API_KEY", ""),
		SMSSenderID:         getEnv("SMS_SENDER_ID", "PlayEarn"),
		SMSRateLimitSeconds: getEnvInt("SMS_RATE_LIMIT_SECONDS", 30),

		GameSessionTTLMinutes: getEnvInt("GAME_SESSION_TTL_MINUTES", 30),
		PlanSweepMinutes:      getEnvInt("PLAN_SWEEP_MINUTES", 10),
	}

	cfg.policy = Policy{
		MinWithdrawAmount:    getEnvDecimal("MIN_WITHDRAW_AMOUNT", 30000),
		WithdrawFeeThreshold: getEnvDecimal("WITHDRAW_FEE_THRESHOLD", 100000),
		WithdrawFeeLow:       getEnvDecimal("WITHDRAW_FEE_LOW", 500),
		WithdrawFeeHigh:      getEnvDecimal("WITHDRAW_FEE_HIGH", 3000),
		WithdrawCooldown:     time.Duration(getEnvInt("WITHDRAW_COOLDOWN_DAYS", 7)) * 24 * time.Hour,
		EditRequestFee:       getEnvDecimal("EDIT_REQUEST_FEE", 1000),
		ReferralBonus:        getEnvDecimal("REFERRAL_BONUS", 500),
		MinDepositAmount:     getEnvDecimal("MIN_DEPOSIT_AMOUNT", 100),
		GamePointValue:       getEnvDecimal("GAME_POINT_VALUE", 1),
		AdminAllowNegative:   getEnvBool("ADMIN_ALLOW_NEGATIVE_BALANCE", false),
		MaintenanceMessage:   "We are performing scheduled maintenance. Please check back shortly.",
	}

	return cfg
}

// Policy returns a copy of the current policy.
func (c *Config) Policy() Policy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.policy
}

// UpdatePolicy applies fn to the policy under the write lock.
func (c *Config) UpdatePolicy(fn func(p *Policy)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.policy)
}

// SetPolicy replaces the policy wholesale. Used by tests and seeding.
func (c *Config) SetPolicy(p Policy) {
	c.mu.Lock()
	c.policy = p
	c.mu.Unlock()
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue int64) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return decimal.NewFromInt(defaultValue)
}
