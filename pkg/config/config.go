package config

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	DatabaseURL  string
	Port         string
	IsProduction bool
	JWTSecret    string
	JWTIssuer    string

	// BillerBaseURL is the bill payment aggregator endpoint.
	BillerBaseURL string
	// RateLimit is the per-IP request allowance in ulule/limiter notation,
	// e.g. "300-M" for 300 requests per minute.
	RateLimit string

	// Fallback ceilings for entities without a configured limits row.
	UserSingleTransactionLimit decimal.Decimal
	UserDailyWithdrawalLimit   decimal.Decimal
	UserDailyTransferLimit     decimal.Decimal
	UserMonthlyWithdrawalLimit decimal.Decimal
	UserMonthlyTransferLimit   decimal.Decimal

	AgentSingleTransactionLimit decimal.Decimal
	AgentDailyTotalLimit        decimal.Decimal
	AgentMonthlyTotalLimit      decimal.Decimal
}

// LoadConfig loads configuration from environment variables and .env file if present.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	viper.SetDefault("PGSQL_URL", "")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("IS_PRODUCTION", false)
	viper.SetDefault("JWT_SECRET", "a-very-secret-key-should-be-longer-and-random")
	viper.SetDefault("JWT_ISSUER", "corebanking")
	viper.SetDefault("BILLER_BASE_URL", "http://localhost:9090")
	viper.SetDefault("RATE_LIMIT", "300-M")

	viper.SetDefault("USER_SINGLE_TXN_LIMIT", "500000.00")
	viper.SetDefault("USER_DAILY_WITHDRAWAL_LIMIT", "100000.00")
	viper.SetDefault("USER_DAILY_TRANSFER_LIMIT", "1000000.00")
	viper.SetDefault("USER_MONTHLY_WITHDRAWAL_LIMIT", "1000000.00")
	viper.SetDefault("USER_MONTHLY_TRANSFER_LIMIT", "5000000.00")
	viper.SetDefault("AGENT_SINGLE_TXN_LIMIT", "500000.00")
	viper.SetDefault("AGENT_DAILY_TOTAL_LIMIT", "500000.00")
	viper.SetDefault("AGENT_MONTHLY_TOTAL_LIMIT", "10000000.00")

	viper.AutomaticEnv()

	cfg := &Config{}

	cfg.DatabaseURL = viper.GetString("PGSQL_URL")
	if cfg.DatabaseURL == "" {
		log.Println("Warning: PGSQL_URL environment variable not set.")
	}

	cfg.Port = viper.GetString("PORT")
	cfg.IsProduction = viper.GetBool("IS_PRODUCTION")

	cfg.JWTSecret = viper.GetString("JWT_SECRET")
	if cfg.JWTSecret == "a-very-secret-key-should-be-longer-and-random" {
		log.Println("Warning: JWT_SECRET not set. Using default insecure key.")
	}
	cfg.JWTIssuer = viper.GetString("JWT_ISSUER")

	cfg.BillerBaseURL = viper.GetString("BILLER_BASE_URL")
	cfg.RateLimit = viper.GetString("RATE_LIMIT")

	cfg.UserSingleTransactionLimit = decimalSetting("USER_SINGLE_TXN_LIMIT")
	cfg.UserDailyWithdrawalLimit = decimalSetting("USER_DAILY_WITHDRAWAL_LIMIT")
	cfg.UserDailyTransferLimit = decimalSetting("USER_DAILY_TRANSFER_LIMIT")
	cfg.UserMonthlyWithdrawalLimit = decimalSetting("USER_MONTHLY_WITHDRAWAL_LIMIT")
	cfg.UserMonthlyTransferLimit = decimalSetting("USER_MONTHLY_TRANSFER_LIMIT")
	cfg.AgentSingleTransactionLimit = decimalSetting("AGENT_SINGLE_TXN_LIMIT")
	cfg.AgentDailyTotalLimit = decimalSetting("AGENT_DAILY_TOTAL_LIMIT")
	cfg.AgentMonthlyTotalLimit = decimalSetting("AGENT_MONTHLY_TOTAL_LIMIT")

	return cfg, nil
}

// decimalSetting parses a decimal config value, falling back to the
// registered default when the override is malformed.
func decimalSetting(key string) decimal.Decimal {
	raw := viper.GetString(key)
	d, err := decimal.NewFromString(raw)
	if err != nil {
		log.Printf("Warning: Invalid value for %s ('%s'). Using zero.\n", key, raw)
		return decimal.Zero
	}
	return d
}
