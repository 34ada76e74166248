package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/core-coin/fortuna/pkg/validation"
)

type Config struct {
	Development bool
	// API configuration
	APIPort int
	// Postgres configuration. An empty host selects the in-memory journal.
	PostgresUser     string
	PostgresPassword string
	PostgresHost     string
	PostgresPort     int
	PostgresDB       string

	// Raffle configuration
	EntranceFee *big.Int
	Interval    time.Duration

	// Oracle configuration
	KeyHash          string
	Confirmations    int
	CallbackGasLimit uint64
	BaseFee          *big.Int
	UnitCost         *big.Int
	TokenPerNative   *big.Int
	// InitialFunding is the token amount the raffle subscription is funded
	// with at bootstrap.
	InitialFunding *big.Int
	BlockTime      time.Duration

	// Operator configuration
	OperatorAddress string
	RecoveryAddress string
	KeeperPoll      time.Duration
	OraclePoll      time.Duration

	// SMTP configuration
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPSender   string
	NotifyEmail  string

	// Notification configuration
	TelegramBotToken string
	TelegramChatID   string
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Development:      getEnvAsBool("DEVELOPMENT", false),
		APIPort:          getEnvAsInt("API_PORT", 6533),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "password"),
		PostgresHost:     getEnv("POSTGRES_HOST", ""),
		PostgresPort:     getEnvAsInt("POSTGRES_PORT", 5432),
		PostgresDB:       getEnv("POSTGRES_DB", "fortuna"),

		EntranceFee: getEnvAsBigInt("ENTRANCE_FEE", big.NewInt(100)),
		Interval:    getEnvAsDuration("RAFFLE_INTERVAL", 30*time.Second),

		KeyHash:          getEnv("ORACLE_KEY_HASH", "0x6c3699283bda56ad74f6b855546325b68d482e983852a7a82979cc4807b641f4"),
		Confirmations:    getEnvAsInt("ORACLE_CONFIRMATIONS", 3),
		CallbackGasLimit: uint64(getEnvAsInt("CALLBACK_GAS_LIMIT", 500000)),
		BaseFee:          getEnvAsBigInt("ORACLE_BASE_FEE", big.NewInt(25)),
		UnitCost:         getEnvAsBigInt("ORACLE_UNIT_COST", big.NewInt(1)),
		TokenPerNative:   getEnvAsBigInt("TOKEN_PER_NATIVE", big.NewInt(2)),
		InitialFunding:   getEnvAsBigInt("INITIAL_FUNDING", big.NewInt(100000000)),
		BlockTime:        getEnvAsDuration("BLOCK_TIME", time.Second),

		OperatorAddress: getEnv("OPERATOR_ADDRESS", ""),
		RecoveryAddress: getEnv("RECOVERY_ADDRESS", ""),
		KeeperPoll:      getEnvAsDuration("KEEPER_POLL_INTERVAL", time.Second),
		OraclePoll:      getEnvAsDuration("ORACLE_POLL_INTERVAL", time.Second),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPSender:   getEnv("SMTP_SENDER", ""),
		NotifyEmail:  getEnv("NOTIFY_EMAIL", ""),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are properly set
func (c *Config) Validate() error {
	if c.EntranceFee == nil || c.EntranceFee.Sign() <= 0 {
		return fmt.Errorf("ENTRANCE_FEE must be positive")
	}

	if c.Interval <= 0 {
		return fmt.Errorf("RAFFLE_INTERVAL must be positive")
	}

	if c.InitialFunding == nil || c.InitialFunding.Sign() < 0 {
		return fmt.Errorf("INITIAL_FUNDING must not be negative")
	}

	if err := validation.ValidateHash(c.KeyHash); err != nil {
		return fmt.Errorf("invalid ORACLE_KEY_HASH format: %w", err)
	}

	if c.OperatorAddress != "" {
		if err := validation.ValidateAddress(c.OperatorAddress); err != nil {
			return fmt.Errorf("invalid OPERATOR_ADDRESS format: %w", err)
		}
	}

	if c.RecoveryAddress != "" {
		if err := validation.ValidateAddress(c.RecoveryAddress); err != nil {
			return fmt.Errorf("invalid RECOVERY_ADDRESS format: %w", err)
		}
	}

	if c.TelegramBotToken != "" && c.TelegramChatID == "" {
		return fmt.Errorf("TELEGRAM_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set")
	}

	if c.SMTPHost != "" && c.NotifyEmail == "" {
		return fmt.Errorf("NOTIFY_EMAIL is required when SMTP_HOST is set")
	}

	return nil
}

// Helper functions to read environment variables
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsBool(name string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseBool(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsBigInt(name string, defaultValue *big.Int) *big.Int {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, ok := new(big.Int).SetString(valueStr, 10); ok {
			return value
		}
	}
	return defaultValue
}

func getEnvAsDuration(name string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := time.ParseDuration(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}
