package models

import "time"

// Config represents the application configuration
type Config struct {
	Database   DatabaseConfig
	Commission CommissionConfig
	Payout     PayoutConfig
	Formance   FormanceConfig
	Redis      RedisConfig
	Server     ServerConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	BusyTimeout     time.Duration
}

// CommissionConfig holds the ledger engine settings
type CommissionConfig struct {
	DefaultRateBps       int64
	HoldingPeriod        time.Duration
	MaxUsers             int
	MaxEntriesPerUser    int
	TimeBudget           time.Duration
	ReconcileMaxAttempts int
}

// PayoutConfig holds settings for the payment provider used to pay affiliates
type PayoutConfig struct {
	Enabled        bool
	PortfolioId    string
	CurrenciesFile string
}

// FormanceConfig holds the optional Formance mirror settings
type FormanceConfig struct {
	Enabled      bool
	StackURL     string
	ClientID     string
	ClientSecret string
	LedgerName   string
}

// RedisConfig holds the optional distributed lock settings
type RedisConfig struct {
	URL        string
	LockTTL    time.Duration
	LockRetry  time.Duration
	LockPrefix string
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}
