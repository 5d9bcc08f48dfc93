/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"commission-ledger-go/internal/models"
)

func Load() (*models.Config, error) {
	var (
		connMaxLifetime, connMaxIdleTime, pingTimeout, busyTimeout time.Duration
		holdingPeriod, timeBudget                                  time.Duration
		lockTTL, lockRetry                                         time.Duration
		readTimeout, writeTimeout, shutdownTimeout                 time.Duration
	)
	durations := []struct {
		key          string
		defaultValue time.Duration
		target       *time.Duration
	}{
		{"DB_CONN_MAX_LIFETIME", 5 * time.Minute, &connMaxLifetime},
		{"DB_CONN_MAX_IDLE_TIME", 30 * time.Second, &connMaxIdleTime},
		{"DB_PING_TIMEOUT", 5 * time.Second, &pingTimeout},
		{"DB_BUSY_TIMEOUT", 5 * time.Second, &busyTimeout},
		{"COMMISSION_HOLDING_PERIOD", 30 * 24 * time.Hour, &holdingPeriod},
		{"MATURATION_TIME_BUDGET", 25 * time.Second, &timeBudget},
		{"REDIS_LOCK_TTL", 30 * time.Second, &lockTTL},
		{"REDIS_LOCK_RETRY", 50 * time.Millisecond, &lockRetry},
		{"SERVER_READ_TIMEOUT", 10 * time.Second, &readTimeout},
		{"SERVER_WRITE_TIMEOUT", 30 * time.Second, &writeTimeout},
		{"SERVER_SHUTDOWN_TIMEOUT", 10 * time.Second, &shutdownTimeout},
	}
	for _, d := range durations {
		value, err := getEnvDuration(d.key, d.defaultValue)
		if err != nil {
			return nil, err
		}
		*d.target = value
	}

	defaultRateBps, err := getEnvInt64("COMMISSION_DEFAULT_RATE_BPS", 2000)
	if err != nil {
		return nil, err
	}

	return &models.Config{
		Database: models.DatabaseConfig{
			Path:            getEnvString("DATABASE_PATH", "commissions.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
			BusyTimeout:     busyTimeout,
		},
		Commission: models.CommissionConfig{
			DefaultRateBps:       defaultRateBps,
			HoldingPeriod:        holdingPeriod,
			MaxUsers:             getEnvInt("MATURATION_MAX_USERS", 100),
			MaxEntriesPerUser:    getEnvInt("MATURATION_MAX_ENTRIES_PER_USER", 100),
			TimeBudget:           timeBudget,
			ReconcileMaxAttempts: getEnvInt("RECONCILE_MAX_ATTEMPTS", 5),
		},
		Payout: models.PayoutConfig{
			Enabled:        getEnvBool("PAYOUTS_ENABLED", false),
			PortfolioId:    getEnvString("PRIME_PORTFOLIO_ID", ""),
			CurrenciesFile: getEnvString("PAYOUT_CURRENCIES_FILE", "currencies.yaml"),
		},
		Formance: models.FormanceConfig{
			Enabled:      getEnvBool("FORMANCE_ENABLED", false),
			StackURL:     getEnvString("FORMANCE_STACK_URL", ""),
			ClientID:     getEnvString("FORMANCE_CLIENT_ID", ""),
			ClientSecret: getEnvString("FORMANCE_CLIENT_SECRET", ""),
			LedgerName:   getEnvString("FORMANCE_LEDGER", "affiliate-commissions"),
		},
		Redis: models.RedisConfig{
			URL:        getEnvString("REDIS_URL", ""),
			LockTTL:    lockTTL,
			LockRetry:  lockRetry,
			LockPrefix: getEnvString("REDIS_LOCK_PREFIX", "commission-ledger:lock:"),
		},
		Server: models.ServerConfig{
			Addr:            getEnvString("SERVER_ADDR", ":8080"),
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			ShutdownTimeout: shutdownTimeout,
		},
	}, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) (int64, error) {
	if value := os.Getenv(key); value != "" {
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid integer for %s: %q (%w)", key, value, err)
		}
		return intValue, nil
	}
	return defaultValue, nil
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
