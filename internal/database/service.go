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

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"commission-ledger-go/internal/models"
	"commission-ledger-go/internal/store"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.LedgerStore.
var _ store.LedgerStore = (*Service)(nil)

type Service struct {
	db  *sql.DB
	now func() time.Time
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}
	busyTimeout := cfg.BusyTimeout
	if busyTimeout <= 0 {
		busyTimeout = 5 * time.Second
	}

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	// _txlock=immediate takes the write lock at BEGIN so read-modify-write
	// transactions cannot interleave between their read and their write.
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000&_busy_timeout=%d&_txlock=immediate",
		cfg.Path, busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	// Set connection timeouts and limits
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test connection with timeout
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			zap.L().Warn("Failed to close database after ping failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := &Service{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := service.initSchema(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			zap.L().Warn("Failed to close database after schema failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Database service initialized successfully")
	return service, nil
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

// Ping verifies the database is reachable
func (s *Service) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Service) initSchema(ctx context.Context) error {
	schema := `
	-- Affiliate accounts (payout settings)
	CREATE TABLE IF NOT EXISTS affiliate_accounts (
		user_id TEXT PRIMARY KEY,
		payout_destination TEXT NOT NULL DEFAULT '',
		payout_network TEXT NOT NULL DEFAULT '',
		payout_verified BOOLEAN NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	-- Balance and debt per affiliate and currency (derived state)
	CREATE TABLE IF NOT EXISTS account_balances (
		user_id TEXT NOT NULL,
		currency TEXT NOT NULL,
		balance_cents INTEGER NOT NULL DEFAULT 0 CHECK (balance_cents >= 0),
		debt_cents INTEGER NOT NULL DEFAULT 0 CHECK (debt_cents >= 0),
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (user_id, currency)
	);

	-- Ledger entries (append-oriented audit trail)
	CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		affiliate_user_id TEXT NOT NULL,
		type TEXT NOT NULL CHECK (type IN ('commission', 'adjustment')),
		status TEXT NOT NULL CHECK (status IN ('pending', 'available', 'paid', 'canceled', 'reversed', 'failed', 'fallback')),
		currency TEXT NOT NULL,
		amount_cents INTEGER NOT NULL,
		commission_rate_bps INTEGER,
		source_payment_id TEXT NOT NULL DEFAULT '',
		referred_user_id TEXT NOT NULL DEFAULT '',
		transfer_id TEXT NOT NULL DEFAULT '',
		available_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		note TEXT NOT NULL DEFAULT ''
	);

	-- One commission per upstream payment; refunds reverse exactly that commission
	DROP INDEX IF EXISTS idx_ledger_entries_commission_source;
	CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_entries_commission_invoice
		ON ledger_entries(source_payment_id) WHERE type = 'commission';
	-- Maturation scans
	CREATE INDEX IF NOT EXISTS idx_ledger_entries_due ON ledger_entries(status, available_at);
	CREATE INDEX IF NOT EXISTS idx_ledger_entries_affiliate ON ledger_entries(affiliate_user_id, created_at);
	-- Refund lookups
	CREATE INDEX IF NOT EXISTS idx_ledger_entries_source ON ledger_entries(source_payment_id, type);

	-- Cumulative refund watermark per invoice and affiliate
	CREATE TABLE IF NOT EXISTS refund_progress (
		invoice_id TEXT NOT NULL,
		affiliate_user_id TEXT NOT NULL,
		refunded_paid_cents_total INTEGER NOT NULL DEFAULT 0 CHECK (refunded_paid_cents_total >= 0),
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (invoice_id, affiliate_user_id)
	);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	var entryType, status string
	var rateBps sql.NullInt64
	err := row.Scan(&entry.Id, &entry.AffiliateUserId, &entryType, &status, &entry.Currency,
		&entry.AmountCents, &rateBps, &entry.SourcePaymentId, &entry.ReferredUserId, &entry.TransferId,
		&entry.AvailableAt, &entry.CreatedAt, &entry.UpdatedAt, &entry.Note)
	if err != nil {
		return nil, err
	}
	entry.Type = models.EntryType(entryType)
	entry.Status = models.EntryStatus(status)
	if rateBps.Valid {
		bps := rateBps.Int64
		entry.CommissionRateBps = &bps
	}
	return &entry, nil
}

func scanEntries(rows *sql.Rows) ([]models.LedgerEntry, error) {
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var entries []models.LedgerEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, *entry)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during ledger entry row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating ledger entry rows: %w", err)
	}
	return entries, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		zap.L().Warn("Failed to roll back transaction", zap.Error(err))
	}
}
