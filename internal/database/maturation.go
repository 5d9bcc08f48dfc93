package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"commission-ledger-go/internal/models"
	"commission-ledger-go/internal/store"

	"go.uber.org/zap"
)

// ListDueAffiliates returns up to limit affiliates owning at least one pending commission due at now,
// the affiliate with the oldest due entry first
func (s *Service) ListDueAffiliates(ctx context.Context, now time.Time, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, queryListDueAffiliates, now.UTC(), limit)
	if err != nil {
		zap.L().Error("Failed to list due affiliates", zap.Error(err))
		return nil, fmt.Errorf("failed to list due affiliates: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var userIds []string
	for rows.Next() {
		var userId string
		if err := rows.Scan(&userId); err != nil {
			return nil, fmt.Errorf("failed to scan due affiliate: %w", err)
		}
		userIds = append(userIds, userId)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating due affiliates: %w", err)
	}
	return userIds, nil
}

func (s *Service) CountDueAffiliates(ctx context.Context, now time.Time) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, queryCountDueAffiliates, now.UTC()).Scan(&count); err != nil {
		zap.L().Error("Failed to count due affiliates", zap.Error(err))
		return 0, fmt.Errorf("failed to count due affiliates: %w", err)
	}
	return count, nil
}

func (s *Service) ListDueEntries(ctx context.Context, userId string, now time.Time, limit int) ([]models.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, queryListDueEntries, userId, now.UTC(), limit)
	if err != nil {
		zap.L().Error("Failed to list due entries", zap.String("affiliate_user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to list due entries: %w", err)
	}
	return scanEntries(rows)
}

// PromoteEntry moves a due pending commission to available and credits its amount to the
// affiliate's balance in the same transaction. It returns false without error when the entry
// no longer matches (status=pending, available_at<=now), i.e. another run promoted it first.
func (s *Service) PromoteEntry(ctx context.Context, entryId string, now time.Time) (bool, error) {
	now = now.UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	var userId, currency string
	var amount int64
	err = tx.QueryRowContext(ctx, queryGetEntryAmount, entryId).Scan(&userId, &currency, &amount)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("%w: %s", store.ErrEntryNotFound, entryId)
	}
	if err != nil {
		return false, fmt.Errorf("failed to load entry %s: %w", entryId, err)
	}

	result, err := tx.ExecContext(ctx, queryPromoteEntry, s.now(), entryId, now)
	if err != nil {
		return false, fmt.Errorf("failed to promote entry %s: %w", entryId, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	row, err := loadLedgerRow(ctx, tx, userId, currency)
	if err != nil {
		return false, err
	}
	if err := row.ledger.Credit(currency, amount); err != nil {
		return false, fmt.Errorf("credit entry %s: %w", entryId, err)
	}
	if err := saveLedgerRow(ctx, tx, row, s.now()); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit promotion: %w", err)
	}

	zap.L().Debug("Entry promoted",
		zap.String("entry_id", entryId),
		zap.String("affiliate_user_id", userId),
		zap.String("currency", currency),
		zap.Int64("amount_cents", amount),
		zap.Int64("balance_cents", row.ledger.Balance(currency)))
	return true, nil
}
