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

// GetCurrencyBalances returns every balance row for an affiliate, ordered by currency
func (s *Service) GetCurrencyBalances(ctx context.Context, userId string) ([]models.CurrencyBalance, error) {
	zap.L().Debug("Getting currency balances", zap.String("affiliate_user_id", userId))

	rows, err := s.db.QueryContext(ctx, queryGetCurrencyBalances, userId)
	if err != nil {
		zap.L().Error("Failed to get currency balances", zap.String("affiliate_user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to get currency balances: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var balances []models.CurrencyBalance
	for rows.Next() {
		var balance models.CurrencyBalance
		err := rows.Scan(&balance.UserId, &balance.Currency, &balance.BalanceCents,
			&balance.DebtCents, &balance.Version, &balance.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		balances = append(balances, balance)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during balance row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating balance rows: %w", err)
	}

	zap.L().Debug("Retrieved currency balances", zap.String("affiliate_user_id", userId), zap.Int("count", len(balances)))
	return balances, nil
}

// GetAccountLedger loads balances and debt for an affiliate into a ledger value object
func (s *Service) GetAccountLedger(ctx context.Context, userId string) (*models.AccountLedger, error) {
	rows, err := s.GetCurrencyBalances(ctx, userId)
	if err != nil {
		return nil, err
	}
	ledger, err := models.RestoreAccountLedger(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to restore account ledger for %s: %w", userId, err)
	}
	return ledger, nil
}

// ledgerRow is the balance/debt pair of one (affiliate, currency) loaded inside a transaction.
// exists is false when no row was stored yet, in which case save inserts it.
type ledgerRow struct {
	userId   string
	currency string
	version  int64
	exists   bool
	ledger   *models.AccountLedger
}

func loadLedgerRow(ctx context.Context, tx *sql.Tx, userId, currency string) (*ledgerRow, error) {
	row := &ledgerRow{userId: userId, currency: currency, ledger: models.NewAccountLedger()}

	var balance, debt int64
	err := tx.QueryRowContext(ctx, queryGetCurrencyBalance, userId, currency).Scan(&balance, &debt, &row.version)
	if errors.Is(err, sql.ErrNoRows) {
		return row, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get balance for %s/%s: %w", userId, currency, err)
	}

	row.exists = true
	row.ledger, err = models.RestoreAccountLedger([]models.CurrencyBalance{
		{UserId: userId, Currency: currency, BalanceCents: balance, DebtCents: debt},
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

func saveLedgerRow(ctx context.Context, tx *sql.Tx, row *ledgerRow, now time.Time) error {
	balance := row.ledger.Balance(row.currency)
	debt := row.ledger.Debt(row.currency)

	if !row.exists {
		if _, err := tx.ExecContext(ctx, queryInsertCurrencyBalance, row.userId, row.currency, balance, debt, now); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("insert balance %s/%s: %w", row.userId, row.currency, store.ErrConcurrentModification)
			}
			return fmt.Errorf("failed to insert balance: %w", err)
		}
		return nil
	}

	result, err := tx.ExecContext(ctx, queryUpdateCurrencyBalance, balance, debt, now, row.userId, row.currency, row.version)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check balance update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update balance %s/%s version %d: %w", row.userId, row.currency, row.version, store.ErrConcurrentModification)
	}
	return nil
}
