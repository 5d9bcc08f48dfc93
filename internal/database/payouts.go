package database

import (
	"context"
	"fmt"

	"commission-ledger-go/internal/store"

	"go.uber.org/zap"
)

// CompletePayout marks an entry paid after the provider accepted the transfer, debits the balance by the
// paid amount (floored at zero) and settles the debt that was netted out of the transfer.
func (s *Service) CompletePayout(ctx context.Context, params store.CompletePayoutParams) error {
	if params.AmountCents < 0 || params.DebtRecoveredCents < 0 {
		return fmt.Errorf("payout amounts cannot be negative: amount=%d debt=%d", params.AmountCents, params.DebtRecoveredCents)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	now := s.now()
	result, err := tx.ExecContext(ctx, queryCompletePayout, params.TransferId, now, params.EntryId, string(params.ExpectedStatus))
	if err != nil {
		return fmt.Errorf("failed to mark entry paid: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("complete payout for entry %s from %s: %w", params.EntryId, params.ExpectedStatus, store.ErrConcurrentModification)
	}

	row, err := loadLedgerRow(ctx, tx, params.AffiliateUserId, params.Currency)
	if err != nil {
		return err
	}
	debited, shortfall, err := row.ledger.Debit(params.Currency, params.AmountCents)
	if err != nil {
		return err
	}
	recovered := row.ledger.RecoverDebt(params.Currency, params.DebtRecoveredCents)
	if err := saveLedgerRow(ctx, tx, row, now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit payout: %w", err)
	}

	if shortfall > 0 {
		zap.L().Warn("Payout exceeded available balance, balance floored at zero",
			zap.String("entry_id", params.EntryId),
			zap.Int64("shortfall_cents", shortfall))
	}
	zap.L().Info("Payout recorded",
		zap.String("entry_id", params.EntryId),
		zap.String("transfer_id", params.TransferId),
		zap.Int64("balance_debited_cents", debited),
		zap.Int64("debt_recovered_cents", recovered))
	return nil
}

// MarkPayoutFailed moves an available entry to failed so a later payout retries it.
// Entries already failed or in fallback are left untouched.
func (s *Service) MarkPayoutFailed(ctx context.Context, entryId, reason string) error {
	result, err := s.db.ExecContext(ctx, queryMarkPayoutFailed, reason, s.now(), entryId)
	if err != nil {
		zap.L().Error("Failed to mark payout failed", zap.String("entry_id", entryId), zap.Error(err))
		return fmt.Errorf("failed to mark payout failed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		zap.L().Debug("Entry not in available status, failure not recorded", zap.String("entry_id", entryId))
	}
	return nil
}
