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

	"go.uber.org/zap"
)

// GetOrCreateRefundProgress returns the watermark row for (invoice, affiliate), creating it at 0
func (s *Service) GetOrCreateRefundProgress(ctx context.Context, invoiceId, affiliateUserId string) (*models.RefundProgress, error) {
	now := s.now()
	if _, err := s.db.ExecContext(ctx, queryInsertRefundProgress, invoiceId, affiliateUserId, now, now); err != nil {
		zap.L().Error("Failed to create refund progress",
			zap.String("invoice_id", invoiceId),
			zap.String("affiliate_user_id", affiliateUserId),
			zap.Error(err))
		return nil, fmt.Errorf("failed to create refund progress: %w", err)
	}

	var progress models.RefundProgress
	err := s.db.QueryRowContext(ctx, queryGetRefundProgress, invoiceId, affiliateUserId).Scan(
		&progress.InvoiceId, &progress.AffiliateUserId, &progress.RefundedPaidCentsTotal,
		&progress.Version, &progress.CreatedAt, &progress.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get refund progress: %w", err)
	}
	return &progress, nil
}

// AdvanceRefundWatermark stores total as the new cumulative refund total if the row still has
// expectedVersion. The total never decreases; a stale version or a lower total is a conflict.
func (s *Service) AdvanceRefundWatermark(ctx context.Context, invoiceId, affiliateUserId string, total, expectedVersion int64) error {
	return advanceWatermark(ctx, s.db, invoiceId, affiliateUserId, total, expectedVersion, s.now())
}

// ApplyReversal commits one refund-driven reversal and the matching watermark advance atomically.
// Any mismatch with the expected state returns store.ErrConcurrentModification and nothing is written.
func (s *Service) ApplyReversal(ctx context.Context, params store.ApplyReversalParams) (*store.ReversalOutcome, error) {
	if params.ReverseAmount <= 0 {
		return nil, fmt.Errorf("reverse amount must be positive, got %d", params.ReverseAmount)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	now := s.now()
	if err := advanceWatermark(ctx, tx, params.InvoiceId, params.AffiliateUserId, params.RefundedTotal, params.ProgressVersion, now); err != nil {
		return nil, err
	}

	entry, err := scanEntry(tx.QueryRowContext(ctx, queryGetEntry, params.EntryId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrEntryNotFound, params.EntryId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load entry %s: %w", params.EntryId, err)
	}
	if entry.Type != models.EntryTypeCommission || entry.Status != params.ExpectedStatus || entry.AmountCents != params.ExpectedAmount {
		return nil, fmt.Errorf("entry %s is %s/%d, expected %s/%d: %w",
			entry.Id, entry.Status, entry.AmountCents, params.ExpectedStatus, params.ExpectedAmount, store.ErrConcurrentModification)
	}

	alreadyReversed, err := sumReversed(ctx, tx, params.InvoiceId, params.AffiliateUserId)
	if err != nil {
		return nil, err
	}
	if params.ReverseAmount > entry.AbsAmountCents()-alreadyReversed {
		return nil, fmt.Errorf("reversal of %d exceeds remaining %d for invoice %s: %w",
			params.ReverseAmount, entry.AbsAmountCents()-alreadyReversed, params.InvoiceId, store.ErrConcurrentModification)
	}

	var outcome *store.ReversalOutcome
	switch entry.Status {
	case models.StatusPending:
		outcome, err = reducePending(ctx, tx, entry, params, now)
	case models.StatusAvailable, models.StatusFailed, models.StatusFallback:
		outcome, err = reverseFromBalance(ctx, tx, entry, params, now)
	case models.StatusPaid:
		outcome, err = reverseIntoDebt(ctx, tx, entry, params, now)
	default:
		return nil, fmt.Errorf("cannot reverse entry %s in status %s", entry.Id, entry.Status)
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit reversal: %w", err)
	}

	zap.L().Info("Reversal applied",
		zap.String("invoice_id", params.InvoiceId),
		zap.String("entry_id", entry.Id),
		zap.String("entry_status", string(outcome.EntryStatus)),
		zap.Int64("reverse_amount_cents", params.ReverseAmount),
		zap.Int64("balance_debited_cents", outcome.BalanceDebited),
		zap.Int64("debt_accrued_cents", outcome.DebtAccrued),
		zap.Int64("refunded_total_cents", params.RefundedTotal))
	return outcome, nil
}

// reducePending shrinks a pending commission in place; no money was made available yet
func reducePending(ctx context.Context, tx *sql.Tx, entry *models.LedgerEntry, params store.ApplyReversalParams, now time.Time) (*store.ReversalOutcome, error) {
	remaining := max(entry.AmountCents-params.ReverseAmount, 0)
	status := models.StatusPending
	if remaining == 0 {
		status = models.StatusCanceled
	}

	result, err := tx.ExecContext(ctx, queryReducePendingEntry, remaining, string(status), now, entry.Id, params.ExpectedAmount)
	if err != nil {
		return nil, fmt.Errorf("failed to reduce pending entry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("reduce pending entry %s: %w", entry.Id, store.ErrConcurrentModification)
	}

	adjustment := newAdjustment(entry, models.StatusCanceled, params.ReverseAmount, params.Note, now)
	if err := insertEntry(ctx, tx, adjustment); err != nil {
		return nil, fmt.Errorf("failed to insert cancel adjustment: %w", err)
	}

	return &store.ReversalOutcome{
		AdjustmentId:    adjustment.Id,
		RemainingAmount: remaining,
		EntryStatus:     status,
	}, nil
}

// reverseFromBalance debits the available balance and carries any shortfall into debt
func reverseFromBalance(ctx context.Context, tx *sql.Tx, entry *models.LedgerEntry, params store.ApplyReversalParams, now time.Time) (*store.ReversalOutcome, error) {
	row, err := loadLedgerRow(ctx, tx, entry.AffiliateUserId, entry.Currency)
	if err != nil {
		return nil, err
	}
	debited, accrued, err := row.ledger.DebitOrAccrue(entry.Currency, params.ReverseAmount)
	if err != nil {
		return nil, err
	}
	if err := saveLedgerRow(ctx, tx, row, now); err != nil {
		return nil, err
	}

	adjustment := newAdjustment(entry, models.StatusReversed, params.ReverseAmount, params.Note, now)
	if err := insertEntry(ctx, tx, adjustment); err != nil {
		return nil, fmt.Errorf("failed to insert reversal adjustment: %w", err)
	}

	return &store.ReversalOutcome{
		AdjustmentId:    adjustment.Id,
		BalanceDebited:  debited,
		DebtAccrued:     accrued,
		RemainingAmount: entry.AmountCents,
		EntryStatus:     entry.Status,
	}, nil
}

// reverseIntoDebt records the whole reversal as debt; the money already left through a transfer
func reverseIntoDebt(ctx context.Context, tx *sql.Tx, entry *models.LedgerEntry, params store.ApplyReversalParams, now time.Time) (*store.ReversalOutcome, error) {
	row, err := loadLedgerRow(ctx, tx, entry.AffiliateUserId, entry.Currency)
	if err != nil {
		return nil, err
	}
	if err := row.ledger.AccrueDebt(entry.Currency, params.ReverseAmount); err != nil {
		return nil, err
	}
	if err := saveLedgerRow(ctx, tx, row, now); err != nil {
		return nil, err
	}

	adjustment := newAdjustment(entry, models.StatusReversed, params.ReverseAmount, params.Note, now)
	if err := insertEntry(ctx, tx, adjustment); err != nil {
		return nil, fmt.Errorf("failed to insert reversal adjustment: %w", err)
	}

	return &store.ReversalOutcome{
		AdjustmentId:    adjustment.Id,
		DebtAccrued:     params.ReverseAmount,
		RemainingAmount: entry.AmountCents,
		EntryStatus:     entry.Status,
	}, nil
}

func advanceWatermark(ctx context.Context, q queryer, invoiceId, affiliateUserId string, total, expectedVersion int64, now time.Time) error {
	result, err := q.ExecContext(ctx, queryAdvanceRefundWatermark, total, now, invoiceId, affiliateUserId, expectedVersion, total)
	if err != nil {
		zap.L().Error("Failed to advance refund watermark",
			zap.String("invoice_id", invoiceId),
			zap.String("affiliate_user_id", affiliateUserId),
			zap.Error(err))
		return fmt.Errorf("failed to advance refund watermark: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("advance watermark for invoice %s to %d at version %d: %w",
			invoiceId, total, expectedVersion, store.ErrConcurrentModification)
	}
	return nil
}
