package commission

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"commission-ledger-go/internal/metrics"
	"commission-ledger-go/internal/models"
	"commission-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	noopZeroDelta     = "zero_delta"
	noopFullyReversed = "fully_reversed"
	noopZeroReversal  = "zero_reversal"
)

// ApplyRefund converts a cumulative refunded-paid total for an invoice into an exactly-once
// reversal against the commission it generated. It returns ErrNoMatchingEntry when the
// invoice never produced a commission.
//
// The reversal and the watermark advance commit together. If another reconciliation for the
// same invoice commits first, the attempt is discarded and recomputed from scratch.
func (e *Engine) ApplyRefund(ctx context.Context, invoiceId string, reportedTotal int64) (*models.ReconcileResult, error) {
	invoiceId = strings.TrimSpace(invoiceId)
	if invoiceId == "" {
		metrics.RefundsObserved.WithLabelValues("no_match").Inc()
		return nil, fmt.Errorf("%w: empty invoice id", ErrNoMatchingEntry)
	}
	if reportedTotal < 0 {
		return nil, fmt.Errorf("reported refund total cannot be negative, got %d", reportedTotal)
	}

	commission, err := e.store.FindCommissionByInvoice(ctx, invoiceId)
	if errors.Is(err, store.ErrEntryNotFound) {
		zap.L().Info("Refund for invoice without commission, ignoring", zap.String("invoice_id", invoiceId))
		metrics.RefundsObserved.WithLabelValues("no_match").Inc()
		return nil, fmt.Errorf("%w: invoice %s", ErrNoMatchingEntry, invoiceId)
	}
	if err != nil {
		metrics.RefundsObserved.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to find commission for invoice %s: %w", invoiceId, err)
	}

	release, err := e.locker.Acquire(ctx, "refund:"+invoiceId+":"+commission.AffiliateUserId)
	if err != nil {
		return nil, fmt.Errorf("failed to lock invoice %s: %w", invoiceId, err)
	}
	defer release()

	for attempt := 1; attempt <= e.config.ReconcileMaxAttempts; attempt++ {
		result, err := e.reconcileOnce(ctx, invoiceId, reportedTotal)
		if errors.Is(err, store.ErrConcurrentModification) {
			metrics.ReconcileConflicts.Inc()
			zap.L().Warn("Concurrent modification during reconciliation, retrying",
				zap.String("invoice_id", invoiceId),
				zap.Int("attempt", attempt),
				zap.Error(err))
			continue
		}
		if err != nil {
			metrics.RefundsObserved.WithLabelValues("error").Inc()
			zap.L().Error("Refund reconciliation failed", zap.String("invoice_id", invoiceId), zap.Error(err))
			return nil, err
		}

		outcome := "applied"
		if result.NoopReason != "" {
			outcome = result.NoopReason
		}
		metrics.RefundsObserved.WithLabelValues(outcome).Inc()
		return result, nil
	}

	metrics.RefundsObserved.WithLabelValues("error").Inc()
	return nil, fmt.Errorf("reconcile invoice %s: gave up after %d attempts: %w",
		invoiceId, e.config.ReconcileMaxAttempts, store.ErrConcurrentModification)
}

func (e *Engine) reconcileOnce(ctx context.Context, invoiceId string, reportedTotal int64) (*models.ReconcileResult, error) {
	commission, err := e.store.FindCommissionByInvoice(ctx, invoiceId)
	if err != nil {
		return nil, fmt.Errorf("failed to reload commission for invoice %s: %w", invoiceId, err)
	}

	delta, err := e.ComputeDelta(ctx, invoiceId, commission.AffiliateUserId, reportedTotal)
	if err != nil {
		return nil, err
	}

	result := &models.ReconcileResult{
		InvoiceId:       invoiceId,
		AffiliateUserId: commission.AffiliateUserId,
		Delta:           delta.Delta,
		PreviousTotal:   delta.PreviousTotal,
		EntryStatus:     commission.Status,
	}

	if delta.Delta == 0 {
		// Absorb the duplicate delivery; the total itself never moves backwards
		if err := e.store.AdvanceRefundWatermark(ctx, invoiceId, commission.AffiliateUserId, delta.PreviousTotal, delta.Version); err != nil {
			return nil, err
		}
		zap.L().Info("Refund already applied, nothing to reverse",
			zap.String("invoice_id", invoiceId),
			zap.Int64("reported_total", reportedTotal),
			zap.Int64("recorded_total", delta.PreviousTotal))
		result.NoopReason = noopZeroDelta
		return result, nil
	}

	reverseAmount := ReversalAmount(delta.Delta, commission.RateBps(e.config.DefaultCommissionRateBps))

	alreadyReversed, err := e.store.SumReversedForInvoice(ctx, invoiceId, commission.AffiliateUserId)
	if err != nil {
		return nil, err
	}
	maxReversable := commission.AbsAmountCents() - alreadyReversed
	if maxReversable <= 0 {
		if err := e.store.AdvanceRefundWatermark(ctx, invoiceId, commission.AffiliateUserId, reportedTotal, delta.Version); err != nil {
			return nil, err
		}
		zap.L().Info("Commission already fully reversed",
			zap.String("invoice_id", invoiceId),
			zap.Int64("already_reversed", alreadyReversed))
		result.NoopReason = noopFullyReversed
		return result, nil
	}

	reverseAmount = min(reverseAmount, maxReversable)
	if reverseAmount <= 0 {
		if err := e.store.AdvanceRefundWatermark(ctx, invoiceId, commission.AffiliateUserId, reportedTotal, delta.Version); err != nil {
			return nil, err
		}
		result.NoopReason = noopZeroReversal
		return result, nil
	}

	outcome, err := e.store.ApplyReversal(ctx, store.ApplyReversalParams{
		EntryId:         commission.Id,
		AffiliateUserId: commission.AffiliateUserId,
		InvoiceId:       invoiceId,
		Currency:        commission.Currency,
		ExpectedStatus:  commission.Status,
		ExpectedAmount:  commission.AmountCents,
		ReverseAmount:   reverseAmount,
		RefundedTotal:   reportedTotal,
		ProgressVersion: delta.Version,
		Note:            fmt.Sprintf("refund of invoice %s, cumulative %d", invoiceId, reportedTotal),
	})
	if err != nil {
		return nil, err
	}

	result.ReversedCents = reverseAmount
	result.BalanceDebitedCents = outcome.BalanceDebited
	result.DebtAccruedCents = outcome.DebtAccrued
	result.EntryStatus = outcome.EntryStatus
	result.AdjustmentId = outcome.AdjustmentId

	route := reversalRoute(commission.Status)
	metrics.CentsReversed.WithLabelValues(commission.Currency, route).Add(float64(reverseAmount))
	if outcome.DebtAccrued > 0 {
		metrics.DebtAccrued.WithLabelValues(commission.Currency).Add(float64(outcome.DebtAccrued))
	}

	eventType := models.EventCommissionReversed
	if commission.Status == models.StatusPending {
		eventType = models.EventPendingReduced
	}
	e.publish(ctx, models.LedgerEvent{
		Type:            eventType,
		Reference:       "reversal:" + outcome.AdjustmentId,
		EntryId:         commission.Id,
		AffiliateUserId: commission.AffiliateUserId,
		InvoiceId:       invoiceId,
		Currency:        commission.Currency,
		AmountCents:     reverseAmount,
		BalanceCents:    outcome.BalanceDebited,
		DebtCents:       outcome.DebtAccrued,
	})
	return result, nil
}

// ReversalAmount is the commission share of a refunded amount, rounded half away from zero
func ReversalAmount(refundedCents, rateBps int64) int64 {
	return decimal.NewFromInt(refundedCents).
		Mul(decimal.NewFromInt(rateBps)).
		Div(decimal.NewFromInt(basisPoints)).
		Round(0).
		IntPart()
}

func reversalRoute(status models.EntryStatus) string {
	switch status {
	case models.StatusPending:
		return "pending"
	case models.StatusPaid:
		return "debt"
	default:
		return "balance"
	}
}
