package commission

import (
	"context"
	"errors"
	"fmt"

	"commission-ledger-go/internal/metrics"
	"commission-ledger-go/internal/models"
	"commission-ledger-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// payoutNamespace scopes the name-based UUIDs used as transfer idempotency keys
var payoutNamespace = uuid.MustParse("3b0f6c52-5d1e-4c8a-9f0e-7a61d2c4b8e3")

// IdempotencyKey derives the transfer idempotency key of a commission. The same payment and
// affiliate always produce the same key, so a retried payout maps to the original transfer.
func IdempotencyKey(sourcePaymentId, affiliateUserId string) string {
	return uuid.NewSHA1(payoutNamespace, []byte(sourcePaymentId+":"+affiliateUserId)).String()
}

// Payout transfers a commission to its affiliate and marks it paid. The transferred amount is
// the commission net of reversals, less any outstanding debt in the same currency.
func (e *Engine) Payout(ctx context.Context, entryId string) (*models.PayoutResult, error) {
	if e.transfers == nil {
		return nil, fmt.Errorf("payouts are not configured")
	}

	entry, err := e.store.GetEntry(ctx, entryId)
	if err != nil {
		return nil, err
	}
	if err := checkPayable(entry); err != nil {
		metrics.Payouts.WithLabelValues("rejected").Inc()
		return nil, err
	}

	account, err := e.store.GetAffiliateAccount(ctx, entry.AffiliateUserId)
	if errors.Is(err, store.ErrAccountNotFound) {
		metrics.Payouts.WithLabelValues("unverified").Inc()
		return nil, fmt.Errorf("%w: no account for affiliate %s", ErrInsufficientAccountVerification, entry.AffiliateUserId)
	}
	if err != nil {
		return nil, err
	}
	if !account.CanReceivePayouts() {
		metrics.Payouts.WithLabelValues("unverified").Inc()
		return nil, fmt.Errorf("%w: affiliate %s", ErrInsufficientAccountVerification, entry.AffiliateUserId)
	}

	release, err := e.locker.Acquire(ctx, "payout:"+entry.Id)
	if err != nil {
		return nil, fmt.Errorf("failed to lock entry %s: %w", entry.Id, err)
	}
	defer release()

	// Re-read under the lock; a concurrent payout may have finished meanwhile
	entry, err = e.store.GetEntry(ctx, entryId)
	if err != nil {
		return nil, err
	}
	if err := checkPayable(entry); err != nil {
		metrics.Payouts.WithLabelValues("rejected").Inc()
		return nil, err
	}

	reversed, err := e.store.SumReversedForInvoice(ctx, entry.SourcePaymentId, entry.AffiliateUserId)
	if err != nil {
		return nil, err
	}
	amount := entry.AmountCents - reversed
	if amount <= 0 {
		metrics.Payouts.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: entry %s was fully reversed", ErrNotEligible, entry.Id)
	}

	ledger, err := e.store.GetAccountLedger(ctx, entry.AffiliateUserId)
	if err != nil {
		return nil, err
	}
	recovered := min(ledger.Debt(entry.Currency), amount)
	transferAmount := amount - recovered
	key := IdempotencyKey(entry.SourcePaymentId, entry.AffiliateUserId)

	zap.L().Info("Processing payout",
		zap.String("entry_id", entry.Id),
		zap.String("affiliate_user_id", entry.AffiliateUserId),
		zap.String("currency", entry.Currency),
		zap.Int64("amount_cents", amount),
		zap.Int64("debt_recovered_cents", recovered),
		zap.String("idempotency_key", key))

	transferId := "offset:" + key
	if transferAmount > 0 {
		transfer, err := e.transfers.CreateTransfer(ctx, models.TransferRequest{
			IdempotencyKey:  key,
			AffiliateUserId: entry.AffiliateUserId,
			EntryId:         entry.Id,
			Currency:        entry.Currency,
			AmountCents:     transferAmount,
			Destination:     account.PayoutDestination,
			Network:         account.PayoutNetwork,
		})
		if err != nil {
			metrics.Payouts.WithLabelValues("failed").Inc()
			zap.L().Error("Transfer failed", zap.String("entry_id", entry.Id), zap.Error(err))
			if markErr := e.store.MarkPayoutFailed(ctx, entry.Id, err.Error()); markErr != nil {
				zap.L().Error("Failed to record payout failure", zap.String("entry_id", entry.Id), zap.Error(markErr))
			}
			return nil, fmt.Errorf("transfer for entry %s failed: %w", entry.Id, err)
		}
		transferId = transfer.TransferId
	}

	err = e.store.CompletePayout(ctx, store.CompletePayoutParams{
		EntryId:            entry.Id,
		AffiliateUserId:    entry.AffiliateUserId,
		Currency:           entry.Currency,
		ExpectedStatus:     entry.Status,
		AmountCents:        amount,
		DebtRecoveredCents: recovered,
		TransferId:         transferId,
	})
	if err != nil {
		// The transfer exists; a retry reuses the idempotency key and completes the entry
		zap.L().Error("Transfer sent but payout not recorded",
			zap.String("entry_id", entry.Id),
			zap.String("transfer_id", transferId),
			zap.Error(err))
		if errors.Is(err, store.ErrConcurrentModification) {
			if current, getErr := e.store.GetEntry(ctx, entry.Id); getErr == nil && current.Status == models.StatusPaid {
				return nil, fmt.Errorf("%w: entry %s paid by transfer %s", ErrAlreadyProcessed, entry.Id, current.TransferId)
			}
		}
		return nil, err
	}

	metrics.Payouts.WithLabelValues("paid").Inc()
	e.publish(ctx, models.LedgerEvent{
		Type:            models.EventPayoutCompleted,
		Reference:       "payout:" + key,
		EntryId:         entry.Id,
		AffiliateUserId: entry.AffiliateUserId,
		InvoiceId:       entry.SourcePaymentId,
		Currency:        entry.Currency,
		AmountCents:     amount,
		BalanceCents:    transferAmount,
		DebtCents:       recovered,
	})

	return &models.PayoutResult{
		EntryId:            entry.Id,
		TransferId:         transferId,
		IdempotencyKey:     key,
		AmountCents:        amount,
		TransferredCents:   transferAmount,
		DebtRecoveredCents: recovered,
	}, nil
}

func checkPayable(entry *models.LedgerEntry) error {
	if entry.Type != models.EntryTypeCommission {
		return fmt.Errorf("%w: entry %s is an adjustment", ErrNotEligible, entry.Id)
	}
	if entry.Status == models.StatusPaid {
		return fmt.Errorf("%w: entry %s paid by transfer %s", ErrAlreadyProcessed, entry.Id, entry.TransferId)
	}
	if !entry.Status.IsPayable() {
		return fmt.Errorf("%w: entry %s is %s", ErrNotEligible, entry.Id, entry.Status)
	}
	return nil
}
