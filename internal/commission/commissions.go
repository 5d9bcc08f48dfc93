package commission

import (
	"context"
	"errors"
	"time"

	"commission-ledger-go/internal/models"
	"commission-ledger-go/internal/store"

	"go.uber.org/zap"
)

// CommissionEarned is the billing event that creates a pending commission
type CommissionEarned struct {
	AffiliateUserId string
	Currency        string
	AmountCents     int64
	RateBps         *int64
	SourcePaymentId string
	ReferredUserId  string
	// AvailableAt defaults to now plus the configured holding period
	AvailableAt time.Time
	Note        string
}

// RecordCommission stores a pending commission. A redelivered event for the same
// (affiliate, payment) returns the existing entry and store.ErrDuplicateEntry; a payment
// already credited to another affiliate returns store.ErrInvoiceAttributed.
func (e *Engine) RecordCommission(ctx context.Context, event CommissionEarned) (*models.LedgerEntry, error) {
	availableAt := event.AvailableAt
	if availableAt.IsZero() {
		availableAt = e.now().Add(e.config.HoldingPeriod)
	}

	entry, err := e.store.RecordCommission(ctx, store.RecordCommissionParams{
		AffiliateUserId:   event.AffiliateUserId,
		Currency:          event.Currency,
		AmountCents:       event.AmountCents,
		CommissionRateBps: event.RateBps,
		SourcePaymentId:   event.SourcePaymentId,
		ReferredUserId:    event.ReferredUserId,
		AvailableAt:       availableAt,
		Note:              event.Note,
	})
	if errors.Is(err, store.ErrDuplicateEntry) {
		existing, findErr := e.findCommission(ctx, event.SourcePaymentId, event.AffiliateUserId)
		if findErr != nil {
			return nil, err
		}
		zap.L().Info("Commission already recorded",
			zap.String("entry_id", existing.Id),
			zap.String("source_payment_id", existing.SourcePaymentId))
		return existing, err
	}
	if err != nil {
		return nil, err
	}

	e.publish(ctx, models.LedgerEvent{
		Type:            models.EventCommissionEarned,
		Reference:       "earned:" + entry.Id,
		EntryId:         entry.Id,
		AffiliateUserId: entry.AffiliateUserId,
		InvoiceId:       entry.SourcePaymentId,
		Currency:        entry.Currency,
		AmountCents:     entry.AmountCents,
		OccurredAt:      entry.CreatedAt,
	})
	return entry, nil
}

// findCommission returns the commission an affiliate earned from a payment
func (e *Engine) findCommission(ctx context.Context, invoiceId, affiliateUserId string) (*models.LedgerEntry, error) {
	entries, err := e.store.GetInvoiceEntries(ctx, invoiceId)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].Type == models.EntryTypeCommission && entries[i].AffiliateUserId == affiliateUserId {
			return &entries[i], nil
		}
	}
	return nil, store.ErrEntryNotFound
}
