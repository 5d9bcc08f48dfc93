package commission

import (
	"context"
	"errors"
	"fmt"

	"commission-ledger-go/internal/models"

	"go.uber.org/zap"
)

var ErrConservationViolated = errors.New("invoice reversed for more than it granted")

// InvoiceTotals is the per-affiliate accounting of one invoice
type InvoiceTotals struct {
	AffiliateUserId string `json:"affiliate_user_id"`
	GrantedCents    int64  `json:"granted_cents"`
	CanceledCents   int64  `json:"canceled_cents"`
	ReversedCents   int64  `json:"reversed_cents"`
}

// VerifyInvoiceConservation checks that reversals recorded against an invoice never exceed the
// commission it granted. Pending reductions shrink the commission in place, so the granted amount
// is the current commission amount plus what was canceled.
func (e *Engine) VerifyInvoiceConservation(ctx context.Context, invoiceId string) ([]InvoiceTotals, error) {
	entries, err := e.store.GetInvoiceEntries(ctx, invoiceId)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice entries: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: invoice %s", ErrNoMatchingEntry, invoiceId)
	}

	byAffiliate := make(map[string]*InvoiceTotals)
	var order []string
	for _, entry := range entries {
		totals, ok := byAffiliate[entry.AffiliateUserId]
		if !ok {
			totals = &InvoiceTotals{AffiliateUserId: entry.AffiliateUserId}
			byAffiliate[entry.AffiliateUserId] = totals
			order = append(order, entry.AffiliateUserId)
		}
		switch {
		case entry.Type == models.EntryTypeCommission:
			totals.GrantedCents += entry.AbsAmountCents()
		case entry.Status == models.StatusCanceled:
			totals.CanceledCents += entry.AbsAmountCents()
		case entry.Status == models.StatusReversed:
			totals.ReversedCents += entry.AbsAmountCents()
		}
	}

	results := make([]InvoiceTotals, 0, len(order))
	var violations []error
	for _, userId := range order {
		totals := byAffiliate[userId]
		// Canceled cents were taken out of the commission amount itself
		totals.GrantedCents += totals.CanceledCents
		results = append(results, *totals)

		if totals.ReversedCents+totals.CanceledCents > totals.GrantedCents {
			zap.L().Error("Invoice conservation violated",
				zap.String("invoice_id", invoiceId),
				zap.String("affiliate_user_id", userId),
				zap.Int64("granted_cents", totals.GrantedCents),
				zap.Int64("canceled_cents", totals.CanceledCents),
				zap.Int64("reversed_cents", totals.ReversedCents))
			violations = append(violations, fmt.Errorf("%w: invoice %s affiliate %s granted=%d reversed=%d canceled=%d",
				ErrConservationViolated, invoiceId, userId, totals.GrantedCents, totals.ReversedCents, totals.CanceledCents))
		}
	}
	return results, errors.Join(violations...)
}
