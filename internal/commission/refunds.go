package commission

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// RefundDelta is the unapplied part of a cumulative refund total
type RefundDelta struct {
	Delta         int64
	PreviousTotal int64
	// Version of the watermark row the delta was computed against
	Version int64
}

// ComputeDelta compares a reported cumulative refund total with the stored watermark.
// It never persists the new total; callers advance the watermark only after the
// matching reversal is durable.
func (e *Engine) ComputeDelta(ctx context.Context, invoiceId, affiliateUserId string, reportedTotal int64) (*RefundDelta, error) {
	if reportedTotal < 0 {
		return nil, fmt.Errorf("reported refund total cannot be negative, got %d", reportedTotal)
	}

	progress, err := e.store.GetOrCreateRefundProgress(ctx, invoiceId, affiliateUserId)
	if err != nil {
		return nil, fmt.Errorf("failed to load refund progress: %w", err)
	}

	if reportedTotal < progress.RefundedPaidCentsTotal {
		zap.L().Warn("Refund total lower than recorded watermark, possible out-of-order delivery",
			zap.String("invoice_id", invoiceId),
			zap.String("affiliate_user_id", affiliateUserId),
			zap.Int64("reported_total", reportedTotal),
			zap.Int64("recorded_total", progress.RefundedPaidCentsTotal))
	}

	return &RefundDelta{
		Delta:         max(0, reportedTotal-progress.RefundedPaidCentsTotal),
		PreviousTotal: progress.RefundedPaidCentsTotal,
		Version:       progress.Version,
	}, nil
}
