package commission

import (
	"context"
	"fmt"
	"time"

	"commission-ledger-go/internal/metrics"
	"commission-ledger-go/internal/models"

	"go.uber.org/zap"
)

const (
	defaultMaxUsers          = 100
	defaultMaxEntriesPerUser = 100
)

// MatureParams bounds one maturation batch
type MatureParams struct {
	// Now is the maturation cutoff; entries with availableAt <= Now are due. Defaults to the clock.
	Now               time.Time
	MaxUsers          int
	MaxEntriesPerUser int
	// TimeBudget stops the batch once exceeded; zero means no budget
	TimeBudget time.Duration
	DryRun     bool
}

// Mature promotes due pending commissions to available and credits balances.
// Overlapping runs are safe: each promotion is a conditional update, and a promotion
// that matches no row is counted as a lost race rather than an error.
func (e *Engine) Mature(ctx context.Context, params MatureParams) (*models.MaturationSummary, error) {
	start := e.clock.Now()
	now := params.Now
	if now.IsZero() {
		now = start
	}
	now = now.UTC()
	if params.MaxUsers <= 0 {
		params.MaxUsers = defaultMaxUsers
	}
	if params.MaxEntriesPerUser <= 0 {
		params.MaxEntriesPerUser = defaultMaxEntriesPerUser
	}

	summary := &models.MaturationSummary{
		ByCurrency: make(map[string]models.CurrencyTotals),
		DryRun:     params.DryRun,
	}
	defer func() {
		summary.Elapsed = e.clock.Now().Sub(start)
		metrics.MaturationDuration.Observe(summary.Elapsed.Seconds())
		switch {
		case summary.BudgetExceeded:
			metrics.MaturationRuns.WithLabelValues("budget_exceeded").Inc()
		case summary.HasMore:
			metrics.MaturationRuns.WithLabelValues("has_more").Inc()
		default:
			metrics.MaturationRuns.WithLabelValues("drained").Inc()
		}
	}()

	zap.L().Info("Starting maturation run",
		zap.Time("now", now),
		zap.Int("max_users", params.MaxUsers),
		zap.Int("max_entries_per_user", params.MaxEntriesPerUser),
		zap.Duration("time_budget", params.TimeBudget),
		zap.Bool("dry_run", params.DryRun))

	overBudget := func() bool {
		return params.TimeBudget > 0 && e.clock.Now().Sub(start) > params.TimeBudget
	}

	userIds, err := e.store.ListDueAffiliates(ctx, now, params.MaxUsers)
	if err != nil {
		return summary, fmt.Errorf("failed to list due affiliates: %w", err)
	}

	for _, userId := range userIds {
		if overBudget() {
			return e.stopOnBudget(summary), nil
		}
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		entries, err := e.store.ListDueEntries(ctx, userId, now, params.MaxEntriesPerUser)
		if err != nil {
			zap.L().Error("Failed to list due entries", zap.String("affiliate_user_id", userId), zap.Error(err))
			summary.Errors++
			continue
		}
		summary.ProcessedUsers++

		for _, entry := range entries {
			if overBudget() {
				return e.stopOnBudget(summary), nil
			}
			summary.DueEntries++

			if params.DryRun {
				addTotals(summary, entry.Currency, entry.AmountCents)
				continue
			}

			promoted, err := e.store.PromoteEntry(ctx, entry.Id, now)
			if err != nil {
				zap.L().Error("Failed to promote entry",
					zap.String("entry_id", entry.Id),
					zap.String("affiliate_user_id", userId),
					zap.Error(err))
				metrics.PromotionErrors.Inc()
				summary.Errors++
				continue
			}
			if !promoted {
				zap.L().Info("Entry already promoted by another run", zap.String("entry_id", entry.Id))
				metrics.PromotionLostRaces.Inc()
				summary.LostRaces++
				continue
			}

			summary.PromotedCount++
			addTotals(summary, entry.Currency, entry.AmountCents)
			metrics.EntriesPromoted.WithLabelValues(entry.Currency).Inc()
			metrics.CentsPromoted.WithLabelValues(entry.Currency).Add(float64(entry.AmountCents))

			e.publish(ctx, models.LedgerEvent{
				Type:            models.EventCommissionMatured,
				Reference:       "matured:" + entry.Id,
				EntryId:         entry.Id,
				AffiliateUserId: entry.AffiliateUserId,
				InvoiceId:       entry.SourcePaymentId,
				Currency:        entry.Currency,
				AmountCents:     entry.AmountCents,
				OccurredAt:      now,
			})
		}
	}

	remaining, err := e.store.CountDueAffiliates(ctx, now)
	if err != nil {
		zap.L().Error("Failed to count remaining due affiliates", zap.Error(err))
		summary.Errors++
		summary.HasMore = true
	} else {
		summary.HasMore = remaining > 0
	}

	zap.L().Info("Maturation run completed",
		zap.Int("processed_users", summary.ProcessedUsers),
		zap.Int("promoted_count", summary.PromotedCount),
		zap.Int("lost_races", summary.LostRaces),
		zap.Int("errors", summary.Errors),
		zap.Bool("has_more", summary.HasMore))
	return summary, nil
}

func (e *Engine) stopOnBudget(summary *models.MaturationSummary) *models.MaturationSummary {
	summary.BudgetExceeded = true
	summary.HasMore = true
	zap.L().Warn("Maturation time budget exceeded, stopping early",
		zap.Int("processed_users", summary.ProcessedUsers),
		zap.Int("promoted_count", summary.PromotedCount))
	return summary
}

func addTotals(summary *models.MaturationSummary, currency string, amount int64) {
	totals := summary.ByCurrency[currency]
	totals.Count++
	totals.AmountCents += amount
	summary.ByCurrency[currency] = totals
}
