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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"commission-ledger-go/internal/api"
	"commission-ledger-go/internal/commission"
	"commission-ledger-go/internal/common"
	"commission-ledger-go/internal/config"
	"commission-ledger-go/internal/models"

	"go.uber.org/zap"
)

type maturationStats struct {
	batches  int
	promoted int
	errors   int
	byCur    map[string]models.CurrencyTotals
}

func printBatch(batch int, summary *models.MaturationSummary) {
	mode := "promoted"
	count := summary.PromotedCount
	if summary.DryRun {
		mode = "due"
		count = summary.DueEntries
	}

	fmt.Printf("\n┌─ Batch %d (%s)\n", batch, summary.Elapsed.Round(time.Millisecond))
	fmt.Printf("│  Affiliates: %d, %s: %d, lost races: %d, errors: %d\n",
		summary.ProcessedUsers, mode, count, summary.LostRaces, summary.Errors)
	common.PrintBoxSeparator(78)

	currencies := make([]string, 0, len(summary.ByCurrency))
	for currency := range summary.ByCurrency {
		currencies = append(currencies, currency)
	}
	sort.Strings(currencies)

	if len(currencies) == 0 {
		fmt.Printf("%s nothing %s\n", common.BoxPrefix(true), mode)
	}
	for i, currency := range currencies {
		totals := summary.ByCurrency[currency]
		fmt.Printf("%s %-6s: %4d entries, %15s\n",
			common.BoxPrefix(i == len(currencies)-1),
			currency,
			totals.Count,
			common.FormatMoney(totals.AmountCents, currency))
	}
}

func runBatches(ctx context.Context, service *api.LedgerService, req api.MaturationRequest, drain bool, maxBatches int, logger *zap.Logger) (maturationStats, error) {
	stats := maturationStats{byCur: make(map[string]models.CurrencyTotals)}

	for {
		summary, err := service.RunMaturation(ctx, req)
		if err != nil {
			return stats, err
		}
		stats.batches++
		stats.promoted += summary.PromotedCount
		stats.errors += summary.Errors
		for currency, totals := range summary.ByCurrency {
			acc := stats.byCur[currency]
			acc.Count += totals.Count
			acc.AmountCents += totals.AmountCents
			stats.byCur[currency] = acc
		}

		printBatch(stats.batches, summary)

		// A dry run never promotes, so draining would repeat the same batch
		if !drain || req.DryRun || !summary.HasMore {
			if summary.HasMore {
				logger.Info("More due commissions remain, run again to continue")
			}
			return stats, nil
		}
		if summary.PromotedCount == 0 && summary.LostRaces == 0 {
			logger.Warn("Batch made no progress, stopping", zap.Int("errors", summary.Errors))
			return stats, nil
		}
		if stats.batches >= maxBatches {
			logger.Warn("Batch limit reached, stopping", zap.Int("batches", stats.batches))
			return stats, nil
		}
	}
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	dryRunFlag := flag.Bool("dry-run", false, "Count due commissions without promoting them")
	maxUsersFlag := flag.Int("max-users", 0, "Affiliates per batch (default: MATURATION_MAX_USERS)")
	maxEntriesFlag := flag.Int("max-entries", 0, "Entries per affiliate per batch (default: MATURATION_MAX_ENTRIES_PER_USER)")
	budgetFlag := flag.Duration("budget", 0, "Time budget per batch (default: MATURATION_TIME_BUDGET)")
	drainFlag := flag.Bool("drain", false, "Keep running batches until nothing is due")
	maxBatchesFlag := flag.Int("max-batches", 50, "Upper bound on batches when draining")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	service := api.NewLedgerService(services.Engine, commission.MatureParams{
		MaxUsers:          cfg.Commission.MaxUsers,
		MaxEntriesPerUser: cfg.Commission.MaxEntriesPerUser,
		TimeBudget:        cfg.Commission.TimeBudget,
	})

	ctx = models.WithRequestContext(ctx, &models.RequestContext{Source: "cli", ReceivedAt: time.Now().UTC()})

	title := "COMMISSION MATURATION"
	if *dryRunFlag {
		title += " (DRY RUN)"
	}
	common.PrintHeader(title, common.DefaultWidth)

	stats, err := runBatches(ctx, service, api.MaturationRequest{
		MaxUsers:          *maxUsersFlag,
		MaxEntriesPerUser: *maxEntriesFlag,
		TimeBudget:        *budgetFlag,
		DryRun:            *dryRunFlag,
	}, *drainFlag, *maxBatchesFlag, logger)
	if err != nil {
		logger.Error("Maturation failed", zap.Error(err))
		services.Close()
		loggerCleanup()
		os.Exit(1)
	}

	summary := fmt.Sprintf("SUMMARY: %d batches, %d promoted, %d errors", stats.batches, stats.promoted, stats.errors)
	common.PrintFooter(summary, common.DefaultWidth)

	logger.Info("Maturation completed",
		zap.Int("batches", stats.batches),
		zap.Int("promoted", stats.promoted),
		zap.Int("errors", stats.errors),
		zap.Int("currencies", len(stats.byCur)))

	if stats.errors > 0 {
		services.Close()
		loggerCleanup()
		os.Exit(1)
	}
}
