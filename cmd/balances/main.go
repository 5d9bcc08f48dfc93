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

	"commission-ledger-go/internal/common"
	"commission-ledger-go/internal/config"
	"commission-ledger-go/internal/database"
	"commission-ledger-go/internal/formance"
	"commission-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type balanceStats struct {
	totalAffiliates  int
	totalBalances    int
	affiliatesInDebt int
	mirrorMismatches int
}

func formatDestination(account models.AffiliateAccount) string {
	if account.PayoutDestination == "" {
		return "none"
	}
	dest := account.PayoutDestination
	if len(dest) > 12 {
		dest = dest[:12] + "..."
	}
	if !account.PayoutVerified {
		dest += " (unverified)"
	}
	return dest
}

func printBalance(balance models.CurrencyBalance, isLast bool) {
	symbol := common.BoxPrefix(isLast)

	fmt.Printf("%s %-6s: balance %15s, debt %15s (v%d, updated: %s)\n",
		symbol,
		balance.Currency,
		common.FormatCents(balance.BalanceCents),
		common.FormatCents(balance.DebtCents),
		balance.Version,
		balance.UpdatedAt.Format("2006-01-02 15:04:05"))
}

func printAffiliateHeader(account models.AffiliateAccount, balanceCount int) {
	fmt.Printf("\n┌─ Affiliate: %s\n", account.UserId)
	fmt.Printf("│  Payout destination: %s\n", formatDestination(account))
	fmt.Printf("│  Currencies: %d\n", balanceCount)
	common.PrintBoxSeparator(78)
}

// compareMirror returns the currencies where the Formance mirror disagrees with the store
func compareMirror(ctx context.Context, mirror *formance.Service, userId string, balances []models.CurrencyBalance, logger *zap.Logger) map[string]formance.MirrorBalance {
	mirrored, err := mirror.GetAffiliateBalances(ctx, userId)
	if err != nil {
		logger.Warn("Failed to read Formance balances", zap.String("user_id", userId), zap.Error(err))
		return nil
	}

	byCurrency := make(map[string]formance.MirrorBalance, len(mirrored))
	for _, m := range mirrored {
		byCurrency[m.Currency] = m
	}

	mismatches := make(map[string]formance.MirrorBalance)
	for _, b := range balances {
		m := byCurrency[b.Currency]
		balance := decimal.New(b.BalanceCents, -2)
		debt := decimal.New(b.DebtCents, -2)
		if m.Available.Equal(balance) && m.Debt.Equal(debt) {
			continue
		}
		mismatches[b.Currency] = m
		logger.Warn("Formance mirror disagrees with store",
			zap.String("user_id", userId),
			zap.String("currency", b.Currency),
			zap.String("store_balance", balance.StringFixed(2)),
			zap.String("mirror_available", m.Available.StringFixed(2)),
			zap.String("store_debt", debt.StringFixed(2)),
			zap.String("mirror_debt", m.Debt.StringFixed(2)))
	}
	return mismatches
}

func processAffiliate(ctx context.Context, account models.AffiliateAccount, dbService *database.Service, mirror *formance.Service, stats *balanceStats, logger *zap.Logger) error {
	balances, err := dbService.GetCurrencyBalances(ctx, account.UserId)
	if err != nil {
		return fmt.Errorf("failed to get balances: %w", err)
	}

	if len(balances) == 0 {
		return nil
	}

	var mismatches map[string]formance.MirrorBalance
	if mirror != nil {
		mismatches = compareMirror(ctx, mirror, account.UserId, balances, logger)
		stats.mirrorMismatches += len(mismatches)
	}

	printAffiliateHeader(account, len(balances))
	inDebt := false
	for i, balance := range balances {
		isLast := i == len(balances)-1
		printBalance(balance, isLast)
		if m, ok := mismatches[balance.Currency]; ok {
			fmt.Printf("%s   ! mirror: available %s, pending %s, debt %s\n",
				common.BoxDetailPrefix(isLast),
				m.Available.StringFixed(2),
				m.Pending.StringFixed(2),
				m.Debt.StringFixed(2))
		}
		if balance.DebtCents > 0 {
			inDebt = true
		}
	}

	stats.totalBalances += len(balances)
	if inDebt {
		stats.affiliatesInDebt++
	}
	return nil
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	// Parse command line flags
	userFlag := flag.String("user", "", "Filter by affiliate user id (optional)")
	formanceFlag := flag.Bool("formance", false, "Cross-check balances against the Formance mirror")
	flag.Parse()

	logger.Info("Starting balance query")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Read-only: no Prime or Redis needed
	logger.Info("Connecting to database", zap.String("path", cfg.Database.Path))
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	var mirror *formance.Service
	if *formanceFlag {
		mirror, err = formance.NewService(ctx, cfg.Formance)
		if err != nil {
			logger.Fatal("Failed to initialize Formance mirror", zap.Error(err))
		}
	}

	affiliates, err := common.InitializeAffiliates(ctx, dbService, *userFlag, logger)
	if err != nil {
		logger.Fatal("Failed to initialize affiliates", zap.Error(err))
	}

	common.PrintHeader("AFFILIATE COMMISSION BALANCES", common.DefaultWidth)

	stats := balanceStats{}
	for _, account := range affiliates {
		stats.totalAffiliates++
		if err := processAffiliate(ctx, account, dbService, mirror, &stats, logger); err != nil {
			logger.Error("Failed to process affiliate",
				zap.String("user_id", account.UserId),
				zap.Error(err))
		}
	}

	summary := fmt.Sprintf("SUMMARY: %d balances across %d affiliates, %d in debt",
		stats.totalBalances, stats.totalAffiliates, stats.affiliatesInDebt)
	if mirror != nil {
		summary += fmt.Sprintf(", %d mirror mismatches", stats.mirrorMismatches)
	}
	common.PrintFooter(summary, common.DefaultWidth)

	logger.Info("Balance query completed",
		zap.Int("affiliates_queried", stats.totalAffiliates),
		zap.Int("total_balances", stats.totalBalances),
		zap.Int("affiliates_in_debt", stats.affiliatesInDebt),
		zap.Int("mirror_mismatches", stats.mirrorMismatches))
}
