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
	"errors"
	"flag"
	"fmt"
	"time"

	"commission-ledger-go/internal/api"
	"commission-ledger-go/internal/commission"
	"commission-ledger-go/internal/common"
	"commission-ledger-go/internal/config"
	"commission-ledger-go/internal/models"

	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	entryFlag := flag.String("entry", "", "Commission entry id to pay (required)")
	flag.Parse()

	if *entryFlag == "" {
		logger.Fatal("Missing required flag: --entry")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}
	if !cfg.Payout.Enabled {
		logger.Fatal("Payouts are disabled, set PAYOUTS_ENABLED=true")
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	service := api.NewLedgerService(services.Engine, commission.MatureParams{})
	ctx = models.WithRequestContext(ctx, &models.RequestContext{Source: "cli", ReceivedAt: time.Now().UTC()})

	entry, err := services.DbService.GetEntry(ctx, *entryFlag)
	if err != nil {
		logger.Fatal("Failed to load entry", zap.String("entry_id", *entryFlag), zap.Error(err))
	}

	fmt.Printf("Paying entry %s to %s (%s, status %s)...\n",
		entry.Id, entry.AffiliateUserId, common.FormatMoney(entry.AmountCents, entry.Currency), entry.Status)

	result, err := service.Payout(ctx, entry.Id)
	switch {
	case errors.Is(err, commission.ErrAlreadyProcessed):
		fmt.Printf("\nEntry already paid (transfer %s)\n\n", entry.TransferId)
		return
	case errors.Is(err, commission.ErrInsufficientAccountVerification):
		logger.Fatal("Affiliate has no verified payout destination", zap.String("user_id", entry.AffiliateUserId))
	case err != nil:
		logger.Fatal("Payout failed", zap.String("entry_id", entry.Id), zap.Error(err))
	}

	fmt.Println("\nPayout completed")
	fmt.Printf("   Transfer ID:     %s\n", result.TransferId)
	fmt.Printf("   Idempotency key: %s\n", result.IdempotencyKey)
	fmt.Printf("   Amount:          %s\n", common.FormatMoney(result.AmountCents, entry.Currency))
	fmt.Printf("   Transferred:     %s\n", common.FormatMoney(result.TransferredCents, entry.Currency))
	fmt.Printf("   Debt recovered:  %s\n\n", common.FormatMoney(result.DebtRecoveredCents, entry.Currency))

	logger.Info("Payout completed",
		zap.String("entry_id", result.EntryId),
		zap.String("transfer_id", result.TransferId),
		zap.Int64("amount_cents", result.AmountCents))
}
