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
	"time"

	"commission-ledger-go/internal/api"
	"commission-ledger-go/internal/commission"
	"commission-ledger-go/internal/common"
	"commission-ledger-go/internal/config"
	"commission-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func parseAndValidateFlags() (*api.CommissionRequest, error) {
	affiliateFlag := flag.String("affiliate", "", "Affiliate user id (required)")
	currencyFlag := flag.String("currency", "USD", "Currency code")
	amountFlag := flag.String("amount", "", "Commission amount, e.g. 12.50 (required)")
	paymentFlag := flag.String("payment", "", "Source payment or invoice id (required)")
	referredFlag := flag.String("referred", "", "Referred user id (optional)")
	rateFlag := flag.Int64("rate", -1, "Commission rate in basis points (default: COMMISSION_DEFAULT_RATE_BPS)")
	availableFlag := flag.String("available-at", "", "RFC3339 time the commission matures (default: now + holding period)")
	noteFlag := flag.String("note", "", "Free-form note")
	flag.Parse()

	if *affiliateFlag == "" || *amountFlag == "" || *paymentFlag == "" {
		return nil, fmt.Errorf("all flags are required: --affiliate, --amount, --payment")
	}

	amount, err := decimal.NewFromString(*amountFlag)
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %w", err)
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("amount must be greater than zero")
	}
	if !amount.Equal(amount.Truncate(2)) {
		return nil, fmt.Errorf("amount has more than two decimal places: %s", amount.String())
	}

	req := &api.CommissionRequest{
		AffiliateUserId: *affiliateFlag,
		Currency:        *currencyFlag,
		AmountCents:     amount.Shift(2).IntPart(),
		SourcePaymentId: *paymentFlag,
		ReferredUserId:  *referredFlag,
		Note:            *noteFlag,
	}
	if *rateFlag >= 0 {
		rate := *rateFlag
		req.RateBps = &rate
	}
	if *availableFlag != "" {
		availableAt, err := time.Parse(time.RFC3339, *availableFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid available-at: %w", err)
		}
		req.AvailableAt = availableAt
	}
	return req, nil
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	req, err := parseAndValidateFlags()
	if err != nil {
		logger.Fatal("Invalid arguments", zap.Error(err))
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	service := api.NewLedgerService(services.Engine, commission.MatureParams{})
	ctx = models.WithRequestContext(ctx, &models.RequestContext{Source: "cli", ReceivedAt: time.Now().UTC()})

	record, created, err := service.RecordCommission(ctx, *req)
	if err != nil {
		logger.Fatal("Failed to record commission", zap.Error(err))
	}

	if created {
		fmt.Println("\nCommission recorded")
	} else {
		fmt.Println("\nCommission already recorded for this payment (idempotent)")
	}
	fmt.Printf("   Entry ID:     %s\n", record.Id)
	fmt.Printf("   Amount:       %s\n", common.FormatMoney(record.AmountCents, record.Currency))
	fmt.Printf("   Status:       %s\n", record.Status)
	fmt.Printf("   Available at: %s\n\n", record.AvailableAt.Format("2006-01-02 15:04:05"))

	logger.Info("Commission recorded",
		zap.String("entry_id", record.Id),
		zap.String("affiliate_user_id", req.AffiliateUserId),
		zap.Bool("created", created))
}
