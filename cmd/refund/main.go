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

func parseAndValidateFlags() (*api.RefundRequest, bool, error) {
	invoiceFlag := flag.String("invoice", "", "Invoice id the commission was earned on (required)")
	totalFlag := flag.String("total", "", "Cumulative refunded amount of the invoice, e.g. 12.50 (required)")
	verifyFlag := flag.Bool("verify", true, "Check invoice conservation after reconciling")
	flag.Parse()

	if *invoiceFlag == "" || *totalFlag == "" {
		return nil, false, fmt.Errorf("all flags are required: --invoice, --total")
	}

	total, err := decimal.NewFromString(*totalFlag)
	if err != nil {
		return nil, false, fmt.Errorf("invalid total format: %w", err)
	}
	if total.IsNegative() {
		return nil, false, fmt.Errorf("total cannot be negative")
	}
	if !total.Equal(total.Truncate(2)) {
		return nil, false, fmt.Errorf("total has more than two decimal places: %s", total.String())
	}

	return &api.RefundRequest{
		InvoiceId:          *invoiceFlag,
		RefundedTotalCents: total.Shift(2).IntPart(),
	}, *verifyFlag, nil
}

func printResult(result *models.ReconcileResult, currency string) {
	fmt.Printf("\n┌─ Invoice: %s\n", result.InvoiceId)
	fmt.Printf("│  Affiliate: %s\n", result.AffiliateUserId)
	common.PrintBoxSeparator(78)

	if result.NoopReason != "" {
		fmt.Printf("%s no change: %s (watermark %s)\n",
			common.BoxPrefix(true), result.NoopReason, common.FormatCents(result.PreviousTotal))
		return
	}

	fmt.Printf("%s refund delta:    %s\n", common.BoxPrefix(false), common.FormatCents(result.Delta))
	fmt.Printf("%s reversed:        %s\n", common.BoxPrefix(false), common.FormatMoney(result.ReversedCents, currency))
	fmt.Printf("%s from balance:    %s\n", common.BoxPrefix(false), common.FormatMoney(result.BalanceDebitedCents, currency))
	fmt.Printf("%s added to debt:   %s\n", common.BoxPrefix(false), common.FormatMoney(result.DebtAccruedCents, currency))
	fmt.Printf("%s entry status:    %s\n", common.BoxPrefix(true), result.EntryStatus)
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	req, verify, err := parseAndValidateFlags()
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

	common.PrintHeader("REFUND RECONCILIATION", common.DefaultWidth)

	result, err := service.ApplyRefund(ctx, *req)
	if err != nil {
		logger.Fatal("Refund reconciliation failed", zap.String("invoice_id", req.InvoiceId), zap.Error(err))
	}

	currency := ""
	if entry, err := services.DbService.FindCommissionByInvoice(ctx, req.InvoiceId); err == nil {
		currency = entry.Currency
	}
	printResult(result, currency)

	if verify {
		totals, err := service.VerifyInvoice(ctx, req.InvoiceId)
		if err != nil {
			logger.Fatal("Invoice conservation check failed", zap.String("invoice_id", req.InvoiceId), zap.Error(err))
		}
		for _, t := range totals {
			logger.Info("Invoice conservation holds",
				zap.String("affiliate_user_id", t.AffiliateUserId),
				zap.Int64("granted_cents", t.GrantedCents),
				zap.Int64("canceled_cents", t.CanceledCents),
				zap.Int64("reversed_cents", t.ReversedCents))
		}
	}

	common.PrintFooter(fmt.Sprintf("Refunded total for %s is now %s", req.InvoiceId, common.FormatCents(req.RefundedTotalCents)), common.DefaultWidth)

	logger.Info("Refund reconciliation completed",
		zap.String("invoice_id", req.InvoiceId),
		zap.Int64("reversed_cents", result.ReversedCents),
		zap.Int64("debt_accrued_cents", result.DebtAccruedCents))
}
