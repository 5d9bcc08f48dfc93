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
package api

import (
	"context"
	"strings"
	"time"

	"commission-ledger-go/internal/commission"
	"commission-ledger-go/internal/models"

	"go.uber.org/zap"
)

// MaturationRequest overrides the default batch bounds; zero values keep the defaults
type MaturationRequest struct {
	Now               time.Time
	MaxUsers          int
	MaxEntriesPerUser int
	TimeBudget        time.Duration
	DryRun            bool
}

// RefundRequest reports the cumulative refunded amount of a paid invoice
type RefundRequest struct {
	InvoiceId          string `json:"invoice_id"`
	RefundedTotalCents int64  `json:"refunded_total_cents"`
}

// RunMaturation promotes one batch of due commissions
func (s *LedgerService) RunMaturation(ctx context.Context, req MaturationRequest) (*models.MaturationSummary, error) {
	if req.MaxUsers < 0 || req.MaxEntriesPerUser < 0 || req.TimeBudget < 0 {
		return nil, invalid("maturation bounds cannot be negative")
	}

	params := s.maturation
	params.Now = req.Now
	params.DryRun = req.DryRun
	if req.MaxUsers > 0 {
		params.MaxUsers = req.MaxUsers
	}
	if req.MaxEntriesPerUser > 0 {
		params.MaxEntriesPerUser = req.MaxEntriesPerUser
	}
	if req.TimeBudget > 0 {
		params.TimeBudget = req.TimeBudget
	}

	return s.engine.Mature(ctx, params)
}

// ApplyRefund reconciles a refund notification against the invoice's commission
func (s *LedgerService) ApplyRefund(ctx context.Context, req RefundRequest) (*models.ReconcileResult, error) {
	if strings.TrimSpace(req.InvoiceId) == "" {
		return nil, invalid("invoice_id is required")
	}
	if req.RefundedTotalCents < 0 {
		return nil, invalid("refunded_total_cents cannot be negative")
	}

	result, err := s.engine.ApplyRefund(ctx, req.InvoiceId, req.RefundedTotalCents)
	if err != nil {
		zap.L().Warn("Refund reconciliation failed",
			zap.String("invoice_id", req.InvoiceId),
			zap.Int64("refunded_total_cents", req.RefundedTotalCents),
			zap.Error(err))
		return nil, err
	}
	return result, nil
}

// Payout pays a single commission entry to its affiliate
func (s *LedgerService) Payout(ctx context.Context, entryId string) (*models.PayoutResult, error) {
	entryId = strings.TrimSpace(entryId)
	if entryId == "" {
		return nil, invalid("entry_id is required")
	}
	return s.engine.Payout(ctx, entryId)
}

// VerifyInvoice checks the conservation invariant for an invoice
func (s *LedgerService) VerifyInvoice(ctx context.Context, invoiceId string) ([]commission.InvoiceTotals, error) {
	invoiceId = strings.TrimSpace(invoiceId)
	if invoiceId == "" {
		return nil, invalid("invoice_id is required")
	}
	return s.engine.VerifyInvoiceConservation(ctx, invoiceId)
}
