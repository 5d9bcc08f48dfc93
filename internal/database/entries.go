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

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"commission-ledger-go/internal/models"
	"commission-ledger-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// checkExistingCommission classifies an existing commission on the same payment
func (s *Service) checkExistingCommission(ctx context.Context, params store.RecordCommissionParams) error {
	var existingId, existingAffiliate string
	err := s.db.QueryRowContext(ctx, queryCheckDuplicateCommission, params.SourcePaymentId).Scan(&existingId, &existingAffiliate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check for duplicate commission: %w", err)
	}

	if existingAffiliate != params.AffiliateUserId {
		zap.L().Warn("Payment already credited to another affiliate",
			zap.String("source_payment_id", params.SourcePaymentId),
			zap.String("existing_entry_id", existingId),
			zap.String("existing_affiliate_user_id", existingAffiliate),
			zap.String("affiliate_user_id", params.AffiliateUserId))
		return fmt.Errorf("%w: payment %s belongs to affiliate %s", store.ErrInvoiceAttributed, params.SourcePaymentId, existingAffiliate)
	}

	zap.L().Warn("Duplicate commission detected, skipping",
		zap.String("source_payment_id", params.SourcePaymentId),
		zap.String("existing_entry_id", existingId))
	return fmt.Errorf("%w: commission for payment %s already exists", store.ErrDuplicateEntry, params.SourcePaymentId)
}

// RecordCommission creates a pending commission entry for an upstream payment.
// A payment carries at most one commission: a redelivery for the same affiliate returns
// store.ErrDuplicateEntry, a claim by a different affiliate store.ErrInvoiceAttributed.
func (s *Service) RecordCommission(ctx context.Context, params store.RecordCommissionParams) (*models.LedgerEntry, error) {
	params.AffiliateUserId = strings.TrimSpace(params.AffiliateUserId)
	params.SourcePaymentId = strings.TrimSpace(params.SourcePaymentId)
	params.Currency = models.NormalizeCurrency(params.Currency)

	switch {
	case params.AffiliateUserId == "":
		return nil, fmt.Errorf("affiliate user id cannot be empty")
	case params.SourcePaymentId == "":
		return nil, fmt.Errorf("source payment id cannot be empty")
	case params.Currency == "":
		return nil, fmt.Errorf("currency cannot be empty")
	case params.AmountCents <= 0:
		return nil, fmt.Errorf("commission amount must be positive, got %d", params.AmountCents)
	case params.CommissionRateBps != nil && *params.CommissionRateBps < 0:
		return nil, fmt.Errorf("commission rate cannot be negative, got %d", *params.CommissionRateBps)
	}

	zap.L().Info("Recording commission",
		zap.String("affiliate_user_id", params.AffiliateUserId),
		zap.String("source_payment_id", params.SourcePaymentId),
		zap.String("currency", params.Currency),
		zap.Int64("amount_cents", params.AmountCents))

	// Check for duplicate commission
	if err := s.checkExistingCommission(ctx, params); err != nil {
		return nil, err
	}

	if _, err := s.EnsureAffiliateAccount(ctx, params.AffiliateUserId); err != nil {
		return nil, err
	}

	now := s.now()
	availableAt := params.AvailableAt.UTC()
	if params.AvailableAt.IsZero() {
		availableAt = now
	}

	entry := &models.LedgerEntry{
		Id:                uuid.New().String(),
		AffiliateUserId:   params.AffiliateUserId,
		Type:              models.EntryTypeCommission,
		Status:            models.StatusPending,
		Currency:          params.Currency,
		AmountCents:       params.AmountCents,
		CommissionRateBps: params.CommissionRateBps,
		SourcePaymentId:   params.SourcePaymentId,
		ReferredUserId:    strings.TrimSpace(params.ReferredUserId),
		AvailableAt:       availableAt,
		CreatedAt:         now,
		UpdatedAt:         now,
		Note:              params.Note,
	}

	if err := insertEntry(ctx, s.db, entry); err != nil {
		if isUniqueViolation(err) {
			// Lost the insert race; report who holds the payment
			if checkErr := s.checkExistingCommission(ctx, params); checkErr != nil {
				return nil, checkErr
			}
			return nil, fmt.Errorf("%w: commission for payment %s already exists", store.ErrDuplicateEntry, params.SourcePaymentId)
		}
		zap.L().Error("Failed to insert commission", zap.String("source_payment_id", params.SourcePaymentId), zap.Error(err))
		return nil, fmt.Errorf("failed to insert commission: %w", err)
	}

	zap.L().Info("Commission recorded",
		zap.String("entry_id", entry.Id),
		zap.String("affiliate_user_id", entry.AffiliateUserId),
		zap.Time("available_at", entry.AvailableAt))
	return entry, nil
}

func (s *Service) GetEntry(ctx context.Context, entryId string) (*models.LedgerEntry, error) {
	entry, err := scanEntry(s.db.QueryRowContext(ctx, queryGetEntry, entryId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrEntryNotFound, entryId)
	}
	if err != nil {
		zap.L().Error("Failed to query ledger entry", zap.String("entry_id", entryId), zap.Error(err))
		return nil, fmt.Errorf("unable to query ledger entry: %w", err)
	}
	return entry, nil
}

// FindCommissionByInvoice returns the earliest commission entry for an invoice
func (s *Service) FindCommissionByInvoice(ctx context.Context, invoiceId string) (*models.LedgerEntry, error) {
	entry, err := scanEntry(s.db.QueryRowContext(ctx, queryFindCommissionByInvoice, invoiceId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no commission for invoice %s", store.ErrEntryNotFound, invoiceId)
	}
	if err != nil {
		zap.L().Error("Failed to query commission by invoice", zap.String("invoice_id", invoiceId), zap.Error(err))
		return nil, fmt.Errorf("unable to query commission by invoice: %w", err)
	}
	return entry, nil
}

func (s *Service) GetInvoiceEntries(ctx context.Context, invoiceId string) ([]models.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, queryGetInvoiceEntries, invoiceId)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoice entries: %w", err)
	}
	return scanEntries(rows)
}

// GetEntryHistory returns an affiliate's entries, newest first
func (s *Service) GetEntryHistory(ctx context.Context, userId string, limit, offset int) ([]models.LedgerEntry, error) {
	zap.L().Debug("Getting entry history",
		zap.String("affiliate_user_id", userId),
		zap.Int("limit", limit),
		zap.Int("offset", offset))

	rows, err := s.db.QueryContext(ctx, queryGetEntryHistory, userId, limit, offset)
	if err != nil {
		zap.L().Error("Failed to get entry history", zap.String("affiliate_user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to get entry history: %w", err)
	}
	return scanEntries(rows)
}

// SumReversedForInvoice returns the magnitude already reversed against an invoice for one affiliate
func (s *Service) SumReversedForInvoice(ctx context.Context, invoiceId, affiliateUserId string) (int64, error) {
	return sumReversed(ctx, s.db, invoiceId, affiliateUserId)
}

// queryer is satisfied by *sql.DB and *sql.Tx
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func sumReversed(ctx context.Context, q queryer, invoiceId, affiliateUserId string) (int64, error) {
	var total int64
	if err := q.QueryRowContext(ctx, querySumReversedForInvoice, invoiceId, affiliateUserId).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum reversals for invoice %s: %w", invoiceId, err)
	}
	return total, nil
}

func insertEntry(ctx context.Context, q queryer, entry *models.LedgerEntry) error {
	var rateBps sql.NullInt64
	if entry.CommissionRateBps != nil {
		rateBps = sql.NullInt64{Int64: *entry.CommissionRateBps, Valid: true}
	}
	_, err := q.ExecContext(ctx, queryInsertEntry,
		entry.Id, entry.AffiliateUserId, string(entry.Type), string(entry.Status), entry.Currency,
		entry.AmountCents, rateBps, entry.SourcePaymentId, entry.ReferredUserId, entry.TransferId,
		entry.AvailableAt, entry.CreatedAt, entry.UpdatedAt, entry.Note)
	return err
}

// newAdjustment builds a signed adjustment entry that mirrors a commission
func newAdjustment(commission *models.LedgerEntry, status models.EntryStatus, amount int64, note string, now time.Time) *models.LedgerEntry {
	return &models.LedgerEntry{
		Id:              uuid.New().String(),
		AffiliateUserId: commission.AffiliateUserId,
		Type:            models.EntryTypeAdjustment,
		Status:          status,
		Currency:        commission.Currency,
		AmountCents:     -amount,
		SourcePaymentId: commission.SourcePaymentId,
		ReferredUserId:  commission.ReferredUserId,
		AvailableAt:     now,
		CreatedAt:       now,
		UpdatedAt:       now,
		Note:            note,
	}
}
