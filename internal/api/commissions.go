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
	"errors"
	"strings"
	"time"

	"commission-ledger-go/internal/commission"
	"commission-ledger-go/internal/models"
	"commission-ledger-go/internal/store"

	"go.uber.org/zap"
)

// CommissionRequest is a commission earned on an upstream payment
type CommissionRequest struct {
	AffiliateUserId string    `json:"affiliate_user_id"`
	Currency        string    `json:"currency"`
	AmountCents     int64     `json:"amount_cents"`
	RateBps         *int64    `json:"commission_rate_bps,omitempty"`
	SourcePaymentId string    `json:"source_payment_id"`
	ReferredUserId  string    `json:"referred_user_id,omitempty"`
	AvailableAt     time.Time `json:"available_at,omitempty"`
	Note            string    `json:"note,omitempty"`
}

// DestinationRequest sets where an affiliate is paid
type DestinationRequest struct {
	Destination string `json:"destination"`
	Network     string `json:"network"`
	Verified    bool   `json:"verified"`
}

// RecordCommission stores a pending commission. created is false when the same
// (affiliate, payment) was already recorded; the existing entry is returned.
func (s *LedgerService) RecordCommission(ctx context.Context, req CommissionRequest) (record *models.EntryRecord, created bool, err error) {
	switch {
	case strings.TrimSpace(req.AffiliateUserId) == "":
		return nil, false, invalid("affiliate_user_id is required")
	case strings.TrimSpace(req.SourcePaymentId) == "":
		return nil, false, invalid("source_payment_id is required")
	case models.NormalizeCurrency(req.Currency) == "":
		return nil, false, invalid("currency is required")
	case req.AmountCents <= 0:
		return nil, false, invalid("amount_cents must be positive")
	case req.RateBps != nil && (*req.RateBps < 0 || *req.RateBps > 10000):
		return nil, false, invalid("commission_rate_bps must be between 0 and 10000")
	}

	entry, err := s.engine.RecordCommission(ctx, commission.CommissionEarned{
		AffiliateUserId: req.AffiliateUserId,
		Currency:        req.Currency,
		AmountCents:     req.AmountCents,
		RateBps:         req.RateBps,
		SourcePaymentId: req.SourcePaymentId,
		ReferredUserId:  req.ReferredUserId,
		AvailableAt:     req.AvailableAt,
		Note:            req.Note,
	})
	if errors.Is(err, store.ErrDuplicateEntry) && entry != nil {
		r := toEntryRecord(entry)
		return &r, false, nil
	}
	if err != nil {
		zap.L().Error("Failed to record commission",
			zap.String("affiliate_user_id", req.AffiliateUserId),
			zap.String("source_payment_id", req.SourcePaymentId),
			zap.Error(err))
		return nil, false, err
	}

	r := toEntryRecord(entry)
	return &r, true, nil
}

// SetPayoutDestination registers or replaces an affiliate's payout destination
func (s *LedgerService) SetPayoutDestination(ctx context.Context, userId string, req DestinationRequest) (*models.AffiliateAccount, error) {
	userId = strings.TrimSpace(userId)
	if userId == "" {
		return nil, invalid("user_id is required")
	}
	if strings.TrimSpace(req.Destination) == "" {
		return nil, invalid("destination is required")
	}

	account, err := s.store.SetPayoutDestination(ctx, store.PayoutDestinationParams{
		AffiliateUserId: userId,
		Destination:     strings.TrimSpace(req.Destination),
		Network:         strings.TrimSpace(req.Network),
		Verified:        req.Verified,
	})
	if err != nil {
		zap.L().Error("Failed to set payout destination", zap.String("user_id", userId), zap.Error(err))
		return nil, err
	}

	zap.L().Info("Payout destination updated",
		zap.String("user_id", userId),
		zap.String("network", account.PayoutNetwork),
		zap.Bool("verified", account.PayoutVerified))
	return account, nil
}
