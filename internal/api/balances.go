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
	"fmt"
	"strings"

	"commission-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// GetAffiliateBalances returns balance and debt per currency for an affiliate
func (s *LedgerService) GetAffiliateBalances(ctx context.Context, userId string) ([]models.AffiliateBalance, error) {
	userId = strings.TrimSpace(userId)
	if userId == "" {
		return nil, invalid("user_id is required")
	}

	if _, err := s.store.GetAffiliateAccount(ctx, userId); err != nil {
		return nil, err
	}

	balances, err := s.store.GetCurrencyBalances(ctx, userId)
	if err != nil {
		zap.L().Error("Failed to get affiliate balances", zap.String("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve balances")
	}

	result := make([]models.AffiliateBalance, len(balances))
	for i, balance := range balances {
		result[i] = models.AffiliateBalance{
			Currency:     balance.Currency,
			BalanceCents: balance.BalanceCents,
			DebtCents:    balance.DebtCents,
			Balance:      decimal.New(balance.BalanceCents, -2),
			Debt:         decimal.New(balance.DebtCents, -2),
		}
	}

	return result, nil
}

// GetEntryHistory returns paginated ledger entries for an affiliate, newest first
func (s *LedgerService) GetEntryHistory(ctx context.Context, userId string, limit, offset int) ([]models.EntryRecord, error) {
	userId = strings.TrimSpace(userId)
	if userId == "" {
		return nil, invalid("user_id is required")
	}

	if limit <= 0 || limit > maxHistoryLimit {
		limit = defaultHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}

	entries, err := s.store.GetEntryHistory(ctx, userId, limit, offset)
	if err != nil {
		zap.L().Error("Failed to get entry history",
			zap.String("user_id", userId),
			zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve entry history")
	}

	result := make([]models.EntryRecord, len(entries))
	for i, entry := range entries {
		result[i] = toEntryRecord(&entry)
	}

	return result, nil
}

func toEntryRecord(entry *models.LedgerEntry) models.EntryRecord {
	return models.EntryRecord{
		Id:              entry.Id,
		Type:            string(entry.Type),
		Status:          string(entry.Status),
		Currency:        entry.Currency,
		AmountCents:     entry.AmountCents,
		SourcePaymentId: entry.SourcePaymentId,
		TransferId:      entry.TransferId,
		AvailableAt:     entry.AvailableAt,
		CreatedAt:       entry.CreatedAt,
		Note:            entry.Note,
	}
}
