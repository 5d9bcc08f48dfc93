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

package common

import (
	"context"
	"fmt"

	"commission-ledger-go/internal/models"
	"commission-ledger-go/internal/store"

	"go.uber.org/zap"
)

// InitializeAffiliates retrieves affiliates based on an optional user id filter.
// If userFilter is provided, returns that single affiliate.
// If userFilter is empty, returns all affiliates.
func InitializeAffiliates(ctx context.Context, ledger store.LedgerStore, userFilter string, logger *zap.Logger) ([]models.AffiliateAccount, error) {
	var affiliates []models.AffiliateAccount

	if userFilter != "" {
		logger.Info("Looking up affiliate", zap.String("user_id", userFilter))
		account, err := ledger.GetAffiliateAccount(ctx, userFilter)
		if err != nil {
			return nil, fmt.Errorf("affiliate not found: %w", err)
		}
		affiliates = append(affiliates, *account)
	} else {
		all, err := ledger.GetAffiliates(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get affiliates: %w", err)
		}
		affiliates = append(affiliates, all...)
	}

	logger.Info("Retrieved affiliates", zap.Int("count", len(affiliates)))
	return affiliates, nil
}
