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

	"commission-ledger-go/internal/models"
	"commission-ledger-go/internal/store"

	"go.uber.org/zap"
)

func (s *Service) EnsureAffiliateAccount(ctx context.Context, userId string) (*models.AffiliateAccount, error) {
	userId = strings.TrimSpace(userId)
	if userId == "" {
		return nil, fmt.Errorf("affiliate user id cannot be empty")
	}

	now := s.now()
	if _, err := s.db.ExecContext(ctx, queryInsertAffiliate, userId, now, now); err != nil {
		zap.L().Error("Failed to create affiliate account", zap.String("affiliate_user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("unable to create affiliate account: %w", err)
	}
	return s.GetAffiliateAccount(ctx, userId)
}

func (s *Service) GetAffiliateAccount(ctx context.Context, userId string) (*models.AffiliateAccount, error) {
	zap.L().Debug("Querying affiliate account", zap.String("affiliate_user_id", userId))

	account, err := scanAffiliate(s.db.QueryRowContext(ctx, queryGetAffiliate, userId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrAccountNotFound, userId)
	}
	if err != nil {
		zap.L().Error("Failed to query affiliate account", zap.String("affiliate_user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("unable to query affiliate account: %w", err)
	}
	return account, nil
}

func (s *Service) GetAffiliates(ctx context.Context) ([]models.AffiliateAccount, error) {
	zap.L().Debug("Querying affiliate accounts")

	rows, err := s.db.QueryContext(ctx, queryGetAffiliates)
	if err != nil {
		zap.L().Error("Failed to query affiliate accounts", zap.Error(err))
		return nil, fmt.Errorf("unable to query affiliate accounts: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var accounts []models.AffiliateAccount
	for rows.Next() {
		account, err := scanAffiliate(rows)
		if err != nil {
			zap.L().Error("Failed to scan affiliate row", zap.Error(err))
			return nil, fmt.Errorf("unable to scan affiliate row: %w", err)
		}
		accounts = append(accounts, *account)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during affiliate row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating affiliate rows: %w", err)
	}

	zap.L().Debug("Retrieved affiliate accounts", zap.Int("count", len(accounts)))
	return accounts, nil
}

func (s *Service) SetPayoutDestination(ctx context.Context, params store.PayoutDestinationParams) (*models.AffiliateAccount, error) {
	if _, err := s.EnsureAffiliateAccount(ctx, params.AffiliateUserId); err != nil {
		return nil, err
	}

	_, err := s.db.ExecContext(ctx, queryUpdatePayoutDestination,
		strings.TrimSpace(params.Destination), strings.TrimSpace(params.Network), params.Verified, s.now(), params.AffiliateUserId)
	if err != nil {
		zap.L().Error("Failed to update payout destination",
			zap.String("affiliate_user_id", params.AffiliateUserId),
			zap.Error(err))
		return nil, fmt.Errorf("unable to update payout destination: %w", err)
	}

	zap.L().Info("Payout destination updated",
		zap.String("affiliate_user_id", params.AffiliateUserId),
		zap.String("network", params.Network),
		zap.Bool("verified", params.Verified))

	return s.GetAffiliateAccount(ctx, params.AffiliateUserId)
}

func scanAffiliate(row rowScanner) (*models.AffiliateAccount, error) {
	var account models.AffiliateAccount
	err := row.Scan(&account.UserId, &account.PayoutDestination, &account.PayoutNetwork,
		&account.PayoutVerified, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &account, nil
}
