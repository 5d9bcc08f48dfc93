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

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AffiliateBalance represents an affiliate's balance and debt for one currency
type AffiliateBalance struct {
	Currency     string          `json:"currency"`
	BalanceCents int64           `json:"balance_cents"`
	DebtCents    int64           `json:"debt_cents"`
	Balance      decimal.Decimal `json:"balance"`
	Debt         decimal.Decimal `json:"debt"`
}

// EntryRecord represents a ledger entry in the affiliate's history
type EntryRecord struct {
	Id              string    `json:"id"`
	Type            string    `json:"type"`
	Status          string    `json:"status"`
	Currency        string    `json:"currency"`
	AmountCents     int64     `json:"amount_cents"`
	SourcePaymentId string    `json:"source_payment_id,omitempty"`
	TransferId      string    `json:"transfer_id,omitempty"`
	AvailableAt     time.Time `json:"available_at"`
	CreatedAt       time.Time `json:"created_at"`
	Note            string    `json:"note,omitempty"`
}

// CurrencyTotals aggregates promoted entries for one currency
type CurrencyTotals struct {
	Count       int   `json:"count"`
	AmountCents int64 `json:"amount_cents"`
}

// MaturationSummary is the outcome of one maturation batch
type MaturationSummary struct {
	ProcessedUsers int                       `json:"processed_users"`
	PromotedCount  int                       `json:"promoted_count"`
	ByCurrency     map[string]CurrencyTotals `json:"by_currency"`
	Errors         int                       `json:"errors"`
	LostRaces      int                       `json:"lost_races"`
	DueEntries     int                       `json:"due_entries"`
	DryRun         bool                      `json:"dry_run"`
	BudgetExceeded bool                      `json:"budget_exceeded"`
	HasMore        bool                      `json:"has_more"`
	Elapsed        time.Duration             `json:"elapsed"`
}

// ReconcileResult describes what a refund notification did to the ledger
type ReconcileResult struct {
	InvoiceId           string      `json:"invoice_id"`
	AffiliateUserId     string      `json:"affiliate_user_id"`
	Delta               int64       `json:"delta"`
	PreviousTotal       int64       `json:"previous_total"`
	ReversedCents       int64       `json:"reversed_cents"`
	BalanceDebitedCents int64       `json:"balance_debited_cents"`
	DebtAccruedCents    int64       `json:"debt_accrued_cents"`
	EntryStatus         EntryStatus `json:"entry_status"`
	AdjustmentId        string      `json:"adjustment_id,omitempty"`
	NoopReason          string      `json:"noop_reason,omitempty"`
}

// PayoutResult describes a completed payout
type PayoutResult struct {
	EntryId            string `json:"entry_id"`
	TransferId         string `json:"transfer_id"`
	IdempotencyKey     string `json:"idempotency_key"`
	AmountCents        int64  `json:"amount_cents"`
	TransferredCents   int64  `json:"transferred_cents"`
	DebtRecoveredCents int64  `json:"debt_recovered_cents"`
}
