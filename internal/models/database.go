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
	"strings"
	"time"
)

// EntryType distinguishes earned commissions from corrections applied to them
type EntryType string

const (
	EntryTypeCommission EntryType = "commission"
	EntryTypeAdjustment EntryType = "adjustment"
)

// EntryStatus is the lifecycle state of a ledger entry
type EntryStatus string

const (
	StatusPending   EntryStatus = "pending"
	StatusAvailable EntryStatus = "available"
	StatusPaid      EntryStatus = "paid"
	StatusCanceled  EntryStatus = "canceled"
	StatusReversed  EntryStatus = "reversed"
	StatusFailed    EntryStatus = "failed"
	StatusFallback  EntryStatus = "fallback"
)

var entryTransitions = map[EntryStatus][]EntryStatus{
	StatusPending:   {StatusAvailable, StatusCanceled},
	StatusAvailable: {StatusPaid, StatusFailed},
	StatusFailed:    {StatusPaid},
	StatusFallback:  {StatusPaid},
}

// CanTransitionTo reports whether a commission entry may move from s to next.
// Reversals never change status; they are recorded as separate adjustment entries.
func (s EntryStatus) CanTransitionTo(next EntryStatus) bool {
	for _, allowed := range entryTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsPayable reports whether a payout may be attempted for an entry in this status
func (s EntryStatus) IsPayable() bool {
	return s == StatusAvailable || s == StatusFailed || s == StatusFallback
}

func (s EntryStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAvailable, StatusPaid, StatusCanceled, StatusReversed, StatusFailed, StatusFallback:
		return true
	}
	return false
}

// NormalizeCurrency returns the canonical (upper-case ISO) form of a currency code
func NormalizeCurrency(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}

// LedgerEntry is one append-oriented record in an affiliate's commission ledger
type LedgerEntry struct {
	Id                string      `db:"id"`
	AffiliateUserId   string      `db:"affiliate_user_id"`
	Type              EntryType   `db:"type"`
	Status            EntryStatus `db:"status"`
	Currency          string      `db:"currency"`
	AmountCents       int64       `db:"amount_cents"`
	CommissionRateBps *int64      `db:"commission_rate_bps"`
	SourcePaymentId   string      `db:"source_payment_id"`
	ReferredUserId    string      `db:"referred_user_id"`
	TransferId        string      `db:"transfer_id"`
	AvailableAt       time.Time   `db:"available_at"`
	CreatedAt         time.Time   `db:"created_at"`
	UpdatedAt         time.Time   `db:"updated_at"`
	Note              string      `db:"note"`
}

// AbsAmountCents returns the magnitude of the entry amount
func (e LedgerEntry) AbsAmountCents() int64 {
	if e.AmountCents < 0 {
		return -e.AmountCents
	}
	return e.AmountCents
}

// RateBps returns the entry's commission rate, falling back to defaultBps when unset
func (e LedgerEntry) RateBps(defaultBps int64) int64 {
	if e.CommissionRateBps != nil {
		return *e.CommissionRateBps
	}
	return defaultBps
}

// AffiliateAccount holds the payout settings of an affiliate
type AffiliateAccount struct {
	UserId            string    `db:"user_id" json:"user_id"`
	PayoutDestination string    `db:"payout_destination" json:"payout_destination"`
	PayoutNetwork     string    `db:"payout_network" json:"payout_network"`
	PayoutVerified    bool      `db:"payout_verified" json:"payout_verified"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// CanReceivePayouts reports whether the affiliate has a verified payout destination
func (a AffiliateAccount) CanReceivePayouts() bool {
	return a.PayoutVerified && a.PayoutDestination != ""
}

// CurrencyBalance is the persisted balance/debt row for one affiliate and currency
type CurrencyBalance struct {
	UserId       string    `db:"user_id"`
	Currency     string    `db:"currency"`
	BalanceCents int64     `db:"balance_cents"`
	DebtCents    int64     `db:"debt_cents"`
	Version      int64     `db:"version"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// RefundProgress is the cumulative refund watermark for one invoice and affiliate
type RefundProgress struct {
	InvoiceId              string    `db:"invoice_id"`
	AffiliateUserId        string    `db:"affiliate_user_id"`
	RefundedPaidCentsTotal int64     `db:"refunded_paid_cents_total"`
	Version                int64     `db:"version"`
	CreatedAt              time.Time `db:"created_at"`
	UpdatedAt              time.Time `db:"updated_at"`
}
