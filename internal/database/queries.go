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

const entryColumns = `id, affiliate_user_id, type, status, currency, amount_cents, commission_rate_bps,
		       source_payment_id, referred_user_id, transfer_id, available_at, created_at, updated_at, note`

const (
	// Affiliate queries
	queryInsertAffiliate = `
		INSERT OR IGNORE INTO affiliate_accounts (user_id, created_at, updated_at) VALUES (?, ?, ?)`

	queryGetAffiliate = `
		SELECT user_id, payout_destination, payout_network, payout_verified, created_at, updated_at
		FROM affiliate_accounts
		WHERE user_id = ?`

	queryGetAffiliates = `
		SELECT user_id, payout_destination, payout_network, payout_verified, created_at, updated_at
		FROM affiliate_accounts
		ORDER BY created_at, user_id`

	queryUpdatePayoutDestination = `
		UPDATE affiliate_accounts
		SET payout_destination = ?, payout_network = ?, payout_verified = ?, updated_at = ?
		WHERE user_id = ?`

	// Balance queries
	queryGetCurrencyBalances = `
		SELECT user_id, currency, balance_cents, debt_cents, version, updated_at
		FROM account_balances
		WHERE user_id = ?
		ORDER BY currency`

	queryGetCurrencyBalance = `
		SELECT balance_cents, debt_cents, version
		FROM account_balances
		WHERE user_id = ? AND currency = ?`

	queryInsertCurrencyBalance = `
		INSERT INTO account_balances (user_id, currency, balance_cents, debt_cents, version, updated_at)
		VALUES (?, ?, ?, ?, 1, ?)`

	queryUpdateCurrencyBalance = `
		UPDATE account_balances
		SET balance_cents = ?, debt_cents = ?, version = version + 1, updated_at = ?
		WHERE user_id = ? AND currency = ? AND version = ?`

	// Entry queries
	queryCheckDuplicateCommission = `
		SELECT id, affiliate_user_id FROM ledger_entries
		WHERE type = 'commission' AND source_payment_id = ?
		LIMIT 1`

	queryInsertEntry = `
		INSERT INTO ledger_entries (
			id, affiliate_user_id, type, status, currency, amount_cents, commission_rate_bps,
			source_payment_id, referred_user_id, transfer_id, available_at, created_at, updated_at, note
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetEntry = `
		SELECT ` + entryColumns + `
		FROM ledger_entries
		WHERE id = ?`

	queryFindCommissionByInvoice = `
		SELECT ` + entryColumns + `
		FROM ledger_entries
		WHERE type = 'commission' AND source_payment_id = ?`

	queryGetInvoiceEntries = `
		SELECT ` + entryColumns + `
		FROM ledger_entries
		WHERE source_payment_id = ?
		ORDER BY created_at, id`

	queryGetEntryHistory = `
		SELECT ` + entryColumns + `
		FROM ledger_entries
		WHERE affiliate_user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`

	querySumReversedForInvoice = `
		SELECT COALESCE(SUM(ABS(amount_cents)), 0)
		FROM ledger_entries
		WHERE type = 'adjustment' AND status = 'reversed'
		  AND source_payment_id = ? AND affiliate_user_id = ?`

	// Maturation queries
	queryListDueAffiliates = `
		SELECT affiliate_user_id
		FROM ledger_entries
		WHERE type = 'commission' AND status = 'pending' AND available_at <= ?
		GROUP BY affiliate_user_id
		ORDER BY MIN(available_at), affiliate_user_id
		LIMIT ?`

	queryCountDueAffiliates = `
		SELECT COUNT(DISTINCT affiliate_user_id)
		FROM ledger_entries
		WHERE type = 'commission' AND status = 'pending' AND available_at <= ?`

	queryListDueEntries = `
		SELECT ` + entryColumns + `
		FROM ledger_entries
		WHERE affiliate_user_id = ? AND type = 'commission' AND status = 'pending' AND available_at <= ?
		ORDER BY available_at, id
		LIMIT ?`

	queryPromoteEntry = `
		UPDATE ledger_entries
		SET status = 'available', updated_at = ?
		WHERE id = ? AND type = 'commission' AND status = 'pending' AND available_at <= ?`

	queryGetEntryAmount = `
		SELECT affiliate_user_id, currency, amount_cents FROM ledger_entries WHERE id = ?`

	// Refund progress queries
	queryInsertRefundProgress = `
		INSERT OR IGNORE INTO refund_progress (invoice_id, affiliate_user_id, refunded_paid_cents_total, version, created_at, updated_at)
		VALUES (?, ?, 0, 1, ?, ?)`

	queryGetRefundProgress = `
		SELECT invoice_id, affiliate_user_id, refunded_paid_cents_total, version, created_at, updated_at
		FROM refund_progress
		WHERE invoice_id = ? AND affiliate_user_id = ?`

	queryAdvanceRefundWatermark = `
		UPDATE refund_progress
		SET refunded_paid_cents_total = ?, version = version + 1, updated_at = ?
		WHERE invoice_id = ? AND affiliate_user_id = ? AND version = ? AND refunded_paid_cents_total <= ?`

	queryReducePendingEntry = `
		UPDATE ledger_entries
		SET amount_cents = ?, status = ?, updated_at = ?
		WHERE id = ? AND status = 'pending' AND amount_cents = ?`

	// Payout queries
	queryCompletePayout = `
		UPDATE ledger_entries
		SET status = 'paid', transfer_id = ?, updated_at = ?
		WHERE id = ? AND type = 'commission' AND status = ?`

	queryMarkPayoutFailed = `
		UPDATE ledger_entries
		SET status = 'failed', note = ?, updated_at = ?
		WHERE id = ? AND type = 'commission' AND status = 'available'`
)
