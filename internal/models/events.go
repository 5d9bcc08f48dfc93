package models

import "time"

// LedgerEventType names a committed ledger mutation
type LedgerEventType string

const (
	EventCommissionEarned   LedgerEventType = "commission_earned"
	EventCommissionMatured  LedgerEventType = "commission_matured"
	EventCommissionReversed LedgerEventType = "commission_reversed"
	EventPendingReduced     LedgerEventType = "pending_reduced"
	EventPayoutCompleted    LedgerEventType = "payout_completed"
)

// LedgerEvent describes a mutation after it has been committed to the store.
// Reference is unique per mutation so downstream consumers can deduplicate.
type LedgerEvent struct {
	Type            LedgerEventType
	Reference       string
	EntryId         string
	AffiliateUserId string
	InvoiceId       string
	Currency        string
	AmountCents     int64
	// BalanceCents and DebtCents split a reversal or payout between balance and debt
	BalanceCents int64
	DebtCents    int64
	OccurredAt   time.Time
}
