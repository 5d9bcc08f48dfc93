package store

import (
	"context"
	"errors"
	"time"

	"commission-ledger-go/internal/models"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrDuplicateEntry         = errors.New("duplicate ledger entry")
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrEntryNotFound          = errors.New("ledger entry not found")
	ErrAccountNotFound        = errors.New("affiliate account not found")
	ErrInvoiceAttributed      = errors.New("invoice already credited to another affiliate")
)

// RecordCommissionParams contains the parameters of a commission earned upstream.
type RecordCommissionParams struct {
	AffiliateUserId   string
	Currency          string
	AmountCents       int64
	CommissionRateBps *int64
	SourcePaymentId   string
	ReferredUserId    string
	AvailableAt       time.Time
	Note              string
}

// PayoutDestinationParams updates where an affiliate is paid.
type PayoutDestinationParams struct {
	AffiliateUserId string
	Destination     string
	Network         string
	Verified        bool
}

// ApplyReversalParams describes one refund-driven reversal. The store commits the
// entry/balance mutation and the watermark advance together, and only if the
// entry still has ExpectedStatus/ExpectedAmount and the watermark row still has
// ProgressVersion.
type ApplyReversalParams struct {
	EntryId         string
	AffiliateUserId string
	InvoiceId       string
	Currency        string
	ExpectedStatus  models.EntryStatus
	ExpectedAmount  int64
	ReverseAmount   int64
	RefundedTotal   int64
	ProgressVersion int64
	Note            string
}

// ReversalOutcome reports how a reversal was split.
type ReversalOutcome struct {
	AdjustmentId    string
	BalanceDebited  int64
	DebtAccrued     int64
	RemainingAmount int64
	EntryStatus     models.EntryStatus
}

// CompletePayoutParams marks an entry paid once the provider acknowledged the transfer.
type CompletePayoutParams struct {
	EntryId            string
	AffiliateUserId    string
	Currency           string
	ExpectedStatus     models.EntryStatus
	AmountCents        int64
	DebtRecoveredCents int64
	TransferId         string
}

// LedgerStore defines the contract that every backend must satisfy.
type LedgerStore interface {
	// --- Affiliates ---
	EnsureAffiliateAccount(ctx context.Context, userId string) (*models.AffiliateAccount, error)
	GetAffiliateAccount(ctx context.Context, userId string) (*models.AffiliateAccount, error)
	GetAffiliates(ctx context.Context) ([]models.AffiliateAccount, error)
	SetPayoutDestination(ctx context.Context, params PayoutDestinationParams) (*models.AffiliateAccount, error)

	// --- Balances ---
	GetAccountLedger(ctx context.Context, userId string) (*models.AccountLedger, error)
	GetCurrencyBalances(ctx context.Context, userId string) ([]models.CurrencyBalance, error)

	// --- Entries ---
	RecordCommission(ctx context.Context, params RecordCommissionParams) (*models.LedgerEntry, error)
	GetEntry(ctx context.Context, entryId string) (*models.LedgerEntry, error)
	FindCommissionByInvoice(ctx context.Context, invoiceId string) (*models.LedgerEntry, error)
	GetInvoiceEntries(ctx context.Context, invoiceId string) ([]models.LedgerEntry, error)
	GetEntryHistory(ctx context.Context, userId string, limit, offset int) ([]models.LedgerEntry, error)
	SumReversedForInvoice(ctx context.Context, invoiceId, affiliateUserId string) (int64, error)

	// --- Maturation ---
	ListDueAffiliates(ctx context.Context, now time.Time, limit int) ([]string, error)
	CountDueAffiliates(ctx context.Context, now time.Time) (int, error)
	ListDueEntries(ctx context.Context, userId string, now time.Time, limit int) ([]models.LedgerEntry, error)
	PromoteEntry(ctx context.Context, entryId string, now time.Time) (bool, error)

	// --- Refunds ---
	GetOrCreateRefundProgress(ctx context.Context, invoiceId, affiliateUserId string) (*models.RefundProgress, error)
	AdvanceRefundWatermark(ctx context.Context, invoiceId, affiliateUserId string, total, expectedVersion int64) error
	ApplyReversal(ctx context.Context, params ApplyReversalParams) (*ReversalOutcome, error)

	// --- Payouts ---
	CompletePayout(ctx context.Context, params CompletePayoutParams) error
	MarkPayoutFailed(ctx context.Context, entryId, reason string) error

	// --- Lifecycle ---
	Close()
}
