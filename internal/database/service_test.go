package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"commission-ledger-go/internal/models"
	"commission-ledger-go/internal/store"
)

func setupTestDb(t *testing.T) (*Service, func()) {
	t.Helper()

	service, err := NewService(context.Background(), models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "ledger.db"),
		MaxOpenConns: 4,
		MaxIdleConns: 2,
		PingTimeout:  5 * time.Second,
		BusyTimeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	cleanup := func() {
		service.Close()
	}
	return service, cleanup
}

func recordDue(t *testing.T, service *Service, userId, invoiceId string, amount int64) *models.LedgerEntry {
	t.Helper()

	entry, err := service.RecordCommission(context.Background(), store.RecordCommissionParams{
		AffiliateUserId: userId,
		Currency:        "usd",
		AmountCents:     amount,
		SourcePaymentId: invoiceId,
		AvailableAt:     time.Now().Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("RecordCommission failed: %v", err)
	}
	return entry
}

func balanceOf(t *testing.T, service *Service, userId string) (int64, int64) {
	t.Helper()

	ledger, err := service.GetAccountLedger(context.Background(), userId)
	if err != nil {
		t.Fatalf("GetAccountLedger failed: %v", err)
	}
	return ledger.Balance("USD"), ledger.Debt("USD")
}

func TestNewService_InvalidConfig(t *testing.T) {
	_, err := NewService(context.Background(), models.DatabaseConfig{})
	if err == nil {
		t.Fatal("Expected error for empty database path")
	}
}

func TestRecordCommission(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	rate := int64(2500)
	entry, err := service.RecordCommission(context.Background(), store.RecordCommissionParams{
		AffiliateUserId:   "aff1",
		Currency:          "usd",
		AmountCents:       1000,
		CommissionRateBps: &rate,
		SourcePaymentId:   "in_1",
		ReferredUserId:    "user9",
	})
	if err != nil {
		t.Fatalf("RecordCommission failed: %v", err)
	}

	got, err := service.GetEntry(context.Background(), entry.Id)
	if err != nil {
		t.Fatalf("GetEntry failed: %v", err)
	}
	if got.Status != models.StatusPending {
		t.Errorf("Expected status pending, got %s", got.Status)
	}
	if got.Currency != "USD" {
		t.Errorf("Expected currency USD, got %s", got.Currency)
	}
	if got.CommissionRateBps == nil || *got.CommissionRateBps != 2500 {
		t.Errorf("Expected rate 2500, got %v", got.CommissionRateBps)
	}
	if got.AvailableAt.IsZero() {
		t.Error("Expected available_at to default to creation time")
	}

	if _, err := service.GetAffiliateAccount(context.Background(), "aff1"); err != nil {
		t.Errorf("Expected affiliate account to be created, got %v", err)
	}
}

func TestRecordCommission_DuplicateHandling(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	recordDue(t, service, "aff1", "in_1", 1000)

	_, err := service.RecordCommission(context.Background(), store.RecordCommissionParams{
		AffiliateUserId: "aff1",
		Currency:        "USD",
		AmountCents:     1000,
		SourcePaymentId: "in_1",
	})
	if !errors.Is(err, store.ErrDuplicateEntry) {
		t.Errorf("Expected ErrDuplicateEntry, got: %v", err)
	}
}

func TestRecordCommission_SecondAffiliateOnSamePayment(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	recordDue(t, service, "aff1", "in_1", 1000)

	_, err := service.RecordCommission(context.Background(), store.RecordCommissionParams{
		AffiliateUserId: "aff2",
		Currency:        "USD",
		AmountCents:     1000,
		SourcePaymentId: "in_1",
	})
	if !errors.Is(err, store.ErrInvoiceAttributed) {
		t.Fatalf("Expected ErrInvoiceAttributed, got: %v", err)
	}

	entries, err := service.GetInvoiceEntries(context.Background(), "in_1")
	if err != nil {
		t.Fatalf("GetInvoiceEntries failed: %v", err)
	}
	if len(entries) != 1 || entries[0].AffiliateUserId != "aff1" {
		t.Errorf("Expected only aff1's commission on the invoice, got %+v", entries)
	}
}

func TestRecordCommission_RejectsInvalidInput(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	cases := []store.RecordCommissionParams{
		{Currency: "USD", AmountCents: 100, SourcePaymentId: "in_1"},
		{AffiliateUserId: "aff1", Currency: "USD", AmountCents: 100},
		{AffiliateUserId: "aff1", AmountCents: 100, SourcePaymentId: "in_1"},
		{AffiliateUserId: "aff1", Currency: "USD", AmountCents: 0, SourcePaymentId: "in_1"},
	}
	for i, params := range cases {
		if _, err := service.RecordCommission(context.Background(), params); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

func TestGetEntry_NotFound(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	_, err := service.GetEntry(context.Background(), "missing")
	if !errors.Is(err, store.ErrEntryNotFound) {
		t.Errorf("Expected ErrEntryNotFound, got %v", err)
	}

	_, err = service.FindCommissionByInvoice(context.Background(), "in_missing")
	if !errors.Is(err, store.ErrEntryNotFound) {
		t.Errorf("Expected ErrEntryNotFound, got %v", err)
	}
}

func TestSetPayoutDestination(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	account, err := service.SetPayoutDestination(context.Background(), store.PayoutDestinationParams{
		AffiliateUserId: "aff1",
		Destination:     "0xabc",
		Network:         "base-mainnet",
		Verified:        true,
	})
	if err != nil {
		t.Fatalf("SetPayoutDestination failed: %v", err)
	}
	if !account.CanReceivePayouts() {
		t.Error("Expected account to be able to receive payouts")
	}

	accounts, err := service.GetAffiliates(context.Background())
	if err != nil {
		t.Fatalf("GetAffiliates failed: %v", err)
	}
	if len(accounts) != 1 || accounts[0].PayoutNetwork != "base-mainnet" {
		t.Errorf("Unexpected affiliates: %+v", accounts)
	}

	_, err = service.GetAffiliateAccount(context.Background(), "unknown")
	if !errors.Is(err, store.ErrAccountNotFound) {
		t.Errorf("Expected ErrAccountNotFound, got %v", err)
	}
}
