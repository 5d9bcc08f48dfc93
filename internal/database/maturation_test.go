package database

import (
	"context"
	"testing"
	"time"

	"commission-ledger-go/internal/models"
	"commission-ledger-go/internal/store"
)

func TestPromoteEntry_CreditsOnce(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	entry := recordDue(t, service, "aff1", "in_1", 1000)
	now := time.Now()

	promoted, err := service.PromoteEntry(ctx, entry.Id, now)
	if err != nil {
		t.Fatalf("PromoteEntry failed: %v", err)
	}
	if !promoted {
		t.Fatal("Expected entry to be promoted")
	}

	// Second promotion loses the conditional match
	promoted, err = service.PromoteEntry(ctx, entry.Id, now)
	if err != nil {
		t.Fatalf("Second PromoteEntry failed: %v", err)
	}
	if promoted {
		t.Error("Expected second promotion to be a no-op")
	}

	balance, debt := balanceOf(t, service, "aff1")
	if balance != 1000 || debt != 0 {
		t.Errorf("Expected balance 1000 debt 0, got balance %d debt %d", balance, debt)
	}

	got, err := service.GetEntry(ctx, entry.Id)
	if err != nil {
		t.Fatalf("GetEntry failed: %v", err)
	}
	if got.Status != models.StatusAvailable {
		t.Errorf("Expected status available, got %s", got.Status)
	}
}

func TestPromoteEntry_NotDue(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	entry, err := service.RecordCommission(ctx, store.RecordCommissionParams{
		AffiliateUserId: "aff1",
		Currency:        "USD",
		AmountCents:     1000,
		SourcePaymentId: "in_1",
		AvailableAt:     time.Now().Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("RecordCommission failed: %v", err)
	}

	promoted, err := service.PromoteEntry(ctx, entry.Id, time.Now())
	if err != nil {
		t.Fatalf("PromoteEntry failed: %v", err)
	}
	if promoted {
		t.Error("Expected entry that is not due to stay pending")
	}

	balance, _ := balanceOf(t, service, "aff1")
	if balance != 0 {
		t.Errorf("Expected balance 0, got %d", balance)
	}
}

func TestListDueAffiliates(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	recordDue(t, service, "aff1", "in_1", 100)
	recordDue(t, service, "aff1", "in_2", 200)
	recordDue(t, service, "aff2", "in_3", 300)

	now := time.Now()
	count, err := service.CountDueAffiliates(ctx, now)
	if err != nil {
		t.Fatalf("CountDueAffiliates failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 due affiliates, got %d", count)
	}

	userIds, err := service.ListDueAffiliates(ctx, now, 1)
	if err != nil {
		t.Fatalf("ListDueAffiliates failed: %v", err)
	}
	if len(userIds) != 1 {
		t.Fatalf("Expected limit to cap affiliates at 1, got %v", userIds)
	}

	entries, err := service.ListDueEntries(ctx, "aff1", now, 10)
	if err != nil {
		t.Fatalf("ListDueEntries failed: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("Expected 2 due entries for aff1, got %d", len(entries))
	}
}
