package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"commission-ledger-go/internal/models"
	"commission-ledger-go/internal/store"
)

func reversalParams(t *testing.T, service *Service, entry *models.LedgerEntry, reverse, refundedTotal int64) store.ApplyReversalParams {
	t.Helper()

	current, err := service.GetEntry(context.Background(), entry.Id)
	if err != nil {
		t.Fatalf("GetEntry failed: %v", err)
	}
	progress, err := service.GetOrCreateRefundProgress(context.Background(), entry.SourcePaymentId, entry.AffiliateUserId)
	if err != nil {
		t.Fatalf("GetOrCreateRefundProgress failed: %v", err)
	}
	return store.ApplyReversalParams{
		EntryId:         current.Id,
		AffiliateUserId: current.AffiliateUserId,
		InvoiceId:       current.SourcePaymentId,
		Currency:        current.Currency,
		ExpectedStatus:  current.Status,
		ExpectedAmount:  current.AmountCents,
		ReverseAmount:   reverse,
		RefundedTotal:   refundedTotal,
		ProgressVersion: progress.Version,
	}
}

func TestApplyReversal_PendingShrinksEntry(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	entry := recordDue(t, service, "aff1", "in_1", 1000)

	outcome, err := service.ApplyReversal(ctx, reversalParams(t, service, entry, 400, 400))
	if err != nil {
		t.Fatalf("ApplyReversal failed: %v", err)
	}
	if outcome.RemainingAmount != 600 || outcome.EntryStatus != models.StatusPending {
		t.Errorf("Expected pending/600, got %s/%d", outcome.EntryStatus, outcome.RemainingAmount)
	}

	outcome, err = service.ApplyReversal(ctx, reversalParams(t, service, entry, 600, 1000))
	if err != nil {
		t.Fatalf("Second ApplyReversal failed: %v", err)
	}
	if outcome.RemainingAmount != 0 || outcome.EntryStatus != models.StatusCanceled {
		t.Errorf("Expected canceled/0, got %s/%d", outcome.EntryStatus, outcome.RemainingAmount)
	}

	balance, debt := balanceOf(t, service, "aff1")
	if balance != 0 || debt != 0 {
		t.Errorf("Expected pending reversal to leave balance and debt untouched, got %d/%d", balance, debt)
	}

	reversed, err := service.SumReversedForInvoice(ctx, "in_1", "aff1")
	if err != nil {
		t.Fatalf("SumReversedForInvoice failed: %v", err)
	}
	if reversed != 0 {
		t.Errorf("Expected cancel adjustments not to count as reversals, got %d", reversed)
	}

	entries, err := service.GetInvoiceEntries(ctx, "in_1")
	if err != nil {
		t.Fatalf("GetInvoiceEntries failed: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("Expected commission plus two audit adjustments, got %d entries", len(entries))
	}
}

func TestApplyReversal_AvailableOverflowsToDebt(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	entry := recordDue(t, service, "aff1", "in_1", 1000)
	if _, err := service.PromoteEntry(ctx, entry.Id, time.Now()); err != nil {
		t.Fatalf("PromoteEntry failed: %v", err)
	}

	// Simulate the balance having been spent down elsewhere
	if _, err := service.db.Exec(`UPDATE account_balances SET balance_cents = 300, version = version + 1 WHERE user_id = ?`, "aff1"); err != nil {
		t.Fatalf("Failed to drain balance: %v", err)
	}

	outcome, err := service.ApplyReversal(ctx, reversalParams(t, service, entry, 500, 500))
	if err != nil {
		t.Fatalf("ApplyReversal failed: %v", err)
	}
	if outcome.BalanceDebited != 300 || outcome.DebtAccrued != 200 {
		t.Errorf("Expected 300 debited and 200 accrued, got %d/%d", outcome.BalanceDebited, outcome.DebtAccrued)
	}

	balance, debt := balanceOf(t, service, "aff1")
	if balance != 0 || debt != 200 {
		t.Errorf("Expected balance 0 debt 200, got %d/%d", balance, debt)
	}

	got, err := service.GetEntry(ctx, entry.Id)
	if err != nil {
		t.Fatalf("GetEntry failed: %v", err)
	}
	if got.Status != models.StatusAvailable || got.AmountCents != 1000 {
		t.Errorf("Expected original entry unchanged, got %s/%d", got.Status, got.AmountCents)
	}

	adjustment, err := service.GetEntry(ctx, outcome.AdjustmentId)
	if err != nil {
		t.Fatalf("GetEntry adjustment failed: %v", err)
	}
	if adjustment.Type != models.EntryTypeAdjustment || adjustment.Status != models.StatusReversed || adjustment.AmountCents != -500 {
		t.Errorf("Unexpected adjustment: %+v", adjustment)
	}
}

func TestApplyReversal_PaidOnlyAccruesDebt(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	entry := recordDue(t, service, "aff1", "in_1", 1000)
	if _, err := service.PromoteEntry(ctx, entry.Id, time.Now()); err != nil {
		t.Fatalf("PromoteEntry failed: %v", err)
	}
	err := service.CompletePayout(ctx, store.CompletePayoutParams{
		EntryId:         entry.Id,
		AffiliateUserId: "aff1",
		Currency:        "USD",
		ExpectedStatus:  models.StatusAvailable,
		AmountCents:     1000,
		TransferId:      "transfer-1",
	})
	if err != nil {
		t.Fatalf("CompletePayout failed: %v", err)
	}

	if _, err := service.ApplyReversal(ctx, reversalParams(t, service, entry, 250, 250)); err != nil {
		t.Fatalf("ApplyReversal failed: %v", err)
	}

	balance, debt := balanceOf(t, service, "aff1")
	if balance != 0 || debt != 250 {
		t.Errorf("Expected balance 0 debt 250, got %d/%d", balance, debt)
	}
}

func TestApplyReversal_StaleStateWritesNothing(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	entry := recordDue(t, service, "aff1", "in_1", 1000)
	params := reversalParams(t, service, entry, 300, 300)

	// Another reconciliation advanced the watermark first
	if err := service.AdvanceRefundWatermark(ctx, "in_1", "aff1", 100, params.ProgressVersion); err != nil {
		t.Fatalf("AdvanceRefundWatermark failed: %v", err)
	}

	_, err := service.ApplyReversal(ctx, params)
	if !errors.Is(err, store.ErrConcurrentModification) {
		t.Fatalf("Expected ErrConcurrentModification, got %v", err)
	}

	progress, err := service.GetOrCreateRefundProgress(ctx, "in_1", "aff1")
	if err != nil {
		t.Fatalf("GetOrCreateRefundProgress failed: %v", err)
	}
	if progress.RefundedPaidCentsTotal != 100 {
		t.Errorf("Expected watermark 100, got %d", progress.RefundedPaidCentsTotal)
	}

	got, err := service.GetEntry(ctx, entry.Id)
	if err != nil {
		t.Fatalf("GetEntry failed: %v", err)
	}
	if got.AmountCents != 1000 {
		t.Errorf("Expected entry amount untouched, got %d", got.AmountCents)
	}
}

func TestApplyReversal_RejectsOverReversal(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	entry := recordDue(t, service, "aff1", "in_1", 1000)
	if _, err := service.PromoteEntry(ctx, entry.Id, time.Now()); err != nil {
		t.Fatalf("PromoteEntry failed: %v", err)
	}
	if _, err := service.ApplyReversal(ctx, reversalParams(t, service, entry, 800, 800)); err != nil {
		t.Fatalf("ApplyReversal failed: %v", err)
	}

	_, err := service.ApplyReversal(ctx, reversalParams(t, service, entry, 300, 1100))
	if !errors.Is(err, store.ErrConcurrentModification) {
		t.Errorf("Expected over-reversal to be rejected, got %v", err)
	}

	reversed, err := service.SumReversedForInvoice(ctx, "in_1", "aff1")
	if err != nil {
		t.Fatalf("SumReversedForInvoice failed: %v", err)
	}
	if reversed != 800 {
		t.Errorf("Expected 800 reversed, got %d", reversed)
	}
}

func TestAdvanceRefundWatermark_NeverDecreases(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	progress, err := service.GetOrCreateRefundProgress(ctx, "in_1", "aff1")
	if err != nil {
		t.Fatalf("GetOrCreateRefundProgress failed: %v", err)
	}
	if progress.RefundedPaidCentsTotal != 0 || progress.Version != 1 {
		t.Fatalf("Expected fresh watermark 0/v1, got %d/v%d", progress.RefundedPaidCentsTotal, progress.Version)
	}

	if err := service.AdvanceRefundWatermark(ctx, "in_1", "aff1", 500, 1); err != nil {
		t.Fatalf("AdvanceRefundWatermark failed: %v", err)
	}

	err = service.AdvanceRefundWatermark(ctx, "in_1", "aff1", 200, 2)
	if !errors.Is(err, store.ErrConcurrentModification) {
		t.Errorf("Expected lowering the watermark to fail, got %v", err)
	}

	err = service.AdvanceRefundWatermark(ctx, "in_1", "aff1", 900, 1)
	if !errors.Is(err, store.ErrConcurrentModification) {
		t.Errorf("Expected stale version to fail, got %v", err)
	}
}
