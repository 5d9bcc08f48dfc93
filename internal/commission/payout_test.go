package commission

import (
	"context"
	"errors"
	"testing"

	"commission-ledger-go/internal/models"
	"commission-ledger-go/internal/store"
)

func verifyAffiliate(t *testing.T, ledger store.LedgerStore, userId string) *models.AffiliateAccount {
	t.Helper()

	account, err := ledger.SetPayoutDestination(context.Background(), store.PayoutDestinationParams{
		AffiliateUserId: userId,
		Destination:     "0x" + userId,
		Network:         "base-mainnet",
		Verified:        true,
	})
	if err != nil {
		t.Fatalf("SetPayoutDestination failed: %v", err)
	}
	return account
}

func TestIdempotencyKey(t *testing.T) {
	a := IdempotencyKey("in_1", "aff1")
	if a != IdempotencyKey("in_1", "aff1") {
		t.Error("Expected the same key for the same payment and affiliate")
	}
	if a == IdempotencyKey("in_1", "aff2") {
		t.Error("Expected different affiliates to get different keys")
	}
	if a == IdempotencyKey("in_2", "aff1") {
		t.Error("Expected different payments to get different keys")
	}
}

func TestPayout_PaysAvailableEntry(t *testing.T) {
	ledger := newTestStore(t)
	transfers := newFakeTransfers()
	mirror := &recordingMirror{}
	engine := newTestEngine(t, ledger, WithTransferClient(transfers), WithMirror(mirror))
	ctx := context.Background()

	entry := recordDue(t, engine, "aff1", "in_1", 1000, nil)
	matureAll(t, engine)
	verifyAffiliate(t, ledger, "aff1")

	result, err := engine.Payout(ctx, entry.Id)
	if err != nil {
		t.Fatalf("Payout failed: %v", err)
	}
	if result.TransferredCents != 1000 || result.DebtRecoveredCents != 0 {
		t.Errorf("Expected 1000 transferred, got %d (debt %d)", result.TransferredCents, result.DebtRecoveredCents)
	}
	if result.IdempotencyKey != IdempotencyKey("in_1", "aff1") {
		t.Errorf("Unexpected idempotency key %s", result.IdempotencyKey)
	}
	if len(transfers.requests) != 1 || transfers.requests[0].Destination != "0xaff1" {
		t.Errorf("Unexpected transfer requests: %+v", transfers.requests)
	}

	got, err := ledger.GetEntry(ctx, entry.Id)
	if err != nil {
		t.Fatalf("GetEntry failed: %v", err)
	}
	if got.Status != models.StatusPaid || got.TransferId != result.TransferId {
		t.Errorf("Expected paid with %s, got %s/%s", result.TransferId, got.Status, got.TransferId)
	}
	if balance, _ := balanceOf(t, ledger, "aff1"); balance != 0 {
		t.Errorf("Expected balance 0 after payout, got %d", balance)
	}
	if n := mirror.count(models.EventPayoutCompleted); n != 1 {
		t.Errorf("Expected one payout event, got %d", n)
	}
}

func TestPayout_AlreadyProcessed(t *testing.T) {
	ledger := newTestStore(t)
	transfers := newFakeTransfers()
	engine := newTestEngine(t, ledger, WithTransferClient(transfers))
	ctx := context.Background()

	entry := recordDue(t, engine, "aff1", "in_1", 1000, nil)
	matureAll(t, engine)
	verifyAffiliate(t, ledger, "aff1")

	if _, err := engine.Payout(ctx, entry.Id); err != nil {
		t.Fatalf("Payout failed: %v", err)
	}
	_, err := engine.Payout(ctx, entry.Id)
	if !errors.Is(err, ErrAlreadyProcessed) {
		t.Errorf("Expected ErrAlreadyProcessed, got %v", err)
	}
	if len(transfers.requests) != 1 {
		t.Errorf("Expected a single transfer request, got %d", len(transfers.requests))
	}
}

func TestPayout_RequiresVerifiedDestination(t *testing.T) {
	ledger := newTestStore(t)
	transfers := newFakeTransfers()
	engine := newTestEngine(t, ledger, WithTransferClient(transfers))
	ctx := context.Background()

	entry := recordDue(t, engine, "aff1", "in_1", 1000, nil)
	matureAll(t, engine)

	_, err := engine.Payout(ctx, entry.Id)
	if !errors.Is(err, ErrInsufficientAccountVerification) {
		t.Errorf("Expected ErrInsufficientAccountVerification, got %v", err)
	}

	_, err = ledger.SetPayoutDestination(ctx, store.PayoutDestinationParams{
		AffiliateUserId: "aff1",
		Destination:     "0xaff1",
		Network:         "base-mainnet",
	})
	if err != nil {
		t.Fatalf("SetPayoutDestination failed: %v", err)
	}
	_, err = engine.Payout(ctx, entry.Id)
	if !errors.Is(err, ErrInsufficientAccountVerification) {
		t.Errorf("Expected unverified destination to be rejected, got %v", err)
	}
	if len(transfers.requests) != 0 {
		t.Errorf("Expected no transfer requests, got %d", len(transfers.requests))
	}
}

func TestPayout_RejectsPendingEntry(t *testing.T) {
	ledger := newTestStore(t)
	engine := newTestEngine(t, ledger, WithTransferClient(newFakeTransfers()))

	entry := recordDue(t, engine, "aff1", "in_1", 1000, nil)
	verifyAffiliate(t, ledger, "aff1")

	_, err := engine.Payout(context.Background(), entry.Id)
	if !errors.Is(err, ErrNotEligible) {
		t.Errorf("Expected ErrNotEligible for pending entry, got %v", err)
	}
}

func TestPayout_NotConfigured(t *testing.T) {
	ledger := newTestStore(t)
	engine := newTestEngine(t, ledger)

	if _, err := engine.Payout(context.Background(), "any"); err == nil {
		t.Error("Expected error when no transfer client is configured")
	}
}

func TestPayout_NetsOutstandingDebt(t *testing.T) {
	ledger := newTestStore(t)
	transfers := newFakeTransfers()
	engine := newTestEngine(t, ledger, WithTransferClient(transfers))
	ctx := context.Background()

	first := recordDue(t, engine, "aff1", "in_1", 1000, rate(10000))
	second := recordDue(t, engine, "aff1", "in_2", 1000, rate(10000))
	matureAll(t, engine)
	verifyAffiliate(t, ledger, "aff1")

	if _, err := engine.Payout(ctx, first.Id); err != nil {
		t.Fatalf("Payout failed: %v", err)
	}
	if _, err := engine.ApplyRefund(ctx, "in_1", 300); err != nil {
		t.Fatalf("ApplyRefund failed: %v", err)
	}

	result, err := engine.Payout(ctx, second.Id)
	if err != nil {
		t.Fatalf("Payout failed: %v", err)
	}
	if result.AmountCents != 1000 || result.DebtRecoveredCents != 300 || result.TransferredCents != 700 {
		t.Errorf("Expected 1000 paid as 700 transferred plus 300 debt, got %+v", result)
	}
	if got := transfers.requests[len(transfers.requests)-1].AmountCents; got != 700 {
		t.Errorf("Expected transfer of 700, got %d", got)
	}
	if balance, debt := balanceOf(t, ledger, "aff1"); balance != 0 || debt != 0 {
		t.Errorf("Expected balance 0 debt 0, got %d/%d", balance, debt)
	}
}

func TestPayout_PaysNetOfReversals(t *testing.T) {
	ledger := newTestStore(t)
	transfers := newFakeTransfers()
	engine := newTestEngine(t, ledger, WithTransferClient(transfers))
	ctx := context.Background()

	entry := recordDue(t, engine, "aff1", "in_1", 1000, rate(10000))
	matureAll(t, engine)
	verifyAffiliate(t, ledger, "aff1")

	if _, err := engine.ApplyRefund(ctx, "in_1", 400); err != nil {
		t.Fatalf("ApplyRefund failed: %v", err)
	}

	result, err := engine.Payout(ctx, entry.Id)
	if err != nil {
		t.Fatalf("Payout failed: %v", err)
	}
	if result.AmountCents != 600 {
		t.Errorf("Expected payout of 600 after a 400 reversal, got %d", result.AmountCents)
	}
	if balance, debt := balanceOf(t, ledger, "aff1"); balance != 0 || debt != 0 {
		t.Errorf("Expected balance 0 debt 0, got %d/%d", balance, debt)
	}
}

func TestPayout_FailureMarksEntryFailedAndRetryReusesKey(t *testing.T) {
	ledger := newTestStore(t)
	transfers := newFakeTransfers()
	engine := newTestEngine(t, ledger, WithTransferClient(transfers))
	ctx := context.Background()

	entry := recordDue(t, engine, "aff1", "in_1", 1000, nil)
	matureAll(t, engine)
	verifyAffiliate(t, ledger, "aff1")

	transfers.err = errors.New("provider unavailable")
	if _, err := engine.Payout(ctx, entry.Id); err == nil {
		t.Fatal("Expected payout to fail")
	}

	got, err := ledger.GetEntry(ctx, entry.Id)
	if err != nil {
		t.Fatalf("GetEntry failed: %v", err)
	}
	if got.Status != models.StatusFailed {
		t.Errorf("Expected entry failed, got %s", got.Status)
	}
	if balance, _ := balanceOf(t, ledger, "aff1"); balance != 1000 {
		t.Errorf("Expected balance untouched after failure, got %d", balance)
	}

	transfers.err = nil
	result, err := engine.Payout(ctx, entry.Id)
	if err != nil {
		t.Fatalf("Retry payout failed: %v", err)
	}
	if len(transfers.requests) != 2 || transfers.requests[0].IdempotencyKey != transfers.requests[1].IdempotencyKey {
		t.Errorf("Expected both attempts to share an idempotency key: %+v", transfers.requests)
	}
	if result.TransferredCents != 1000 {
		t.Errorf("Expected 1000 transferred on retry, got %d", result.TransferredCents)
	}
}
