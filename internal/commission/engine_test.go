package commission

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"commission-ledger-go/internal/database"
	"commission-ledger-go/internal/models"
	"commission-ledger-go/internal/store"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeTransfers returns the same transfer for a repeated idempotency key
type fakeTransfers struct {
	mu       sync.Mutex
	requests []models.TransferRequest
	byKey    map[string]string
	err      error
}

func newFakeTransfers() *fakeTransfers {
	return &fakeTransfers{byKey: make(map[string]string)}
}

func (f *fakeTransfers) CreateTransfer(_ context.Context, req models.TransferRequest) (*models.TransferResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	id, ok := f.byKey[req.IdempotencyKey]
	if !ok {
		id = "transfer-" + req.IdempotencyKey[:8]
		f.byKey[req.IdempotencyKey] = id
	}
	return &models.TransferResult{TransferId: id, IdempotencyKey: req.IdempotencyKey}, nil
}

type recordingMirror struct {
	mu     sync.Mutex
	events []models.LedgerEvent
}

func (m *recordingMirror) RecordEvent(_ context.Context, event models.LedgerEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *recordingMirror) count(eventType models.LedgerEventType) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, event := range m.events {
		if event.Type == eventType {
			n++
		}
	}
	return n
}

func newTestStore(t *testing.T) *database.Service {
	t.Helper()

	service, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "ledger.db"),
		MaxOpenConns: 8,
		MaxIdleConns: 4,
		PingTimeout:  5 * time.Second,
		BusyTimeout:  10 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(service.Close)
	return service
}

func newTestEngine(t *testing.T, ledger store.LedgerStore, opts ...Option) *Engine {
	t.Helper()

	engine, err := NewEngine(ledger, Config{DefaultCommissionRateBps: 10000, ReconcileMaxAttempts: 5}, opts...)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return engine
}

func rate(bps int64) *int64 {
	return &bps
}

// recordDue stores a commission that is already due
func recordDue(t *testing.T, engine *Engine, userId, invoiceId string, amount int64, rateBps *int64) *models.LedgerEntry {
	t.Helper()

	entry, err := engine.RecordCommission(context.Background(), CommissionEarned{
		AffiliateUserId: userId,
		Currency:        "USD",
		AmountCents:     amount,
		RateBps:         rateBps,
		SourcePaymentId: invoiceId,
		AvailableAt:     time.Now().Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("RecordCommission failed: %v", err)
	}
	return entry
}

func matureAll(t *testing.T, engine *Engine) *models.MaturationSummary {
	t.Helper()

	summary, err := engine.Mature(context.Background(), MatureParams{Now: time.Now()})
	if err != nil {
		t.Fatalf("Mature failed: %v", err)
	}
	return summary
}

func balanceOf(t *testing.T, ledger store.LedgerStore, userId string) (int64, int64) {
	t.Helper()

	account, err := ledger.GetAccountLedger(context.Background(), userId)
	if err != nil {
		t.Fatalf("GetAccountLedger failed: %v", err)
	}
	return account.Balance("USD"), account.Debt("USD")
}

func TestNewEngine_Validation(t *testing.T) {
	if _, err := NewEngine(nil, Config{}); err == nil {
		t.Error("Expected error for nil store")
	}

	ledger := newTestStore(t)
	if _, err := NewEngine(ledger, Config{DefaultCommissionRateBps: -1}); err == nil {
		t.Error("Expected error for negative default rate")
	}
	if _, err := NewEngine(ledger, Config{DefaultCommissionRateBps: 10001}); err == nil {
		t.Error("Expected error for rate above 100%")
	}

	engine, err := NewEngine(ledger, Config{DefaultCommissionRateBps: 2000})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	if engine.config.ReconcileMaxAttempts != defaultReconcileMaxAttempts {
		t.Errorf("Expected default attempts %d, got %d", defaultReconcileMaxAttempts, engine.config.ReconcileMaxAttempts)
	}
}

func TestRecordCommission_DefaultsAvailableAtToHoldingPeriod(t *testing.T) {
	ledger := newTestStore(t)
	clock := newFakeClock()
	engine, err := NewEngine(ledger, Config{DefaultCommissionRateBps: 2000, HoldingPeriod: 30 * 24 * time.Hour}, WithClock(clock))
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	entry, err := engine.RecordCommission(context.Background(), CommissionEarned{
		AffiliateUserId: "aff1",
		Currency:        "usd",
		AmountCents:     500,
		SourcePaymentId: "in_1",
	})
	if err != nil {
		t.Fatalf("RecordCommission failed: %v", err)
	}
	want := clock.Now().Add(30 * 24 * time.Hour)
	if !entry.AvailableAt.Equal(want) {
		t.Errorf("Expected available_at %v, got %v", want, entry.AvailableAt)
	}
}

func TestRecordCommission_RedeliveryReturnsExisting(t *testing.T) {
	ledger := newTestStore(t)
	mirror := &recordingMirror{}
	engine := newTestEngine(t, ledger, WithMirror(mirror))

	first := recordDue(t, engine, "aff1", "in_1", 1000, nil)

	again, err := engine.RecordCommission(context.Background(), CommissionEarned{
		AffiliateUserId: "aff1",
		Currency:        "USD",
		AmountCents:     1000,
		SourcePaymentId: "in_1",
	})
	if err == nil {
		t.Fatal("Expected duplicate error")
	}
	if again == nil || again.Id != first.Id {
		t.Errorf("Expected existing entry %s, got %+v", first.Id, again)
	}
	if n := mirror.count(models.EventCommissionEarned); n != 1 {
		t.Errorf("Expected one earned event, got %d", n)
	}
}
