package models

import (
	"errors"
	"testing"
)

func TestAccountLedger_DebitOrAccrue(t *testing.T) {
	l := NewAccountLedger()
	if err := l.Credit("usd", 1000); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	debited, accrued, err := l.DebitOrAccrue("USD", 600)
	if err != nil {
		t.Fatalf("DebitOrAccrue failed: %v", err)
	}
	if debited != 600 || accrued != 0 || l.Balance("USD") != 400 {
		t.Errorf("Expected 600 debited and balance 400, got debited=%d accrued=%d balance=%d", debited, accrued, l.Balance("USD"))
	}

	debited, accrued, err = l.DebitOrAccrue("USD", 600)
	if err != nil {
		t.Fatalf("DebitOrAccrue failed: %v", err)
	}
	if debited != 400 || accrued != 200 {
		t.Errorf("Expected 400 debited and 200 accrued, got %d/%d", debited, accrued)
	}
	if l.Balance("USD") != 0 || l.Debt("USD") != 200 {
		t.Errorf("Expected balance 0 and debt 200, got %d/%d", l.Balance("USD"), l.Debt("USD"))
	}
}

func TestAccountLedger_RejectsNegativeAmounts(t *testing.T) {
	l := NewAccountLedger()
	if err := l.Credit("USD", -1); !errors.Is(err, ErrNegativeAmount) {
		t.Errorf("Expected ErrNegativeAmount for credit, got %v", err)
	}
	if _, _, err := l.Debit("USD", -1); !errors.Is(err, ErrNegativeAmount) {
		t.Errorf("Expected ErrNegativeAmount for debit, got %v", err)
	}
	if err := l.AccrueDebt("USD", -1); !errors.Is(err, ErrNegativeAmount) {
		t.Errorf("Expected ErrNegativeAmount for debt, got %v", err)
	}
}

func TestAccountLedger_RecoverDebt(t *testing.T) {
	l := NewAccountLedger()
	_ = l.AccrueDebt("EUR", 300)

	if got := l.RecoverDebt("EUR", 500); got != 300 {
		t.Errorf("Expected 300 recovered, got %d", got)
	}
	if l.Debt("EUR") != 0 {
		t.Errorf("Expected debt cleared, got %d", l.Debt("EUR"))
	}
	if got := l.RecoverDebt("EUR", -5); got != 0 {
		t.Errorf("Expected nothing recovered for negative limit, got %d", got)
	}
}

func TestRestoreAccountLedger(t *testing.T) {
	l, err := RestoreAccountLedger([]CurrencyBalance{
		{Currency: "usd", BalanceCents: 500, DebtCents: 0},
		{Currency: "EUR", BalanceCents: 0, DebtCents: 120},
	})
	if err != nil {
		t.Fatalf("RestoreAccountLedger failed: %v", err)
	}
	if l.Balance("USD") != 500 || l.Debt("EUR") != 120 {
		t.Errorf("Unexpected restored ledger: %v %v", l.Balances(), l.DebtByCurrency())
	}
	if got := l.Currencies(); len(got) != 2 || got[0] != "EUR" || got[1] != "USD" {
		t.Errorf("Expected sorted currencies [EUR USD], got %v", got)
	}

	_, err = RestoreAccountLedger([]CurrencyBalance{{Currency: "USD", BalanceCents: -1}})
	if !errors.Is(err, ErrNegativeBalance) {
		t.Errorf("Expected ErrNegativeBalance, got %v", err)
	}
}

func TestAccountLedger_CopiesAreDetached(t *testing.T) {
	l := NewAccountLedger()
	_ = l.Credit("USD", 100)

	balances := l.Balances()
	balances["USD"] = -50
	if l.Balance("USD") != 100 {
		t.Errorf("Expected ledger unaffected by copy mutation, got %d", l.Balance("USD"))
	}
}

func TestEntryStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to EntryStatus
		allowed  bool
	}{
		{StatusPending, StatusAvailable, true},
		{StatusPending, StatusCanceled, true},
		{StatusPending, StatusPaid, false},
		{StatusAvailable, StatusPaid, true},
		{StatusAvailable, StatusFailed, true},
		{StatusFailed, StatusPaid, true},
		{StatusFallback, StatusPaid, true},
		{StatusPaid, StatusAvailable, false},
		{StatusCanceled, StatusAvailable, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.allowed {
			t.Errorf("%s -> %s: expected %v, got %v", tt.from, tt.to, tt.allowed, got)
		}
	}

	for _, s := range []EntryStatus{StatusAvailable, StatusFailed, StatusFallback} {
		if !s.IsPayable() {
			t.Errorf("Expected %s to be payable", s)
		}
	}
	for _, s := range []EntryStatus{StatusPending, StatusPaid, StatusCanceled, StatusReversed} {
		if s.IsPayable() {
			t.Errorf("Expected %s not to be payable", s)
		}
	}
	if EntryStatus("bogus").Valid() {
		t.Error("Expected unknown status to be invalid")
	}
}
