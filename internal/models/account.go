package models

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrNegativeAmount  = errors.New("amount must not be negative")
	ErrNegativeBalance = errors.New("balance must not be negative")
)

// AccountLedger owns an affiliate's spendable balances and outstanding debt per currency.
// Both maps are only reachable through methods that keep every value non-negative.
type AccountLedger struct {
	balances map[string]int64
	debt     map[string]int64
}

func NewAccountLedger() *AccountLedger {
	return &AccountLedger{
		balances: make(map[string]int64),
		debt:     make(map[string]int64),
	}
}

// RestoreAccountLedger rebuilds a ledger from persisted rows, rejecting negative values
func RestoreAccountLedger(rows []CurrencyBalance) (*AccountLedger, error) {
	l := NewAccountLedger()
	for _, row := range rows {
		if row.BalanceCents < 0 || row.DebtCents < 0 {
			return nil, fmt.Errorf("%w: %s balance=%d debt=%d", ErrNegativeBalance, row.Currency, row.BalanceCents, row.DebtCents)
		}
		currency := NormalizeCurrency(row.Currency)
		l.balances[currency] = row.BalanceCents
		l.debt[currency] = row.DebtCents
	}
	return l, nil
}

func (l *AccountLedger) Balance(currency string) int64 {
	return l.balances[NormalizeCurrency(currency)]
}

func (l *AccountLedger) Debt(currency string) int64 {
	return l.debt[NormalizeCurrency(currency)]
}

// Credit adds amount to the spendable balance
func (l *AccountLedger) Credit(currency string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("%w: credit %d", ErrNegativeAmount, amount)
	}
	l.balances[NormalizeCurrency(currency)] += amount
	return nil
}

// Debit removes up to amount from the balance. The part that could not be covered
// is returned as shortfall; the balance itself never drops below zero.
func (l *AccountLedger) Debit(currency string, amount int64) (debited, shortfall int64, err error) {
	if amount < 0 {
		return 0, 0, fmt.Errorf("%w: debit %d", ErrNegativeAmount, amount)
	}
	currency = NormalizeCurrency(currency)
	debited = min(amount, l.balances[currency])
	l.balances[currency] -= debited
	return debited, amount - debited, nil
}

// DebitOrAccrue debits the balance first and carries any shortfall into debt
func (l *AccountLedger) DebitOrAccrue(currency string, amount int64) (debited, accrued int64, err error) {
	debited, shortfall, err := l.Debit(currency, amount)
	if err != nil {
		return 0, 0, err
	}
	if err := l.AccrueDebt(currency, shortfall); err != nil {
		return 0, 0, err
	}
	return debited, shortfall, nil
}

func (l *AccountLedger) AccrueDebt(currency string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("%w: debt %d", ErrNegativeAmount, amount)
	}
	l.debt[NormalizeCurrency(currency)] += amount
	return nil
}

// RecoverDebt settles up to limit of the outstanding debt and returns the amount settled
func (l *AccountLedger) RecoverDebt(currency string, limit int64) int64 {
	if limit <= 0 {
		return 0
	}
	currency = NormalizeCurrency(currency)
	recovered := min(limit, l.debt[currency])
	l.debt[currency] -= recovered
	return recovered
}

// Currencies returns every currency with a balance or debt row, sorted
func (l *AccountLedger) Currencies() []string {
	seen := make(map[string]struct{}, len(l.balances))
	for c := range l.balances {
		seen[c] = struct{}{}
	}
	for c := range l.debt {
		seen[c] = struct{}{}
	}
	currencies := make([]string, 0, len(seen))
	for c := range seen {
		currencies = append(currencies, c)
	}
	sort.Strings(currencies)
	return currencies
}

// Balances returns a copy of the balance map
func (l *AccountLedger) Balances() map[string]int64 {
	out := make(map[string]int64, len(l.balances))
	for c, v := range l.balances {
		out[c] = v
	}
	return out
}

// DebtByCurrency returns a copy of the debt map
func (l *AccountLedger) DebtByCurrency() map[string]int64 {
	out := make(map[string]int64, len(l.debt))
	for c, v := range l.debt {
		out[c] = v
	}
	return out
}
