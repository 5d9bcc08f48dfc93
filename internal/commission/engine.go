// Package commission implements the affiliate commission lifecycle on top of a LedgerStore:
// maturation of pending commissions, refund reconciliation and payouts.
package commission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"commission-ledger-go/internal/lock"
	"commission-ledger-go/internal/models"
	"commission-ledger-go/internal/store"

	"go.uber.org/zap"
)

var (
	// ErrNoMatchingEntry means no commission was ever recorded for the invoice.
	ErrNoMatchingEntry = errors.New("no matching commission entry")
	// ErrAlreadyProcessed means the entry has already been paid.
	ErrAlreadyProcessed = errors.New("entry already processed")
	// ErrInsufficientAccountVerification means the affiliate has no verified payout destination.
	ErrInsufficientAccountVerification = errors.New("insufficient account verification")
	// ErrNotEligible means the entry is in a status that cannot be paid.
	ErrNotEligible = errors.New("entry not eligible for payout")
)

const (
	defaultReconcileMaxAttempts = 5
	basisPoints                 = 10000
)

// Clock is the engine's time source
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// TransferClient sends money to an affiliate. Implementations must honor IdempotencyKey
// so a repeated request returns the original transfer.
type TransferClient interface {
	CreateTransfer(ctx context.Context, req models.TransferRequest) (*models.TransferResult, error)
}

// Mirror receives committed ledger events. It is best effort; the store stays authoritative.
type Mirror interface {
	RecordEvent(ctx context.Context, event models.LedgerEvent) error
}

type noopMirror struct{}

func (noopMirror) RecordEvent(context.Context, models.LedgerEvent) error { return nil }

// Config holds the engine's business settings
type Config struct {
	// DefaultCommissionRateBps applies to entries recorded without their own rate
	DefaultCommissionRateBps int64
	// HoldingPeriod sets availableAt for commissions recorded without one
	HoldingPeriod time.Duration
	// ReconcileMaxAttempts bounds retries of a refund after concurrent modification
	ReconcileMaxAttempts int
}

type Engine struct {
	store     store.LedgerStore
	transfers TransferClient
	mirror    Mirror
	locker    lock.Locker
	clock     Clock
	config    Config
}

type Option func(*Engine)

func WithTransferClient(client TransferClient) Option {
	return func(e *Engine) { e.transfers = client }
}

func WithMirror(mirror Mirror) Option {
	return func(e *Engine) {
		if mirror != nil {
			e.mirror = mirror
		}
	}
}

func WithLocker(locker lock.Locker) Option {
	return func(e *Engine) {
		if locker != nil {
			e.locker = locker
		}
	}
}

func WithClock(clock Clock) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

func NewEngine(ledger store.LedgerStore, config Config, opts ...Option) (*Engine, error) {
	if ledger == nil {
		return nil, fmt.Errorf("ledger store is required")
	}
	if config.DefaultCommissionRateBps < 0 || config.DefaultCommissionRateBps > basisPoints {
		return nil, fmt.Errorf("default commission rate must be between 0 and %d bps, got %d", basisPoints, config.DefaultCommissionRateBps)
	}
	if config.ReconcileMaxAttempts <= 0 {
		config.ReconcileMaxAttempts = defaultReconcileMaxAttempts
	}

	e := &Engine{
		store:  ledger,
		mirror: noopMirror{},
		locker: lock.NewMemoryLocker(),
		clock:  systemClock{},
		config: config,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Store exposes the underlying ledger store for read paths
func (e *Engine) Store() store.LedgerStore {
	return e.store
}

func (e *Engine) now() time.Time {
	return e.clock.Now().UTC()
}

// publish forwards a committed event to the mirror. Failures are logged, never returned.
func (e *Engine) publish(ctx context.Context, event models.LedgerEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = e.now()
	}
	if err := e.mirror.RecordEvent(ctx, event); err != nil {
		zap.L().Warn("Failed to mirror ledger event",
			zap.String("type", string(event.Type)),
			zap.String("reference", event.Reference),
			zap.Error(err))
	}
}
