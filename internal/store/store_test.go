package store

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelErrorsAreDistinct(t *testing.T) {
	sentinels := []error{ErrDuplicateEntry, ErrConcurrentModification, ErrEntryNotFound, ErrAccountNotFound, ErrInvoiceAttributed}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && errors.Is(a, b) {
				t.Errorf("expected %v and %v to be distinct", a, b)
			}
		}
	}
}

func TestSentinelErrorsSurviveWrapping(t *testing.T) {
	err := fmt.Errorf("promote entry e1: %w", ErrConcurrentModification)
	if !errors.Is(err, ErrConcurrentModification) {
		t.Errorf("expected wrapped error to match ErrConcurrentModification, got %v", err)
	}

	// Ensure the interface is non-nil type.
	var _ LedgerStore
}
