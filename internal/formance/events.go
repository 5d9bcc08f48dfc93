package formance

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"commission-ledger-go/internal/models"

	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// Numscript templates. Chart of accounts:
//   @platform:commissions            expense source, overdrafts unbounded
//   @platform:commissions:reversed   clawed back commission
//   @platform:payouts                money sent to affiliates
//   @affiliates:{id}:pending         earned, not yet matured
//   @affiliates:{id}:available       matured, payable
//   @affiliates:{id}:debt            negative balance is what the affiliate owes
// ---------------------------------------------------------------------------

const numscriptCommissionEarned = `vars {
  asset $asset
  number $amount
  account $affiliate
  string $entry_id
  string $invoice_id
}

send [$asset $amount] (
  source = @platform:commissions allowing unbounded overdraft
  destination = @affiliates:$affiliate:pending
)

set_tx_meta("event_type", "commission_earned")
set_tx_meta("entry_id", $entry_id)
set_tx_meta("invoice_id", $invoice_id)
`

const numscriptCommissionMatured = `vars {
  asset $asset
  number $amount
  account $affiliate
  string $entry_id
  string $invoice_id
}

send [$asset $amount] (
  source = @affiliates:$affiliate:pending allowing unbounded overdraft
  destination = @affiliates:$affiliate:available
)

set_tx_meta("event_type", "commission_matured")
set_tx_meta("entry_id", $entry_id)
set_tx_meta("invoice_id", $invoice_id)
`

const numscriptPendingReduced = `vars {
  asset $asset
  number $amount
  account $affiliate
  string $entry_id
  string $invoice_id
}

send [$asset $amount] (
  source = @affiliates:$affiliate:pending allowing unbounded overdraft
  destination = @platform:commissions:reversed
)

set_tx_meta("event_type", "pending_reduced")
set_tx_meta("entry_id", $entry_id)
set_tx_meta("invoice_id", $invoice_id)
`

// The balance share comes out of available first, the rest is owed as debt.
const numscriptCommissionReversed = `vars {
  asset $asset
  number $amount
  number $balance_amount
  account $affiliate
  string $entry_id
  string $invoice_id
}

send [$asset $amount] (
  source = {
    max [$asset $balance_amount] from @affiliates:$affiliate:available allowing unbounded overdraft
    @affiliates:$affiliate:debt allowing unbounded overdraft
  }
  destination = @platform:commissions:reversed
)

set_tx_meta("event_type", "commission_reversed")
set_tx_meta("entry_id", $entry_id)
set_tx_meta("invoice_id", $invoice_id)
`

// Outstanding debt is settled first, the remainder leaves as a transfer.
const numscriptPayoutCompleted = `vars {
  asset $asset
  number $amount
  number $debt_amount
  account $affiliate
  string $entry_id
  string $invoice_id
}

send [$asset $amount] (
  source = @affiliates:$affiliate:available allowing unbounded overdraft
  destination = {
    max [$asset $debt_amount] to @affiliates:$affiliate:debt
    remaining to @platform:payouts
  }
)

set_tx_meta("event_type", "payout_completed")
set_tx_meta("entry_id", $entry_id)
set_tx_meta("invoice_id", $invoice_id)
`

var errSkipEvent = errors.New("event has nothing to mirror")

// RecordEvent posts one Formance transaction per ledger event.
// The event reference is the transaction reference, so redelivery is a no-op.
func (s *Service) RecordEvent(ctx context.Context, event models.LedgerEvent) error {
	postTx, err := buildPostTransaction(event)
	if errors.Is(err, errSkipEvent) {
		zap.L().Debug("Skipping empty ledger event",
			zap.String("type", string(event.Type)),
			zap.String("reference", event.Reference))
		return nil
	}
	if err != nil {
		return err
	}
	if rc := models.GetRequestContext(ctx); rc != nil {
		postTx.Metadata = requestMetadata(rc)
	}

	_, err = s.client.Ledger.V2.CreateTransaction(ctx, operations.V2CreateTransactionRequest{
		Ledger:            s.ledger,
		V2PostTransaction: *postTx,
	})
	if err != nil {
		if isConflictError(err) {
			return nil // idempotent
		}
		return fmt.Errorf("error mirroring %s: %w", event.Type, err)
	}

	zap.L().Debug("Ledger event mirrored in Formance",
		zap.String("type", string(event.Type)),
		zap.String("reference", event.Reference),
		zap.Int64("amount_cents", event.AmountCents))
	return nil
}

// requestMetadata records what triggered the mutation on the Formance transaction
func requestMetadata(rc *models.RequestContext) map[string]string {
	meta := map[string]string{"request_source": rc.Source}
	if rc.RequestId != "" {
		meta["request_id"] = rc.RequestId
	}
	if !rc.ReceivedAt.IsZero() {
		meta["received_at"] = rc.ReceivedAt.UTC().Format(time.RFC3339)
	}
	return meta
}

func buildPostTransaction(event models.LedgerEvent) (*shared.V2PostTransaction, error) {
	if event.Reference == "" {
		return nil, fmt.Errorf("ledger event %s has no reference", event.Type)
	}
	if event.AmountCents <= 0 {
		return nil, errSkipEvent
	}

	vars := map[string]string{
		"asset":      formanceAsset(event.Currency),
		"amount":     strconv.FormatInt(event.AmountCents, 10),
		"affiliate":  event.AffiliateUserId,
		"entry_id":   event.EntryId,
		"invoice_id": event.InvoiceId,
	}

	var script string
	switch event.Type {
	case models.EventCommissionEarned:
		script = numscriptCommissionEarned
	case models.EventCommissionMatured:
		script = numscriptCommissionMatured
	case models.EventPendingReduced:
		script = numscriptPendingReduced
	case models.EventCommissionReversed:
		script = numscriptCommissionReversed
		vars["balance_amount"] = strconv.FormatInt(event.BalanceCents, 10)
	case models.EventPayoutCompleted:
		script = numscriptPayoutCompleted
		vars["debt_amount"] = strconv.FormatInt(event.DebtCents, 10)
	default:
		return nil, fmt.Errorf("unknown ledger event type %q", event.Type)
	}

	postTx := &shared.V2PostTransaction{
		Reference: strPtr(event.Reference),
		Script: &shared.V2PostTransactionScript{
			Plain: script,
			Vars:  vars,
		},
	}
	if !event.OccurredAt.IsZero() {
		ts := event.OccurredAt
		postTx.Timestamp = &ts
	}
	return postTx, nil
}
