package formance

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"

	v3 "github.com/formancehq/formance-sdk-go/v3"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MirrorBalance is an affiliate's position per currency as seen by the Formance mirror
type MirrorBalance struct {
	Currency  string
	Pending   decimal.Decimal
	Available decimal.Decimal
	// Debt is positive when the affiliate owes money
	Debt decimal.Decimal
}

// GetAffiliateBalances reads the pending, available and debt sub-accounts of an affiliate.
// Used to cross-check the mirror against the authoritative store.
func (s *Service) GetAffiliateBalances(ctx context.Context, userId string) ([]MirrorBalance, error) {
	zap.L().Debug("Getting affiliate balances from Formance", zap.String("user_id", userId))

	byCurrency := make(map[string]*MirrorBalance)
	entry := func(currency string) *MirrorBalance {
		if b, ok := byCurrency[currency]; ok {
			return b
		}
		b := &MirrorBalance{Currency: currency}
		byCurrency[currency] = b
		return b
	}

	for _, bucket := range []string{"pending", "available", "debt"} {
		vols, err := s.getAccountVolumes(ctx, affiliateAccount(userId, bucket))
		if err != nil {
			return nil, err
		}
		for fAsset := range vols {
			bal := volumeBalance(vols, fAsset)
			if bal == nil {
				continue
			}
			amount := bigIntToDecimal(bal)
			b := entry(assetSymbol(fAsset))
			switch bucket {
			case "pending":
				b.Pending = amount
			case "available":
				b.Available = amount
			case "debt":
				b.Debt = amount.Neg()
			}
		}
	}

	balances := make([]MirrorBalance, 0, len(byCurrency))
	for _, b := range byCurrency {
		balances = append(balances, *b)
	}
	sort.Slice(balances, func(i, j int) bool { return balances[i].Currency < balances[j].Currency })
	return balances, nil
}

// ---------- helpers ----------

// getAccountVolumes fetches volumes for a single account. A never-used account has none.
func (s *Service) getAccountVolumes(ctx context.Context, address string) (map[string]shared.V2Volume, error) {
	resp, err := s.client.Ledger.V2.GetAccount(ctx, operations.V2GetAccountRequest{
		Ledger:  s.ledger,
		Address: address,
		Expand:  v3.Pointer("volumes"),
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get account volumes for %s: %w", address, err)
	}
	return resp.V2AccountResponse.Data.Volumes, nil
}

// volumeBalance extracts the balance for a specific asset from volumes.
func volumeBalance(vols map[string]shared.V2Volume, fAsset string) *big.Int {
	vol, ok := vols[fAsset]
	if !ok {
		return nil
	}
	if vol.Balance != nil {
		return vol.Balance
	}
	if vol.Input == nil {
		return nil
	}
	result := new(big.Int).Set(vol.Input)
	if vol.Output != nil {
		result.Sub(result, vol.Output)
	}
	return result
}

// bigIntToDecimal converts minor units to major units.
func bigIntToDecimal(raw *big.Int) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -minorUnitPrecision)
}

// assetSymbol extracts the currency from a Formance asset like "USD/2".
func assetSymbol(fAsset string) string {
	symbol, _, _ := strings.Cut(fAsset, "/")
	return symbol
}
