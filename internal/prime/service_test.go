package prime

import (
	"testing"

	"commission-ledger-go/internal/models"
)

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		cents    int64
		expected string
	}{
		{1, "0.01"},
		{100, "1.00"},
		{123456, "1234.56"},
		{5, "0.05"},
	}

	for _, tt := range tests {
		if got := FormatAmount(tt.cents); got != tt.expected {
			t.Errorf("FormatAmount(%d): expected %s, got %s", tt.cents, tt.expected, got)
		}
	}
}

func TestBuildWithdrawalRequest(t *testing.T) {
	wallet := models.PayoutWallet{
		Currency:    "USD",
		WalletId:    "wallet-1",
		Symbol:      "USDC",
		NetworkId:   "ethereum",
		NetworkType: "mainnet",
	}
	req := models.TransferRequest{
		IdempotencyKey: "key-1",
		Currency:       "USD",
		AmountCents:    2550,
		Destination:    "0xabc",
	}

	request, err := buildWithdrawalRequest("portfolio-1", wallet, req)
	if err != nil {
		t.Fatalf("buildWithdrawalRequest failed: %v", err)
	}
	if request.Amount != "25.50" || request.Symbol != "USDC" || request.SourceWalletId != "wallet-1" {
		t.Errorf("Unexpected request: %+v", request)
	}
	if request.IdempotencyKey != "key-1" {
		t.Errorf("Expected idempotency key to pass through, got %s", request.IdempotencyKey)
	}
	if request.BlockchainAddress.Network == nil || request.BlockchainAddress.Network.Id != "ethereum" {
		t.Errorf("Expected wallet network, got %+v", request.BlockchainAddress.Network)
	}

	req.Network = "base-mainnet"
	request, err = buildWithdrawalRequest("portfolio-1", wallet, req)
	if err != nil {
		t.Fatalf("buildWithdrawalRequest failed: %v", err)
	}
	if request.BlockchainAddress.Network.Id != "base" || request.BlockchainAddress.Network.Type != "mainnet" {
		t.Errorf("Expected affiliate network override, got %+v", request.BlockchainAddress.Network)
	}
}

func TestBuildWithdrawalRequest_Invalid(t *testing.T) {
	wallet := models.PayoutWallet{Currency: "USD", WalletId: "wallet-1", Symbol: "USDC"}

	if _, err := buildWithdrawalRequest("p", wallet, models.TransferRequest{AmountCents: 0, Destination: "0xabc"}); err == nil {
		t.Error("Expected error for zero amount")
	}
	if _, err := buildWithdrawalRequest("p", wallet, models.TransferRequest{AmountCents: 100}); err == nil {
		t.Error("Expected error for missing destination")
	}
}
