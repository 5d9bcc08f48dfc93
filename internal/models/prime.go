/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package models

// Portfolio represents a Prime portfolio
type Portfolio struct {
	Id   string
	Name string
}

// TransferRequest asks the payment provider to pay an affiliate.
// IdempotencyKey is deterministic so a retried request maps to the original transfer.
type TransferRequest struct {
	IdempotencyKey  string
	AffiliateUserId string
	EntryId         string
	Currency        string
	AmountCents     int64
	Destination     string
	Network         string
}

// TransferResult is the provider's acknowledgement of a transfer
type TransferResult struct {
	TransferId     string
	IdempotencyKey string
}

// PayoutWallet maps a ledger currency to the Prime wallet that funds payouts in it
type PayoutWallet struct {
	Currency    string `yaml:"currency"`
	WalletId    string `yaml:"wallet_id"`
	Symbol      string `yaml:"symbol"`
	NetworkId   string `yaml:"network_id"`
	NetworkType string `yaml:"network_type"`
}
