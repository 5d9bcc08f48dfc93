package common

import (
	"fmt"
	"os"
	"path/filepath"

	"commission-ledger-go/internal/models"

	"gopkg.in/yaml.v2"
)

type CurrenciesConfig struct {
	Currencies []models.PayoutWallet `yaml:"currencies"`
}

// LoadPayoutWallets reads the currency to Prime wallet mapping used for payouts
func LoadPayoutWallets(currenciesFile string) ([]models.PayoutWallet, error) {
	var currenciesPath string
	if filepath.IsAbs(currenciesFile) {
		currenciesPath = currenciesFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		currenciesPath = filepath.Join(wd, currenciesFile)
	}

	data, err := os.ReadFile(currenciesPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", currenciesFile, err)
	}

	var config CurrenciesConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", currenciesFile, err)
	}

	seen := make(map[string]bool, len(config.Currencies))
	for i, wallet := range config.Currencies {
		if wallet.Currency == "" {
			return nil, fmt.Errorf("currency at index %d missing currency", i)
		}
		if wallet.WalletId == "" {
			return nil, fmt.Errorf("currency at index %d missing wallet_id", i)
		}
		if wallet.Symbol == "" {
			return nil, fmt.Errorf("currency at index %d missing symbol", i)
		}
		code := models.NormalizeCurrency(wallet.Currency)
		if seen[code] {
			return nil, fmt.Errorf("currency %s configured twice", code)
		}
		seen[code] = true
		config.Currencies[i].Currency = code
	}

	return config.Currencies, nil
}
