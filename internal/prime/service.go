package prime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"commission-ledger-go/internal/models"

	"github.com/coinbase-samples/prime-sdk-go/client"
	"github.com/coinbase-samples/prime-sdk-go/credentials"
	"github.com/coinbase-samples/prime-sdk-go/model"
	"github.com/coinbase-samples/prime-sdk-go/portfolios"
	"github.com/coinbase-samples/prime-sdk-go/transactions"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

var ErrNoPayoutWallet = errors.New("no payout wallet configured for currency")

// Service pays affiliates out of Prime wallets
type Service struct {
	client          client.RestClient
	portfoliosSvc   portfolios.PortfoliosService
	transactionsSvc transactions.TransactionsService
	portfolioId     string
	wallets         map[string]models.PayoutWallet
}

func NewService(creds *credentials.Credentials, portfolioId string, wallets []models.PayoutWallet) (*Service, error) {
	httpClient, err := createCustomHttpClient()
	if err != nil {
		return nil, fmt.Errorf("unable to create custom http client: %w", err)
	}

	restClient := client.NewRestClient(creds, httpClient)

	return &Service{
		client:          restClient,
		portfoliosSvc:   portfolios.NewPortfoliosService(restClient),
		transactionsSvc: transactions.NewTransactionsService(restClient),
		portfolioId:     portfolioId,
		wallets:         walletsByCurrency(wallets),
	}, nil
}

func createCustomHttpClient() (http.Client, error) {
	tr := &http.Transport{
		ResponseHeaderTimeout: 30 * time.Second,
		Proxy:                 http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			KeepAlive: 30 * time.Second,
			Timeout:   15 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConnsPerHost:   5,
		ExpectContinueTimeout: 5 * time.Second,
	}

	if err := http2.ConfigureTransport(tr); err != nil {
		return http.Client{}, err
	}

	return http.Client{
		Transport: tr,
		Timeout:   60 * time.Second,
	}, nil
}

func walletsByCurrency(wallets []models.PayoutWallet) map[string]models.PayoutWallet {
	byCurrency := make(map[string]models.PayoutWallet, len(wallets))
	for _, w := range wallets {
		byCurrency[models.NormalizeCurrency(w.Currency)] = w
	}
	return byCurrency
}

func (s *Service) ListPortfolios(ctx context.Context) ([]models.Portfolio, error) {
	request := &portfolios.ListPortfoliosRequest{}

	response, err := s.portfoliosSvc.ListPortfolios(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("unable to list portfolios: %w", err)
	}

	portfolioList := make([]models.Portfolio, len(response.Portfolios))
	for i, p := range response.Portfolios {
		portfolioList[i] = models.Portfolio{
			Id:   p.Id,
			Name: p.Name,
		}
	}

	return portfolioList, nil
}

func (s *Service) FindDefaultPortfolio(ctx context.Context) (*models.Portfolio, error) {
	portfolioList, err := s.ListPortfolios(ctx)
	if err != nil {
		return nil, err
	}

	for _, portfolio := range portfolioList {
		if portfolio.Name == "Default Portfolio" {
			return &portfolio, nil
		}
	}

	return nil, fmt.Errorf("default portfolio not found")
}

// ResolvePortfolio falls back to the default portfolio when none was configured
func (s *Service) ResolvePortfolio(ctx context.Context) (string, error) {
	if s.portfolioId != "" {
		return s.portfolioId, nil
	}

	portfolio, err := s.FindDefaultPortfolio(ctx)
	if err != nil {
		return "", err
	}
	s.portfolioId = portfolio.Id

	zap.L().Info("Using default portfolio for payouts",
		zap.String("portfolio_id", portfolio.Id),
		zap.String("name", portfolio.Name))

	return s.portfolioId, nil
}

// CreateTransfer sends a blockchain withdrawal to the affiliate's destination.
// Prime deduplicates on the idempotency key, so a retried payout returns the original activity.
func (s *Service) CreateTransfer(ctx context.Context, req models.TransferRequest) (*models.TransferResult, error) {
	wallet, ok := s.wallets[models.NormalizeCurrency(req.Currency)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoPayoutWallet, req.Currency)
	}

	portfolioId, err := s.ResolvePortfolio(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to resolve portfolio: %w", err)
	}

	request, err := buildWithdrawalRequest(portfolioId, wallet, req)
	if err != nil {
		return nil, err
	}

	zap.L().Info("Creating payout withdrawal via Prime API",
		zap.String("portfolio_id", request.PortfolioId),
		zap.String("wallet_id", request.SourceWalletId),
		zap.String("entry_id", req.EntryId),
		zap.String("symbol", request.Symbol),
		zap.String("amount", request.Amount),
		zap.String("idempotency_key", request.IdempotencyKey))

	response, err := s.transactionsSvc.CreateWalletWithdrawal(ctx, request)
	if err != nil {
		zap.L().Error("Failed to create payout withdrawal",
			zap.String("entry_id", req.EntryId),
			zap.String("amount", request.Amount),
			zap.Error(err))
		return nil, fmt.Errorf("unable to create withdrawal: %w", err)
	}

	zap.L().Info("Payout withdrawal created",
		zap.String("activity_id", response.ActivityId),
		zap.String("entry_id", req.EntryId))

	return &models.TransferResult{
		TransferId:     response.ActivityId,
		IdempotencyKey: req.IdempotencyKey,
	}, nil
}

func buildWithdrawalRequest(portfolioId string, wallet models.PayoutWallet, req models.TransferRequest) (*transactions.CreateWalletWithdrawalRequest, error) {
	if req.AmountCents <= 0 {
		return nil, fmt.Errorf("transfer amount must be positive, got %d", req.AmountCents)
	}
	if req.Destination == "" {
		return nil, fmt.Errorf("transfer destination is required")
	}

	blockchainAddr := &model.BlockchainAddress{
		Address: req.Destination,
	}
	networkId, networkType := wallet.NetworkId, wallet.NetworkType
	// Affiliate network overrides the wallet default, e.g. base-mainnet
	if id, typ, ok := strings.Cut(req.Network, "-"); ok {
		networkId, networkType = id, typ
	}
	if networkId != "" && networkType != "" {
		blockchainAddr.Network = &model.NetworkDetails{
			Id:   networkId,
			Type: networkType,
		}
	}

	return &transactions.CreateWalletWithdrawalRequest{
		PortfolioId:       portfolioId,
		SourceWalletId:    wallet.WalletId,
		Amount:            FormatAmount(req.AmountCents),
		IdempotencyKey:    req.IdempotencyKey,
		Symbol:            wallet.Symbol,
		DestinationType:   "DESTINATION_BLOCKCHAIN",
		BlockchainAddress: blockchainAddr,
	}, nil
}

// FormatAmount renders minor units as a major-unit decimal string
func FormatAmount(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
