package common

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"commission-ledger-go/internal/commission"
	"commission-ledger-go/internal/database"
	"commission-ledger-go/internal/formance"
	"commission-ledger-go/internal/lock"
	"commission-ledger-go/internal/models"
	"commission-ledger-go/internal/prime"

	"github.com/coinbase-samples/prime-sdk-go/credentials"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via shell export, docker, etc.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

type Services struct {
	DbService     *database.Service
	Engine        *commission.Engine
	PrimeService  *prime.Service
	MirrorService *formance.Service
	redisClient   *redis.Client
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices opens the store and builds the commission engine.
// Prime payouts, the Formance mirror and the Redis lock are wired only when configured.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	services := &Services{DbService: dbService}

	var opts []commission.Option

	if cfg.Redis.URL != "" {
		locker, rdb, err := newRedisLocker(ctx, cfg.Redis)
		if err != nil {
			services.Close()
			return nil, err
		}
		services.redisClient = rdb
		opts = append(opts, commission.WithLocker(locker))
	}

	if cfg.Payout.Enabled {
		primeService, err := newPrimeService(cfg.Payout)
		if err != nil {
			services.Close()
			return nil, err
		}
		services.PrimeService = primeService
		opts = append(opts, commission.WithTransferClient(primeService))
	}

	if cfg.Formance.Enabled {
		mirror, err := formance.NewService(ctx, cfg.Formance)
		if err != nil {
			services.Close()
			return nil, err
		}
		services.MirrorService = mirror
		opts = append(opts, commission.WithMirror(mirror))
	}

	engine, err := commission.NewEngine(dbService, commission.Config{
		DefaultCommissionRateBps: cfg.Commission.DefaultRateBps,
		HoldingPeriod:            cfg.Commission.HoldingPeriod,
		ReconcileMaxAttempts:     cfg.Commission.ReconcileMaxAttempts,
	}, opts...)
	if err != nil {
		services.Close()
		return nil, err
	}
	services.Engine = engine

	zap.L().Info("Commission engine initialized",
		zap.Int64("default_rate_bps", cfg.Commission.DefaultRateBps),
		zap.Duration("holding_period", cfg.Commission.HoldingPeriod),
		zap.Bool("payouts", services.PrimeService != nil),
		zap.Bool("formance_mirror", services.MirrorService != nil),
		zap.Bool("redis_lock", services.redisClient != nil))

	return services, nil
}

// InitializeDatabaseOnly initializes just the database service without external integrations
// Useful for read-only operations like querying balances
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return dbService, nil
}

func (cs *Services) Close() {
	if cs.redisClient != nil {
		if err := cs.redisClient.Close(); err != nil {
			zap.L().Warn("Failed to close redis client", zap.Error(err))
		}
	}
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func newRedisLocker(ctx context.Context, cfg models.RedisConfig) (lock.Locker, *redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("unable to reach redis: %w", err)
	}

	zap.L().Info("Using redis for refund locks", zap.String("addr", opts.Addr))
	return lock.NewRedisLocker(rdb, cfg.LockPrefix, cfg.LockTTL, cfg.LockRetry), rdb, nil
}

func newPrimeService(cfg models.PayoutConfig) (*prime.Service, error) {
	zap.L().Info("Loading Prime API credentials")
	creds, err := loadPrimeCredentials()
	if err != nil {
		return nil, err
	}

	wallets, err := LoadPayoutWallets(cfg.CurrenciesFile)
	if err != nil {
		return nil, err
	}

	return prime.NewService(creds, cfg.PortfolioId, wallets)
}

func loadPrimeCredentials() (*credentials.Credentials, error) {
	accessKey := os.Getenv("PRIME_ACCESS_KEY")
	passphrase := os.Getenv("PRIME_PASSPHRASE")
	signingKey := os.Getenv("PRIME_SIGNING_KEY")

	if accessKey == "" || passphrase == "" || signingKey == "" {
		return nil, fmt.Errorf("missing required Prime API credentials: PRIME_ACCESS_KEY, PRIME_PASSPHRASE, PRIME_SIGNING_KEY")
	}

	return &credentials.Credentials{
		AccessKey:  accessKey,
		Passphrase: passphrase,
		SigningKey: signingKey,
	}, nil
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
