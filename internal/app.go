// internal/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	router "finflow-ledger/internal/api"
	"finflow-ledger/internal/api/handler"
	"finflow-ledger/internal/config"
	"finflow-ledger/internal/rates"
	"finflow-ledger/internal/repository"
	"finflow-ledger/internal/repository/memory"
	"finflow-ledger/internal/repository/postgres"
	"finflow-ledger/internal/service"
	"finflow-ledger/internal/util"
	"finflow-ledger/pkg/db"
)

// Application holds all the initialized components of the application.
type Application struct {
	Config *config.AppConfig
	Logger *slog.Logger
	DB     *sqlx.DB      // nil with the memory store
	Redis  *redis.Client // nil when idempotency is off

	// Ledger store
	UnitOfWork            repository.UnitOfWork
	WalletRepository      repository.WalletRepository
	TransactionRepository repository.TransactionRepository

	RateProvider rates.Provider

	// Services
	LedgerService  service.LedgerService
	BalanceService service.BalanceService

	// HTTP API
	HTTPHandler http.Handler
}

// NewApplication creates a new Application instance.
func NewApplication() *Application {
	return &Application{Logger: util.GetLogger()}
}

// Initialize loads the configuration and initializes all application components.
func (app *Application) Initialize(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	return app.InitializeWith(ctx, cfg)
}

// InitializeWith initializes all application components from cfg.
func (app *Application) InitializeWith(ctx context.Context, cfg *config.AppConfig) error {
	app.Config = cfg

	// 1. Initialize Logger
	util.InitLogger(cfg.LogLevel)
	app.Logger = util.GetLogger()
	app.Logger.Info("Application configuration loaded successfully.", "store", cfg.StoreDriver)

	// 2. Ledger store
	if err := app.initStore(ctx); err != nil {
		return err
	}

	// 3. Rate provider
	provider, err := app.newRateProvider()
	if err != nil {
		return err
	}
	app.RateProvider = rates.Bounded(provider, cfg.Rates.Timeout)
	app.Logger.Info("Rate provider initialized.", "timeout", cfg.Rates.Timeout.String())

	// 4. Initialize Services
	app.LedgerService = service.NewLedgerService(app.UnitOfWork, app.WalletRepository, app.TransactionRepository, app.RateProvider, app.Logger)
	app.BalanceService = service.NewBalanceService(app.UnitOfWork, app.WalletRepository, app.TransactionRepository, app.RateProvider, app.Logger)
	app.Logger.Info("Services initialized.")

	// 5. Optional idempotency store
	opts := router.RouterOptions{IdempotencyTTL: cfg.Redis.IdempotencyTTL}
	if cfg.Redis.URL != "" {
		redisOpts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		app.Redis = redis.NewClient(redisOpts)
		if err := app.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		opts.Idempotency = app.Redis
		app.Logger.Info("Idempotency store connected.")
	}

	// 6. Initialize HTTP Handlers and Router
	ledgerHandler := handler.NewLedgerHandler(app.LedgerService, app.BalanceService, app.Logger)
	app.HTTPHandler = router.NewRouter(ledgerHandler, app.Logger, opts)
	app.Logger.Info("HTTP router and handlers initialized.")

	return nil
}

func (app *Application) initStore(ctx context.Context) error {
	if app.Config.StoreDriver == config.StoreMemory {
		store := memory.NewStore()
		app.UnitOfWork = store
		app.WalletRepository = memory.NewWalletRepository(store)
		app.TransactionRepository = memory.NewTransactionRepository(store)
		app.Logger.Warn("Using the in-memory ledger store; balances are lost on restart.")
		return nil
	}

	database, err := db.NewPostgresDB(app.Config.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	app.DB = database
	app.Logger.Info("Database connection established.", "driver", app.Config.DB.Driver)

	if err := postgres.Migrate(ctx, app.DB); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	// Pass the concrete db.BeginTx, db.CommitTx, db.RollbackTx functions from pkg/db
	app.UnitOfWork = repository.NewUnitOfWork(app.DB, app.DB, db.BeginTx, db.CommitTx, db.RollbackTx)
	app.WalletRepository = postgres.NewWalletRepository()
	app.TransactionRepository = postgres.NewTransactionRepository()
	app.Logger.Info("Repositories initialized.")
	return nil
}

func (app *Application) newRateProvider() (rates.Provider, error) {
	if app.Config.Rates.Static != "" {
		table, err := rates.ParseStatic(app.Config.Rates.Static)
		if err != nil {
			return nil, fmt.Errorf("invalid RATES_STATIC: %w", err)
		}
		app.Logger.Info("Using static exchange rates.", "pairs", len(table))
		return table, nil
	}
	return rates.NewHTTPProvider(app.Config.Rates.APIURL, app.Config.Rates.APIKey, app.Config.Rates.Timeout, app.Logger), nil
}

// Shutdown gracefully shuts down application resources.
func (app *Application) Shutdown(ctx context.Context) error {
	app.Logger.Info("Shutting down application...")
	var errs []error
	if app.Redis != nil {
		if err := app.Redis.Close(); err != nil {
			app.Logger.Error("Failed to close redis client", "error", err)
			errs = append(errs, fmt.Errorf("failed to close redis client: %w", err))
		}
	}
	if app.DB != nil {
		if err := app.DB.Close(); err != nil {
			app.Logger.Error("Failed to close database connection", "error", err)
			errs = append(errs, fmt.Errorf("failed to close database connection: %w", err))
		} else {
			app.Logger.Info("Database connection closed.")
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	app.Logger.Info("Application shut down gracefully.")
	return nil
}
