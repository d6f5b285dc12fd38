package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/xs2a/internal/xs2a/http"
	"github.com/aussiebroadwan/xs2a/internal/xs2a/metrics"
	"github.com/aussiebroadwan/xs2a/internal/xs2a/securid"
	"github.com/aussiebroadwan/xs2a/internal/xs2a/service"
	"github.com/aussiebroadwan/xs2a/internal/xs2a/spi/sandbox"
	"github.com/aussiebroadwan/xs2a/internal/xs2a/store"
	"github.com/aussiebroadwan/xs2a/internal/xs2a/store/drivers/sqlite"
	"github.com/aussiebroadwan/xs2a/pkg/cryptox"
	"github.com/aussiebroadwan/xs2a/pkg/jwtx"
	"github.com/aussiebroadwan/xs2a/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application encapsulates the XS2A service with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db      store.Store
	bank    *sandbox.Bank
	ids     *securid.Translator
	keys    *jwtx.KeySet
	verify  jwtx.Verifier
	metrics *metrics.Metrics

	// Services
	authorisationService *service.AuthorisationService
	consentService       *service.ConsentService
	paymentService       *service.PaymentService
	basketService        *service.BasketService
	expirationService    *service.ExpirationService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "xs2a-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	// Set pepper path for sandbox password hashing
	cryptox.SetPepperPath(app.cfg.PepperFile)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initDependencies(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.expirationService.Start()

	app.logger.Info("xs2a service starting", "port", app.cfg.Port, "version", BuildVersion)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		app.expirationService.Stop()
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down xs2a service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	// Let a running sweep finish before the store goes away
	app.expirationService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("xs2a service stopped")
	return nil
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initDependencies loads the id cipher, the TPP keys, the sandbox bank and
// the metrics registry.
func (app *Application) initDependencies() error {
	cipher, err := cryptox.NewIDCipher([]byte(app.cfg.IDKey))
	if err != nil {
		return fmt.Errorf("failed to initialize id cipher: %w", err)
	}
	app.ids = securid.New(cipher, app.logger)

	app.keys, app.verify, err = LoadTppKeys(app.cfg, app.logger)
	if err != nil {
		return err
	}

	fixtures, err := sandbox.LoadFixtures(app.cfg.FixturesFile)
	if err != nil {
		return fmt.Errorf("failed to load sandbox fixtures: %w", err)
	}
	app.bank, err = sandbox.New(fixtures, app.logger)
	if err != nil {
		return fmt.Errorf("failed to start sandbox bank: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	app.metrics = metrics.New(reg)
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	var policy service.SupersededPolicy
	if app.cfg.OneConsentPerTpp {
		policy = service.SameTppAndPsuPolicy{}
	}

	app.authorisationService = &service.AuthorisationService{
		Store:      app.db,
		IDs:        app.ids,
		Adapters:   service.NewAdapters(app.db, app.bank, policy),
		Dispatcher: &service.Dispatcher{Store: app.db, Metrics: app.metrics},
	}
	app.consentService = &service.ConsentService{
		Store:        app.db,
		IDs:          app.ids,
		RequirePsuID: app.cfg.RequirePsuID,
	}
	app.paymentService = &service.PaymentService{
		Store:    app.db,
		IDs:      app.ids,
		Products: app.cfg.PaymentProducts,
	}
	app.basketService = &service.BasketService{
		Store:     app.db,
		IDs:       app.ids,
		Bank:      app.bank,
		Validator: &service.DefaultBasketValidator{Store: app.db, MaxEntries: app.cfg.MaxBasketEntries},
		Metrics:   app.metrics,
	}

	app.expirationService = service.NewExpirationService(
		app.db,
		app.logger,
		app.metrics,
		app.cfg.SweepInterval,
		app.cfg.ConsentConfirmationTTL,
		app.cfg.PaymentConfirmationTTL,
	)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.keys,
		app.verify,
		BuildVersion,
		app.db,
		app.metrics,
		app.logger,
	)

	// Wire services to router
	router.AuthorisationService = app.authorisationService
	router.ConsentService = app.consentService
	router.PaymentService = app.paymentService
	router.BasketService = app.basketService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
