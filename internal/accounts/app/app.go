package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	httpapi "github.com/aussiebroadwan/coachdesk/internal/accounts/http"
	"github.com/aussiebroadwan/coachdesk/internal/accounts/idempotency"
	"github.com/aussiebroadwan/coachdesk/internal/accounts/records"
	"github.com/aussiebroadwan/coachdesk/internal/accounts/service"
	"github.com/aussiebroadwan/coachdesk/internal/accounts/store"
	"github.com/aussiebroadwan/coachdesk/internal/accounts/store/drivers/sqlite"
	"github.com/aussiebroadwan/coachdesk/pkg/httpx"
	"github.com/aussiebroadwan/coachdesk/pkg/identity"
	"github.com/aussiebroadwan/coachdesk/pkg/mailer"
	"github.com/aussiebroadwan/coachdesk/pkg/slogx"
)

const (
	// BuildVersion is overridden at build time via -ldflags.
	BuildVersion = "v0.1.0"
)

// Application wires the account lifecycle services to the admin HTTP API.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db       store.Store
	redis    *redis.Client // nil without REDIS_URL
	ledger   idempotency.Ledger
	identity *identity.Client
	records  *records.Client
	mailer   *mailer.Dispatcher

	// Services
	provisioningService  *service.ProvisioningService
	blockingService      *service.BlockingService
	passwordResetService *service.PasswordResetService
	housekeepingService  *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "coachdesk-accounts",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initLedger(context.Background()); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initClients()
	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("accounts service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
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

// Shutdown drains HTTP requests, stops housekeeping and closes the stores.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down accounts service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis", "error", err)
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("accounts service stopped")
	return nil
}

// initDatabase opens the audit store and applies migrations
func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
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

// initLedger picks the Redis ledger when REDIS_URL is set, else the in-memory one.
func (app *Application) initLedger(ctx context.Context) error {
	if app.cfg.RedisURL == "" {
		app.ledger = idempotency.NewMemory(idempotency.WithMemoryTTL(app.cfg.IdempotencyTTL, 0))
		app.logger.Warn("REDIS_URL not set; idempotency keys are held in memory and lost on restart")
		return nil
	}

	client, err := idempotency.NewRedisClient(ctx, app.cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	app.redis = client
	app.ledger = idempotency.NewRedis(client, idempotency.RedisConfig{TTL: app.cfg.IdempotencyTTL})
	app.logger.Info("idempotency ledger backed by redis")
	return nil
}

// initClients builds the three upstream provider clients
func (app *Application) initClients() {
	app.identity = identity.NewClient(identity.Config{
		Domain:       app.cfg.IdentityDomain,
		ClientID:     app.cfg.IdentityClientID,
		ClientSecret: app.cfg.IdentityClientSecret,
		Audience:     app.cfg.IdentityAudience,
		Connection:   app.cfg.IdentityConnection,
		AppClientID:  app.cfg.IdentityAppClientID,
		RedirectURI:  app.cfg.IdentityRedirectURI,
		Timeout:      app.cfg.OutboundTimeout,
	})

	app.records = records.NewClient(records.Config{
		Endpoint: app.cfg.RecordsEndpoint,
		APIToken: app.cfg.RecordsAPIToken,
		Timeout:  app.cfg.OutboundTimeout,
	})

	app.mailer = mailer.New(mailer.Config{
		APIKey:    app.cfg.SendGridAPIKey,
		Host:      app.cfg.SendGridHost,
		FromEmail: app.cfg.MailFromEmail,
		FromName:  app.cfg.MailFromName,
		Timeout:   app.cfg.OutboundTimeout,
	})
	if !app.mailer.Enabled() {
		app.logger.Warn("SENDGRID_API_KEY not set; invitation emails will be reported as failed")
	}
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.provisioningService = &service.ProvisioningService{
		Identity: app.identity,
		Records:  app.records,
		Mailer:   app.mailer,
		Store:    app.db,
		Ledger:   app.ledger,
		Templates: service.Templates{
			Student: app.cfg.StudentTemplateID,
			Coach:   app.cfg.CoachTemplateID,
			Admin:   app.cfg.AdminTemplateID,
		},
		LoginURL: app.cfg.LoginURL,
	}

	app.blockingService = &service.BlockingService{
		Identity: app.identity,
		Records:  app.records,
		Store:    app.db,
	}

	app.passwordResetService = &service.PasswordResetService{Identity: app.identity}

	// Only the in-memory ledger needs pruning; Redis keys carry a TTL.
	var pruner idempotency.Pruner
	if p, ok := app.ledger.(idempotency.Pruner); ok {
		pruner = p
	}
	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		pruner,
		app.logger,
		app.cfg.HousekeepingInterval,
		app.cfg.AuditRetention,
	)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	verifier := httpx.NewTokenVerifier([]byte(app.cfg.AdminJWTSecret), app.cfg.AdminJWTIssuer, app.cfg.AdminJWTAudience)

	router := httpapi.NewRouter(
		verifier,
		httpapi.RateLimits(app.cfg.RateLimits),
		BuildVersion,
		app.db,
		app.logger,
	)
	if app.redis != nil {
		router.AddReadinessCheck("redis", app.ledger.(*idempotency.Redis))
	}

	router.ProvisioningService = app.provisioningService
	router.BlockingService = app.blockingService
	router.PasswordResetService = app.passwordResetService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

// MintAdminToken signs an admin API bearer token with the configured secret.
func MintAdminToken(cfg Config, subject, role string, ttl time.Duration) (string, time.Time, error) {
	if len(cfg.AdminJWTSecret) < 32 {
		return "", time.Time{}, errors.New("ADMIN_JWT_SECRET must be at least 32 bytes")
	}
	v := httpx.NewTokenVerifier([]byte(cfg.AdminJWTSecret), cfg.AdminJWTIssuer, cfg.AdminJWTAudience)
	return v.Issue(subject, role, subject, ttl)
}
