// Package main provides the entry point for the user administration backend,
// wiring the identity provider, the record store, the audit stream and the HTTP API.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ebuddy/user-admin-backend/config"
	"github.com/ebuddy/user-admin-backend/database"
	auditevents "github.com/ebuddy/user-admin-backend/events/modules/audit"
	gqlschema "github.com/ebuddy/user-admin-backend/graphql"
	"github.com/ebuddy/user-admin-backend/internal/api"
	"github.com/ebuddy/user-admin-backend/internal/identity"
	kafkaconn "github.com/ebuddy/user-admin-backend/internal/kafka"
	"github.com/ebuddy/user-admin-backend/internal/services"
	"github.com/ebuddy/user-admin-backend/restapi"
	"github.com/ebuddy/user-admin-backend/util"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := util.InitLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Backend stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Record store
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			logger.Warn("Failed to close record store", zap.Error(err))
		}
	}()

	// Identity provider
	gateway, exchanger, err := openIdentity(ctx, cfg, logger)
	if err != nil {
		return err
	}

	// Audit fan-out
	var publisher services.AuditPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kcfg := kafkaconn.Config{Brokers: cfg.KafkaBrokers, Username: cfg.KafkaAPIKey, Password: cfg.KafkaAPISecret}
		if err := kafkaconn.WaitForBroker(ctx, kcfg, 3, 2*time.Second, logger); err != nil {
			// Audit events still land in the store.
			logger.Warn("Kafka unavailable, audit events will not be streamed", zap.Error(err))
		} else {
			producer := auditevents.NewProducer(cfg.KafkaBrokers, cfg.KafkaAuditTopic, kafkaconn.NewTransport(kcfg))
			defer func() {
				if err := producer.Close(); err != nil {
					logger.Warn("Failed to close audit producer", zap.Error(err))
				}
			}()
			publisher = producer
			logger.Info("Streaming audit events", zap.String("topic", cfg.KafkaAuditTopic))
		}
	}

	auditRecorder := services.NewAuditRecorder(store, publisher, logger)
	userService := services.NewUserService(gateway, store, auditRecorder, logger, cfg.DefaultPassword)
	sessionService := services.NewSessionService(gateway, exchanger, cfg.Emulated(), cfg.APIKey, logger)

	// Startup bootstrap
	bootstrapper := services.NewBootstrapper(gateway, store, auditRecorder, logger, cfg.DefaultPassword)
	if err := bootstrapper.EnsureStore(ctx); err != nil {
		return fmt.Errorf("initialize record store: %w", err)
	}
	if cfg.SeedFile != "" {
		seed, err := services.LoadSeedConfig(cfg.SeedFile)
		if err != nil {
			return fmt.Errorf("load seed file: %w", err)
		}
		bootstrapper.Seed(ctx, seed)
	}

	// Initialize GraphQL schema
	schema, err := gqlschema.CreateSchema(userService)
	if err != nil {
		return fmt.Errorf("create GraphQL schema: %w", err)
	}

	app := api.NewFiberApp(api.Config{FrontendURL: cfg.FrontendURL}, restapi.Dependencies{
		Verifier: gateway,
		Sessions: sessionService,
		Users:    userService,
		Schema:   schema,
	}, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server",
			zap.String("port", cfg.Port),
			zap.String("identity", cfg.IdentityDriver),
			zap.Bool("emulated", cfg.Emulated()),
			zap.String("store", cfg.StoreDriver))
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	if err := app.ShutdownWithTimeout(cfg.ShutdownTimeout); err != nil {
		logger.Warn("Server shutdown incomplete", zap.Error(err))
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (database.RecordStore, error) {
	switch cfg.StoreDriver {
	case config.StoreArango:
		db, err := database.InitializeDatabase(ctx, database.ArangoConfig{
			URL:        cfg.ArangoURL,
			User:       cfg.ArangoUser,
			Password:   cfg.ArangoPass,
			Database:   cfg.ArangoDatabase,
			MaxElapsed: cfg.StoreConnTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		return database.NewArangoStore(db), nil
	case config.StoreMongo:
		return database.NewMongoStore(ctx, database.MongoConfig{
			URI:        cfg.MongoURI,
			Database:   cfg.MongoDatabase,
			MaxElapsed: cfg.StoreConnTimeout,
		}, logger)
	case config.StoreMemory:
		logger.Warn("Using the in-memory record store, data is lost on restart")
		return database.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: unknown record store driver %q", config.ErrConfiguration, cfg.StoreDriver)
	}
}

func openIdentity(ctx context.Context, cfg *config.Config, logger *zap.Logger) (identity.Gateway, identity.TokenExchanger, error) {
	switch cfg.IdentityDriver {
	case config.IdentityFirebase:
		gw, err := identity.NewFirebaseGateway(ctx, identity.FirebaseConfig{
			ProjectID:      cfg.ProjectID,
			CredentialPath: cfg.CredentialPath,
			Emulated:       cfg.UseEmulator,
			EmulatorHost:   cfg.AuthEmulatorHost,
		}, logger)
		if err != nil {
			return nil, nil, err
		}

		baseURL := identity.ProductionExchangeURL
		if cfg.UseEmulator {
			baseURL = identity.EmulatorExchangeURL(cfg.AuthEmulatorHost)
		}
		exchanger := identity.NewRESTExchanger(baseURL, &http.Client{Timeout: 15 * time.Second})
		return gw, exchanger, nil
	case config.IdentityMemory:
		logger.Warn("Using the in-memory identity provider, accounts are lost on restart")
		gw := identity.NewMemoryGateway(cfg.MemoryTokenSecret)
		return gw, gw, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown identity driver %q", config.ErrConfiguration, cfg.IdentityDriver)
	}
}
