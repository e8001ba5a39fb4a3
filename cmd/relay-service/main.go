package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuongbtq/photo-relay/internal/api/handler"
	"github.com/cuongbtq/photo-relay/internal/api/router"
	"github.com/cuongbtq/photo-relay/internal/bot"
	"github.com/cuongbtq/photo-relay/internal/chat"
	"github.com/cuongbtq/photo-relay/internal/config"
	"github.com/cuongbtq/photo-relay/internal/correlation"
	"github.com/cuongbtq/photo-relay/internal/credits"
	"github.com/cuongbtq/photo-relay/internal/events"
	"github.com/cuongbtq/photo-relay/internal/ledger"
	"github.com/cuongbtq/photo-relay/internal/submitter"
	"github.com/cuongbtq/photo-relay/shared/logger"
	"github.com/cuongbtq/photo-relay/shared/postgresql"
	"github.com/cuongbtq/photo-relay/shared/rabbitmq"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("RELAY_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting relay service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	// Initialize the job correlation store
	store, closeStore, err := initCorrelationStore(cfg, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize correlation store: %w", err)
	}

	// Initialize the credit ledger
	creditLedger, closeLedger, err := initLedger(cfg, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize ledger: %w", err)
	}

	// Initialize the lifecycle event publisher
	publisher, closePublisher, err := initEvents(cfg, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize event publisher: %w", err)
	}

	// Build the credit pack catalog
	catalog, err := initCatalog(cfg, creditLedger, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to build credit catalog: %w", err)
	}

	// The chat transport is the boundary to the chat client; a concrete
	// driver replaces the logging transport here.
	transport := chat.NewLoggingTransport(appLogger.Logger)

	// Job submitter against the upstream transformation API
	jobSubmitter := submitter.New(store, creditLedger, &submitter.Config{
		URL:             cfg.Upstream.URL,
		CallbackURL:     cfg.Upstream.CallbackURL,
		FileField:       cfg.Upstream.FileField,
		AuthHeaderName:  cfg.Upstream.AuthHeaderName,
		AuthHeaderValue: cfg.Upstream.AuthHeaderValue,
		Timeout:         cfg.Upstream.Timeout,
	}, appLogger.Logger)

	// Bot consuming inbound chat events
	chatBot := bot.New(&bot.Config{
		Logger:      appLogger.Logger,
		Transport:   transport,
		Submitter:   jobSubmitter,
		Ledger:      creditLedger,
		Catalog:     catalog,
		Events:      publisher,
		Concurrency: cfg.Bot.Concurrency,
		QueueSize:   cfg.Bot.QueueSize,
	})

	botCtx, cancelBot := context.WithCancel(context.Background())
	chatBot.Start(botCtx)

	// Initialize router
	r := initRouter(cfg, appLogger.Logger, store, transport, publisher)

	// Create HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	appLogger.Info("Starting HTTP server",
		slog.String("address", addr),
		slog.Duration("read_timeout", cfg.Server.ReadTimeout),
		slog.Duration("write_timeout", cfg.Server.WriteTimeout),
	)

	// Start server in goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed to start",
				slog.Any("error", err),
			)
			os.Exit(1)
		}
	}()

	appLogger.Info("Relay service is running",
		slog.String("address", addr),
	)

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)

	cleanup := func() {
		cancel()
		cancelBot()
		chatBot.Stop()
		closeStore()
		closeLedger()
		closePublisher()
	}
	defer cleanup()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
		return err
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	})
}

// initCorrelationStore builds the configured correlation store backend
func initCorrelationStore(cfg *config.Config, logger *slog.Logger) (correlation.Store, func(), error) {
	switch cfg.Correlation.Backend {
	case config.CorrelationBackendRedis:
		store, err := correlation.NewRedisStore(&correlation.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.Correlation.TTL, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil

	default:
		store := correlation.NewMemoryStore(cfg.Correlation.TTL, logger)
		logger.Info("In-memory correlation store initialized",
			slog.Duration("ttl", cfg.Correlation.TTL),
		)
		return store, store.Close, nil
	}
}

// initLedger builds the configured credit ledger backend
func initLedger(cfg *config.Config, logger *slog.Logger) (ledger.Ledger, func(), error) {
	switch cfg.Ledger.Backend {
	case config.LedgerBackendPostgres:
		client, err := postgresql.NewClient(&postgresql.Config{
			Host:            cfg.Database.Host,
			Port:            cfg.Database.Port,
			User:            cfg.Database.User,
			Password:        cfg.Database.Password,
			Database:        cfg.Database.Database,
			SSLMode:         cfg.Database.SSLMode,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return ledger.NewPostgresLedger(client, logger), func() { client.Close() }, nil

	default:
		logger.Info("In-memory credit ledger initialized")
		return ledger.NewMemoryLedger(), func() {}, nil
	}
}

// initEvents builds the lifecycle event publisher, a no-op when disabled
func initEvents(cfg *config.Config, logger *slog.Logger) (events.Publisher, func(), error) {
	if !cfg.Events.Enabled {
		return events.NopPublisher{}, func() {}, nil
	}

	client, err := rabbitmq.NewClient(&rabbitmq.Config{
		Host:               cfg.RabbitMQ.Host,
		Port:               cfg.RabbitMQ.Port,
		User:               cfg.RabbitMQ.User,
		Password:           cfg.RabbitMQ.Password,
		VHost:              cfg.RabbitMQ.VHost,
		ExchangeName:       cfg.RabbitMQ.Exchange.Name,
		ExchangeType:       cfg.RabbitMQ.Exchange.Type,
		ExchangeDurable:    cfg.RabbitMQ.Exchange.Durable,
		ExchangeAutoDelete: cfg.RabbitMQ.Exchange.AutoDelete,
		QueueName:          cfg.RabbitMQ.Queue.Name,
		QueueDurable:       cfg.RabbitMQ.Queue.Durable,
		QueueAutoDelete:    cfg.RabbitMQ.Queue.AutoDelete,
		QueueExclusive:     cfg.RabbitMQ.Queue.Exclusive,
		RoutingKey:         cfg.RabbitMQ.RoutingKey,
		RetryAttempts:      cfg.RabbitMQ.Connection.RetryAttempts,
		RetryInterval:      cfg.RabbitMQ.Connection.RetryInterval,
		Heartbeat:          cfg.RabbitMQ.Connection.Heartbeat,
		PublishRetries:     cfg.RabbitMQ.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.RabbitMQ.Publish.RetryInterval,
		PublishBackoffMult: cfg.RabbitMQ.Publish.BackoffMultiplier,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	return events.NewRabbitPublisher(client, logger), func() { client.Close() }, nil
}

// initCatalog builds the credit pack catalog from configuration
func initCatalog(cfg *config.Config, l ledger.Ledger, logger *slog.Logger) (*credits.Catalog, error) {
	packs := make([]credits.Pack, 0, len(cfg.Credits.Packs))
	for _, p := range cfg.Credits.Packs {
		packs = append(packs, credits.Pack{
			PackID:  p.PackID,
			Title:   p.Title,
			Credits: p.Credits,
			Price:   p.Price,
		})
	}

	return credits.NewCatalog(packs, l, logger)
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(cfg *config.Config, logger *slog.Logger, store correlation.Store, transport chat.Transport, publisher events.Publisher) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	return router.SetupRouter(&handler.Dependencies{
		Logger:    logger,
		Store:     store,
		Transport: transport,
		Events:    publisher,
		Callback: &handler.CallbackConfig{
			IDField:            cfg.Callback.IDField,
			FileField:          cfg.Callback.FileField,
			MaxMultipartMemory: cfg.Callback.MaxMultipartMemory,
		},
	})
}
