package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/adiva-s/ResourceRite/internal/cart"
	"github.com/adiva-s/ResourceRite/internal/cartstore"
	"github.com/adiva-s/ResourceRite/internal/catalog"
	"github.com/adiva-s/ResourceRite/internal/checkout"
	"github.com/adiva-s/ResourceRite/internal/fulfillment"
	"github.com/adiva-s/ResourceRite/internal/httpapi"
	"github.com/adiva-s/ResourceRite/internal/ledger"
	"github.com/adiva-s/ResourceRite/internal/payment"
	"github.com/adiva-s/ResourceRite/internal/pricing"
	"github.com/adiva-s/ResourceRite/internal/publisher"
)

type Config struct {
	HTTPPort        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	RedisAddr string
	CartTTL   time.Duration

	MongoURI string
	MongoDB  string

	DBHost         string
	DBPort         int
	DBUser         string
	DBPassword     string
	DBName         string
	MigrationsBase string

	KafkaBrokers     string
	PurchaseTopic    string
	FulfillmentTopic string

	TaxRate string

	ProcessorURL    string
	ProcessorAPIKey string
	WebhookSecret   string
	SuccessURL      string
	CancelURL       string

	PendingTTL      time.Duration
	ReaperInterval  time.Duration
	AllowGuestCarts bool
}

func loadConfig() *Config {
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		log.Fatalf("Invalid DB_PORT: %v", err)
	}

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,

		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
		CartTTL:   24 * time.Hour,

		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:  getEnv("MONGO_DB", "marketplace"),

		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         dbPort,
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", "postgres"),
		DBName:         getEnv("DB_NAME", "marketplace"),
		MigrationsBase: getEnv("MIGRATIONS_PATH", "./migrations"),

		KafkaBrokers:     getEnv("KAFKA_BROKERS", "localhost:9092"),
		PurchaseTopic:    getEnv("PURCHASE_TOPIC", "purchase-events"),
		FulfillmentTopic: getEnv("FULFILLMENT_TOPIC", "fulfillment-events"),

		TaxRate: getEnv("TAX_RATE", "0.07"),

		ProcessorURL:    getEnv("PAYMENT_PROCESSOR_URL", "https://api.processor.example.com"),
		ProcessorAPIKey: getEnv("PAYMENT_PROCESSOR_API_KEY", ""),
		WebhookSecret:   getEnv("PAYMENT_WEBHOOK_SECRET", ""),
		SuccessURL:      getEnv("CHECKOUT_SUCCESS_URL", "http://localhost:8080/api/v1/checkout/success"),
		CancelURL:       getEnv("CHECKOUT_CANCEL_URL", "http://localhost:8080/api/v1/checkout/cancel"),

		PendingTTL:      30 * time.Minute,
		ReaperInterval:  time.Minute,
		AllowGuestCarts: getEnv("ALLOW_GUEST_CARTS", "true") == "true",
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	cfg := loadConfig()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("marketplace server starting...")

	taxRate, err := decimal.NewFromString(cfg.TaxRate)
	if err != nil {
		logger.Fatal("Invalid TAX_RATE", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cart store (Redis)
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()
	cartStore := cartstore.NewRedisStore(redisClient, cfg.CartTTL)
	logger.Info("Connected to redis", zap.String("addr", cfg.RedisAddr))

	// Catalog (MongoDB)
	mongoDB, err := catalog.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		logger.Fatal("Failed to connect to mongodb", zap.Error(err))
	}
	defer mongoDB.Client().Disconnect(context.Background())
	productCatalog := catalog.NewLookup(catalog.NewMongoCatalog(mongoDB))
	logger.Info("Connected to mongodb", zap.String("database", cfg.MongoDB))

	// Checkout sessions + purchase ledger share one Postgres database
	checkoutCreds := &checkout.Credentials{
		Host:              cfg.DBHost,
		Port:              cfg.DBPort,
		User:              cfg.DBUser,
		Password:          cfg.DBPassword,
		DBName:            cfg.DBName,
		MigrationsDirPath: cfg.MigrationsBase + "/checkout",
	}
	sessionRepo, err := checkout.NewRepository(checkoutCreds)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer sessionRepo.Close()
	if err := sessionRepo.RunMigrations(checkoutCreds); err != nil {
		logger.Fatal("Failed to run checkout migrations", zap.Error(err))
	}

	ledgerRepo := ledger.NewRepositoryWithDB(sessionRepo.DB())
	ledgerCreds := &ledger.Credentials{MigrationsDirPath: cfg.MigrationsBase + "/ledger"}
	if err := ledgerRepo.RunMigrations(ledgerCreds); err != nil {
		logger.Fatal("Failed to run ledger migrations", zap.Error(err))
	}
	logger.Info("Database migrations completed")

	// Services
	engine := pricing.NewEngine(taxRate)
	cartService := cart.NewService(cartStore, productCatalog, engine, logger)
	processor := payment.NewClient(cfg.ProcessorURL, cfg.ProcessorAPIKey, logger)
	checkoutService := checkout.NewService(
		sessionRepo, cartStore, productCatalog, ledgerRepo, processor, engine,
		checkout.Config{
			SuccessURL: cfg.SuccessURL,
			CancelURL:  cfg.CancelURL,
			PendingTTL: cfg.PendingTTL,
		},
		logger,
	)

	// Background workers
	reaper := checkout.NewReaper(sessionRepo, cfg.ReaperInterval, logger)
	go reaper.Run(ctx)

	poller := publisher.NewOutboxPoller(sessionRepo, cfg.PurchaseTopic, logger, cfg.KafkaBrokers)
	go poller.Run(ctx)

	consumer := fulfillment.NewConsumer(ledgerRepo, cfg.FulfillmentTopic, "marketplace-server", logger, cfg.KafkaBrokers)
	defer consumer.Close()
	go consumer.Run(ctx)

	// HTTP server
	router := httpapi.NewRouter(cartService, checkoutService, ledgerRepo, httpapi.RouterConfig{
		RequestTimeout:  cfg.RequestTimeout,
		WebhookSecret:   []byte(cfg.WebhookSecret),
		AllowGuestCarts: cfg.AllowGuestCarts,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}
