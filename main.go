package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ms-preorder/internal/auth"
	cartdb "ms-preorder/internal/cart/db"
	"ms-preorder/internal/cart/shipping"
	"ms-preorder/internal/cart/totals"
	"ms-preorder/internal/config"
	"ms-preorder/internal/database/migrations"
	"ms-preorder/internal/events"
	"ms-preorder/internal/kafka"
	"ms-preorder/internal/logger"
	"ms-preorder/internal/metrics"
	"ms-preorder/internal/notification"
	"ms-preorder/internal/preorder"
	preorderdb "ms-preorder/internal/preorder/db"
	"ms-preorder/internal/preorder/preorder_api"
	"ms-preorder/internal/session"
	"ms-preorder/internal/sse"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

func connectDatabase(cfg config.DatabaseConfig, logger *logger.Logger) *bun.DB {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		logger.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.DSN)
		if err != nil {
			logger.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.Ping()
		if err == nil {
			break
		}

		logger.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)
	logger.Info("DATABASE", "✅ PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New())
}

func connectRedis(ctx context.Context, cfg config.RedisConfig, logger *logger.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Fatal("REDIS", fmt.Sprintf("Redis connection error: %v", err))
	}
	logger.Info("REDIS", fmt.Sprintf("✅ Redis connection successful to %s (DB: %d)", cfg.Addr, cfg.DB))
	return client
}

func newVerifier(ctx context.Context, cfg config.AuthConfig, logger *logger.Logger) auth.Verifier {
	if cfg.OIDCIssuer != "" {
		v, err := auth.NewOIDCVerifier(ctx, cfg.OIDCIssuer)
		if err != nil {
			logger.Fatal("AUTH", err.Error())
		}
		logger.Info("AUTH", fmt.Sprintf("Admin tokens verified against %s", cfg.OIDCIssuer))
		return v
	}
	if cfg.AllowUnverified {
		logger.Warn("AUTH", "OIDC_ISSUER not set, admin tokens are NOT verified")
		return auth.UnverifiedVerifier{}
	}
	logger.Fatal("CONFIG", "OIDC_ISSUER not set")
	return nil
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

func main() {
	logger := logger.NewLogger()
	defer logger.Close()

	logger.Info("APP", "Starting PreOrder Service initialization")

	if err := godotenv.Load(); err != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		logger.Info("CONFIG", "Loaded environment variables from .env file")
	}
	cfg := config.Load()
	ctx := context.Background()

	stores, err := config.LoadStoreConfig(cfg.StoreConfigFile)
	if err != nil {
		logger.Fatal("CONFIG", err.Error())
	}

	bunDB := connectDatabase(cfg.Database, logger)
	defer bunDB.Close()
	redisClient := connectRedis(ctx, cfg.Redis, logger)
	defer redisClient.Close()

	if cfg.Database.AutoMigrate {
		runner := migrations.NewRunner(bunDB.DB, migrations.MigrateOptions{
			MigrationsDir: cfg.Database.MigrationsDir,
			AutoMigrate:   true,
			SeedData:      cfg.Database.SeedData,
		}, logger)
		if err := runner.RunMigrations(); err != nil {
			logger.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
		}
	}

	// --- Events ---
	bus := events.NewBus(logger)
	m := metrics.New()
	sessions := session.NewStore(redisClient, cfg.Session.TTL)
	sessions.LockTTL = cfg.Session.ResumeLockTTL
	bus.Subscribe("", "metrics", m.OnEvent)
	bus.Subscribe(events.NameCartSaved, "customer-data-sections", sessions.InvalidateSections)
	feed := sse.NewFeed(logger)
	bus.Subscribe("", "sse", feed.Handle)

	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, logger)
		defer producer.Close()
		sink := kafka.NewEventSink(producer, cfg.Kafka.Topics)
		if err := kafka.EnsureTopicsExist(ctx, cfg.Kafka.Brokers, sink.TopicNames(), logger); err != nil {
			logger.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		bus.Subscribe("", "kafka", sink.Handle)
		logger.Info("KAFKA", fmt.Sprintf("Publishing events to %v", cfg.Kafka.Brokers))
	}

	// --- Services ---
	cartStore := &cartdb.DB{Bun: bunDB}
	dispatcher := notification.NewDispatcher(
		stores,
		notification.NewSMTPTransport(cfg.Email),
		notification.DefaultTemplates(),
		cfg.Server.PublicURL,
		logger,
	)
	service := preorder.NewPreOrderService(preorder.Deps{
		Records:   &preorderdb.DB{Bun: bunDB},
		Carts:     cartStore,
		Customers: cartStore,
		Cloner:    preorder.NewCloneEngine(shipping.NewTableRateCollector(stores), totals.NewCollector(stores), cartStore, logger),
		Installer: session.NewInstaller(sessions, cartStore, cartStore, bus, logger),
		Mailer:    dispatcher,
		Stores:    stores,
		Events:    bus,
		Metrics:   m,
		Logger:    logger,
	})
	handler := preorder_api.NewHandler(service, sessions, cartStore, stores, logger)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(m.Middleware(routePattern))
	r.Use(logger.RequestLogger)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())

	adminAuth := auth.Middleware(newVerifier(ctx, cfg.Auth, logger), auth.NewRedisTokenCache(redisClient), logger)
	handler.RegisterRoutes(r, adminAuth, session.Middleware(cfg.Session.CookieName, cfg.Session.TTL, cfg.Session.Secure))
	r.With(adminAuth).Get("/api/admin/preorder-events", feed.ServeHTTP)
	logger.Info("ROUTER", "Pre-order routes registered")

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP", fmt.Sprintf("🚀 PreOrder Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	logger.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		logger.Info("HTTP", "✅ PreOrder Service shutdown complete")
	}
}
