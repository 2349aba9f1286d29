package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/nouraellm/drugovery/pkg/auth"
	"github.com/nouraellm/drugovery/pkg/chembl"
	"github.com/nouraellm/drugovery/pkg/config"
	"github.com/nouraellm/drugovery/pkg/database"
	"github.com/nouraellm/drugovery/pkg/handlers"
	"github.com/nouraellm/drugovery/pkg/jobstore"
	"github.com/nouraellm/drugovery/pkg/logging"
	"github.com/nouraellm/drugovery/pkg/metrics"
	"github.com/nouraellm/drugovery/pkg/middleware"
	"github.com/nouraellm/drugovery/pkg/oracle"
	"github.com/nouraellm/drugovery/pkg/repositories"
	"github.com/nouraellm/drugovery/pkg/services"
	"github.com/nouraellm/drugovery/pkg/services/workqueue"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck // stderr sync errors are not actionable

	logger.Info("Configuration loaded",
		zap.String("version", cfg.Version),
		zap.String("environment", cfg.Env),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.String("database", logging.Redact(cfg.Database.URL())),
		zap.String("redis", cfg.Redis.Host),
		zap.String("oracle", cfg.Oracle.BaseURL))

	ctx := context.Background()

	if err := database.RunMigrations(cfg.Database.URL(), cfg.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", logging.RedactedError(err))
	}

	db, err := database.NewConnection(ctx, cfg.Database.URL(),
		database.WithMaxConnections(cfg.Database.MaxConnections))
	if err != nil {
		logger.Fatal("Failed to connect to database", logging.RedactedError(err))
	}
	defer db.Close()

	redisClient, err := database.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", logging.RedactedError(err))
	}
	var jobs jobstore.Store
	if redisClient != nil {
		defer redisClient.Close()
		jobs = jobstore.NewRedisStore(redisClient, cfg.Batch.JobTTL)
	} else {
		logger.Warn("Redis not configured, batch job status is kept in memory")
		jobs = jobstore.NewMemoryStore(cfg.Batch.JobTTL)
	}

	oracleClient, err := oracle.NewHTTPClient(cfg.Oracle.BaseURL, cfg.Oracle.Timeout, logger)
	if err != nil {
		logger.Fatal("Failed to create oracle client", zap.Error(err))
	}
	registry := oracle.NewDefaultRegistry(oracleClient)

	chemblClient, err := chembl.NewClient(cfg.ChEMBL.BaseURL, cfg.ChEMBL.Timeout, logger)
	if err != nil {
		logger.Fatal("Failed to create ChEMBL client", zap.Error(err))
	}

	recorder, err := metrics.NewPrometheus(prometheus.DefaultRegisterer)
	if err != nil {
		logger.Fatal("Failed to register metrics", zap.Error(err))
	}

	compoundRepo := repositories.NewCompoundRepository(db)
	versionRepo := repositories.NewCompoundVersionRepository(db)
	predictionRepo := repositories.NewPredictionRepository(db)
	experimentRepo := repositories.NewExperimentRepository(db)

	queue := workqueue.New(logger, workqueue.WithMaxConcurrent(cfg.Batch.MaxConcurrentJobs))

	versioningService := services.NewVersioningService(db, compoundRepo, versionRepo, recorder, logger)
	compoundService := services.NewCompoundService(db, compoundRepo, versioningService, oracleClient, recorder, logger)
	importService := services.NewCompoundImportService(compoundRepo, compoundService, chemblClient, oracleClient, logger)
	experimentService := services.NewExperimentService(db, experimentRepo, logger)
	predictionService := services.NewPredictionService(compoundRepo, predictionRepo, experimentRepo, jobs, registry, queue,
		services.PredictionServiceConfig{ItemConcurrency: cfg.Batch.ItemConcurrency}, recorder, logger)

	authService := auth.NewAuthService(auth.NewHMACValidator(cfg.Auth.JWTSecret, cfg.Auth.EnableVerification), logger)
	authMiddleware := auth.NewMiddleware(authService, logger)

	mux := http.NewServeMux()

	checks := map[string]handlers.Pinger{"postgres": handlers.PingFunc(db.Ping)}
	if redisClient != nil {
		checks["redis"] = handlers.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	handlers.NewHealthHandler(cfg, checks, logger).RegisterRoutes(mux)
	handlers.NewCompoundHandler(compoundService, versioningService, importService, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewPredictionHandler(predictionService, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewExperimentHandler(experimentService, logger).RegisterRoutes(mux, authMiddleware)
	mux.Handle("GET /metrics", metrics.Handler(prometheus.DefaultGatherer))

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           middleware.RequestLogger(logger)(corsHandler.Handler(mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting drugovery",
			zap.String("addr", server.Addr),
			zap.Bool("tls", cfg.TLSCertPath != ""))
		if cfg.TLSCertPath != "" {
			serverErr <- server.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
			return
		}
		serverErr <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("Shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}
	if err := queue.Shutdown(shutdownCtx); err != nil {
		logger.Error("Batch queue shutdown timed out", zap.Error(err))
	}
	logger.Info("Shutdown complete")
}
