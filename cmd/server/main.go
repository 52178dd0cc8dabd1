package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"honeymatch/internal/config"
	"honeymatch/internal/handler"
	"honeymatch/internal/logger"
	"honeymatch/internal/metrics"
	"honeymatch/internal/repository"
	"honeymatch/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	l, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = l.Sync() }()

	l.Info("Honeymoon itinerary matching service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	gin.SetMode(cfg.Server.GinMode)
	metrics.Register()

	// Initialize database connection
	repo, err := repository.NewPostgresRepository(
		cfg.GetPostgreSQLDSN(),
		cfg.PostgreSQL.MaxConnections,
		cfg.PostgreSQL.MaxIdleConnections,
	)
	if err != nil {
		l.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer repo.Close()
	l.Info("Connected to PostgreSQL database")

	ctx := context.Background()

	// Optional embedding cache
	var cache service.EmbeddingCache
	if cfg.Cache.RedisURL != "" {
		rdb, err := service.NewRedisClient(ctx, cfg.Cache.RedisURL)
		if err != nil {
			l.Warn("Redis unavailable, embedding cache disabled", zap.Error(err))
		} else {
			defer rdb.Close()
			cache = service.NewRedisEmbeddingCache(rdb, cfg.Cache.TTL)
			l.Info("Embedding cache enabled", zap.Duration("ttl", cfg.Cache.TTL))
		}
	}

	embedder, err := service.NewEmbedder(ctx, cfg.Embedding, cache, l)
	if err != nil {
		l.Fatal("Failed to initialize embedding provider", zap.Error(err))
	}
	if closer, ok := embedder.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}
	if embedder != nil {
		l.Info("Embedding provider initialized",
			zap.String("provider", embedder.Name()),
			zap.Int("dimensions", cfg.Embedding.Dimensions),
			zap.Bool("strict_dimensions", cfg.Embedding.StrictDimensions),
		)
	}

	// Initialize services
	encoder := service.NewPreferenceEncoder(l)
	ranker := service.NewRanker(cfg.Matching, l)
	matchService := service.NewMatchService(repo, encoder, ranker, embedder, cfg.Matching, cfg.Embedding, l)

	l.Info("Services initialized",
		zap.String("strategy", cfg.Matching.Strategy),
		zap.Int("top_n", cfg.Matching.TopN),
		zap.Int("pool_size", cfg.Matching.PoolSize),
	)

	router := handler.SetupRouter(handler.RouterDeps{
		Match:          handler.NewMatchHandler(matchService),
		Itinerary:      handler.NewItineraryHandler(matchService),
		Embedding:      handler.NewEmbeddingHandler(matchService),
		DB:             repo,
		Logger:         l,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Build: handler.BuildInfo{
			Version:   Version,
			BuildTime: BuildTime,
			GitCommit: GitCommit,
		},
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		l.Info("Starting server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	l.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error("Server shutdown failed", zap.Error(err))
	}
	l.Info("Server stopped")
}
