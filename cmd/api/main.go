package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/redmonkez12/go-csp/internal/auth"
	"github.com/redmonkez12/go-csp/internal/config"
	"github.com/redmonkez12/go-csp/internal/database"
	httpServer "github.com/redmonkez12/go-csp/internal/http"
	"github.com/redmonkez12/go-csp/internal/logging"
	"github.com/redmonkez12/go-csp/internal/metrics"
	"github.com/redmonkez12/go-csp/internal/report"
	"github.com/redmonkez12/go-csp/internal/useragent"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(cfg.Server.IsDevelopment())
	logger.Info("starting application",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"report_store", cfg.Report.Store,
		"report_only", cfg.CSP.ReportOnly,
	)

	store, closer, err := initReportStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize report store: %w", err)
	}
	defer closer.Close()

	var authMiddleware *auth.Middleware
	if cfg.Auth.OperatorEndpointsEnabled() {
		tokens, err := auth.NewPasetoService(cfg.Auth.PasetoKey)
		if err != nil {
			return fmt.Errorf("failed to initialize PASETO service: %w", err)
		}
		authMiddleware = auth.NewMiddleware(tokens)
	} else {
		logger.Warn("PASETO_KEY not set, report listing disabled")
	}

	m := metrics.New()
	parser := useragent.NewParser()

	router := httpServer.NewRouter(cfg, httpServer.RouterDeps{
		Parser:  parser,
		Reports: report.NewHandler(store, parser, m, cfg.Report.MaxRecent),
		Auth:    authMiddleware,
		Metrics: m,
		Logger:  logger,
	})

	server := httpServer.NewServer(
		":"+cfg.Server.Port,
		router,
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
		logger,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("received signal", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// initReportStore opens the configured backend. The returned closer releases
// its connections.
func initReportStore(cfg *config.Config) (report.Store, io.Closer, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch cfg.Report.Store {
	case config.StoreRedis:
		client, err := initRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return report.NewRedisStore(client, cfg.Report.MaxRecent, cfg.Report.DedupWindow), client, nil

	case config.StorePostgres:
		db, err := database.Open(ctx, cfg.Database.ConnectionString())
		if err != nil {
			return nil, nil, err
		}
		if err := database.CreateSchema(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
		return report.NewPostgresStore(db, cfg.Report.DedupWindow), db, nil

	default:
		return report.NewMemoryStore(cfg.Report.MaxRecent, cfg.Report.DedupWindow), nopCloser{}, nil
	}
}

// initRedis initializes the Redis connection and returns a Redis client
func initRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}
