// Command apiserver serves the enrichment lookups over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/turtacn/trialscope/internal/application/enrichment"
	"github.com/turtacn/trialscope/internal/config"
	"github.com/turtacn/trialscope/internal/infrastructure/chembl"
	"github.com/turtacn/trialscope/internal/infrastructure/database/postgres"
	"github.com/turtacn/trialscope/internal/infrastructure/database/redis"
	"github.com/turtacn/trialscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/trialscope/internal/infrastructure/monitoring/prometheus"
	httpserver "github.com/turtacn/trialscope/internal/interfaces/http"
	"github.com/turtacn/trialscope/internal/interfaces/http/handlers"
	"github.com/turtacn/trialscope/internal/interfaces/http/middleware"
)

var version = "dev"

const prunePeriod = time.Minute

func main() {
	configPath := flag.String("config", "", "path to configuration file (env only when empty)")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	flag.Parse()

	if err := run(*configPath, *port); err != nil {
		fmt.Fprintf(os.Stderr, "apiserver: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, port int) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.LoadAuto(configPath)
	if err != nil {
		return err
	}
	if port > 0 {
		cfg.Server.Port = port
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return err
	}

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "trialscope"}, logger)
	if err != nil {
		return err
	}
	metrics := prometheus.NewAppMetrics(collector)

	kb, err := chembl.NewClient(cfg.ChEMBL, logger, metrics)
	if err != nil {
		return err
	}
	engine := enrichment.NewEngine(kb, enrichment.WithLogger(logger), enrichment.WithMetrics(metrics))

	var (
		gate     handlers.Cooldown
		checkers []handlers.HealthChecker
	)
	if cfg.Redis.Enabled {
		rc, err := redis.NewClient(cfg.Redis, logger)
		if err != nil {
			return err
		}
		defer rc.Close()
		gate = redis.NewCooldownGate(rc, logger)
		checkers = append(checkers, redisHealth{client: rc})
	}
	if cfg.Results.Enabled {
		conn, err := postgres.NewConnection("results", cfg.Results, logger)
		if err != nil {
			return err
		}
		defer conn.Close()
		checkers = append(checkers, postgresHealth{name: "results", conn: conn})
	}

	limiter := middleware.NewRateLimiter(middleware.DefaultRateLimitConfig())
	router := httpserver.NewRouter(httpserver.RouterConfig{
		LookupHandler:  handlers.NewLookupHandler(engine, gate, []string{"chembl"}, logger),
		HealthHandler:  handlers.NewHealthHandler(version, metrics, checkers...),
		RateLimiter:    limiter,
		Logger:         logger,
		Metrics:        metrics,
		MetricsHandler: collector.Handler(),
		Mode:           cfg.Server.Mode,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := httpserver.NewServer(addr, router,
		httpserver.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		httpserver.WithLogger(logger),
	)

	if configPath != "" {
		err := config.Watch(configPath, func(*config.Config) {
			logger.Info("configuration file changed; restart to apply", logging.String("path", configPath))
		}, func(err error) {
			logger.Warn("configuration file changed but is invalid", logging.Err(err))
		})
		if err != nil {
			logger.Warn("config watch disabled", logging.Err(err))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go pruneLoop(ctx, limiter)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting trialscope API server",
			logging.String("version", version),
			logging.String("addr", addr),
		)
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("API server shutdown error", logging.Err(err))
		return err
	}
	logger.Info("API server stopped")
	return nil
}

// pruneLoop drops idle per-client rate limit buckets until ctx is done.
func pruneLoop(ctx context.Context, limiter *middleware.RateLimiter) {
	t := time.NewTicker(prunePeriod)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			limiter.Prune()
		}
	}
}
