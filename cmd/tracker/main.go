package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"whale-tracker/internal/config"
	"whale-tracker/internal/enrichment"
	"whale-tracker/internal/feed"
	"whale-tracker/internal/hyperliquid"
	"whale-tracker/internal/observability"
	"whale-tracker/internal/pipeline"
	"whale-tracker/internal/sink"
	"whale-tracker/internal/storage"
	chstore "whale-tracker/internal/storage/clickhouse"
	pgstore "whale-tracker/internal/storage/postgres"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to YAML config file (optional)")
	coins := flag.String("coins", "", "Comma-separated instrument symbols (overrides config)")
	threshold := flag.Float64("threshold", 0, "Whale threshold in USD (overrides config)")
	wsURL := flag.String("ws-url", "", "Trade feed WebSocket endpoint (overrides config)")
	infoURL := flag.String("info-url", "", "Account-state info endpoint (overrides config)")
	csvPath := flag.String("csv", "", "Durable whale log path (overrides config)")
	postgresDSN := flag.String("postgres-dsn", "", "Optional PostgreSQL mirror DSN (overrides config)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "Optional ClickHouse mirror DSN (overrides config)")
	concurrency := flag.Int("lookup-concurrency", 0, "Max concurrent account-state lookups (overrides config)")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (overrides config)")

	flag.Parse()

	// Setup logger on the status stream, distinct from stdout display
	logger := log.New(os.Stderr, "[tracker] ", log.LstdFlags)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Fatalf("Config error: %v", err)
	}
	applyFlagOverrides(cfg, *coins, *threshold, *wsURL, *infoURL, *csvPath, *postgresDSN, *clickhouseDSN, *concurrency, *metricsAddr)
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Config error: %v", err)
	}

	metrics := observability.NewMetrics("whale_tracker")

	// Start metrics server if enabled
	if cfg.Metrics.Addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", cfg.Metrics.Addr)
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Handle shutdown signals with graceful timeout
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	err = run(ctx, logger, metrics, cfg)

	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Tracker error: %v", err)
	}
	logger.Println("Shutdown complete")
}

func run(ctx context.Context, logger *log.Logger, metrics *observability.Metrics, cfg *config.Config) error {
	// Optional store mirrors
	var stores []storage.WhaleRecordStore

	if cfg.Storage.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return err
		}
		defer pool.Close()

		store := pgstore.NewWhaleRecordStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		stores = append(stores, store)
		logger.Println("PostgreSQL mirror enabled")
	}

	if cfg.Storage.ClickHouseDSN != "" {
		conn, err := chstore.NewConn(ctx, cfg.Storage.ClickHouseDSN)
		if err != nil {
			return err
		}
		defer conn.Close()

		store := chstore.NewWhaleRecordStore(conn)
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		stores = append(stores, store)
		logger.Println("ClickHouse mirror enabled")
	}

	info := hyperliquid.NewInfoClient(cfg.Info.URL, hyperliquid.WithTimeout(cfg.Info.Timeout))
	lookup := enrichment.NewInfoLookup(info, metrics)
	pool := enrichment.NewPool(lookup, cfg.Lookup.Concurrency, cfg.Lookup.Timeout)

	display := sink.NewDisplay(os.Stdout)
	out := sink.New(sink.NewCSVLog(cfg.Log.CSVPath), display, stores, logger)

	feedCfg := hyperliquid.DefaultFeedConfig()
	feedCfg.PingInterval = cfg.Feed.PingInterval
	feedCfg.ReadTimeout = cfg.Feed.ReadTimeout
	feedCfg.WriteTimeout = cfg.Feed.WriteTimeout

	dial := func(ctx context.Context, coins []string) (pipeline.FeedConn, error) {
		return hyperliquid.DialFeed(ctx, cfg.Feed.WSURL, coins, &feedCfg, logger)
	}

	p := pipeline.New(pipeline.Options{
		Dial:               dial,
		Coins:              cfg.Coins,
		Filter:             feed.Filter{ThresholdUSD: cfg.ThresholdUSD},
		Pool:               pool,
		Sink:               out,
		Display:            display,
		Logger:             logger,
		Metrics:            metrics,
		ReconnectBaseDelay: cfg.Feed.ReconnectBaseDelay,
		ReconnectMaxDelay:  cfg.Feed.ReconnectMaxDelay,
	})

	logger.Printf("Tracking %v with threshold $%.0f, logging to %s", cfg.Coins, cfg.ThresholdUSD, cfg.Log.CSVPath)
	return p.Run(ctx)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadWithDefaults(path)
}

// applyFlagOverrides lets set flags win over the config file.
func applyFlagOverrides(cfg *config.Config, coins string, threshold float64, wsURL, infoURL, csvPath, postgresDSN, clickhouseDSN string, concurrency int, metricsAddr string) {
	if coins != "" {
		var list []string
		for _, c := range strings.Split(coins, ",") {
			if c = strings.TrimSpace(c); c != "" {
				list = append(list, c)
			}
		}
		cfg.Coins = list
	}
	if threshold > 0 {
		cfg.ThresholdUSD = threshold
	}
	if wsURL != "" {
		cfg.Feed.WSURL = wsURL
	}
	if infoURL != "" {
		cfg.Info.URL = infoURL
	}
	if csvPath != "" {
		cfg.Log.CSVPath = csvPath
	}
	if postgresDSN != "" {
		cfg.Storage.PostgresDSN = postgresDSN
	}
	if clickhouseDSN != "" {
		cfg.Storage.ClickHouseDSN = clickhouseDSN
	}
	if concurrency > 0 {
		cfg.Lookup.Concurrency = concurrency
	}
	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}
}
