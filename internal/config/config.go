package config

import (
	"fmt"
	"time"
)

// Config is the process-wide configuration, fixed at startup.
type Config struct {
	Coins        []string      `yaml:"coins"`
	ThresholdUSD float64       `yaml:"threshold_usd"`
	Feed         FeedConfig    `yaml:"feed"`
	Info         InfoConfig    `yaml:"info"`
	Log          LogConfig     `yaml:"log"`
	Lookup       LookupConfig  `yaml:"lookup"`
	Storage      StorageConfig `yaml:"storage"`
	Metrics      MetricsConfig `yaml:"metrics"`
}

// FeedConfig holds trade feed connection settings.
type FeedConfig struct {
	WSURL              string        `yaml:"ws_url"`
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	PingInterval       time.Duration `yaml:"ping_interval"`
	ReadTimeout        time.Duration `yaml:"read_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
}

// InfoConfig holds account-state service settings.
type InfoConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// LogConfig holds the durable whale log settings.
type LogConfig struct {
	CSVPath string `yaml:"csv_path"`
}

// LookupConfig bounds enrichment fan-out.
type LookupConfig struct {
	Concurrency int           `yaml:"concurrency"`
	Timeout     time.Duration `yaml:"timeout"`
}

// StorageConfig holds optional database mirrors of the whale log.
// Empty DSN disables a mirror.
type StorageConfig struct {
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickHouseDSN string `yaml:"clickhouse_dsn"`
}

// MetricsConfig holds the Prometheus HTTP endpoint. Empty addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if len(c.Coins) == 0 {
		c.Coins = []string{"BTC", "ETH", "SOL"}
	}
	if c.ThresholdUSD == 0 {
		c.ThresholdUSD = 10000
	}
	if c.Feed.WSURL == "" {
		c.Feed.WSURL = "wss://api.hyperliquid.xyz/ws"
	}
	if c.Feed.ReconnectBaseDelay == 0 {
		c.Feed.ReconnectBaseDelay = 1 * time.Second
	}
	if c.Feed.ReconnectMaxDelay == 0 {
		c.Feed.ReconnectMaxDelay = 30 * time.Second
	}
	if c.Feed.PingInterval == 0 {
		c.Feed.PingInterval = 30 * time.Second
	}
	if c.Feed.ReadTimeout == 0 {
		c.Feed.ReadTimeout = 60 * time.Second
	}
	if c.Feed.WriteTimeout == 0 {
		c.Feed.WriteTimeout = 10 * time.Second
	}
	if c.Info.URL == "" {
		c.Info.URL = "https://api.hyperliquid.xyz/info"
	}
	if c.Info.Timeout == 0 {
		c.Info.Timeout = 10 * time.Second
	}
	if c.Log.CSVPath == "" {
		c.Log.CSVPath = "whale_logs.csv"
	}
	if c.Lookup.Concurrency == 0 {
		c.Lookup.Concurrency = 4
	}
	if c.Lookup.Timeout == 0 {
		c.Lookup.Timeout = 10 * time.Second
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9090"
	}
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	if len(c.Coins) == 0 {
		return fmt.Errorf("coins: at least one instrument required")
	}
	for _, coin := range c.Coins {
		if coin == "" {
			return fmt.Errorf("coins: empty instrument symbol")
		}
	}
	if c.ThresholdUSD <= 0 {
		return fmt.Errorf("threshold_usd: must be positive, got %v", c.ThresholdUSD)
	}
	if c.Feed.WSURL == "" {
		return fmt.Errorf("feed.ws_url: required")
	}
	if c.Info.URL == "" {
		return fmt.Errorf("info.url: required")
	}
	if c.Log.CSVPath == "" {
		return fmt.Errorf("log.csv_path: required")
	}
	if c.Lookup.Concurrency < 1 {
		return fmt.Errorf("lookup.concurrency: must be at least 1, got %d", c.Lookup.Concurrency)
	}
	return nil
}
