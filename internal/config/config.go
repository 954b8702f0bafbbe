// Package config defines the top-level configuration for the pool scanner
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by POOLSCAN_* environment
// variables.
type Config struct {
	Scan      ScanConfig      `toml:"scan"`
	Providers ProvidersConfig `toml:"providers"`
	Oracle    OracleConfig    `toml:"oracle"`
	Retry     RetryConfig     `toml:"retry"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// ScanConfig holds run-shaping parameters.
type ScanConfig struct {
	Protocols      []string `toml:"protocols"`
	Networks       []string `toml:"networks"`
	MinTVL         float64  `toml:"min_tvl"`
	MaxPools       int      `toml:"max_pools"`
	CollectPause   duration `toml:"collect_pause"`
	BatchPause     duration `toml:"batch_pause"`
	UpdateInterval duration `toml:"update_interval"`
}

// ProvidersConfig holds per-protocol data source parameters.
type ProvidersConfig struct {
	UniswapV3   UniswapV3Config   `toml:"uniswap_v3"`
	SushiSwap   SushiSwapConfig   `toml:"sushiswap"`
	PancakeSwap PancakeSwapConfig `toml:"pancakeswap"`
	Curve       CurveConfig       `toml:"curve"`
	DefiLlama   DefiLlamaConfig   `toml:"defillama"`
	Timeout     duration          `toml:"timeout"`
}

// UniswapV3Config holds Uniswap V3 data source parameters.
type UniswapV3Config struct {
	Networks       []string `toml:"networks"`
	SubgraphURL    string   `toml:"subgraph_url"`
	AltSubgraphURL string   `toml:"alt_subgraph_url"`
	RateLimit      float64  `toml:"rate_limit"`
}

// SushiSwapConfig holds SushiSwap data source parameters. RPCURL is optional;
// when set, pairs missing reserves are topped up from the chain.
type SushiSwapConfig struct {
	Networks    []string `toml:"networks"`
	SubgraphURL string   `toml:"subgraph_url"`
	APIBaseURL  string   `toml:"api_base_url"`
	RPCURL      string   `toml:"rpc_url"`
	RateLimit   float64  `toml:"rate_limit"`
}

// PancakeSwapConfig holds PancakeSwap data source parameters.
type PancakeSwapConfig struct {
	Networks    []string `toml:"networks"`
	APIBaseURL  string   `toml:"api_base_url"`
	SubgraphURL string   `toml:"subgraph_url"`
	RateLimit   float64  `toml:"rate_limit"`
}

// CurveConfig holds Curve data source parameters.
type CurveConfig struct {
	Networks   []string `toml:"networks"`
	APIBaseURL string   `toml:"api_base_url"`
	RateLimit  float64  `toml:"rate_limit"`
}

// DefiLlamaConfig holds the shared aggregator fallback parameters.
type DefiLlamaConfig struct {
	BaseURL string `toml:"base_url"`
}

// OracleConfig holds price oracle parameters.
type OracleConfig struct {
	BaseURL   string   `toml:"base_url"`
	TTL       duration `toml:"ttl"`
	RateLimit float64  `toml:"rate_limit"`
}

// RetryConfig holds the shared retry policy.
type RetryConfig struct {
	MaxRetries int      `toml:"max_retries"`
	BaseDelay  duration `toml:"base_delay"`
}

// PostgresConfig holds PostgreSQL connection parameters for the snapshot
// store.
type PostgresConfig struct {
	Enabled      bool   `toml:"enabled"`
	DSN          string `toml:"dsn"`
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	Database     string `toml:"database"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	SSLMode      string `toml:"ssl_mode"`
	PoolMaxConns int    `toml:"pool_max_conns"`
	PoolMinConns int    `toml:"pool_min_conns"`
}

// RedisConfig holds Redis connection parameters for the shared quote cache.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for run archival.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string `toml:"telegram_token"`
	TelegramChatID    string `toml:"telegram_chat_id"`
	DiscordWebhookURL string `toml:"discord_webhook_url"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Scan: ScanConfig{
			Protocols:      []string{"uniswap_v3", "sushiswap", "pancakeswap", "curve"},
			Networks:       nil, // all configured
			MinTVL:         100_000,
			MaxPools:       50,
			CollectPause:   duration{1 * time.Second},
			BatchPause:     duration{2 * time.Second},
			UpdateInterval: duration{5 * time.Minute},
		},
		Providers: ProvidersConfig{
			UniswapV3: UniswapV3Config{
				Networks:    []string{"ethereum"},
				SubgraphURL: "https://api.thegraph.com/subgraphs/name/uniswap/uniswap-v3",
				RateLimit:   8,
			},
			SushiSwap: SushiSwapConfig{
				Networks:    []string{"ethereum"},
				SubgraphURL: "https://api.thegraph.com/subgraphs/name/sushiswap/exchange",
				APIBaseURL:  "https://app.sushi.com/api",
				RateLimit:   8,
			},
			PancakeSwap: PancakeSwapConfig{
				Networks:    []string{"bsc"},
				APIBaseURL:  "https://api.pancakeswap.info/api/v2",
				SubgraphURL: "https://api.thegraph.com/subgraphs/name/pancakeswap/exchange-v2",
				RateLimit:   8,
			},
			Curve: CurveConfig{
				Networks:   []string{"ethereum"},
				APIBaseURL: "https://api.curve.fi/api",
				RateLimit:  6,
			},
			DefiLlama: DefiLlamaConfig{
				BaseURL: "https://yields.llama.fi",
			},
			Timeout: duration{30 * time.Second},
		},
		Oracle: OracleConfig{
			BaseURL:   "https://cache-service.redstone.finance",
			TTL:       duration{5 * time.Minute},
			RateLimit: 5,
		},
		Retry: RetryConfig{
			MaxRetries: 3,
			BaseDelay:  duration{1 * time.Second},
		},
		Postgres: PostgresConfig{
			Host:         "localhost",
			Port:         5432,
			Database:     "poolscan",
			User:         "postgres",
			SSLMode:      "disable",
			PoolMaxConns: 10,
			PoolMinConns: 2,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		Mode:     "once",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"once":  true,
	"watch": true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validProtocols = map[string]bool{
	"uniswap_v3":  true,
	"sushiswap":   true,
	"pancakeswap": true,
	"curve":       true,
}

var validNetworks = map[string]bool{
	"ethereum": true,
	"polygon":  true,
	"arbitrum": true,
	"bsc":      true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: once, watch)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	for _, p := range c.Scan.Protocols {
		if !validProtocols[p] {
			errs = append(errs, fmt.Sprintf("scan: unknown protocol %q", p))
		}
	}
	for _, n := range c.Scan.Networks {
		if !validNetworks[n] {
			errs = append(errs, fmt.Sprintf("scan: unknown network %q", n))
		}
	}
	if c.Scan.MaxPools <= 0 {
		errs = append(errs, "scan: max_pools must be positive")
	}
	if c.Scan.MinTVL < 0 {
		errs = append(errs, "scan: min_tvl must not be negative")
	}
	if strings.ToLower(c.Mode) == "watch" && c.Scan.UpdateInterval.Duration <= 0 {
		errs = append(errs, "scan: update_interval must be positive in watch mode")
	}

	for name, networks := range map[string][]string{
		"uniswap_v3":  c.Providers.UniswapV3.Networks,
		"sushiswap":   c.Providers.SushiSwap.Networks,
		"pancakeswap": c.Providers.PancakeSwap.Networks,
		"curve":       c.Providers.Curve.Networks,
	} {
		for _, n := range networks {
			if !validNetworks[n] {
				errs = append(errs, fmt.Sprintf("providers.%s: unknown network %q", name, n))
			}
		}
	}

	if c.Oracle.BaseURL == "" {
		errs = append(errs, "oracle: base_url must not be empty")
	}
	if c.Oracle.TTL.Duration <= 0 {
		errs = append(errs, "oracle: ttl must be positive")
	}

	if c.Retry.MaxRetries < 0 {
		errs = append(errs, "retry: max_retries must not be negative")
	}

	if c.Postgres.Enabled && c.Postgres.DSN == "" && c.Postgres.Host == "" {
		errs = append(errs, "postgres: dsn or host is required when enabled")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis: addr is required when enabled")
	}
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket is required when enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region is required when enabled")
		}
	}

	tg := c.Notify.TelegramToken != ""
	tc := c.Notify.TelegramChatID != ""
	if tg != tc {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
