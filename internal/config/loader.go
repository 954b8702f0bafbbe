package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies POOLSCAN_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known POOLSCAN_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Scan ──
	setStringSlice(&cfg.Scan.Protocols, "POOLSCAN_SCAN_PROTOCOLS")
	setStringSlice(&cfg.Scan.Networks, "POOLSCAN_SCAN_NETWORKS")
	setFloat64(&cfg.Scan.MinTVL, "POOLSCAN_SCAN_MIN_TVL")
	setInt(&cfg.Scan.MaxPools, "POOLSCAN_SCAN_MAX_POOLS")
	setDuration(&cfg.Scan.CollectPause, "POOLSCAN_SCAN_COLLECT_PAUSE")
	setDuration(&cfg.Scan.BatchPause, "POOLSCAN_SCAN_BATCH_PAUSE")
	setDuration(&cfg.Scan.UpdateInterval, "POOLSCAN_SCAN_UPDATE_INTERVAL")

	// ── Providers ──
	setStr(&cfg.Providers.UniswapV3.SubgraphURL, "POOLSCAN_UNISWAP_V3_SUBGRAPH_URL")
	setStr(&cfg.Providers.UniswapV3.AltSubgraphURL, "POOLSCAN_UNISWAP_V3_ALT_SUBGRAPH_URL")
	setFloat64(&cfg.Providers.UniswapV3.RateLimit, "POOLSCAN_UNISWAP_V3_RATE_LIMIT")
	setStr(&cfg.Providers.SushiSwap.SubgraphURL, "POOLSCAN_SUSHISWAP_SUBGRAPH_URL")
	setStr(&cfg.Providers.SushiSwap.APIBaseURL, "POOLSCAN_SUSHISWAP_API_BASE_URL")
	setStr(&cfg.Providers.SushiSwap.RPCURL, "POOLSCAN_SUSHISWAP_RPC_URL")
	setFloat64(&cfg.Providers.SushiSwap.RateLimit, "POOLSCAN_SUSHISWAP_RATE_LIMIT")
	setStr(&cfg.Providers.PancakeSwap.APIBaseURL, "POOLSCAN_PANCAKESWAP_API_BASE_URL")
	setStr(&cfg.Providers.PancakeSwap.SubgraphURL, "POOLSCAN_PANCAKESWAP_SUBGRAPH_URL")
	setFloat64(&cfg.Providers.PancakeSwap.RateLimit, "POOLSCAN_PANCAKESWAP_RATE_LIMIT")
	setStr(&cfg.Providers.Curve.APIBaseURL, "POOLSCAN_CURVE_API_BASE_URL")
	setFloat64(&cfg.Providers.Curve.RateLimit, "POOLSCAN_CURVE_RATE_LIMIT")
	setStr(&cfg.Providers.DefiLlama.BaseURL, "POOLSCAN_DEFILLAMA_BASE_URL")
	setDuration(&cfg.Providers.Timeout, "POOLSCAN_PROVIDERS_TIMEOUT")

	// ── Oracle ──
	setStr(&cfg.Oracle.BaseURL, "POOLSCAN_ORACLE_BASE_URL")
	setDuration(&cfg.Oracle.TTL, "POOLSCAN_ORACLE_TTL")
	setFloat64(&cfg.Oracle.RateLimit, "POOLSCAN_ORACLE_RATE_LIMIT")

	// ── Retry ──
	setInt(&cfg.Retry.MaxRetries, "POOLSCAN_RETRY_MAX_RETRIES")
	setDuration(&cfg.Retry.BaseDelay, "POOLSCAN_RETRY_BASE_DELAY")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "POOLSCAN_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "POOLSCAN_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "POOLSCAN_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "POOLSCAN_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "POOLSCAN_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "POOLSCAN_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "POOLSCAN_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "POOLSCAN_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "POOLSCAN_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "POOLSCAN_POSTGRES_POOL_MIN_CONNS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "POOLSCAN_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "POOLSCAN_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POOLSCAN_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POOLSCAN_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "POOLSCAN_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "POOLSCAN_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "POOLSCAN_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "POOLSCAN_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "POOLSCAN_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "POOLSCAN_S3_REGION")
	setStr(&cfg.S3.Bucket, "POOLSCAN_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "POOLSCAN_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "POOLSCAN_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "POOLSCAN_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "POOLSCAN_S3_FORCE_PATH_STYLE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "POOLSCAN_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "POOLSCAN_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "POOLSCAN_NOTIFY_DISCORD_WEBHOOK_URL")

	// ── Top-level ──
	setStr(&cfg.Mode, "POOLSCAN_MODE")
	setStr(&cfg.LogLevel, "POOLSCAN_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
