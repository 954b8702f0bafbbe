package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, cfg.Validate())
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("POOLSCAN_MODE", "watch")
	t.Setenv("POOLSCAN_SCAN_MAX_POOLS", "25")
	t.Setenv("POOLSCAN_SCAN_MIN_TVL", "250000")
	t.Setenv("POOLSCAN_SCAN_PROTOCOLS", "curve, sushiswap")
	t.Setenv("POOLSCAN_ORACLE_TTL", "90s")
	t.Setenv("POOLSCAN_REDIS_ENABLED", "true")
	t.Setenv("POOLSCAN_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("POOLSCAN_NOTIFY_TELEGRAM_TOKEN", "tok")
	t.Setenv("POOLSCAN_NOTIFY_TELEGRAM_CHAT_ID", "-100123")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "watch", cfg.Mode)
	assert.Equal(t, 25, cfg.Scan.MaxPools)
	assert.Equal(t, 250_000.0, cfg.Scan.MinTVL)
	assert.Equal(t, []string{"curve", "sushiswap"}, cfg.Scan.Protocols)
	assert.Equal(t, 90*time.Second, cfg.Oracle.TTL.Duration)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	require.NoError(t, cfg.Validate())
}

func TestLoadIgnoresMalformedEnvValues(t *testing.T) {
	t.Setenv("POOLSCAN_SCAN_MAX_POOLS", "lots")
	t.Setenv("POOLSCAN_ORACLE_TTL", "soon")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, Defaults().Scan.MaxPools, cfg.Scan.MaxPools)
	assert.Equal(t, Defaults().Oracle.TTL.Duration, cfg.Oracle.TTL.Duration)
}

func TestLoadParsesTOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
mode = "watch"
log_level = "debug"

[scan]
min_tvl = 500000.0
max_pools = 20
update_interval = "10m"

[providers.uniswap_v3]
subgraph_url = "https://graph.example/uniswap-v3"

[s3]
enabled = true
bucket = "poolscan-runs"
region = "us-east-1"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "watch", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 500_000.0, cfg.Scan.MinTVL)
	assert.Equal(t, 20, cfg.Scan.MaxPools)
	assert.Equal(t, 10*time.Minute, cfg.Scan.UpdateInterval.Duration)
	assert.Equal(t, "https://graph.example/uniswap-v3", cfg.Providers.UniswapV3.SubgraphURL)
	assert.True(t, cfg.S3.Enabled)

	// Fields the file does not mention keep their defaults.
	assert.Equal(t, "https://api.curve.fi/api", cfg.Providers.Curve.APIBaseURL)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		message string
	}{
		{"unknown mode", func(c *Config) { c.Mode = "forever" }, "unknown mode"},
		{"unknown log level", func(c *Config) { c.LogLevel = "loud" }, "unknown log_level"},
		{"unknown protocol", func(c *Config) { c.Scan.Protocols = []string{"balancer"} }, "unknown protocol"},
		{"unknown network", func(c *Config) { c.Scan.Networks = []string{"solana"} }, "unknown network"},
		{"zero max pools", func(c *Config) { c.Scan.MaxPools = 0 }, "max_pools"},
		{"negative min tvl", func(c *Config) { c.Scan.MinTVL = -1 }, "min_tvl"},
		{"watch without interval", func(c *Config) {
			c.Mode = "watch"
			c.Scan.UpdateInterval.Duration = 0
		}, "update_interval"},
		{"provider network", func(c *Config) { c.Providers.Curve.Networks = []string{"near"} }, "providers.curve"},
		{"empty oracle url", func(c *Config) { c.Oracle.BaseURL = "" }, "oracle: base_url"},
		{"negative retries", func(c *Config) { c.Retry.MaxRetries = -1 }, "max_retries"},
		{"postgres without target", func(c *Config) {
			c.Postgres.Enabled = true
			c.Postgres.DSN = ""
			c.Postgres.Host = ""
		}, "postgres"},
		{"redis without addr", func(c *Config) {
			c.Redis.Enabled = true
			c.Redis.Addr = ""
		}, "redis: addr"},
		{"s3 without bucket", func(c *Config) {
			c.S3.Enabled = true
			c.S3.Region = "us-east-1"
		}, "s3: bucket"},
		{"telegram half configured", func(c *Config) { c.Notify.TelegramToken = "tok" }, "telegram"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.message)
		})
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "forever"
	cfg.Scan.MaxPools = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "max_pools")
}

func TestDurationRoundTrip(t *testing.T) {
	var d duration
	require.NoError(t, d.UnmarshalText([]byte("2m30s")))
	assert.Equal(t, 2*time.Minute+30*time.Second, d.Duration)

	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "2m30s", string(text))

	assert.Error(t, d.UnmarshalText([]byte("later")))
}
