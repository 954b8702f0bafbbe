// Package postgres persists run snapshots using PostgreSQL via pgx.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ClientConfig holds connection parameters for the PostgreSQL client.
type ClientConfig struct {
	DSN      string
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
	MaxConns int
	MinConns int
}

// DSN builds a PostgreSQL connection string from the given config.
func DSN(cfg ClientConfig) string {
	if strings.TrimSpace(cfg.DSN) != "" {
		return cfg.DSN
	}

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, port, cfg.Database, sslMode,
	)
}

// Client wraps a pgxpool.Pool and manages the schema.
type Client struct {
	pool *pgxpool.Pool
}

// New creates a new Client with a connection pool configured from cfg and
// verifies connectivity with a ping.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	poolCfg, err := pgxpool.ParseConfig(DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = int32(cfg.MinConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	return &Client{pool: pool}, nil
}

// snapshotSchema creates the snapshot table if it is missing. Metric columns
// mirror domain.PoolMetrics; token valuations ride along as JSONB.
const snapshotSchema = `
CREATE TABLE IF NOT EXISTS pool_snapshots (
	id                  BIGSERIAL PRIMARY KEY,
	run_id              UUID NOT NULL,
	protocol            TEXT NOT NULL,
	network             TEXT NOT NULL,
	address             TEXT NOT NULL,
	name                TEXT NOT NULL,
	tokens              JSONB NOT NULL,
	tvl_usd             DOUBLE PRECISION NOT NULL,
	volume_24h          DOUBLE PRECISION NOT NULL,
	volume_7d           DOUBLE PRECISION NOT NULL,
	fees_24h            DOUBLE PRECISION NOT NULL,
	apr_base            DOUBLE PRECISION NOT NULL,
	apr_rewards         DOUBLE PRECISION NOT NULL,
	apy_base            DOUBLE PRECISION NOT NULL,
	apy_total           DOUBLE PRECISION NOT NULL,
	il_1d               DOUBLE PRECISION NOT NULL,
	il_7d               DOUBLE PRECISION NOT NULL,
	sharpe_ratio        DOUBLE PRECISION,
	risk_score          DOUBLE PRECISION NOT NULL,
	liquidity_depth     DOUBLE PRECISION NOT NULL,
	price_impact_1pct   DOUBLE PRECISION NOT NULL,
	last_updated        TIMESTAMPTZ NOT NULL,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_pool_snapshots_run ON pool_snapshots (run_id);
CREATE INDEX IF NOT EXISTS idx_pool_snapshots_pool ON pool_snapshots (protocol, network, address);
`

// EnsureSchema creates the tables the store needs. Safe to run on every
// startup.
func (c *Client) EnsureSchema(ctx context.Context) error {
	if _, err := c.pool.Exec(ctx, snapshotSchema); err != nil {
		return fmt.Errorf("postgres: ensure schema: %w", err)
	}
	return nil
}

// Ping checks the database connection.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: ping: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (c *Client) Close() {
	c.pool.Close()
}

// Pool returns the raw *pgxpool.Pool for stores that need direct access.
func (c *Client) Pool() *pgxpool.Pool {
	return c.pool
}
