package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/defilabs/poolscan/internal/blob/s3"
	"github.com/defilabs/poolscan/internal/cache/redis"
	"github.com/defilabs/poolscan/internal/calc"
	"github.com/defilabs/poolscan/internal/config"
	"github.com/defilabs/poolscan/internal/domain"
	"github.com/defilabs/poolscan/internal/fetcher"
	"github.com/defilabs/poolscan/internal/notify"
	"github.com/defilabs/poolscan/internal/oracle"
	"github.com/defilabs/poolscan/internal/pipeline"
	"github.com/defilabs/poolscan/internal/platform/curveapi"
	"github.com/defilabs/poolscan/internal/platform/defillama"
	"github.com/defilabs/poolscan/internal/platform/onchain"
	"github.com/defilabs/poolscan/internal/platform/pancakeapi"
	"github.com/defilabs/poolscan/internal/platform/redstone"
	"github.com/defilabs/poolscan/internal/platform/subgraph"
	"github.com/defilabs/poolscan/internal/platform/sushiapi"
	"github.com/defilabs/poolscan/internal/ratelimit"
	"github.com/defilabs/poolscan/internal/retry"
	"github.com/defilabs/poolscan/internal/store/postgres"
)

// Dependencies bundles everything the operating modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Orchestrator *pipeline.Orchestrator
	Request      pipeline.Request

	// Optional sinks; nil when not configured.
	SnapshotStore domain.SnapshotStore
	BlobWriter    domain.BlobWriter
	Notifier      *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	policy := retry.Policy{
		MaxRetries: cfg.Retry.MaxRetries,
		BaseDelay:  cfg.Retry.BaseDelay.Duration,
	}
	timeout := cfg.Providers.Timeout.Duration

	// --- Shared quote cache (optional) ---
	var quoteCache domain.QuoteCache
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		quoteCache = redis.NewQuoteCache(redisClient)
	}

	// --- Price oracle ---
	priceSource := redstone.NewClient(cfg.Oracle.BaseURL, timeout)
	priceOracle := oracle.New(
		priceSource,
		quoteCache,
		ratelimit.New(cfg.Oracle.RateLimit),
		policy,
		cfg.Oracle.TTL.Duration,
		logger,
	)

	// --- Fetchers ---
	llama := defillama.NewClient(cfg.Providers.DefiLlama.BaseURL, timeout)

	var chain *onchain.Client
	if cfg.Providers.SushiSwap.RPCURL != "" {
		var err error
		chain, err = onchain.Dial(ctx, cfg.Providers.SushiSwap.RPCURL)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: rpc: %w", err)
		}
		closers = append(closers, chain.Close)
	}

	enabled := make(map[domain.Protocol]bool, len(cfg.Scan.Protocols))
	for _, p := range cfg.Scan.Protocols {
		enabled[domain.Protocol(p)] = true
	}

	var fetchers []domain.PoolFetcher

	if enabled[domain.ProtocolUniswapV3] {
		uni := cfg.Providers.UniswapV3
		graph := subgraph.NewClient(uni.SubgraphURL, timeout)
		var alt *subgraph.Client
		if uni.AltSubgraphURL != "" {
			alt = subgraph.NewClient(uni.AltSubgraphURL, timeout)
		}
		limiter := ratelimit.New(uni.RateLimit)
		for _, n := range uni.Networks {
			fetchers = append(fetchers, fetcher.NewUniswapV3(
				domain.Network(n), graph, alt, llama, limiter, policy, logger,
			))
		}
	}

	if enabled[domain.ProtocolSushiSwap] {
		sushi := cfg.Providers.SushiSwap
		graph := subgraph.NewClient(sushi.SubgraphURL, timeout)
		api := sushiapi.NewClient(sushi.APIBaseURL, timeout)
		limiter := ratelimit.New(sushi.RateLimit)
		for _, n := range sushi.Networks {
			fetchers = append(fetchers, fetcher.NewSushiSwap(
				domain.Network(n), graph, api, llama, chain, limiter, policy, logger,
			))
		}
	}

	if enabled[domain.ProtocolPancakeSwap] {
		cake := cfg.Providers.PancakeSwap
		api := pancakeapi.NewClient(cake.APIBaseURL, timeout)
		graph := subgraph.NewClient(cake.SubgraphURL, timeout)
		limiter := ratelimit.New(cake.RateLimit)
		for _, n := range cake.Networks {
			fetchers = append(fetchers, fetcher.NewPancakeSwap(
				domain.Network(n), api, graph, llama, limiter, policy, logger,
			))
		}
	}

	if enabled[domain.ProtocolCurve] {
		curve := cfg.Providers.Curve
		api := curveapi.NewClient(curve.APIBaseURL, timeout)
		limiter := ratelimit.New(curve.RateLimit)
		for _, n := range curve.Networks {
			fetchers = append(fetchers, fetcher.NewCurve(
				domain.Network(n), api, llama, limiter, policy, logger,
			))
		}
	}

	// --- Pipeline ---
	calculator := calc.New(priceOracle, logger)
	orchestrator := pipeline.NewOrchestrator(
		fetchers,
		calculator,
		cfg.Scan.CollectPause.Duration,
		cfg.Scan.BatchPause.Duration,
		logger,
	)

	deps := &Dependencies{
		Orchestrator: orchestrator,
		Request:      buildRequest(cfg),
	}

	// --- PostgreSQL snapshot store (optional) ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if err := pgClient.EnsureSchema(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres schema: %w", err)
		}
		deps.SnapshotStore = postgres.NewSnapshotStore(pgClient.Pool())
	}

	// --- S3 run archive (optional) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.BlobWriter = s3blob.NewWriter(s3Client)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) > 0 {
		deps.Notifier = notify.NewNotifier(senders, logger)
	}

	return deps, cleanup, nil
}

// buildRequest converts the scan section into a pipeline request.
func buildRequest(cfg *config.Config) pipeline.Request {
	req := pipeline.Request{
		MinTVL:   cfg.Scan.MinTVL,
		MaxPools: cfg.Scan.MaxPools,
	}
	for _, p := range cfg.Scan.Protocols {
		req.Protocols = append(req.Protocols, domain.Protocol(p))
	}
	for _, n := range cfg.Scan.Networks {
		req.Networks = append(req.Networks, domain.Network(n))
	}
	return req
}
