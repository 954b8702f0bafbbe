package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/defilabs/poolscan/internal/domain"
)

// SnapshotStore implements domain.SnapshotStore using PostgreSQL.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

// NewSnapshotStore creates a SnapshotStore backed by the given connection
// pool.
func NewSnapshotStore(pool *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

const insertSnapshotQuery = `
	INSERT INTO pool_snapshots (
		run_id, protocol, network, address, name, tokens,
		tvl_usd, volume_24h, volume_7d, fees_24h,
		apr_base, apr_rewards, apy_base, apy_total,
		il_1d, il_7d, sharpe_ratio,
		risk_score, liquidity_depth, price_impact_1pct, last_updated
	) VALUES (
		$1, $2, $3, $4, $5, $6,
		$7, $8, $9, $10,
		$11, $12, $13, $14,
		$15, $16, $17,
		$18, $19, $20, $21
	)`

// SaveSnapshots inserts one row per pool using a pgx Batch. The batch is
// atomic per row, not per run; a failed row aborts the remaining queue.
func (s *SnapshotStore) SaveSnapshots(ctx context.Context, runID string, metrics []domain.PoolMetrics) error {
	if len(metrics) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, m := range metrics {
		tokens, err := json.Marshal(m.Tokens)
		if err != nil {
			return fmt.Errorf("postgres: marshal tokens for %s: %w", m.Address, err)
		}
		batch.Queue(insertSnapshotQuery,
			runID, string(m.Protocol), string(m.Network), m.Address, m.Name, tokens,
			m.TVLUSD, m.Volume24h, m.Volume7d, m.Fees24h,
			m.APRBase, m.APRRewards, m.APYBase, m.APYTotal,
			m.ImpermanentLoss1d, m.ImpermanentLoss7d, m.SharpeRatio,
			m.RiskScore, m.LiquidityDepth, m.PriceImpact1Pct, m.LastUpdated,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range metrics {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert snapshot: %w", err)
		}
	}
	return nil
}

// Compile-time interface check.
var _ domain.SnapshotStore = (*SnapshotStore)(nil)
