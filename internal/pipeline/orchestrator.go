// Package pipeline coordinates one scan run: collect pools from every
// matching fetcher, compute metrics in bounded batches, then group the
// results per protocol.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/defilabs/poolscan/internal/calc"
	"github.com/defilabs/poolscan/internal/domain"
)

// State is the orchestrator's current phase.
type State string

const (
	StateIdle       State = "idle"
	StateCollecting State = "collecting"
	StateComputing  State = "computing"
	StateGrouping   State = "grouping"
	StateDone       State = "done"
	StateError      State = "error"
)

// computeBatchSize bounds how many pools are scored concurrently.
const computeBatchSize = 10

// Request selects which pools a run should cover. Empty Protocols or
// Networks means "all configured".
type Request struct {
	Protocols []domain.Protocol
	Networks  []domain.Network
	MinTVL    float64
	MaxPools  int
}

// DropEntry records one pool that fell out of the run, with the phase and
// reason, so a run's output is auditable.
type DropEntry struct {
	Protocol domain.Protocol `json:"protocol"`
	Network  domain.Network  `json:"network"`
	Address  string          `json:"address"`
	Phase    string          `json:"phase"`
	Reason   string          `json:"reason"`
}

// Report is the outcome of one run.
type Report struct {
	RunID      string                                    `json:"run_id"`
	StartedAt  time.Time                                 `json:"started_at"`
	FinishedAt time.Time                                 `json:"finished_at"`
	ByProtocol map[domain.Protocol][]domain.PoolMetrics `json:"by_protocol"`
	Dropped    []DropEntry                               `json:"dropped,omitempty"`
}

// Pools flattens the grouped metrics into one slice, per-protocol order
// preserved.
func (r *Report) Pools() []domain.PoolMetrics {
	var all []domain.PoolMetrics
	for _, group := range r.ByProtocol {
		all = append(all, group...)
	}
	return all
}

// Orchestrator drives the collect, compute, and group phases over a fixed
// set of fetchers.
type Orchestrator struct {
	fetchers     []domain.PoolFetcher
	calculator   *calc.Calculator
	collectPause time.Duration
	batchPause   time.Duration
	logger       *slog.Logger

	mu    sync.Mutex
	state State
}

// NewOrchestrator creates an orchestrator over the given fetchers.
// collectPause separates successive provider fetches; batchPause separates
// compute batches.
func NewOrchestrator(
	fetchers []domain.PoolFetcher,
	calculator *calc.Calculator,
	collectPause, batchPause time.Duration,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		fetchers:     fetchers,
		calculator:   calculator,
		collectPause: collectPause,
		batchPause:   batchPause,
		logger:       logger.With(slog.String("component", "pipeline")),
		state:        StateIdle,
	}
}

// State returns the orchestrator's current phase.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// Run executes one scan. A provider that fails after its whole fallback
// chain is logged and skipped; a run only fails outright when no fetcher
// matches the request or the context is cancelled.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Report, error) {
	report := &Report{
		RunID:      uuid.NewString(),
		StartedAt:  time.Now().UTC(),
		ByProtocol: make(map[domain.Protocol][]domain.PoolMetrics),
	}
	logger := o.logger.With(slog.String("run_id", report.RunID))

	selected := o.selectFetchers(req)
	if len(selected) == 0 {
		o.setState(StateError)
		return nil, fmt.Errorf("pipeline: %w", domain.ErrNoFetchers)
	}

	logger.InfoContext(ctx, "run starting",
		slog.Int("fetchers", len(selected)),
		slog.Float64("min_tvl", req.MinTVL),
		slog.Int("max_pools", req.MaxPools),
	)

	o.setState(StateCollecting)
	pools, err := o.collect(ctx, logger, selected, req, report)
	if err != nil {
		o.setState(StateError)
		return nil, err
	}

	o.setState(StateComputing)
	metrics, err := o.compute(ctx, logger, pools, report)
	if err != nil {
		o.setState(StateError)
		return nil, err
	}

	o.setState(StateGrouping)
	for _, m := range metrics {
		report.ByProtocol[m.Protocol] = append(report.ByProtocol[m.Protocol], m)
	}
	for _, group := range report.ByProtocol {
		sort.SliceStable(group, func(i, j int) bool { return group[i].TVLUSD > group[j].TVLUSD })
	}

	report.FinishedAt = time.Now().UTC()
	o.setState(StateDone)

	logger.InfoContext(ctx, "run complete",
		slog.Int("pools", len(metrics)),
		slog.Int("dropped", len(report.Dropped)),
		slog.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
	)
	return report, nil
}

func (o *Orchestrator) selectFetchers(req Request) []domain.PoolFetcher {
	wantProtocol := func(p domain.Protocol) bool {
		if len(req.Protocols) == 0 {
			return true
		}
		for _, want := range req.Protocols {
			if want == p {
				return true
			}
		}
		return false
	}
	wantNetwork := func(n domain.Network) bool {
		if len(req.Networks) == 0 {
			return true
		}
		for _, want := range req.Networks {
			if want == n {
				return true
			}
		}
		return false
	}

	var selected []domain.PoolFetcher
	for _, f := range o.fetchers {
		if wantProtocol(f.Protocol()) && wantNetwork(f.Network()) {
			selected = append(selected, f)
		}
	}
	return selected
}

// collect runs each fetcher in turn, pausing between providers so their
// upstreams are never hit back to back.
func (o *Orchestrator) collect(
	ctx context.Context,
	logger *slog.Logger,
	fetchers []domain.PoolFetcher,
	req Request,
	report *Report,
) ([]domain.PoolRecord, error) {
	var pools []domain.PoolRecord
	for i, f := range fetchers {
		if i > 0 {
			if err := pause(ctx, o.collectPause); err != nil {
				return nil, err
			}
		}

		fetched, err := f.TopPools(ctx, req.MaxPools, req.MinTVL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.ErrorContext(ctx, "provider collection failed",
				slog.String("protocol", string(f.Protocol())),
				slog.String("network", string(f.Network())),
				slog.String("error", err.Error()),
			)
			report.Dropped = append(report.Dropped, DropEntry{
				Protocol: f.Protocol(),
				Network:  f.Network(),
				Phase:    "collect",
				Reason:   err.Error(),
			})
			continue
		}

		logger.InfoContext(ctx, "provider collected",
			slog.String("protocol", string(f.Protocol())),
			slog.String("network", string(f.Network())),
			slog.Int("pools", len(fetched)),
		)
		pools = append(pools, fetched...)
	}
	return pools, nil
}

// compute scores pools in batches. A pool the calculator rejects is dropped
// and recorded; the rest of its batch is unaffected.
func (o *Orchestrator) compute(
	ctx context.Context,
	logger *slog.Logger,
	pools []domain.PoolRecord,
	report *Report,
) ([]domain.PoolMetrics, error) {
	results := make([]*domain.PoolMetrics, len(pools))
	drops := make([]*DropEntry, len(pools))

	for start := 0; start < len(pools); start += computeBatchSize {
		if start > 0 {
			if err := pause(ctx, o.batchPause); err != nil {
				return nil, err
			}
		}
		end := start + computeBatchSize
		if end > len(pools) {
			end = len(pools)
		}

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			g.Go(func() error {
				m, err := o.calculator.Compute(gctx, pools[i])
				if err != nil {
					drops[i] = &DropEntry{
						Protocol: pools[i].Protocol,
						Network:  pools[i].Network,
						Address:  pools[i].Address,
						Phase:    "compute",
						Reason:   err.Error(),
					}
					return nil
				}
				results[i] = &m
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		logger.DebugContext(ctx, "batch computed",
			slog.Int("from", start),
			slog.Int("to", end),
		)
	}

	metrics := make([]domain.PoolMetrics, 0, len(pools))
	for i := range pools {
		switch {
		case results[i] != nil:
			metrics = append(metrics, *results[i])
		case drops[i] != nil:
			logger.WarnContext(ctx, "pool dropped",
				slog.String("protocol", string(drops[i].Protocol)),
				slog.String("pool", drops[i].Address),
				slog.String("reason", drops[i].Reason),
			)
			report.Dropped = append(report.Dropped, *drops[i])
		}
	}
	return metrics, nil
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
