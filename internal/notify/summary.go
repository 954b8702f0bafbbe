package notify

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/defilabs/poolscan/internal/domain"
	"github.com/defilabs/poolscan/internal/pipeline"
)

// FormatCurrency renders a dollar amount with a magnitude suffix, e.g.
// "$1.2M" or "$835.10".
func FormatCurrency(v float64) string {
	switch {
	case v >= 1e9:
		return fmt.Sprintf("$%.1fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("$%.1fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("$%.1fK", v/1e3)
	default:
		return fmt.Sprintf("$%.2f", v)
	}
}

// FormatPercent renders a percentage with two decimals, e.g. "12.34%".
func FormatPercent(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}

// RunSummary renders a run report as a short chat message: pool and drop
// counts, total TVL, a per-protocol breakdown, and the highest-yield pool.
func RunSummary(report *pipeline.Report) (title, message string) {
	pools := report.Pools()

	var totalTVL float64
	bestIdx := -1
	for i, m := range pools {
		totalTVL += m.TVLUSD
		if bestIdx < 0 || m.APYTotal > pools[bestIdx].APYTotal {
			bestIdx = i
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Pools: %d", len(pools))
	if len(report.Dropped) > 0 {
		fmt.Fprintf(&b, " (%d dropped)", len(report.Dropped))
	}
	fmt.Fprintf(&b, "\nTotal TVL: %s\n", FormatCurrency(totalTVL))

	protocols := make([]domain.Protocol, 0, len(report.ByProtocol))
	for p := range report.ByProtocol {
		protocols = append(protocols, p)
	}
	sort.Slice(protocols, func(i, j int) bool { return protocols[i] < protocols[j] })
	for _, p := range protocols {
		group := report.ByProtocol[p]
		var tvl float64
		for _, m := range group {
			tvl += m.TVLUSD
		}
		fmt.Fprintf(&b, "%s: %d pools, %s\n", p.DisplayName(), len(group), FormatCurrency(tvl))
	}

	if bestIdx >= 0 {
		best := pools[bestIdx]
		fmt.Fprintf(&b, "Top APY: %s (%s) at %s",
			best.Name, best.Protocol.DisplayName(), FormatPercent(best.APYTotal))
	}

	elapsed := report.FinishedAt.Sub(report.StartedAt).Round(time.Second)
	title = fmt.Sprintf("Pool scan %s finished in %s", shortRunID(report.RunID), elapsed)
	return title, strings.TrimRight(b.String(), "\n")
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
