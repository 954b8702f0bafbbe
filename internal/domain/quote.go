package domain

import (
	"strings"
	"time"
)

// PriceQuote is one token spot price. Known is false when the upstream feed
// had no data for the symbol; such quotes are never cached.
type PriceQuote struct {
	Symbol    string
	Value     float64
	Known     bool
	FetchedAt time.Time
}

// Fresh reports whether the quote was fetched within ttl of now.
func (q PriceQuote) Fresh(now time.Time, ttl time.Duration) bool {
	return q.Known && now.Sub(q.FetchedAt) < ttl
}

// NormalizeSymbol upper-cases a token symbol for use as a cache key.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
