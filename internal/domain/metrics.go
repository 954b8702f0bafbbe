package domain

import "time"

// TokenValue pairs a pool token with the price used to value it. PriceKnown
// is false when the oracle could not supply a quote; the reserve then
// contributes zero to TVL but the gap is still visible downstream.
type TokenValue struct {
	Symbol     string
	Reserve    float64
	PriceUSD   float64
	PriceKnown bool
}

// PoolMetrics is the computed output record for one pool. It is created once
// by the calculator and never mutated afterwards.
type PoolMetrics struct {
	Protocol Protocol
	Network  Network
	Address  string
	Name     string

	Tokens []TokenValue

	TVLUSD    float64
	Volume24h float64
	Volume7d  float64
	Fees24h   float64

	APRBase    float64
	APRRewards float64
	APYBase    float64
	APYTotal   float64

	ImpermanentLoss1d float64
	ImpermanentLoss7d float64

	// SharpeRatio is nil when the 7-day IL denominator is zero or negative.
	SharpeRatio *float64

	RiskScore       float64
	LiquidityDepth  float64
	PriceImpact1Pct float64

	LastUpdated time.Time
}
