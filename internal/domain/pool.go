package domain

// Protocol identifies an AMM family.
type Protocol string

const (
	ProtocolUniswapV3   Protocol = "uniswap_v3"
	ProtocolSushiSwap   Protocol = "sushiswap"
	ProtocolPancakeSwap Protocol = "pancakeswap"
	ProtocolCurve       Protocol = "curve"
)

// DisplayName returns the human-readable protocol name used in pool names
// and report groupings.
func (p Protocol) DisplayName() string {
	switch p {
	case ProtocolUniswapV3:
		return "Uniswap V3"
	case ProtocolSushiSwap:
		return "SushiSwap"
	case ProtocolPancakeSwap:
		return "PancakeSwap"
	case ProtocolCurve:
		return "Curve"
	default:
		return string(p)
	}
}

// FeeRate returns the protocol's default trading fee as a fraction of volume
// (e.g. 0.003 = 0.30%). Uniswap V3 pools carry their own fee tier and should
// use PoolRecord.FeeRate instead.
func (p Protocol) FeeRate() float64 {
	switch p {
	case ProtocolSushiSwap:
		return 0.003
	case ProtocolPancakeSwap:
		return 0.0025
	case ProtocolCurve:
		return 0.0004
	default:
		return 0.003
	}
}

// Network identifies the chain a pool lives on.
type Network string

const (
	NetworkEthereum Network = "ethereum"
	NetworkPolygon  Network = "polygon"
	NetworkArbitrum Network = "arbitrum"
	NetworkBSC      Network = "bsc"
)

// Quantity is a non-negative numeric field that may be absent from the
// upstream payload. Valid distinguishes "zero" from "data unavailable".
type Quantity struct {
	Value float64
	Valid bool
}

// Known returns a Quantity carrying v.
func Known(v float64) Quantity { return Quantity{Value: v, Valid: true} }

// Unknown returns an absent Quantity.
func Unknown() Quantity { return Quantity{} }

// Or returns the value if present, otherwise def.
func (q Quantity) Or(def float64) float64 {
	if q.Valid {
		return q.Value
	}
	return def
}

// Token is one constituent of a pool, in the pool's native ordering.
type Token struct {
	Symbol   string
	Address  string
	Decimals int
	Reserve  float64
}

// Extra keys carried in PoolRecord.Extras. Only the metric formulas that
// need a given key consult it; the generic path never requires any of them.
const (
	ExtraFeeTier      = "fee_tier"       // Uniswap V3 fee in hundredths of a bip
	ExtraTickSpacing  = "tick_spacing"   // Uniswap V3 tick spacing
	ExtraLiquidity    = "liquidity"      // Uniswap V3 in-range liquidity
	ExtraSqrtPriceX96 = "sqrt_price_x96" // Uniswap V3 current sqrt price
	ExtraTick         = "tick"           // Uniswap V3 current tick
	ExtraAmp          = "amp"            // Curve amplification coefficient
	ExtraVirtualPrice = "virtual_price"  // Curve LP token virtual price
	ExtraPoolFee      = "pool_fee"       // Curve per-pool trading fee (fraction)
	ExtraRewardsAPR   = "rewards_apr"    // external incentive APR (percent)
)

// PoolRecord is the canonical, protocol-agnostic snapshot of one liquidity
// pool. Records are created fresh on every fetch cycle and treated as
// immutable once handed to the pipeline.
type PoolRecord struct {
	Protocol Protocol
	Network  Network
	Address  string
	Name     string

	Tokens []Token

	Volume24h Quantity
	Volume7d  Quantity
	Fees24h   Quantity

	// TVLUSD is a trusted TVL figure supplied by the source, when available.
	// When absent the calculator derives TVL from reserves and prices.
	TVLUSD Quantity

	Extras map[string]float64
}

// Extra returns the named protocol-specific value and whether it is present.
func (r PoolRecord) Extra(key string) (float64, bool) {
	v, ok := r.Extras[key]
	return v, ok
}

// FeeRate returns the pool's trading fee as a fraction of volume: the
// Uniswap V3 fee tier or Curve per-pool fee when carried, otherwise the
// protocol default.
func (r PoolRecord) FeeRate() float64 {
	switch r.Protocol {
	case ProtocolUniswapV3:
		if fee, ok := r.Extra(ExtraFeeTier); ok {
			return fee / 1e6
		}
	case ProtocolCurve:
		if fee, ok := r.Extra(ExtraPoolFee); ok && fee > 0 {
			return fee
		}
	}
	return r.Protocol.FeeRate()
}

// Symbols returns the pool's token symbols in native order.
func (r PoolRecord) Symbols() []string {
	syms := make([]string, len(r.Tokens))
	for i, t := range r.Tokens {
		syms[i] = t.Symbol
	}
	return syms
}
