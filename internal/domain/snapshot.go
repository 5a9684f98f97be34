package domain

import "time"

// Snapshot is a point-in-time market readout for a token, normalized once at
// the backend boundary. Prices are USD; conversion to SOL happens at the
// point of use with the SOL/USD reference price.
type Snapshot struct {
	ContractAddress string
	Symbol          string
	PriceUSD        float64
	Volume24h       float64
	LiquidityUSD    float64
	Holders         int
	MarketCap       float64
	PriceChange1h   float64
	PriceChange6h   float64
	PriceChange24h  float64
	FetchedAt       time.Time
}
