package currency

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// Canonical is the single unit of account the ledger stores balances in.
	Canonical = "USD"
	// Regional is the local currency of the regional payment rail.
	Regional = "TWD"
)

const (
	SourceLive  = "live"
	SourceCache = "cache"
	SourceSeed  = "seed"
)

// Rate is a cached exchange rate snapshot. Degraded means the last refresh
// failed and callers are being served the previous known-good value.
type Rate struct {
	Base      string          `json:"base"`
	Quote     string          `json:"quote"`
	Value     decimal.Decimal `json:"value"`
	FetchedAt time.Time       `json:"fetched_at"`
	Source    string          `json:"source"`
	Degraded  bool            `json:"degraded"`
}

// Age reports how old the snapshot is; staleness is observable to callers.
func (r Rate) Age(now time.Time) time.Duration {
	return now.Sub(r.FetchedAt)
}
