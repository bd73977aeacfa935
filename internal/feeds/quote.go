// Package feeds pulls external token prices the feeder turns into on-chain
// rates: a REST fetcher for cycle-driven reads and a websocket stream for a
// continuously fresh view.
package feeds

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is one external price observation. Price is the token's price in
// the reserve's quote currency (ETH), kept as a decimal until the feeder
// converts it to a wei-scaled rate.
type Quote struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
}
