package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TokenControlInfo carries the per-token recording and imbalance limits
// required when a token is listed on the pricing contract. The values are
// forwarded as-is; interpreting them is the contract's business.
type TokenControlInfo struct {
	MinimalRecordResolution *big.Int
	MaxPerBlockImbalance    *big.Int
	MaxTotalImbalance       *big.Int
}

// StepPoint is one (threshold, adjustment) pair of a step function.
// X is a traded quantity or a net imbalance in the token's smallest unit,
// Y is the rate adjustment in basis points and may be negative.
type StepPoint struct {
	X *big.Int
	Y *big.Int
}

// RateSetting is one entry of a batch rate submission: a token plus its
// proposed buy and sell rates, wei-scaled (1e18 = rate of 1.0).
type RateSetting struct {
	Token common.Address
	Buy   *big.Int
	Sell  *big.Int
}

// SanityBound pairs a token with the maximum deviation, in basis points,
// its computed rate may show against the sanity reference before trades
// against it are rejected.
type SanityBound struct {
	Token             common.Address
	ReasonableDiffBps *big.Int
}

// TxOpts carries optional per-transaction overrides. A nil field means the
// node decides: PendingNonceAt for the nonce, SuggestGasPrice for the gas
// price, EstimateGas for the limit. A non-nil GasPrice is used verbatim.
type TxOpts struct {
	GasPrice *big.Int
	GasLimit uint64
	Nonce    *big.Int
}

// CallOpts carries optional per-read settings. A nil BlockNumber means the
// latest block known to the backend at call time.
type CallOpts struct {
	BlockNumber *big.Int
}
