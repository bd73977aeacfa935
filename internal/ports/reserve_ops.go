// Package ports holds the small capability interfaces the control plane and
// the feeder consume, so both can be tested against fakes instead of a live
// chain. *reserve.Reserve satisfies the reserve-facing ones.
package ports

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/reservebot/goreserve/reserve/types"
)

type TradeSwitcher interface {
	EnableTrade(ctx context.Context, acct *types.Account, opts *types.TxOpts) (*ethtypes.Transaction, error)
	DisableTrade(ctx context.Context, acct *types.Account, opts *types.TxOpts) (*ethtypes.Transaction, error)
	TradeEnabled(ctx context.Context) (bool, error)
}

type BalanceReader interface {
	Balance(ctx context.Context, token common.Address) (*big.Int, error)
}

type RateReader interface {
	BuyRate(ctx context.Context, token common.Address, qty *big.Int, opts *types.CallOpts) (*big.Int, error)
	SellRate(ctx context.Context, token common.Address, qty *big.Int, opts *types.CallOpts) (*big.Int, error)
}

type RateSubmitter interface {
	SetRates(ctx context.Context, acct *types.Account, settings []types.RateSetting, blockNumber *big.Int, opts *types.TxOpts) (*ethtypes.Transaction, error)
}

type Withdrawer interface {
	Withdraw(ctx context.Context, acct *types.Account, token common.Address, amount *big.Int, destination common.Address, opts *types.TxOpts) (*ethtypes.Transaction, error)
}

// SanityOps carries the comma-ok sentinel of the facade: configured == false
// means the reserve runs without a sanity-rates contract and the call was a
// local no-op.
type SanityOps interface {
	SanityConfigured() bool
	SanityRate(ctx context.Context, src, dest common.Address) (*big.Int, bool, error)
	ReasonableDiff(ctx context.Context, token common.Address) (*big.Int, bool, error)
	SetSanityRates(ctx context.Context, acct *types.Account, srcs []common.Address, rates []*big.Int, opts *types.TxOpts) (*ethtypes.Transaction, bool, error)
}

// AddressBook reads the reserve contract's own trusted-contract registry.
type AddressBook interface {
	NetworkAddress(ctx context.Context) (common.Address, error)
	ConversionRatesAddress(ctx context.Context) (common.Address, error)
	SanityRatesAddress(ctx context.Context) (common.Address, error)
}
