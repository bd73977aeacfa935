// Package reserve exposes one object over the three contracts a deployed
// liquidity reserve is made of: the reserve itself, its conversion-rates
// contract, and an optional sanity-rates contract. Callers manage trading
// state, withdrawal permissions, and pricing without knowing which contract
// owns which piece of state.
package reserve

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/reservebot/goreserve/reserve/contracts"
	"github.com/reservebot/goreserve/reserve/types"
)

// ConfigError reports a missing or malformed mandatory address at
// construction. It is the only error the facade raises itself; everything
// after New comes from the backend unmodified.
type ConfigError struct {
	Field string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("reserve: missing or invalid %s address", e.Field)
}

// Reserve is the facade. The three proxy handles are fixed at construction;
// sanity is nil for the life of the instance when no sanity-rates address
// was supplied. The facade holds no other state and is safe for concurrent
// use.
type Reserve struct {
	backend contracts.Backend

	reserve *contracts.ReserveContract
	rates   *contracts.ConversionRatesContract
	sanity  *contracts.SanityRatesContract
}

// New builds a facade over the contracts at cfg. Reserve and ConversionRates
// are mandatory; SanityRates is optional and decides, once, whether the
// sanity group of methods is live. No network I/O happens here.
func New(backend contracts.Backend, chainID *big.Int, cfg AddressSet) (*Reserve, error) {
	if !common.IsHexAddress(cfg.Reserve) {
		return nil, &ConfigError{Field: "reserve"}
	}
	if !common.IsHexAddress(cfg.ConversionRates) {
		return nil, &ConfigError{Field: "conversion rates"}
	}

	reserveProxy, err := contracts.NewReserveContract(backend, chainID, common.HexToAddress(cfg.Reserve))
	if err != nil {
		return nil, err
	}
	ratesProxy, err := contracts.NewConversionRatesContract(backend, chainID, common.HexToAddress(cfg.ConversionRates))
	if err != nil {
		return nil, err
	}

	r := &Reserve{
		backend: backend,
		reserve: reserveProxy,
		rates:   ratesProxy,
	}

	if cfg.SanityRates != "" {
		if !common.IsHexAddress(cfg.SanityRates) {
			return nil, &ConfigError{Field: "sanity rates"}
		}
		sanityProxy, err := contracts.NewSanityRatesContract(backend, chainID, common.HexToAddress(cfg.SanityRates))
		if err != nil {
			return nil, err
		}
		r.sanity = sanityProxy
	}

	return r, nil
}

// SanityConfigured reports whether a sanity-rates contract was supplied at
// construction. The answer never changes for a given instance.
func (r *Reserve) SanityConfigured() bool {
	return r.sanity != nil
}

// ReserveAddress returns the reserve contract address the facade was built
// with.
func (r *Reserve) ReserveAddress() common.Address {
	return r.reserve.Address()
}

// --- trading switch ---

func (r *Reserve) EnableTrade(ctx context.Context, acct *types.Account, opts *types.TxOpts) (*ethtypes.Transaction, error) {
	return r.reserve.EnableTrade(ctx, acct, opts)
}

func (r *Reserve) DisableTrade(ctx context.Context, acct *types.Account, opts *types.TxOpts) (*ethtypes.Transaction, error) {
	return r.reserve.DisableTrade(ctx, acct, opts)
}

func (r *Reserve) TradeEnabled(ctx context.Context) (bool, error) {
	return r.reserve.TradeEnabled(ctx)
}

// --- trusted-contract registry ---
//
// The reserve contract keeps its own registry of the network, pricing, and
// sanity contracts it trusts. That registry can diverge from the addresses
// this facade was constructed with; the facade exposes both views and does
// not reconcile them.

func (r *Reserve) SetContracts(ctx context.Context, acct *types.Account, network, conversionRates, sanityRates common.Address, opts *types.TxOpts) (*ethtypes.Transaction, error) {
	return r.reserve.SetContracts(ctx, acct, network, conversionRates, sanityRates, opts)
}

func (r *Reserve) NetworkAddress(ctx context.Context) (common.Address, error) {
	return r.reserve.KyberNetwork(ctx)
}

func (r *Reserve) ConversionRatesAddress(ctx context.Context) (common.Address, error) {
	return r.reserve.ConversionRatesContract(ctx)
}

func (r *Reserve) SanityRatesAddress(ctx context.Context) (common.Address, error) {
	return r.reserve.SanityRatesContract(ctx)
}

// --- withdrawals ---

func (r *Reserve) ApproveWithdrawAddress(ctx context.Context, acct *types.Account, token, addr common.Address, opts *types.TxOpts) (*ethtypes.Transaction, error) {
	return r.reserve.ApproveWithdrawAddress(ctx, acct, token, addr, true, opts)
}

func (r *Reserve) DisapproveWithdrawAddress(ctx context.Context, acct *types.Account, token, addr common.Address, opts *types.TxOpts) (*ethtypes.Transaction, error) {
	return r.reserve.ApproveWithdrawAddress(ctx, acct, token, addr, false, opts)
}

func (r *Reserve) WithdrawAddressApproved(ctx context.Context, token, addr common.Address) (bool, error) {
	return r.reserve.WithdrawAddressApproved(ctx, token, addr)
}

// Withdraw moves amount (smallest unit) of token to destination. Approval of
// the destination is enforced on-chain, not here: an unapproved destination
// is forwarded and the revert comes back from the contract.
func (r *Reserve) Withdraw(ctx context.Context, acct *types.Account, token common.Address, amount *big.Int, destination common.Address, opts *types.TxOpts) (*ethtypes.Transaction, error) {
	return r.reserve.Withdraw(ctx, acct, token, amount, destination, opts)
}

func (r *Reserve) Balance(ctx context.Context, token common.Address) (*big.Int, error) {
	return r.reserve.Balance(ctx, token)
}

// --- pricing ---

// AddToken lists token with its control limits and enables it for pricing.
// This is one contract call; there is no separate enable step.
func (r *Reserve) AddToken(ctx context.Context, acct *types.Account, token common.Address, info types.TokenControlInfo, opts *types.TxOpts) (*ethtypes.Transaction, error) {
	return r.rates.AddToken(ctx, acct, token, info, opts)
}

func (r *Reserve) SetQtyStepFunction(ctx context.Context, acct *types.Account, token common.Address, buy, sell []types.StepPoint, opts *types.TxOpts) (*ethtypes.Transaction, error) {
	return r.rates.SetQtyStepFunction(ctx, acct, token, buy, sell, opts)
}

func (r *Reserve) SetImbalanceStepFunction(ctx context.Context, acct *types.Account, token common.Address, buy, sell []types.StepPoint, opts *types.TxOpts) (*ethtypes.Transaction, error) {
	return r.rates.SetImbalanceStepFunction(ctx, acct, token, buy, sell, opts)
}

// BuyRate reads the rate for buying qty of token. A nil opts or BlockNumber
// resolves to the latest block the backend knows, never literal zero.
func (r *Reserve) BuyRate(ctx context.Context, token common.Address, qty *big.Int, opts *types.CallOpts) (*big.Int, error) {
	block, err := r.resolveBlock(ctx, opts)
	if err != nil {
		return nil, err
	}
	return r.rates.GetRate(ctx, token, block, true, qty)
}

// SellRate is BuyRate for the sell side.
func (r *Reserve) SellRate(ctx context.Context, token common.Address, qty *big.Int, opts *types.CallOpts) (*big.Int, error) {
	block, err := r.resolveBlock(ctx, opts)
	if err != nil {
		return nil, err
	}
	return r.rates.GetRate(ctx, token, block, false, qty)
}

// SetRates submits a batch of base rates referenced to blockNumber, applied
// together in entry order.
func (r *Reserve) SetRates(ctx context.Context, acct *types.Account, settings []types.RateSetting, blockNumber *big.Int, opts *types.TxOpts) (*ethtypes.Transaction, error) {
	return r.rates.SetBaseRate(ctx, acct, settings, blockNumber, opts)
}

func (r *Reserve) resolveBlock(ctx context.Context, opts *types.CallOpts) (*big.Int, error) {
	if opts != nil && opts.BlockNumber != nil {
		return opts.BlockNumber, nil
	}
	n, err := r.backend.BlockNumber(ctx)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetUint64(n), nil
}

// --- sanity rates (optional collaborator) ---
//
// Every method in this group returns a configured bool alongside its value.
// With no sanity contract the call returns immediately: zero value, false,
// nil error, and no backend traffic. Operating without sanity bounds is a
// permitted deployment mode, not a failure.

func (r *Reserve) SetSanityRates(ctx context.Context, acct *types.Account, srcs []common.Address, rates []*big.Int, opts *types.TxOpts) (*ethtypes.Transaction, bool, error) {
	if r.sanity == nil {
		return nil, false, nil
	}
	tx, err := r.sanity.SetSanityRates(ctx, acct, srcs, rates, opts)
	return tx, true, err
}

func (r *Reserve) SanityRate(ctx context.Context, src, dest common.Address) (*big.Int, bool, error) {
	if r.sanity == nil {
		return nil, false, nil
	}
	rate, err := r.sanity.GetSanityRate(ctx, src, dest)
	return rate, true, err
}

func (r *Reserve) ReasonableDiff(ctx context.Context, token common.Address) (*big.Int, bool, error) {
	if r.sanity == nil {
		return nil, false, nil
	}
	diff, err := r.sanity.ReasonableDiffInBps(ctx, token)
	return diff, true, err
}

func (r *Reserve) SetReasonableDiffs(ctx context.Context, acct *types.Account, bounds []types.SanityBound, opts *types.TxOpts) (*ethtypes.Transaction, bool, error) {
	if r.sanity == nil {
		return nil, false, nil
	}
	tx, err := r.sanity.SetReasonableDiff(ctx, acct, bounds, opts)
	return tx, true, err
}
