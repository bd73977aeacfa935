package contracts

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/reservebot/goreserve/reserve/types"
)

// SanityRatesContract proxies the optional sanity-rates contract. A reserve
// deployed without one never constructs this proxy.
type SanityRatesContract struct {
	addr common.Address
	cabi abi.ABI
	txr  *transactor
}

func NewSanityRatesContract(backend Backend, chainID *big.Int, addr common.Address) (*SanityRatesContract, error) {
	cabi, err := abi.JSON(strings.NewReader(SanityRatesABI))
	if err != nil {
		return nil, fmt.Errorf("parse sanity rates ABI: %w", err)
	}
	return &SanityRatesContract{
		addr: addr,
		cabi: cabi,
		txr:  newTransactor(backend, chainID),
	}, nil
}

// Address returns the deployed sanity-rates contract address.
func (s *SanityRatesContract) Address() common.Address {
	return s.addr
}

// SetSanityRates submits reference rates for the given source tokens.
// srcs[i] pairs with rates[i].
func (s *SanityRatesContract) SetSanityRates(ctx context.Context, acct *types.Account, srcs []common.Address, rates []*big.Int, opts *types.TxOpts) (*ethtypes.Transaction, error) {
	return s.txr.transact(ctx, acct, s.addr, s.cabi, opts, "setSanityRates", srcs, rates)
}

// GetSanityRate reads the reference rate for converting src to dest.
func (s *SanityRatesContract) GetSanityRate(ctx context.Context, src, dest common.Address) (*big.Int, error) {
	var rate *big.Int
	if err := s.txr.call(ctx, s.addr, s.cabi, &rate, "getSanityRate", src, dest); err != nil {
		return nil, err
	}
	return rate, nil
}

// ReasonableDiffInBps reads the allowed deviation for token in basis points.
func (s *SanityRatesContract) ReasonableDiffInBps(ctx context.Context, token common.Address) (*big.Int, error) {
	var diff *big.Int
	if err := s.txr.call(ctx, s.addr, s.cabi, &diff, "reasonableDiffInBps", token); err != nil {
		return nil, err
	}
	return diff, nil
}

// SetReasonableDiff submits deviation thresholds for a batch of tokens.
func (s *SanityRatesContract) SetReasonableDiff(ctx context.Context, acct *types.Account, bounds []types.SanityBound, opts *types.TxOpts) (*ethtypes.Transaction, error) {
	addrs := make([]common.Address, len(bounds))
	diffs := make([]*big.Int, len(bounds))
	for i, b := range bounds {
		addrs[i] = b.Token
		diffs[i] = b.ReasonableDiffBps
	}
	return s.txr.transact(ctx, acct, s.addr, s.cabi, opts, "setReasonableDiff", addrs, diffs)
}
