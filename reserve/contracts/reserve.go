package contracts

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/reservebot/goreserve/reserve/types"
)

// ReserveContract proxies the on-chain reserve: the trading switch, the
// registry of trusted network/pricing/sanity contracts, withdrawal
// permissions, and token balances.
type ReserveContract struct {
	addr common.Address
	cabi abi.ABI
	txr  *transactor
}

func NewReserveContract(backend Backend, chainID *big.Int, addr common.Address) (*ReserveContract, error) {
	cabi, err := abi.JSON(strings.NewReader(ReserveABI))
	if err != nil {
		return nil, fmt.Errorf("parse reserve ABI: %w", err)
	}
	return &ReserveContract{
		addr: addr,
		cabi: cabi,
		txr:  newTransactor(backend, chainID),
	}, nil
}

// Address returns the deployed reserve contract address.
func (r *ReserveContract) Address() common.Address {
	return r.addr
}

func (r *ReserveContract) EnableTrade(ctx context.Context, acct *types.Account, opts *types.TxOpts) (*ethtypes.Transaction, error) {
	return r.txr.transact(ctx, acct, r.addr, r.cabi, opts, "enableTrade")
}

func (r *ReserveContract) DisableTrade(ctx context.Context, acct *types.Account, opts *types.TxOpts) (*ethtypes.Transaction, error) {
	return r.txr.transact(ctx, acct, r.addr, r.cabi, opts, "disableTrade")
}

func (r *ReserveContract) TradeEnabled(ctx context.Context) (bool, error) {
	var enabled bool
	if err := r.txr.call(ctx, r.addr, r.cabi, &enabled, "tradeEnabled"); err != nil {
		return false, err
	}
	return enabled, nil
}

// SetContracts updates the reserve's own registry of trusted contracts. A
// zero sanity address tells the reserve to operate without sanity checks.
func (r *ReserveContract) SetContracts(ctx context.Context, acct *types.Account, network, conversionRates, sanityRates common.Address, opts *types.TxOpts) (*ethtypes.Transaction, error) {
	return r.txr.transact(ctx, acct, r.addr, r.cabi, opts, "setContracts", network, conversionRates, sanityRates)
}

func (r *ReserveContract) KyberNetwork(ctx context.Context) (common.Address, error) {
	var addr common.Address
	if err := r.txr.call(ctx, r.addr, r.cabi, &addr, "kyberNetwork"); err != nil {
		return common.Address{}, err
	}
	return addr, nil
}

func (r *ReserveContract) ConversionRatesContract(ctx context.Context) (common.Address, error) {
	var addr common.Address
	if err := r.txr.call(ctx, r.addr, r.cabi, &addr, "conversionRatesContract"); err != nil {
		return common.Address{}, err
	}
	return addr, nil
}

func (r *ReserveContract) SanityRatesContract(ctx context.Context) (common.Address, error) {
	var addr common.Address
	if err := r.txr.call(ctx, r.addr, r.cabi, &addr, "sanityRatesContract"); err != nil {
		return common.Address{}, err
	}
	return addr, nil
}

// ApproveWithdrawAddress flips the approval bit for withdrawing token to
// addr. The same contract method handles both approval and revocation.
func (r *ReserveContract) ApproveWithdrawAddress(ctx context.Context, acct *types.Account, token, addr common.Address, approve bool, opts *types.TxOpts) (*ethtypes.Transaction, error) {
	return r.txr.transact(ctx, acct, r.addr, r.cabi, opts, "approveWithdrawAddress", token, addr, approve)
}

// WithdrawAddressApproved reads the approval bit. The contract stores
// approvals under keccak256(token ++ addr).
func (r *ReserveContract) WithdrawAddressApproved(ctx context.Context, token, addr common.Address) (bool, error) {
	key := crypto.Keccak256Hash(token.Bytes(), addr.Bytes())
	var approved bool
	if err := r.txr.call(ctx, r.addr, r.cabi, &approved, "approvedWithdrawAddresses", key); err != nil {
		return false, err
	}
	return approved, nil
}

// Withdraw moves amount (smallest unit, no rescaling) of token to
// destination. The destination must have been approved on-chain; the proxy
// does not check locally.
func (r *ReserveContract) Withdraw(ctx context.Context, acct *types.Account, token common.Address, amount *big.Int, destination common.Address, opts *types.TxOpts) (*ethtypes.Transaction, error) {
	return r.txr.transact(ctx, acct, r.addr, r.cabi, opts, "withdraw", token, amount, destination)
}

// Balance returns the reserve's holdings of token in its smallest unit.
func (r *ReserveContract) Balance(ctx context.Context, token common.Address) (*big.Int, error) {
	var balance *big.Int
	if err := r.txr.call(ctx, r.addr, r.cabi, &balance, "getBalance", token); err != nil {
		return nil, err
	}
	return balance, nil
}
