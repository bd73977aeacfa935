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

// ConversionRatesContract proxies the pricing contract: token listing,
// quantity and imbalance step functions, rate reads, and batch base-rate
// submission.
type ConversionRatesContract struct {
	addr common.Address
	cabi abi.ABI
	txr  *transactor
}

func NewConversionRatesContract(backend Backend, chainID *big.Int, addr common.Address) (*ConversionRatesContract, error) {
	cabi, err := abi.JSON(strings.NewReader(ConversionRatesABI))
	if err != nil {
		return nil, fmt.Errorf("parse conversion rates ABI: %w", err)
	}
	return &ConversionRatesContract{
		addr: addr,
		cabi: cabi,
		txr:  newTransactor(backend, chainID),
	}, nil
}

// Address returns the deployed conversion-rates contract address.
func (c *ConversionRatesContract) Address() common.Address {
	return c.addr
}

// AddToken lists a token with its control limits and enables it for
// pricing in a single contract call.
func (c *ConversionRatesContract) AddToken(ctx context.Context, acct *types.Account, token common.Address, info types.TokenControlInfo, opts *types.TxOpts) (*ethtypes.Transaction, error) {
	return c.txr.transact(ctx, acct, c.addr, c.cabi, opts, "addToken",
		token, info.MinimalRecordResolution, info.MaxPerBlockImbalance, info.MaxTotalImbalance)
}

// SetQtyStepFunction installs the quantity-dependent adjustment tables.
// Point order is forwarded exactly as given; the contract interprets the
// thresholds as a monotonic step table.
func (c *ConversionRatesContract) SetQtyStepFunction(ctx context.Context, acct *types.Account, token common.Address, buy, sell []types.StepPoint, opts *types.TxOpts) (*ethtypes.Transaction, error) {
	xBuy, yBuy := splitSteps(buy)
	xSell, ySell := splitSteps(sell)
	return c.txr.transact(ctx, acct, c.addr, c.cabi, opts, "setQtyStepFunction",
		token, xBuy, yBuy, xSell, ySell)
}

// SetImbalanceStepFunction installs the net-imbalance adjustment tables,
// independent of the quantity tables.
func (c *ConversionRatesContract) SetImbalanceStepFunction(ctx context.Context, acct *types.Account, token common.Address, buy, sell []types.StepPoint, opts *types.TxOpts) (*ethtypes.Transaction, error) {
	xBuy, yBuy := splitSteps(buy)
	xSell, ySell := splitSteps(sell)
	return c.txr.transact(ctx, acct, c.addr, c.cabi, opts, "setImbalanceStepFunction",
		token, xBuy, yBuy, xSell, ySell)
}

// GetRate reads the rate for trading qty of token at blockNumber, buy or
// sell side. The rate is wei-scaled and already carries the step-function
// adjustments.
func (c *ConversionRatesContract) GetRate(ctx context.Context, token common.Address, blockNumber *big.Int, buy bool, qty *big.Int) (*big.Int, error) {
	var rate *big.Int
	if err := c.txr.call(ctx, c.addr, c.cabi, &rate, "getRate", token, blockNumber, buy, qty); err != nil {
		return nil, err
	}
	return rate, nil
}

// SetBaseRate submits a batch of base buy/sell rates referenced to
// blockNumber. Entry order is preserved.
func (c *ConversionRatesContract) SetBaseRate(ctx context.Context, acct *types.Account, settings []types.RateSetting, blockNumber *big.Int, opts *types.TxOpts) (*ethtypes.Transaction, error) {
	tokens := make([]common.Address, len(settings))
	buys := make([]*big.Int, len(settings))
	sells := make([]*big.Int, len(settings))
	for i, s := range settings {
		tokens[i] = s.Token
		buys[i] = s.Buy
		sells[i] = s.Sell
	}
	return c.txr.transact(ctx, acct, c.addr, c.cabi, opts, "setBaseRate",
		tokens, buys, sells, blockNumber)
}

func splitSteps(points []types.StepPoint) (xs, ys []*big.Int) {
	xs = make([]*big.Int, len(points))
	ys = make([]*big.Int, len(points))
	for i, p := range points {
		xs[i] = p.X
		ys[i] = p.Y
	}
	return xs, ys
}
