package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/reservebot/goreserve/reserve/types"
)

// transactor is the shared dispatch helper behind all three proxies: it
// packs a method call, runs it either as a read (eth_call) or as a signed
// transaction, and leaves the method signatures to the typed wrappers.
type transactor struct {
	backend Backend
	chainID *big.Int
}

func newTransactor(backend Backend, chainID *big.Int) *transactor {
	return &transactor{backend: backend, chainID: chainID}
}

// call runs a read-only method against the latest state and unpacks the
// single return value into out.
func (t *transactor) call(ctx context.Context, to common.Address, cabi abi.ABI, out interface{}, method string, args ...interface{}) error {
	data, err := cabi.Pack(method, args...)
	if err != nil {
		return fmt.Errorf("pack %s: %w", method, err)
	}
	result, err := t.backend.CallContract(ctx, ethereum.CallMsg{
		To:   &to,
		Data: data,
	}, nil)
	if err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}
	if err := cabi.UnpackIntoInterface(out, method, result); err != nil {
		return fmt.Errorf("unpack %s: %w", method, err)
	}
	return nil
}

// transact packs, signs, and submits a state-changing method call. Nil opts
// fields fall back to the node: pending nonce, suggested gas price,
// estimated gas limit. The returned transaction is submitted, not mined.
func (t *transactor) transact(ctx context.Context, acct *types.Account, to common.Address, cabi abi.ABI, opts *types.TxOpts, method string, args ...interface{}) (*ethtypes.Transaction, error) {
	if acct == nil {
		return nil, fmt.Errorf("%s: acting account is required", method)
	}
	data, err := cabi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	var nonce uint64
	if opts != nil && opts.Nonce != nil {
		nonce = opts.Nonce.Uint64()
	} else {
		nonce, err = t.backend.PendingNonceAt(ctx, acct.Address)
		if err != nil {
			return nil, fmt.Errorf("nonce for %s: %w", method, err)
		}
	}

	var gasPrice *big.Int
	if opts != nil && opts.GasPrice != nil {
		gasPrice = opts.GasPrice
	} else {
		gasPrice, err = t.backend.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("gas price for %s: %w", method, err)
		}
	}

	var gasLimit uint64
	if opts != nil && opts.GasLimit > 0 {
		gasLimit = opts.GasLimit
	} else {
		gasLimit, err = t.backend.EstimateGas(ctx, ethereum.CallMsg{
			From:  acct.Address,
			To:    &to,
			Data:  data,
			Value: big.NewInt(0),
		})
		if err != nil {
			return nil, fmt.Errorf("estimate gas for %s: %w", method, err)
		}
	}

	tx := ethtypes.NewTransaction(nonce, to, big.NewInt(0), gasLimit, gasPrice, data)
	signedTx, err := acct.SignTx(tx, ethtypes.NewEIP155Signer(t.chainID))
	if err != nil {
		return nil, fmt.Errorf("sign %s: %w", method, err)
	}
	if err := t.backend.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("send %s: %w", method, err)
	}
	return signedTx, nil
}

// latestBlock resolves the backend's current block number as a *big.Int.
func (t *transactor) latestBlock(ctx context.Context) (*big.Int, error) {
	n, err := t.backend.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("block number: %w", err)
	}
	return new(big.Int).SetUint64(n), nil
}
