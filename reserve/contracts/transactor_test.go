package contracts

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/reservebot/goreserve/reserve/types"
)

type scriptedBackend struct {
	mu          sync.Mutex
	Calls       map[string]int
	ErrorOnNext map[string]error

	CallReturn []byte
	CallMsgs   []ethereum.CallMsg
	SentTxs    []*ethtypes.Transaction

	Nonce    uint64
	GasPrice *big.Int
	GasLimit uint64
	Block    uint64
	Receipt  *ethtypes.Receipt
}

func newScriptedBackend() *scriptedBackend {
	return &scriptedBackend{
		Calls:       make(map[string]int),
		ErrorOnNext: make(map[string]error),
		Nonce:       7,
		GasPrice:    big.NewInt(21_000_000_000),
		GasLimit:    120_000,
		Block:       4_000_000,
	}
}

func (s *scriptedBackend) trackCall(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls[name]++
	if err, ok := s.ErrorOnNext[name]; ok {
		delete(s.ErrorOnNext, name)
		return err
	}
	return nil
}

func (s *scriptedBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if err := s.trackCall("CallContract"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallMsgs = append(s.CallMsgs, msg)
	return s.CallReturn, nil
}

func (s *scriptedBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	if err := s.trackCall("PendingNonceAt"); err != nil {
		return 0, err
	}
	return s.Nonce, nil
}

func (s *scriptedBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	if err := s.trackCall("SuggestGasPrice"); err != nil {
		return nil, err
	}
	return s.GasPrice, nil
}

func (s *scriptedBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	if err := s.trackCall("EstimateGas"); err != nil {
		return 0, err
	}
	return s.GasLimit, nil
}

func (s *scriptedBackend) SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error {
	if err := s.trackCall("SendTransaction"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SentTxs = append(s.SentTxs, tx)
	return nil
}

func (s *scriptedBackend) BlockNumber(ctx context.Context) (uint64, error) {
	if err := s.trackCall("BlockNumber"); err != nil {
		return 0, err
	}
	return s.Block, nil
}

func (s *scriptedBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	if err := s.trackCall("TransactionReceipt"); err != nil {
		return nil, err
	}
	if s.Receipt == nil {
		return nil, ethereum.NotFound
	}
	return s.Receipt, nil
}

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

var (
	testChainID  = big.NewInt(3)
	reserveAddr  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	ratesAddr    = common.HexToAddress("0x2222222222222222222222222222222222222222")
	tokenAddr    = common.HexToAddress("0xCCC0000000000000000000000000000000000003")
	withdrawAddr = common.HexToAddress("0xDDD0000000000000000000000000000000000004")
)

func testAccount(t *testing.T) *types.Account {
	t.Helper()
	acct, err := types.NewAccount(testKeyHex)
	if err != nil {
		t.Fatalf("NewAccount: %v", err)
	}
	return acct
}

func TestTransactDefaultsComeFromNode(t *testing.T) {
	backend := newScriptedBackend()
	proxy, err := NewReserveContract(backend, testChainID, reserveAddr)
	if err != nil {
		t.Fatalf("NewReserveContract: %v", err)
	}

	tx, err := proxy.EnableTrade(context.Background(), testAccount(t), nil)
	if err != nil {
		t.Fatalf("EnableTrade: %v", err)
	}

	if tx.Nonce() != backend.Nonce {
		t.Fatalf("nonce got=%d want=%d", tx.Nonce(), backend.Nonce)
	}
	if tx.GasPrice().Cmp(backend.GasPrice) != 0 {
		t.Fatalf("gas price got=%s want suggested %s", tx.GasPrice(), backend.GasPrice)
	}
	if tx.Gas() != backend.GasLimit {
		t.Fatalf("gas limit got=%d want estimated %d", tx.Gas(), backend.GasLimit)
	}
	for _, name := range []string{"PendingNonceAt", "SuggestGasPrice", "EstimateGas", "SendTransaction"} {
		if backend.Calls[name] != 1 {
			t.Fatalf("%s called %d times, want 1", name, backend.Calls[name])
		}
	}

	// EIP-155 signature for the configured chain recovers the account.
	signer := ethtypes.NewEIP155Signer(testChainID)
	from, err := ethtypes.Sender(signer, tx)
	if err != nil {
		t.Fatalf("Sender: %v", err)
	}
	acct := testAccount(t)
	if from != acct.Address {
		t.Fatalf("sender got=%s want=%s", from.Hex(), acct.Address.Hex())
	}
}

func TestTransactHonorsExplicitOpts(t *testing.T) {
	backend := newScriptedBackend()
	proxy, err := NewReserveContract(backend, testChainID, reserveAddr)
	if err != nil {
		t.Fatalf("NewReserveContract: %v", err)
	}

	opts := &types.TxOpts{
		GasPrice: big.NewInt(99_000_000_000),
		GasLimit: 250_000,
		Nonce:    big.NewInt(42),
	}
	tx, err := proxy.DisableTrade(context.Background(), testAccount(t), opts)
	if err != nil {
		t.Fatalf("DisableTrade: %v", err)
	}

	if tx.Nonce() != 42 || tx.Gas() != 250_000 || tx.GasPrice().Cmp(opts.GasPrice) != 0 {
		t.Fatalf("tx opts not honored: nonce=%d gas=%d price=%s", tx.Nonce(), tx.Gas(), tx.GasPrice())
	}
	for _, name := range []string{"PendingNonceAt", "SuggestGasPrice", "EstimateGas"} {
		if backend.Calls[name] != 0 {
			t.Fatalf("%s called %d times with full opts, want 0", name, backend.Calls[name])
		}
	}
}

func TestTransactRequiresAccount(t *testing.T) {
	backend := newScriptedBackend()
	proxy, err := NewReserveContract(backend, testChainID, reserveAddr)
	if err != nil {
		t.Fatalf("NewReserveContract: %v", err)
	}
	if _, err := proxy.EnableTrade(context.Background(), nil, nil); err == nil {
		t.Fatal("EnableTrade with nil account: got nil error")
	}
	if backend.Calls["SendTransaction"] != 0 {
		t.Fatal("transaction submitted without an account")
	}
}

func TestWithdrawApprovalKeyIsKeccakOfTokenAndAddress(t *testing.T) {
	backend := newScriptedBackend()
	proxy, err := NewReserveContract(backend, testChainID, reserveAddr)
	if err != nil {
		t.Fatalf("NewReserveContract: %v", err)
	}

	cabi, err := abi.JSON(strings.NewReader(ReserveABI))
	if err != nil {
		t.Fatalf("parse ABI: %v", err)
	}
	out, err := cabi.Methods["approvedWithdrawAddresses"].Outputs.Pack(true)
	if err != nil {
		t.Fatalf("pack output: %v", err)
	}
	backend.CallReturn = out

	approved, err := proxy.WithdrawAddressApproved(context.Background(), tokenAddr, withdrawAddr)
	if err != nil {
		t.Fatalf("WithdrawAddressApproved: %v", err)
	}
	if !approved {
		t.Fatal("approved got=false want=true")
	}

	method, err := cabi.MethodById(backend.CallMsgs[0].Data[:4])
	if err != nil {
		t.Fatalf("method by id: %v", err)
	}
	args, err := method.Inputs.Unpack(backend.CallMsgs[0].Data[4:])
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	wantKey := crypto.Keccak256Hash(tokenAddr.Bytes(), withdrawAddr.Bytes())
	if got := args[0].([32]byte); common.Hash(got) != wantKey {
		t.Fatalf("approval key got=%x want=%s", got, wantKey.Hex())
	}
}

func TestStepTablesFlattenInOrder(t *testing.T) {
	backend := newScriptedBackend()
	proxy, err := NewConversionRatesContract(backend, testChainID, ratesAddr)
	if err != nil {
		t.Fatalf("NewConversionRatesContract: %v", err)
	}

	buy := []types.StepPoint{
		{X: big.NewInt(100), Y: big.NewInt(0)},
		{X: big.NewInt(200), Y: big.NewInt(-30)},
		{X: big.NewInt(300), Y: big.NewInt(-60)},
	}
	sell := []types.StepPoint{
		{X: big.NewInt(150), Y: big.NewInt(0)},
		{X: big.NewInt(250), Y: big.NewInt(-45)},
	}
	tx, err := proxy.SetQtyStepFunction(context.Background(), testAccount(t), tokenAddr, buy, sell, nil)
	if err != nil {
		t.Fatalf("SetQtyStepFunction: %v", err)
	}

	cabi, err := abi.JSON(strings.NewReader(ConversionRatesABI))
	if err != nil {
		t.Fatalf("parse ABI: %v", err)
	}
	method, err := cabi.MethodById(tx.Data()[:4])
	if err != nil {
		t.Fatalf("method by id: %v", err)
	}
	args, err := method.Inputs.Unpack(tx.Data()[4:])
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}

	xBuy := args[1].([]*big.Int)
	yBuy := args[2].([]*big.Int)
	xSell := args[3].([]*big.Int)
	ySell := args[4].([]*big.Int)
	for i, p := range buy {
		if xBuy[i].Cmp(p.X) != 0 || yBuy[i].Cmp(p.Y) != 0 {
			t.Fatalf("buy point %d got=(%s,%s) want=(%s,%s)", i, xBuy[i], yBuy[i], p.X, p.Y)
		}
	}
	for i, p := range sell {
		if xSell[i].Cmp(p.X) != 0 || ySell[i].Cmp(p.Y) != 0 {
			t.Fatalf("sell point %d got=(%s,%s) want=(%s,%s)", i, xSell[i], ySell[i], p.X, p.Y)
		}
	}
}

func TestCallErrorsAreNotSwallowed(t *testing.T) {
	backend := newScriptedBackend()
	proxy, err := NewReserveContract(backend, testChainID, reserveAddr)
	if err != nil {
		t.Fatalf("NewReserveContract: %v", err)
	}

	boom := errors.New("connection refused")
	backend.ErrorOnNext["CallContract"] = boom
	if _, err := proxy.TradeEnabled(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("error got=%v, want wrapped %v", err, boom)
	}
}

func TestWaitMinedPollsUntilReceipt(t *testing.T) {
	backend := newScriptedBackend()
	proxy, err := NewReserveContract(backend, testChainID, reserveAddr)
	if err != nil {
		t.Fatalf("NewReserveContract: %v", err)
	}
	tx, err := proxy.EnableTrade(context.Background(), testAccount(t), nil)
	if err != nil {
		t.Fatalf("EnableTrade: %v", err)
	}

	backend.Receipt = &ethtypes.Receipt{TxHash: tx.Hash(), Status: ethtypes.ReceiptStatusSuccessful}
	receipt, err := WaitMined(context.Background(), backend, tx)
	if err != nil {
		t.Fatalf("WaitMined: %v", err)
	}
	if receipt.TxHash != tx.Hash() {
		t.Fatalf("receipt hash got=%s want=%s", receipt.TxHash.Hex(), tx.Hash().Hex())
	}
}
