package feeder

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/reservebot/goreserve/internal/feeds"
	"github.com/reservebot/goreserve/internal/journal"
	"github.com/reservebot/goreserve/internal/ports"
	"github.com/reservebot/goreserve/pkg/persistence"
	"github.com/reservebot/goreserve/reserve/types"
)

var (
	kncAddr = common.HexToAddress("0xdd974D5C2e2928deA5F71b9825b8b646686BD200")
	omgAddr = common.HexToAddress("0xd26114cd6EE289AccF82350c8d8487fedB8A0C07")
)

type fakeQuoteSource struct {
	mu     sync.Mutex
	quotes map[string]feeds.Quote
	err    error
}

func (f *fakeQuoteSource) setPrice(symbol, price string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.quotes == nil {
		f.quotes = make(map[string]feeds.Quote)
	}
	f.quotes[symbol] = feeds.Quote{
		Symbol:    symbol,
		Price:     decimal.RequireFromString(price),
		Timestamp: time.Now(),
	}
}

func (f *fakeQuoteSource) Quotes(ctx context.Context, symbols []string) (map[string]feeds.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]feeds.Quote)
	for _, sym := range symbols {
		if q, ok := f.quotes[sym]; ok {
			out[sym] = q
		}
	}
	return out, nil
}

type fakeSubmitter struct {
	mu          sync.Mutex
	submissions [][]types.RateSetting
	blocks      []*big.Int
	err         error
	nonce       uint64
}

func (f *fakeSubmitter) SetRates(ctx context.Context, acct *types.Account, settings []types.RateSetting, blockNumber *big.Int, opts *types.TxOpts) (*ethtypes.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.submissions = append(f.submissions, settings)
	f.blocks = append(f.blocks, blockNumber)
	f.nonce++
	return ethtypes.NewTransaction(f.nonce, common.Address{}, big.NewInt(0), 21000, big.NewInt(1), nil), nil
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submissions)
}

type fakeBlockReader struct{ block uint64 }

func (f *fakeBlockReader) BlockNumber(ctx context.Context) (uint64, error) {
	return f.block, nil
}

type fakeConfirmer struct {
	mu       sync.Mutex
	status   uint64
	waited   int
	waitedCh chan struct{}
}

func (f *fakeConfirmer) WaitMined(ctx context.Context, tx *ethtypes.Transaction) (*ethtypes.Receipt, error) {
	f.mu.Lock()
	f.waited++
	f.mu.Unlock()
	if f.waitedCh != nil {
		f.waitedCh <- struct{}{}
	}
	return &ethtypes.Receipt{Status: f.status, BlockNumber: big.NewInt(123)}, nil
}

type fakeJournal struct {
	mu       sync.Mutex
	inserted []journal.Record
	statuses map[string]journal.Status
}

func (f *fakeJournal) Insert(ctx context.Context, kind, token, txHash, detail string) (journal.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := journal.Record{ID: fmt.Sprintf("rec-%d", len(f.inserted)+1), Kind: kind, Token: token, TxHash: txHash, Detail: detail, Status: journal.StatusSubmitted}
	f.inserted = append(f.inserted, rec)
	return rec, nil
}

func (f *fakeJournal) MarkStatus(ctx context.Context, id string, status journal.Status, detail string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statuses == nil {
		f.statuses = make(map[string]journal.Status)
	}
	f.statuses[id] = status
	return nil
}

func testEngine(t *testing.T, cfg Config, source *fakeQuoteSource, submitter *fakeSubmitter, confirmer *fakeConfirmer, ops *fakeJournal) *Engine {
	t.Helper()
	acct, err := types.NewAccount("4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	require.NoError(t, err)
	if cfg.Tokens == nil {
		cfg.Tokens = []Token{{Symbol: "KNC", Address: kncAddr}}
	}
	var opsPort ports.OperationJournal
	if ops != nil {
		opsPort = ops
	}
	var confirmPort ports.TxConfirmer
	if confirmer != nil {
		confirmPort = confirmer
	}
	return New(cfg, acct, source, submitter, &fakeBlockReader{block: 777}, confirmPort, opsPort, nil)
}

func TestFirstCycleSubmitsAllQuotedTokens(t *testing.T) {
	source := &fakeQuoteSource{}
	source.setPrice("KNC", "0.004")
	source.setPrice("OMG", "0.001")
	submitter := &fakeSubmitter{}

	e := testEngine(t, Config{
		Tokens:    []Token{{Symbol: "KNC", Address: kncAddr}, {Symbol: "OMG", Address: omgAddr}},
		SpreadBps: 25,
	}, source, submitter, nil, nil)

	require.NoError(t, e.RunOnce(context.Background()))
	require.Equal(t, 1, submitter.count())
	require.Len(t, submitter.submissions[0], 2)
	require.Equal(t, big.NewInt(777), submitter.blocks[0])

	// spread of 25bps around 0.004: buy 0.0039900, sell 0.0040100, wei-scaled
	knc := submitter.submissions[0][0]
	require.Equal(t, kncAddr, knc.Token)
	require.Equal(t, "3990000000000000", knc.Buy.String())
	require.Equal(t, "4010000000000000", knc.Sell.String())
	require.Equal(t, -1, knc.Buy.Cmp(knc.Sell), "buy rate sits below sell rate")
}

func TestUnchangedQuoteIsNotResubmitted(t *testing.T) {
	source := &fakeQuoteSource{}
	source.setPrice("KNC", "0.004")
	submitter := &fakeSubmitter{}

	e := testEngine(t, Config{SpreadBps: 25, MinDeviationBps: 10}, source, submitter, nil, nil)

	require.NoError(t, e.RunOnce(context.Background()))
	require.NoError(t, e.RunOnce(context.Background()))
	require.Equal(t, 1, submitter.count(), "identical quote must not resubmit")

	// a 0.05% move is within the 10bps gate
	source.setPrice("KNC", "0.004002")
	require.NoError(t, e.RunOnce(context.Background()))
	require.Equal(t, 1, submitter.count())

	// a 2% move is not
	source.setPrice("KNC", "0.00408")
	require.NoError(t, e.RunOnce(context.Background()))
	require.Equal(t, 2, submitter.count())
}

func TestBreakerTripsAfterConsecutiveErrors(t *testing.T) {
	source := &fakeQuoteSource{}
	source.setPrice("KNC", "0.004")
	submitter := &fakeSubmitter{err: fmt.Errorf("nonce too low")}

	e := testEngine(t, Config{SpreadBps: 25, MaxConsecutiveErrors: 3, MaxSubmitsPerMinute: 10}, source, submitter, nil, nil)

	for i := 0; i < 3; i++ {
		require.Error(t, e.RunOnce(context.Background()))
	}
	err := e.RunOnce(context.Background())
	require.ErrorIs(t, err, ErrBreakerOpen)
	require.True(t, e.Breaker().Halted())

	// operator resume puts it back to work
	submitter.err = nil
	e.Breaker().Resume()
	require.NoError(t, e.RunOnce(context.Background()))
	require.Equal(t, 1, submitter.count())
}

func TestSubmitCapDefersCycle(t *testing.T) {
	source := &fakeQuoteSource{}
	source.setPrice("KNC", "0.004")
	submitter := &fakeSubmitter{}

	e := testEngine(t, Config{SpreadBps: 25, MaxSubmitsPerMinute: 2}, source, submitter, nil, nil)

	prices := []string{"0.004", "0.005", "0.006", "0.007"}
	for _, p := range prices {
		source.setPrice("KNC", p)
		require.NoError(t, e.RunOnce(context.Background()))
	}
	require.Equal(t, 2, submitter.count(), "cap of 2 per minute holds")
}

func TestConfirmedSubmissionIsJournaled(t *testing.T) {
	source := &fakeQuoteSource{}
	source.setPrice("KNC", "0.004")
	submitter := &fakeSubmitter{}
	confirmer := &fakeConfirmer{status: 1, waitedCh: make(chan struct{}, 1)}
	ops := &fakeJournal{}

	e := testEngine(t, Config{SpreadBps: 25}, source, submitter, confirmer, ops)

	require.NoError(t, e.RunOnce(context.Background()))

	select {
	case <-confirmer.waitedCh:
	case <-time.After(2 * time.Second):
		t.Fatal("receipt wait never ran")
	}
	e.wg.Wait()

	require.Len(t, ops.inserted, 1)
	require.Equal(t, "set_rates", ops.inserted[0].Kind)
	require.Equal(t, journal.StatusConfirmed, ops.statuses[ops.inserted[0].ID])
}

func TestCheckpointSurvivesRestart(t *testing.T) {
	source := &fakeQuoteSource{}
	source.setPrice("KNC", "0.004")
	submitter := &fakeSubmitter{}
	store := persistence.NewJSONFileService(t.TempDir()).NewStore("feeder", "test", "rates")
	acct, err := types.NewAccount("4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	require.NoError(t, err)

	cfg := Config{Tokens: []Token{{Symbol: "KNC", Address: kncAddr}}, SpreadBps: 25, MinDeviationBps: 10}
	e1 := New(cfg, acct, source, submitter, &fakeBlockReader{block: 1}, nil, nil, store)
	require.NoError(t, e1.RunOnce(context.Background()))
	require.Equal(t, 1, submitter.count())

	// fresh engine, same store: the unchanged quote must not resubmit
	e2 := New(cfg, acct, source, submitter, &fakeBlockReader{block: 2}, nil, nil, store)
	require.NoError(t, e2.RunOnce(context.Background()))
	require.Equal(t, 1, submitter.count())
}
