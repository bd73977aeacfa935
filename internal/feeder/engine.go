// Package feeder runs the pricing loop: read external quotes, quote a
// two-sided market around them, and push the result on-chain when it moved
// enough to matter.
package feeder

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"

	"github.com/reservebot/goreserve/internal/feeds"
	"github.com/reservebot/goreserve/internal/journal"
	"github.com/reservebot/goreserve/internal/metrics"
	"github.com/reservebot/goreserve/internal/ports"
	"github.com/reservebot/goreserve/pkg/logger"
	"github.com/reservebot/goreserve/pkg/persistence"
	"github.com/reservebot/goreserve/pkg/ratelimit"
	"github.com/reservebot/goreserve/pkg/ratemath"
	"github.com/reservebot/goreserve/reserve/types"
)

// Token is one symbol the feeder prices.
type Token struct {
	Symbol  string
	Address common.Address
}

// Config tunes the feeder loop.
type Config struct {
	Tokens   []Token
	Interval time.Duration

	// SpreadBps is the half-spread around the mid quote: buy rate sits that
	// far below mid, sell rate that far above.
	SpreadBps int64

	// MinDeviationBps skips a token whose fresh rates are within this of the
	// last submitted ones. Zero resubmits on every change.
	MinDeviationBps int64

	MaxSubmitsPerMinute  int
	MaxConsecutiveErrors int64

	// ConfirmTimeout bounds the background wait for a submission's receipt.
	ConfirmTimeout time.Duration
}

// Engine drives the loop against its ports. Journal and checkpoint may be
// nil; the engine then runs without an audit trail or restart memory.
type Engine struct {
	cfg        Config
	source     ports.QuoteSource
	submitter  ports.RateSubmitter
	blocks     ports.BlockReader
	confirmer  ports.TxConfirmer
	ops        ports.OperationJournal
	acct       *types.Account
	breaker    *Breaker
	limiter    *ratelimit.TokenBucket
	checkpoint persistence.Store

	mu   sync.Mutex
	last map[string]submittedRate // keyed by symbol

	wg sync.WaitGroup
}

type submittedRate struct {
	Buy  string `json:"buy"`
	Sell string `json:"sell"`
}

type checkpointState struct {
	Rates map[string]submittedRate `json:"rates"`
}

// New wires an engine. The checkpoint, when present, restores the last
// submitted rates so a restart does not resubmit unchanged ones.
func New(cfg Config, acct *types.Account, source ports.QuoteSource, submitter ports.RateSubmitter,
	blocks ports.BlockReader, confirmer ports.TxConfirmer, ops ports.OperationJournal,
	checkpoint persistence.Store) *Engine {

	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.MaxSubmitsPerMinute <= 0 {
		cfg.MaxSubmitsPerMinute = 4
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 5 * time.Minute
	}

	e := &Engine{
		cfg:        cfg,
		source:     source,
		submitter:  submitter,
		blocks:     blocks,
		confirmer:  confirmer,
		ops:        ops,
		acct:       acct,
		breaker:    NewBreaker(cfg.MaxConsecutiveErrors),
		limiter:    ratelimit.NewTokenBucketPerWindow(cfg.MaxSubmitsPerMinute, time.Minute),
		checkpoint: checkpoint,
		last:       make(map[string]submittedRate),
	}
	e.restoreCheckpoint()
	return e
}

// Breaker exposes the engine's breaker for operator halt/resume.
func (e *Engine) Breaker() *Breaker {
	return e.breaker
}

func (e *Engine) restoreCheckpoint() {
	if e.checkpoint == nil {
		return
	}
	var state checkpointState
	if err := e.checkpoint.Load(&state); err != nil {
		if !errors.Is(err, persistence.ErrNotExists) {
			logger.Warnf("feeder: checkpoint load failed: %v", err)
		}
		return
	}
	for sym, rate := range state.Rates {
		e.last[sym] = rate
	}
	logger.Infof("feeder: restored %d checkpointed rates", len(state.Rates))
}

func (e *Engine) saveCheckpoint() {
	if e.checkpoint == nil {
		return
	}
	e.mu.Lock()
	state := checkpointState{Rates: make(map[string]submittedRate, len(e.last))}
	for sym, rate := range e.last {
		state.Rates[sym] = rate
	}
	e.mu.Unlock()
	if err := e.checkpoint.Save(state); err != nil {
		logger.Warnf("feeder: checkpoint save failed: %v", err)
	}
}

// Run loops until ctx is done. The first cycle fires immediately.
func (e *Engine) Run(ctx context.Context) error {
	logger.Infof("feeder: starting, %d tokens, interval %s, spread %dbps",
		len(e.cfg.Tokens), e.cfg.Interval, e.cfg.SpreadBps)

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := e.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Errorf("feeder: cycle failed: %v", err)
		}
		select {
		case <-ctx.Done():
			e.wg.Wait()
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce executes a single pricing cycle.
func (e *Engine) RunOnce(ctx context.Context) error {
	metrics.FeederCycles.Add(1)

	if err := e.breaker.Allow(); err != nil {
		return err
	}

	symbols := make([]string, len(e.cfg.Tokens))
	for i, tok := range e.cfg.Tokens {
		symbols[i] = tok.Symbol
	}
	quotes, err := e.source.Quotes(ctx, symbols)
	if err != nil {
		e.breaker.OnError()
		metrics.FeederErrors.Add(1)
		return errors.Wrap(err, "feeder: fetch quotes")
	}

	settings, fresh := e.buildSettings(quotes)
	if len(settings) == 0 {
		return nil
	}

	if !e.limiter.Allow() {
		metrics.FeederSkips.Add(1)
		logger.Warnf("feeder: submit cap reached, deferring %d tokens", len(settings))
		return nil
	}

	block, err := e.blocks.BlockNumber(ctx)
	if err != nil {
		e.breaker.OnError()
		metrics.FeederErrors.Add(1)
		return errors.Wrap(err, "feeder: read block number")
	}

	tx, err := e.submitter.SetRates(ctx, e.acct, settings, new(big.Int).SetUint64(block), nil)
	if err != nil {
		e.breaker.OnError()
		metrics.FeederErrors.Add(1)
		return errors.Wrap(err, "feeder: submit rates")
	}

	e.breaker.OnSuccess()
	metrics.FeederSubmissions.Add(1)

	e.mu.Lock()
	for sym, rate := range fresh {
		e.last[sym] = rate
	}
	e.mu.Unlock()
	e.saveCheckpoint()

	txHash := tx.Hash().Hex()
	logger.Infof("feeder: submitted %d rates at block %d, tx %s", len(settings), block, txHash)

	var recordID string
	if e.ops != nil {
		rec, err := e.ops.Insert(ctx, "set_rates", "",
			txHash, fmt.Sprintf("%d tokens at block %d", len(settings), block))
		if err != nil {
			logger.Warnf("feeder: journal insert failed: %v", err)
		} else {
			recordID = rec.ID
		}
	}

	if e.confirmer != nil {
		e.wg.Add(1)
		go e.awaitReceipt(tx, recordID)
	}
	return nil
}

// buildSettings turns quotes into rate settings, dropping tokens whose new
// rates are still within MinDeviationBps of the last submission.
func (e *Engine) buildSettings(quotes map[string]feeds.Quote) ([]types.RateSetting, map[string]submittedRate) {
	settings := make([]types.RateSetting, 0, len(e.cfg.Tokens))
	fresh := make(map[string]submittedRate, len(e.cfg.Tokens))

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, tok := range e.cfg.Tokens {
		quote, ok := quotes[tok.Symbol]
		if !ok {
			logger.Debugf("feeder: no quote for %s, keeping previous rate", tok.Symbol)
			continue
		}
		buyDec, sellDec := ratemath.Spread(quote.Price, e.cfg.SpreadBps)
		buy := ratemath.ToWeiRate(buyDec)
		sell := ratemath.ToWeiRate(sellDec)
		if buy.Sign() <= 0 || sell.Sign() <= 0 {
			logger.Warnf("feeder: non-positive rate for %s from quote %s, skipping", tok.Symbol, quote.Price)
			continue
		}

		if prev, ok := e.last[tok.Symbol]; ok {
			prevBuy, okBuy := new(big.Int).SetString(prev.Buy, 10)
			prevSell, okSell := new(big.Int).SetString(prev.Sell, 10)
			if okBuy && okSell &&
				ratemath.WithinBps(buy, prevBuy, e.cfg.MinDeviationBps) &&
				ratemath.WithinBps(sell, prevSell, e.cfg.MinDeviationBps) {
				metrics.FeederSkips.Add(1)
				continue
			}
		}

		settings = append(settings, types.RateSetting{Token: tok.Address, Buy: buy, Sell: sell})
		fresh[tok.Symbol] = submittedRate{Buy: buy.String(), Sell: sell.String()}
	}
	return settings, fresh
}

func (e *Engine) awaitReceipt(tx *ethtypes.Transaction, recordID string) {
	defer e.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.ConfirmTimeout)
	defer cancel()

	receipt, err := e.confirmer.WaitMined(ctx, tx)
	switch {
	case err != nil:
		metrics.TxFailed.Add(1)
		logger.Errorf("feeder: tx %s never confirmed: %v", tx.Hash().Hex(), err)
		e.markStatus(recordID, journal.StatusFailed, err.Error())
	case receipt.Status == 0:
		metrics.TxFailed.Add(1)
		logger.Errorf("feeder: tx %s reverted", tx.Hash().Hex())
		e.markStatus(recordID, journal.StatusFailed, "reverted")
	default:
		metrics.TxConfirmed.Add(1)
		logger.Infof("feeder: tx %s confirmed in block %s", tx.Hash().Hex(), receipt.BlockNumber)
		e.markStatus(recordID, journal.StatusConfirmed, fmt.Sprintf("block %s", receipt.BlockNumber))
	}
}

func (e *Engine) markStatus(recordID string, status journal.Status, detail string) {
	if e.ops == nil || recordID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.ops.MarkStatus(ctx, recordID, status, detail); err != nil {
		logger.Warnf("feeder: journal update failed: %v", err)
	}
}
