package main

import (
	"context"
	"flag"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/joho/godotenv"

	"github.com/reservebot/goreserve/internal/feeder"
	"github.com/reservebot/goreserve/internal/feeds"
	"github.com/reservebot/goreserve/internal/journal"
	"github.com/reservebot/goreserve/internal/metrics"
	"github.com/reservebot/goreserve/internal/operator"
	"github.com/reservebot/goreserve/internal/ports"
	"github.com/reservebot/goreserve/pkg/config"
	"github.com/reservebot/goreserve/pkg/logger"
	"github.com/reservebot/goreserve/pkg/persistence"
	"github.com/reservebot/goreserve/pkg/shutdown"
	"github.com/reservebot/goreserve/reserve"
	"github.com/reservebot/goreserve/reserve/contracts"
)

// chainConfirmer adapts the polling receipt wait to the feeder's port.
type chainConfirmer struct {
	backend contracts.Backend
}

func (c chainConfirmer) WaitMined(ctx context.Context, tx *ethtypes.Transaction) (*ethtypes.Receipt, error) {
	return contracts.WaitMined(ctx, c.backend, tx)
}

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "config.yaml", "config file path")
	once := flag.Bool("once", false, "run a single pricing cycle and exit")
	flag.Parse()

	cfg, err := config.LoadFromFile(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, OutputFile: cfg.LogFile}); err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}

	client, err := contracts.Dial(cfg.RPCURL)
	if err != nil {
		logger.Errorf("dial %s: %v", cfg.RPCURL, err)
		os.Exit(1)
	}
	defer client.Close()

	rsv, err := reserve.New(client, bigChainID(cfg), cfg.Addresses)
	if err != nil {
		logger.Errorf("reserve: %v", err)
		os.Exit(1)
	}

	acct, err := operator.Load(cfg)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	logger.Infof("operator %s, reserve %s", acct.Address.Hex(), cfg.Addresses.Reserve)

	source, closeSource, err := buildSource(cfg)
	if err != nil {
		logger.Errorf("price feed: %v", err)
		os.Exit(1)
	}

	jnl, err := journal.Open(cfg.Server.JournalDBPath)
	if err != nil {
		logger.Errorf("journal: %v", err)
		os.Exit(1)
	}

	tokens := make([]feeder.Token, 0, len(cfg.Tokens))
	for _, tok := range cfg.Tokens {
		tokens = append(tokens, feeder.Token{
			Symbol:  tok.Symbol,
			Address: common.HexToAddress(tok.Address),
		})
	}
	checkpoint := persistence.NewJSONFileService(cfg.Feeder.CheckpointDir).
		NewStore("feeder", cfg.OperatorName, "rates")

	engine := feeder.New(feeder.Config{
		Tokens:               tokens,
		Interval:             time.Duration(cfg.Feeder.IntervalSeconds) * time.Second,
		SpreadBps:            cfg.Feeder.SpreadBps,
		MinDeviationBps:      cfg.Feeder.MinDeviationBps,
		MaxSubmitsPerMinute:  cfg.Feeder.MaxSubmitsPerMinute,
		MaxConsecutiveErrors: cfg.Feeder.MaxConsecutiveErrors,
	}, acct, source, rsv, client, chainConfirmer{backend: client}, jnl, checkpoint)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.MetricsListen != "" {
		if _, err := metrics.StartAsync(ctx, cfg.MetricsListen); err != nil {
			logger.Warnf("metrics listener: %v", err)
		} else {
			logger.Infof("metrics on http://%s/debug/vars", cfg.MetricsListen)
		}
	}

	mgr := shutdown.NewManager()
	mgr.OnShutdown(func(ctx context.Context, wg *sync.WaitGroup) {
		closeSource()
	})
	mgr.OnShutdown(func(ctx context.Context, wg *sync.WaitGroup) {
		_ = jnl.Close()
	})

	if *once {
		err := engine.RunOnce(ctx)
		cancel()
		shutdownWithTimeout(mgr)
		if err != nil {
			logger.Errorf("cycle: %v", err)
			os.Exit(1)
		}
		return
	}

	go func() {
		stopCh := make(chan os.Signal, 1)
		signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
		<-stopCh
		logger.Info("signal received, stopping")
		cancel()
	}()

	if err := engine.Run(ctx); err != nil && err != context.Canceled {
		logger.Errorf("feeder stopped: %v", err)
	}
	shutdownWithTimeout(mgr)
}

func shutdownWithTimeout(mgr *shutdown.Manager) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	mgr.Shutdown(ctx)
}

// buildSource prefers the websocket stream when configured and falls back to
// cycle-driven REST reads.
func buildSource(cfg *config.Config) (ports.QuoteSource, func(), error) {
	symbols := make([]string, 0, len(cfg.Tokens))
	for _, tok := range cfg.Tokens {
		symbols = append(symbols, tok.Symbol)
	}

	if cfg.Feed.StreamURL != "" {
		stream := feeds.NewStreamSource(&feeds.StreamConfig{
			URL:       cfg.Feed.StreamURL,
			Symbols:   symbols,
			Reconnect: true,
		})
		if err := stream.Connect(context.Background()); err != nil {
			return nil, nil, err
		}
		return stream, stream.Close, nil
	}

	rest := feeds.NewRestSource(cfg.Feed.RestBaseURL,
		time.Duration(cfg.Feed.TimeoutSeconds)*time.Second, cfg.Feed.RetryCount)
	return rest, func() {}, nil
}

func bigChainID(cfg *config.Config) *big.Int {
	return big.NewInt(cfg.ChainID)
}
