package main

import (
	"context"
	"flag"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"

	"github.com/reservebot/goreserve/internal/controlplane/server"
	"github.com/reservebot/goreserve/internal/journal"
	"github.com/reservebot/goreserve/internal/metrics"
	"github.com/reservebot/goreserve/internal/operator"
	"github.com/reservebot/goreserve/pkg/config"
	"github.com/reservebot/goreserve/pkg/logger"
	"github.com/reservebot/goreserve/reserve"
	"github.com/reservebot/goreserve/reserve/contracts"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "config.yaml", "config file path")
	listen := flag.String("listen", "", "override listen address from config")
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
	addr := cfg.Server.Listen
	if *listen != "" {
		addr = *listen
	}

	client, err := contracts.Dial(cfg.RPCURL)
	if err != nil {
		logger.Errorf("dial %s: %v", cfg.RPCURL, err)
		os.Exit(1)
	}
	defer client.Close()

	rsv, err := reserve.New(client, big.NewInt(cfg.ChainID), cfg.Addresses)
	if err != nil {
		logger.Errorf("reserve: %v", err)
		os.Exit(1)
	}

	// A server without a key still serves every read route.
	acct, err := operator.LoadOptional(cfg)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	if acct == nil {
		logger.Warn("no operator key loaded; mutating routes disabled")
	}

	jnl, err := journal.Open(cfg.Server.JournalDBPath)
	if err != nil {
		logger.Errorf("journal: %v", err)
		os.Exit(1)
	}
	defer jnl.Close()

	tokens := make([]server.Token, 0, len(cfg.Tokens))
	for _, tok := range cfg.Tokens {
		tokens = append(tokens, server.Token{
			Symbol:   tok.Symbol,
			Address:  common.HexToAddress(tok.Address),
			Decimals: tok.Decimals,
		})
	}

	srv, err := server.New(server.Config{Operator: acct, Tokens: tokens}, server.Deps{
		Trade:    rsv,
		Balances: rsv,
		Rates:    rsv,
		Withdraw: rsv,
		Sanity:   rsv,
		Ops:      jnl,
		History:  jnl,
	})
	if err != nil {
		logger.Errorf("server: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.MetricsListen != "" {
		if _, err := metrics.StartAsync(ctx, cfg.MetricsListen); err != nil {
			logger.Warnf("metrics listener: %v", err)
		}
	}

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Infof("control plane listening on %s", addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("http server: %v", err)
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	<-stopCh

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	logger.Info("server stopped")
}
