// reservectl is the operator's command line for a deployed reserve: trading
// switch, balances, rate reads, withdrawals, and sanity-rate inspection.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/joho/godotenv"

	"github.com/reservebot/goreserve/internal/operator"
	"github.com/reservebot/goreserve/pkg/config"
	"github.com/reservebot/goreserve/pkg/logger"
	"github.com/reservebot/goreserve/reserve"
	"github.com/reservebot/goreserve/reserve/contracts"
)

const usage = `usage: reservectl [-config file] [-wait] <command> [args]

commands:
  status                                trade switch, addresses, sanity mode
  enable-trade                          turn the trading switch on
  disable-trade                         turn the trading switch off
  balance <token>                       reserve inventory of a token
  buy-rate <token> [qty]                current buy rate (qty in wei, default 1e18)
  sell-rate <token> [qty]               current sell rate
  sanity-rate <src> <dest>              sanity reference rate for a pair
  reasonable-diff <token>               sanity deviation bound in bps
  withdraw <token> <amount> <dest>      move inventory out (amount in wei)
  approve-withdraw <token> <addr>       whitelist a withdrawal destination
  revoke-withdraw <token> <addr>        remove a destination from the whitelist

tokens may be configured symbols or hex addresses.`

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "config.yaml", "config file path")
	wait := flag.Bool("wait", false, "wait for mutating transactions to be mined")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadFromFile(*configPath)
	if err != nil {
		fatal(err)
	}
	// CLI output goes to stdout; keep the log stream quiet unless asked.
	if err := logger.Init(logger.Config{Level: "warn", OutputFile: cfg.LogFile}); err != nil {
		fatal(err)
	}

	client, err := contracts.Dial(cfg.RPCURL)
	if err != nil {
		fatal(fmt.Errorf("dial %s: %w", cfg.RPCURL, err))
	}
	defer client.Close()

	rsv, err := reserve.New(client, big.NewInt(cfg.ChainID), cfg.Addresses)
	if err != nil {
		fatal(err)
	}

	app := &cli{cfg: cfg, client: client, rsv: rsv, wait: *wait}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := app.run(ctx, args[0], args[1:]); err != nil {
		fatal(err)
	}
}

type cli struct {
	cfg    *config.Config
	client contracts.Backend
	rsv    *reserve.Reserve
	wait   bool
}

func (c *cli) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "status":
		return c.status(ctx)
	case "enable-trade":
		return c.switchTrade(ctx, true)
	case "disable-trade":
		return c.switchTrade(ctx, false)
	case "balance":
		return c.balance(ctx, args)
	case "buy-rate":
		return c.rate(ctx, args, true)
	case "sell-rate":
		return c.rate(ctx, args, false)
	case "sanity-rate":
		return c.sanityRate(ctx, args)
	case "reasonable-diff":
		return c.reasonableDiff(ctx, args)
	case "withdraw":
		return c.withdraw(ctx, args)
	case "approve-withdraw":
		return c.approveWithdraw(ctx, args, true)
	case "revoke-withdraw":
		return c.approveWithdraw(ctx, args, false)
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

func (c *cli) status(ctx context.Context) error {
	enabled, err := c.rsv.TradeEnabled(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("reserve:           %s\n", c.cfg.Addresses.Reserve)
	fmt.Printf("conversion rates:  %s\n", c.cfg.Addresses.ConversionRates)
	if c.rsv.SanityConfigured() {
		fmt.Printf("sanity rates:      %s\n", c.cfg.Addresses.SanityRates)
	} else {
		fmt.Printf("sanity rates:      (not configured)\n")
	}
	fmt.Printf("trade enabled:     %v\n", enabled)

	// the contract's own registry can diverge from the config
	if network, err := c.rsv.NetworkAddress(ctx); err == nil {
		fmt.Printf("on-chain network:  %s\n", network.Hex())
	}
	if rates, err := c.rsv.ConversionRatesAddress(ctx); err == nil {
		fmt.Printf("on-chain rates:    %s\n", rates.Hex())
	}
	return nil
}

func (c *cli) switchTrade(ctx context.Context, enable bool) error {
	acct, err := operator.Load(c.cfg)
	if err != nil {
		return err
	}
	send := c.rsv.DisableTrade
	if enable {
		send = c.rsv.EnableTrade
	}
	tx, err := send(ctx, acct, nil)
	if err != nil {
		return err
	}
	return c.report(ctx, tx)
}

func (c *cli) balance(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: balance <token>")
	}
	token, err := c.resolveToken(args[0])
	if err != nil {
		return err
	}
	bal, err := c.rsv.Balance(ctx, token)
	if err != nil {
		return err
	}
	fmt.Printf("%s wei\n", bal)
	return nil
}

func (c *cli) rate(ctx context.Context, args []string, buy bool) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("usage: buy-rate|sell-rate <token> [qty]")
	}
	token, err := c.resolveToken(args[0])
	if err != nil {
		return err
	}
	qty := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	if len(args) == 2 {
		qty, err = parseBig(args[1])
		if err != nil {
			return err
		}
	}
	read := c.rsv.SellRate
	if buy {
		read = c.rsv.BuyRate
	}
	rate, err := read(ctx, token, qty, nil)
	if err != nil {
		return err
	}
	fmt.Println(rate)
	return nil
}

func (c *cli) sanityRate(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: sanity-rate <src> <dest>")
	}
	src, err := c.resolveToken(args[0])
	if err != nil {
		return err
	}
	dest, err := c.resolveToken(args[1])
	if err != nil {
		return err
	}
	rate, configured, err := c.rsv.SanityRate(ctx, src, dest)
	if err != nil {
		return err
	}
	if !configured {
		fmt.Println("sanity rates not configured for this reserve")
		return nil
	}
	fmt.Println(rate)
	return nil
}

func (c *cli) reasonableDiff(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: reasonable-diff <token>")
	}
	token, err := c.resolveToken(args[0])
	if err != nil {
		return err
	}
	diff, configured, err := c.rsv.ReasonableDiff(ctx, token)
	if err != nil {
		return err
	}
	if !configured {
		fmt.Println("sanity rates not configured for this reserve")
		return nil
	}
	fmt.Printf("%s bps\n", diff)
	return nil
}

func (c *cli) withdraw(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: withdraw <token> <amount> <dest>")
	}
	acct, err := operator.Load(c.cfg)
	if err != nil {
		return err
	}
	token, err := c.resolveToken(args[0])
	if err != nil {
		return err
	}
	amount, err := parseBig(args[1])
	if err != nil {
		return err
	}
	if !common.IsHexAddress(args[2]) {
		return fmt.Errorf("bad destination address %q", args[2])
	}
	tx, err := c.rsv.Withdraw(ctx, acct, token, amount, common.HexToAddress(args[2]), nil)
	if err != nil {
		return err
	}
	return c.report(ctx, tx)
}

func (c *cli) approveWithdraw(ctx context.Context, args []string, approve bool) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: approve-withdraw|revoke-withdraw <token> <addr>")
	}
	acct, err := operator.Load(c.cfg)
	if err != nil {
		return err
	}
	token, err := c.resolveToken(args[0])
	if err != nil {
		return err
	}
	if !common.IsHexAddress(args[1]) {
		return fmt.Errorf("bad address %q", args[1])
	}
	addr := common.HexToAddress(args[1])

	send := c.rsv.DisapproveWithdrawAddress
	if approve {
		send = c.rsv.ApproveWithdrawAddress
	}
	tx, err := send(ctx, acct, token, addr, nil)
	if err != nil {
		return err
	}
	return c.report(ctx, tx)
}

// report prints the submitted hash and optionally waits for the receipt.
func (c *cli) report(ctx context.Context, tx *ethtypes.Transaction) error {
	fmt.Printf("submitted %s\n", tx.Hash().Hex())
	if !c.wait {
		return nil
	}
	receipt, err := contracts.WaitMined(ctx, c.client, tx)
	if err != nil {
		return fmt.Errorf("waiting for receipt: %w", err)
	}
	if receipt.Status == 0 {
		return fmt.Errorf("transaction reverted in block %s", receipt.BlockNumber)
	}
	fmt.Printf("mined in block %s\n", receipt.BlockNumber)
	return nil
}

func (c *cli) resolveToken(ref string) (common.Address, error) {
	if tok, ok := c.cfg.Token(strings.ToUpper(strings.TrimSpace(ref))); ok {
		return common.HexToAddress(tok.Address), nil
	}
	if common.IsHexAddress(ref) {
		return common.HexToAddress(ref), nil
	}
	return common.Address{}, fmt.Errorf("unknown token %q (not configured, not an address)", ref)
}

func parseBig(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok || n.Sign() <= 0 {
		return nil, fmt.Errorf("bad amount %q", s)
	}
	return n, nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err.Error())
	os.Exit(1)
}
