// rate-watcher-tui is a terminal dashboard over a deployed reserve: live buy
// and sell rates per configured token, with the sanity reference column when
// the reserve runs a sanity-rates contract.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/reservebot/goreserve/pkg/config"
	"github.com/reservebot/goreserve/pkg/logger"
	"github.com/reservebot/goreserve/reserve"
	"github.com/reservebot/goreserve/reserve/contracts"
)

// etherAddr is the pseudo-address the contracts use for ETH.
var etherAddr = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	symbolStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	buyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	sellStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)
)

type tokenRates struct {
	Symbol string
	Buy    *big.Int
	Sell   *big.Int
	Sanity *big.Int // nil when not configured or unavailable
	Err    error
}

type ratesMsg struct {
	rows      []tokenRates
	fetchedAt time.Time
}

type tickMsg time.Time

type model struct {
	rsv      *reserve.Reserve
	cfg      *config.Config
	interval time.Duration

	rows      []tokenRates
	fetchedAt time.Time
	fetching  bool
	err       error
}

func (m model) Init() tea.Cmd {
	return tea.Batch(fetchCmd(m.rsv, m.cfg), tickCmd(m.interval))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			if !m.fetching {
				m.fetching = true
				return m, fetchCmd(m.rsv, m.cfg)
			}
		}

	case tickMsg:
		if m.fetching {
			return m, tickCmd(m.interval)
		}
		m.fetching = true
		return m, tea.Batch(fetchCmd(m.rsv, m.cfg), tickCmd(m.interval))

	case ratesMsg:
		m.rows = msg.rows
		m.fetchedAt = msg.fetchedAt
		m.fetching = false
		m.err = nil
		return m, nil

	case error:
		m.err = msg
		m.fetching = false
		return m, nil
	}
	return m, nil
}

func (m model) View() string {
	var s strings.Builder

	mode := "no sanity bounds"
	if m.rsv.SanityConfigured() {
		mode = "sanity bounds active"
	}
	title := fmt.Sprintf("reserve %s | %s", shorten(m.cfg.Addresses.Reserve), mode)
	s.WriteString(headerStyle.Render(title))
	s.WriteString("\n\n")

	if m.err != nil {
		s.WriteString(fmt.Sprintf("error: %v\n\npress q to quit", m.err))
		return s.String()
	}
	if len(m.rows) == 0 {
		s.WriteString("loading rates...\n\npress q to quit")
		return s.String()
	}

	var table strings.Builder
	if m.rsv.SanityConfigured() {
		table.WriteString(fmt.Sprintf("%-8s %14s %14s %14s\n", "TOKEN", "BUY", "SELL", "SANITY"))
	} else {
		table.WriteString(fmt.Sprintf("%-8s %14s %14s\n", "TOKEN", "BUY", "SELL"))
	}
	for _, row := range m.rows {
		if row.Err != nil {
			table.WriteString(fmt.Sprintf("%-8s %s\n",
				symbolStyle.Render(row.Symbol), dimStyle.Render(row.Err.Error())))
			continue
		}
		line := fmt.Sprintf("%-8s %14s %14s",
			symbolStyle.Render(row.Symbol),
			buyStyle.Render(formatRate(row.Buy)),
			sellStyle.Render(formatRate(row.Sell)))
		if m.rsv.SanityConfigured() {
			line += fmt.Sprintf(" %14s", formatRate(row.Sanity))
		}
		table.WriteString(line + "\n")
	}
	s.WriteString(borderStyle.Render(table.String()))
	s.WriteString("\n\n")

	age := ""
	if !m.fetchedAt.IsZero() {
		age = fmt.Sprintf("updated %s ago", time.Since(m.fetchedAt).Round(time.Second))
	}
	if m.fetching {
		age += " (refreshing)"
	}
	s.WriteString(dimStyle.Render(age))
	s.WriteString("\n\npress r to refresh, q to quit")
	return s.String()
}

func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchCmd(rsv *reserve.Reserve, cfg *config.Config) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		qty := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
		rows := make([]tokenRates, 0, len(cfg.Tokens))
		for _, tok := range cfg.Tokens {
			addr := common.HexToAddress(tok.Address)
			row := tokenRates{Symbol: tok.Symbol}

			row.Buy, row.Err = rsv.BuyRate(ctx, addr, qty, nil)
			if row.Err == nil {
				row.Sell, row.Err = rsv.SellRate(ctx, addr, qty, nil)
			}
			if row.Err == nil && rsv.SanityConfigured() {
				if rate, ok, err := rsv.SanityRate(ctx, etherAddr, addr); err == nil && ok {
					row.Sanity = rate
				}
			}
			rows = append(rows, row)
		}
		return ratesMsg{rows: rows, fetchedAt: time.Now()}
	}
}

// formatRate renders a wei-scaled rate as a unit decimal.
func formatRate(rate *big.Int) string {
	if rate == nil {
		return "--"
	}
	return decimal.NewFromBigInt(rate, -18).StringFixed(6)
}

func shorten(addr string) string {
	if len(addr) > 12 {
		return addr[:8] + ".." + addr[len(addr)-4:]
	}
	return addr
}

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "config.yaml", "config file path")
	interval := flag.Duration("interval", 5*time.Second, "refresh interval")
	flag.Parse()

	cfg, err := config.LoadFromFile(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if err := logger.Init(logger.Config{Level: "warn"}); err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	// redirect the log stream to a file, stdout output would tear the UI
	logPath := cfg.LogFile
	if logPath == "" {
		logPath = filepath.Join("logs", "rate-watcher-tui.log")
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err == nil {
		if file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666); err == nil {
			logger.Logger.SetOutput(file)
			logger.Logger.SetFormatter(&logrus.TextFormatter{
				FullTimestamp:   true,
				TimestampFormat: "06-01-02 15:04:05",
				DisableColors:   true,
			})
		}
	}

	client, err := contracts.Dial(cfg.RPCURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "dial:", err)
		os.Exit(1)
	}
	defer client.Close()

	rsv, err := reserve.New(client, big.NewInt(cfg.ChainID), cfg.Addresses)
	if err != nil {
		fmt.Fprintln(os.Stderr, "reserve:", err)
		os.Exit(1)
	}

	p := tea.NewProgram(model{rsv: rsv, cfg: cfg, interval: *interval}, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "tui:", err)
		os.Exit(1)
	}
}
