// Package server is the operator control plane: an HTTP API for reading the
// reserve's state and driving its mutating operations from tooling or a
// browser. Every mutating call is journaled.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/reservebot/goreserve/internal/ports"
	"github.com/reservebot/goreserve/reserve/types"
)

// Token is one symbol the API resolves for callers.
type Token struct {
	Symbol   string
	Address  common.Address
	Decimals int
}

// Config holds the server's static state. A nil Operator disables the
// mutating routes; reads keep working.
type Config struct {
	Operator *types.Account
	Tokens   []Token
}

// Deps are the capability ports the handlers call. Ops and History may be
// nil; the server then runs without an audit trail.
type Deps struct {
	Trade    ports.TradeSwitcher
	Balances ports.BalanceReader
	Rates    ports.RateReader
	Withdraw ports.Withdrawer
	Sanity   ports.SanityOps
	Ops      ports.OperationJournal
	History  ports.JournalReader
}

type Server struct {
	cfg     Config
	deps    Deps
	tokens  map[string]Token
	started time.Time
}

func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Trade == nil || deps.Balances == nil || deps.Rates == nil {
		return nil, errors.New("server: trade, balances and rates ports are required")
	}
	tokens := make(map[string]Token, len(cfg.Tokens))
	for _, tok := range cfg.Tokens {
		tokens[strings.ToUpper(tok.Symbol)] = tok
	}
	return &Server{
		cfg:     cfg,
		deps:    deps,
		tokens:  tokens,
		started: time.Now(),
	}, nil
}

func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.wrap(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	api := r.Group("/api/v1")
	api.GET("/status", s.wrap(s.handleStatus))
	api.GET("/balances", s.wrap(s.handleBalances))
	api.GET("/rates", s.wrap(s.handleRates))
	api.GET("/journal", s.wrap(s.handleJournal))

	api.POST("/trade/enable", s.wrap(s.handleTradeEnable))
	api.POST("/trade/disable", s.wrap(s.handleTradeDisable))
	api.POST("/withdraw", s.wrap(s.handleWithdraw))
	api.POST("/sanity/rates", s.wrap(s.handleSanityRates))

	return r
}

// wrap adapts net/http handlers to gin so the handlers stay framework-free.
func (s *Server) wrap(h func(http.ResponseWriter, *http.Request)) gin.HandlerFunc {
	return func(c *gin.Context) {
		h(c.Writer, c.Request)
	}
}

// resolveToken accepts a configured symbol or a raw hex address.
func (s *Server) resolveToken(ref string) (Token, bool) {
	ref = strings.TrimSpace(ref)
	if tok, ok := s.tokens[strings.ToUpper(ref)]; ok {
		return tok, true
	}
	if common.IsHexAddress(ref) {
		addr := common.HexToAddress(ref)
		return Token{Symbol: addr.Hex(), Address: addr, Decimals: 18}, true
	}
	return Token{}, false
}

func requestCtx(r *http.Request, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), d)
}
