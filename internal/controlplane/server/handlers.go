package server

import (
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var weiPerUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestCtx(r, 5*time.Second)
	defer cancel()

	enabled, err := s.deps.Trade.TradeEnabled(ctx)
	if err != nil {
		writeError(w, 502, fmt.Sprintf("read trade flag: %v", err))
		return
	}

	operator := ""
	if s.cfg.Operator != nil {
		operator = s.cfg.Operator.Address.Hex()
	}
	symbols := make([]string, 0, len(s.cfg.Tokens))
	for _, tok := range s.cfg.Tokens {
		symbols = append(symbols, tok.Symbol)
	}

	sanity := false
	if s.deps.Sanity != nil {
		sanity = s.deps.Sanity.SanityConfigured()
	}

	writeJSON(w, 200, map[string]any{
		"trade_enabled":     enabled,
		"sanity_configured": sanity,
		"operator":          operator,
		"tokens":            symbols,
		"uptime_seconds":    int(time.Since(s.started).Seconds()),
	})
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	refs := make([]string, 0, len(s.cfg.Tokens))
	if q := strings.TrimSpace(r.URL.Query().Get("tokens")); q != "" {
		refs = strings.Split(q, ",")
	} else {
		for _, tok := range s.cfg.Tokens {
			refs = append(refs, tok.Symbol)
		}
	}

	ctx, cancel := requestCtx(r, 10*time.Second)
	defer cancel()

	balances := make(map[string]string, len(refs))
	for _, ref := range refs {
		tok, ok := s.resolveToken(ref)
		if !ok {
			writeError(w, 400, fmt.Sprintf("unknown token %q", ref))
			return
		}
		bal, err := s.deps.Balances.Balance(ctx, tok.Address)
		if err != nil {
			writeError(w, 502, fmt.Sprintf("balance of %s: %v", tok.Symbol, err))
			return
		}
		balances[tok.Symbol] = bal.String()
	}
	writeJSON(w, 200, map[string]any{"balances": balances})
}

func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	ref := strings.TrimSpace(r.URL.Query().Get("token"))
	if ref == "" {
		writeError(w, 400, "token query parameter is required")
		return
	}
	tok, ok := s.resolveToken(ref)
	if !ok {
		writeError(w, 400, fmt.Sprintf("unknown token %q", ref))
		return
	}

	qty := new(big.Int).Set(weiPerUnit)
	if q := strings.TrimSpace(r.URL.Query().Get("qty")); q != "" {
		parsed, ok := new(big.Int).SetString(q, 10)
		if !ok || parsed.Sign() <= 0 {
			writeError(w, 400, fmt.Sprintf("bad qty %q", q))
			return
		}
		qty = parsed
	}

	ctx, cancel := requestCtx(r, 10*time.Second)
	defer cancel()

	buy, err := s.deps.Rates.BuyRate(ctx, tok.Address, qty, nil)
	if err != nil {
		writeError(w, 502, fmt.Sprintf("buy rate: %v", err))
		return
	}
	sell, err := s.deps.Rates.SellRate(ctx, tok.Address, qty, nil)
	if err != nil {
		writeError(w, 502, fmt.Sprintf("sell rate: %v", err))
		return
	}
	writeJSON(w, 200, map[string]any{
		"token": tok.Symbol,
		"qty":   qty.String(),
		"buy":   buy.String(),
		"sell":  sell.String(),
	})
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeError(w, 404, "journal not configured")
		return
	}
	limit := 50
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	ctx, cancel := requestCtx(r, 5*time.Second)
	defer cancel()
	records, err := s.deps.History.Recent(ctx, limit)
	if err != nil {
		writeError(w, 500, fmt.Sprintf("journal read: %v", err))
		return
	}
	writeJSON(w, 200, map[string]any{"operations": records})
}

func (s *Server) handleTradeEnable(w http.ResponseWriter, r *http.Request) {
	s.switchTrade(w, r, true)
}

func (s *Server) handleTradeDisable(w http.ResponseWriter, r *http.Request) {
	s.switchTrade(w, r, false)
}

func (s *Server) switchTrade(w http.ResponseWriter, r *http.Request, enable bool) {
	if s.cfg.Operator == nil {
		writeError(w, 503, "no operator key loaded")
		return
	}
	ctx, cancel := requestCtx(r, 30*time.Second)
	defer cancel()

	kind := "disable_trade"
	send := s.deps.Trade.DisableTrade
	if enable {
		kind = "enable_trade"
		send = s.deps.Trade.EnableTrade
	}
	tx, err := send(ctx, s.cfg.Operator, nil)
	if err != nil {
		writeError(w, 502, fmt.Sprintf("%s: %v", kind, err))
		return
	}
	recordID := s.journalOp(r, kind, "", tx.Hash().Hex(), "")
	writeJSON(w, 202, map[string]any{"ok": true, "tx_hash": tx.Hash().Hex(), "record_id": recordID})
}

type withdrawRequest struct {
	Token       string `json:"token"`
	Amount      string `json:"amount"` // wei, base-10
	Destination string `json:"destination"`
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Operator == nil {
		writeError(w, 503, "no operator key loaded")
		return
	}
	if s.deps.Withdraw == nil {
		writeError(w, 503, "withdraw port not configured")
		return
	}

	var req withdrawRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, 400, err.Error())
		return
	}
	tok, ok := s.resolveToken(req.Token)
	if !ok {
		writeError(w, 400, fmt.Sprintf("unknown token %q", req.Token))
		return
	}
	amount, ok := new(big.Int).SetString(strings.TrimSpace(req.Amount), 10)
	if !ok || amount.Sign() <= 0 {
		writeError(w, 400, fmt.Sprintf("bad amount %q", req.Amount))
		return
	}
	if !common.IsHexAddress(req.Destination) {
		writeError(w, 400, fmt.Sprintf("bad destination %q", req.Destination))
		return
	}
	dest := common.HexToAddress(req.Destination)

	ctx, cancel := requestCtx(r, 30*time.Second)
	defer cancel()
	tx, err := s.deps.Withdraw.Withdraw(ctx, s.cfg.Operator, tok.Address, amount, dest, nil)
	if err != nil {
		writeError(w, 502, fmt.Sprintf("withdraw: %v", err))
		return
	}
	detail := fmt.Sprintf("%s wei to %s", amount, dest.Hex())
	recordID := s.journalOp(r, "withdraw", tok.Address.Hex(), tx.Hash().Hex(), detail)
	writeJSON(w, 202, map[string]any{"ok": true, "tx_hash": tx.Hash().Hex(), "record_id": recordID})
}

type sanityRatesRequest struct {
	Rates []struct {
		Token string `json:"token"`
		Rate  string `json:"rate"` // wei-scaled, base-10
	} `json:"rates"`
}

func (s *Server) handleSanityRates(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Operator == nil {
		writeError(w, 503, "no operator key loaded")
		return
	}
	if s.deps.Sanity == nil || !s.deps.Sanity.SanityConfigured() {
		writeError(w, 409, "sanity rates contract not configured")
		return
	}

	var req sanityRatesRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, 400, err.Error())
		return
	}
	if len(req.Rates) == 0 {
		writeError(w, 400, "rates must not be empty")
		return
	}

	srcs := make([]common.Address, len(req.Rates))
	rates := make([]*big.Int, len(req.Rates))
	for i, entry := range req.Rates {
		tok, ok := s.resolveToken(entry.Token)
		if !ok {
			writeError(w, 400, fmt.Sprintf("unknown token %q", entry.Token))
			return
		}
		rate, ok := new(big.Int).SetString(strings.TrimSpace(entry.Rate), 10)
		if !ok || rate.Sign() <= 0 {
			writeError(w, 400, fmt.Sprintf("bad rate %q for %s", entry.Rate, entry.Token))
			return
		}
		srcs[i] = tok.Address
		rates[i] = rate
	}

	ctx, cancel := requestCtx(r, 30*time.Second)
	defer cancel()
	tx, configured, err := s.deps.Sanity.SetSanityRates(ctx, s.cfg.Operator, srcs, rates, nil)
	if err != nil {
		writeError(w, 502, fmt.Sprintf("set sanity rates: %v", err))
		return
	}
	if !configured {
		writeError(w, 409, "sanity rates contract not configured")
		return
	}
	recordID := s.journalOp(r, "set_sanity_rates", "", tx.Hash().Hex(), fmt.Sprintf("%d tokens", len(srcs)))
	writeJSON(w, 202, map[string]any{"ok": true, "tx_hash": tx.Hash().Hex(), "record_id": recordID})
}

// journalOp records a mutating call; failures degrade to an empty record ID
// rather than failing the already-submitted operation.
func (s *Server) journalOp(r *http.Request, kind, token, txHash, detail string) string {
	if s.deps.Ops == nil {
		return ""
	}
	ctx, cancel := requestCtx(r, 5*time.Second)
	defer cancel()
	rec, err := s.deps.Ops.Insert(ctx, kind, token, txHash, detail)
	if err != nil {
		return ""
	}
	return rec.ID
}
