package feeds

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/reservebot/goreserve/pkg/cache"
	"github.com/reservebot/goreserve/pkg/logger"
)

// StreamConfig configures the ticker stream. Zero fields take defaults from
// DefaultStreamConfig.
type StreamConfig struct {
	URL            string
	Symbols        []string
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	Reconnect      bool
	ReconnectDelay time.Duration
	MaxReconnect   int
	QuoteTTL       time.Duration
}

func DefaultStreamConfig(url string, symbols []string) *StreamConfig {
	return &StreamConfig{
		URL:            url,
		Symbols:        symbols,
		PingInterval:   5 * time.Second,
		WriteTimeout:   10 * time.Second,
		ReadTimeout:    60 * time.Second,
		Reconnect:      true,
		ReconnectDelay: 5 * time.Second,
		MaxReconnect:   10,
		QuoteTTL:       2 * time.Minute,
	}
}

// StreamSource keeps a websocket ticker subscription alive and caches the
// latest quote per symbol. Quotes expire after QuoteTTL so a dead stream
// reads as "no data", not stale prices.
type StreamSource struct {
	cfg    *StreamConfig
	quotes *cache.InMemoryCache[string, Quote]

	mu             sync.Mutex
	conn           *websocket.Conn
	connected      bool
	reconnectCount int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewStreamSource(cfg *StreamConfig) *StreamSource {
	base := DefaultStreamConfig(cfg.URL, cfg.Symbols)
	if cfg.PingInterval > 0 {
		base.PingInterval = cfg.PingInterval
	}
	if cfg.WriteTimeout > 0 {
		base.WriteTimeout = cfg.WriteTimeout
	}
	if cfg.ReadTimeout > 0 {
		base.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.ReconnectDelay > 0 {
		base.ReconnectDelay = cfg.ReconnectDelay
	}
	if cfg.MaxReconnect > 0 {
		base.MaxReconnect = cfg.MaxReconnect
	}
	if cfg.QuoteTTL > 0 {
		base.QuoteTTL = cfg.QuoteTTL
	}
	base.Reconnect = cfg.Reconnect

	return &StreamSource{
		cfg:    base,
		quotes: cache.NewInMemoryCache[string, Quote](base.QuoteTTL),
	}
}

type subscribeMsg struct {
	Op      string   `json:"op"`
	Symbols []string `json:"symbols"`
}

type tickerMsg struct {
	Symbol    string `json:"symbol"`
	Price     string `json:"price"`
	Timestamp int64  `json:"timestamp"`
}

// Connect dials, subscribes, and starts the read and ping loops.
func (s *StreamSource) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected {
		return nil
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	if err := s.dialAndSubscribe(); err != nil {
		s.cancel()
		return err
	}

	s.wg.Add(2)
	go s.readLoop()
	go s.pingLoop()
	return nil
}

func (s *StreamSource) dialAndSubscribe() error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(s.ctx, s.cfg.URL, nil)
	if err != nil {
		return errors.Wrapf(err, "feeds: dial %s", s.cfg.URL)
	}

	sub := subscribeMsg{Op: "subscribe", Symbols: s.cfg.Symbols}
	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if err := conn.WriteJSON(sub); err != nil {
		_ = conn.Close()
		return errors.Wrap(err, "feeds: subscribe")
	}

	s.conn = conn
	s.connected = true
	return nil
}

// Close stops the loops and closes the connection.
func (s *StreamSource) Close() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.connected = false
	s.mu.Unlock()
	s.wg.Wait()
}

// Latest returns the freshest cached quote for symbol.
func (s *StreamSource) Latest(symbol string) (Quote, bool) {
	return s.quotes.Get(symbol)
}

// Quotes satisfies the feeder's quote-source port from the cache; a symbol
// without a fresh quote is absent from the result.
func (s *StreamSource) Quotes(ctx context.Context, symbols []string) (map[string]Quote, error) {
	out := make(map[string]Quote, len(symbols))
	for _, sym := range symbols {
		if q, ok := s.quotes.Get(sym); ok {
			out[sym] = q
		}
	}
	return out, nil
}

func (s *StreamSource) readLoop() {
	defer s.wg.Done()

	for {
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()
		if conn == nil {
			return
		}

		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
			}
			if !s.tryReconnect() {
				return
			}
			continue
		}

		var msg tickerMsg
		if err := json.Unmarshal(data, &msg); err != nil || msg.Symbol == "" {
			continue
		}
		price, err := decimal.NewFromString(msg.Price)
		if err != nil {
			logger.Warnf("feeds: bad streamed price %q for %s", msg.Price, msg.Symbol)
			continue
		}
		s.quotes.Set(msg.Symbol, Quote{
			Symbol:    msg.Symbol,
			Price:     price,
			Timestamp: time.Unix(msg.Timestamp, 0).UTC(),
		}, 0)
		s.mu.Lock()
		s.reconnectCount = 0
		s.mu.Unlock()
	}
}

func (s *StreamSource) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			conn := s.conn
			s.mu.Unlock()
			if conn == nil {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Debugf("feeds: ping failed: %v", err)
			}
		}
	}
}

// tryReconnect redials with a delay, up to MaxReconnect consecutive
// attempts. Subscriptions are re-established as part of the dial.
func (s *StreamSource) tryReconnect() bool {
	if !s.cfg.Reconnect {
		return false
	}

	s.mu.Lock()
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.connected = false
	s.mu.Unlock()

	for {
		s.mu.Lock()
		attempts := s.reconnectCount
		s.mu.Unlock()
		if attempts >= s.cfg.MaxReconnect {
			logger.Errorf("feeds: giving up after %d reconnect attempts", attempts)
			return false
		}

		select {
		case <-s.ctx.Done():
			return false
		case <-time.After(s.cfg.ReconnectDelay):
		}

		s.mu.Lock()
		s.reconnectCount++
		err := s.dialAndSubscribe()
		s.mu.Unlock()
		if err == nil {
			logger.Infof("feeds: stream reconnected")
			return true
		}
		logger.Warnf("feeds: reconnect failed: %v", err)
	}
}
