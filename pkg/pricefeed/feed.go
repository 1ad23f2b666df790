// Package pricefeed subscribes to the Polymarket CLOB market channel and
// writes the latest price of each token into a Sink.
package pricefeed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/mselser95/polymarket-lens/pkg/types"
	"go.uber.org/zap"
)

// Sink receives token prices. cache.PriceCache implements it.
type Sink interface {
	StorePrice(tokenID string, price float64)
}

// Config holds price feed configuration.
type Config struct {
	URL                   string
	DialTimeout           time.Duration
	PongTimeout           time.Duration // read deadline; zero disables
	PingInterval          time.Duration
	WriteTimeout          time.Duration
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
	ReconnectBackoffMult  float64
	Sink                  Sink
	Logger                *zap.Logger
}

// Feed manages a single websocket connection to the market channel.
type Feed struct {
	cfg         Config
	sink        Sink
	logger      *zap.Logger
	reconnector *Reconnector

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	lost   chan struct{}

	mu          sync.RWMutex
	conn        *websocket.Conn
	closed      bool
	sentInitial bool
	subscribed  map[string]bool

	writeMu         sync.Mutex
	connected       atomic.Bool
	connectionStart atomic.Int64
}

// New creates a new Feed.
func New(cfg Config) *Feed {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Feed{
		cfg:    cfg,
		sink:   cfg.Sink,
		logger: cfg.Logger,
		reconnector: NewReconnector(ReconnectConfig{
			InitialDelay:      cfg.ReconnectInitialDelay,
			MaxDelay:          cfg.ReconnectMaxDelay,
			BackoffMultiplier: cfg.ReconnectBackoffMult,
			JitterPercent:     0.2,
		}, cfg.Logger),
		ctx:        ctx,
		cancel:     cancel,
		lost:       make(chan struct{}, 1),
		subscribed: make(map[string]bool),
	}
}

// Start dials the feed and starts the read, ping and reconnect loops. A
// failed first dial is returned, and the reconnect loop keeps retrying it
// until Close.
func (f *Feed) Start() error {
	f.logger.Info("price-feed-starting", zap.String("url", f.cfg.URL))

	f.wg.Add(2)
	go f.pingLoop()
	go f.reconnectLoop()

	if err := f.connect(f.ctx); err != nil {
		select {
		case f.lost <- struct{}{}:
		default:
		}
		return fmt.Errorf("initial connection: %w", err)
	}

	return nil
}

// connect dials, resubscribes every known token and starts a read loop for
// the new connection.
func (f *Feed) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: f.cfg.DialTimeout}

	conn, _, err := dialer.DialContext(ctx, f.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	if f.cfg.PongTimeout > 0 {
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(f.cfg.PongTimeout))
		})
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		_ = conn.Close()
		return context.Canceled
	}
	tokens := make([]string, 0, len(f.subscribed))
	for tokenID := range f.subscribed {
		tokens = append(tokens, tokenID)
	}
	f.conn = conn
	f.sentInitial = len(tokens) > 0
	f.wg.Add(1)
	f.mu.Unlock()

	now := time.Now()
	f.connected.Store(true)
	f.connectionStart.Store(now.Unix())
	ActiveConnections.Set(1)

	go f.readLoop(conn)

	if len(tokens) > 0 {
		msg := map[string]any{"assets_ids": tokens, "type": "market"}
		if err := f.write(conn, msg); err != nil {
			// closing ends the read loop, which signals another reconnect
			f.logger.Warn("price-feed-resubscribe-failed", zap.Error(err))
			_ = conn.Close()
			return nil
		}
		f.logger.Info("price-feed-resubscribed", zap.Int("count", len(tokens)))
	}

	f.logger.Info("price-feed-connected")
	return nil
}

// Subscribe adds tokens to the feed. Tokens subscribed while disconnected
// are sent on the next connection.
func (f *Feed) Subscribe(ctx context.Context, tokenIDs []string) error {
	if len(tokenIDs) == 0 {
		return nil
	}

	f.mu.Lock()
	newTokens := make([]string, 0, len(tokenIDs))
	for _, tokenID := range tokenIDs {
		if tokenID != "" && !f.subscribed[tokenID] {
			newTokens = append(newTokens, tokenID)
			f.subscribed[tokenID] = true
		}
	}
	if len(newTokens) == 0 {
		f.mu.Unlock()
		f.logger.Debug("all-tokens-already-subscribed")
		return nil
	}

	conn := f.conn
	var msg map[string]any
	if f.sentInitial {
		msg = map[string]any{"assets_ids": newTokens, "operation": "subscribe"}
	} else {
		msg = map[string]any{"assets_ids": newTokens, "type": "market"}
		f.sentInitial = conn != nil
	}
	total := len(f.subscribed)
	f.mu.Unlock()

	SubscriptionCount.Set(float64(total))
	if conn == nil {
		f.logger.Debug("price-feed-subscription-deferred", zap.Int("count", len(newTokens)))
		return nil
	}

	if err := f.write(conn, msg); err != nil {
		f.mu.Lock()
		for _, tokenID := range newTokens {
			delete(f.subscribed, tokenID)
		}
		total = len(f.subscribed)
		f.mu.Unlock()

		SubscriptionCount.Set(float64(total))
		return fmt.Errorf("write subscribe message: %w", err)
	}

	f.logger.Info("subscribed-to-tokens",
		zap.Int("new-count", len(newTokens)),
		zap.Int("total-count", total))
	return nil
}

func (f *Feed) write(conn *websocket.Conn, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(f.cfg.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// readLoop reads frames from one connection until it fails.
func (f *Feed) readLoop(conn *websocket.Conn) {
	defer f.wg.Done()

	for {
		if f.cfg.PongTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(f.cfg.PongTimeout))
		}

		_, frame, err := conn.ReadMessage()
		if err != nil {
			if f.ctx.Err() == nil {
				f.logger.Warn("price-feed-read-error", zap.Error(err))
			}
			f.disconnected(conn)
			return
		}

		f.handleFrame(frame)
	}
}

func (f *Feed) disconnected(conn *websocket.Conn) {
	if start := f.connectionStart.Load(); start > 0 {
		ConnectionDuration.Observe(time.Since(time.Unix(start, 0)).Seconds())
	}

	f.mu.Lock()
	if f.conn == conn {
		f.conn = nil
		f.sentInitial = false
	}
	f.mu.Unlock()
	_ = conn.Close()

	f.connected.Store(false)
	ActiveConnections.Set(0)

	select {
	case f.lost <- struct{}{}:
	default:
	}
}

// handleFrame writes every price carried by a frame to the sink.
func (f *Feed) handleFrame(frame []byte) {
	events, err := splitFrame(frame)
	if err != nil {
		MessagesDroppedTotal.WithLabelValues("unparseable").Inc()
		f.logger.Debug("price-feed-unparseable-frame",
			zap.Error(err),
			zap.Int("bytes", len(frame)))
		return
	}

	for _, event := range events {
		kind, ok := eventType(event)
		if !ok {
			MessagesDroppedTotal.WithLabelValues("control").Inc()
			continue
		}
		MessagesReceivedTotal.WithLabelValues(kind).Inc()

		quotes, err := parseQuotes(kind, event)
		if err != nil {
			MessagesDroppedTotal.WithLabelValues("malformed").Inc()
			f.logger.Debug("price-feed-malformed-event",
				zap.String("event-type", kind),
				zap.Error(err))
			continue
		}

		for _, q := range quotes {
			if q.TokenID == "" || !types.ValidPrice(q.Price) {
				MessagesDroppedTotal.WithLabelValues("invalid_price").Inc()
				continue
			}
			if f.sink != nil {
				f.sink.StorePrice(q.TokenID, q.Price)
			}
			PricesStoredTotal.WithLabelValues(q.EventType).Inc()
		}
	}
}

// pingLoop sends periodic ping control frames.
func (f *Feed) pingLoop() {
	defer f.wg.Done()

	ticker := time.NewTicker(f.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.ctx.Done():
			return
		case <-ticker.C:
			f.mu.RLock()
			conn := f.conn
			f.mu.RUnlock()
			if conn == nil {
				continue
			}

			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
				f.logger.Warn("price-feed-ping-error", zap.Error(err))
			}
		}
	}
}

// reconnectLoop redials after every lost connection.
func (f *Feed) reconnectLoop() {
	defer f.wg.Done()

	for {
		select {
		case <-f.ctx.Done():
			return
		case <-f.lost:
		}

		f.logger.Warn("price-feed-connection-lost")

		if err := f.reconnector.Reconnect(f.ctx, f.connect); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			f.logger.Error("price-feed-reconnect-failed", zap.Error(err))
		}
	}
}

// Connected reports whether the feed currently holds a connection.
func (f *Feed) Connected() bool {
	return f.connected.Load()
}

// SubscribedCount returns the number of subscribed tokens.
func (f *Feed) SubscribedCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subscribed)
}

// Close stops the feed and waits for its loops to exit.
func (f *Feed) Close() error {
	f.logger.Info("closing-price-feed")

	f.mu.Lock()
	f.closed = true
	conn := f.conn
	f.mu.Unlock()

	f.cancel()
	if conn != nil {
		_ = conn.Close()
	}

	f.wg.Wait()
	ActiveConnections.Set(0)

	f.logger.Info("price-feed-closed")
	return nil
}
