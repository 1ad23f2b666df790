package discovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mselser95/polymarket-lens/pkg/types"
	"go.uber.org/zap"
)

// MarketSource is the read path the warmer keeps hot.
type MarketSource interface {
	FetchMarkets(ctx context.Context, q types.MarketQuery) (*types.MarketsResult, error)
}

// TokenSubscriber receives the outcome tokens of newly seen markets.
type TokenSubscriber interface {
	Subscribe(ctx context.Context, tokenIDs []string) error
}

// Subscription records a market whose tokens were handed to the subscriber.
type Subscription struct {
	MarketID     string
	MarketSlug   string
	Question     string
	TokenIDs     []string
	SubscribedAt time.Time
}

// Service warms the listing cache by polling the market source and hands
// new markets' tokens to the live price feed.
type Service struct {
	source       MarketSource
	subscriber   TokenSubscriber
	pollInterval time.Duration
	queries      []types.MarketQuery
	logger       *zap.Logger
	now          func() time.Time

	mu         sync.RWMutex
	subscribed map[string]*Subscription
}

// Config holds discovery service configuration.
type Config struct {
	Source       MarketSource
	Subscriber   TokenSubscriber // optional
	PollInterval time.Duration   // <= 0 disables polling
	MarketLimit  int
	Queries      []types.MarketQuery // defaults to the landing listing with MarketLimit
	Logger       *zap.Logger
	Clock        func() time.Time
}

// New creates a new discovery service.
func New(cfg *Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	queries := cfg.Queries
	if len(queries) == 0 {
		q := types.DefaultMarketQuery()
		if cfg.MarketLimit > 0 {
			q.Limit = cfg.MarketLimit
		}
		queries = []types.MarketQuery{q}
	}

	return &Service{
		source:       cfg.Source,
		subscriber:   cfg.Subscriber,
		pollInterval: cfg.PollInterval,
		queries:      queries,
		logger:       logger,
		now:          clock,
		subscribed:   make(map[string]*Subscription),
	}
}

// Run starts the polling loop and blocks until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	if s.pollInterval <= 0 {
		s.logger.Info("discovery-service-disabled")
		return nil
	}

	s.logger.Info("discovery-service-starting",
		zap.Duration("poll-interval", s.pollInterval),
		zap.Int("queries", len(s.queries)))

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	// Initial poll
	err := s.Poll(ctx)
	if err != nil {
		s.logger.Warn("initial-poll-failed", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("discovery-service-stopping")
			return ctx.Err()
		case <-ticker.C:
			err := s.Poll(ctx)
			if err != nil {
				s.logger.Warn("poll-failed", zap.Error(err))
			}
		}
	}
}

// Poll runs every warm-up query once and subscribes the tokens of markets
// not seen before. It returns the first query error after trying them all.
func (s *Service) Poll(ctx context.Context) error {
	start := time.Now()
	defer func() {
		PollDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	var firstErr error
	seen := 0
	var fresh []*Subscription

	for _, q := range s.queries {
		result, err := s.source.FetchMarkets(ctx, q)
		if err != nil {
			PollErrorsTotal.Inc()
			if firstErr == nil {
				firstErr = fmt.Errorf("fetch markets: %w", err)
			}
			continue
		}
		WarmupsTotal.WithLabelValues(string(result.Meta.CacheStatus)).Inc()
		seen += len(result.Markets)
		fresh = append(fresh, s.identifyNewMarkets(result.Markets)...)
	}

	MarketsDiscoveredTotal.Add(float64(seen))
	s.subscribe(ctx, fresh)

	s.logger.Debug("poll-complete",
		zap.Int("total-markets", seen),
		zap.Int("new-markets", len(fresh)),
		zap.Duration("duration", time.Since(start)))

	return firstErr
}

// identifyNewMarkets records and returns markets that haven't been seen yet.
// Markets without token ids are skipped.
func (s *Service) identifyNewMarkets(markets []types.Market) []*Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Subscription
	for i := range markets {
		market := &markets[i]
		if _, exists := s.subscribed[market.ID]; exists {
			continue
		}

		var tokens []string
		for _, o := range market.Outcomes {
			if o.TokenID != "" {
				tokens = append(tokens, o.TokenID)
			}
		}
		if len(tokens) == 0 {
			s.logger.Debug("skipping-market-missing-tokens",
				zap.String("market-id", market.ID),
				zap.String("question", market.Question))
			continue
		}

		sub := &Subscription{
			MarketID:     market.ID,
			MarketSlug:   market.Slug,
			Question:     market.Question,
			TokenIDs:     tokens,
			SubscribedAt: s.now(),
		}
		s.subscribed[market.ID] = sub
		out = append(out, sub)
	}
	return out
}

func (s *Service) subscribe(ctx context.Context, subs []*Subscription) {
	if len(subs) == 0 {
		return
	}
	NewMarketsTotal.Add(float64(len(subs)))
	if s.subscriber == nil {
		return
	}

	var tokens []string
	for _, sub := range subs {
		tokens = append(tokens, sub.TokenIDs...)
	}
	if err := s.subscriber.Subscribe(ctx, tokens); err != nil {
		SubscribeErrorsTotal.Inc()
		s.logger.Warn("token-subscribe-failed",
			zap.Int("tokens", len(tokens)),
			zap.Error(err))
		return
	}
	s.logger.Info("new-markets-subscribed",
		zap.Int("markets", len(subs)),
		zap.Int("tokens", len(tokens)))
}

// GetSubscribedMarkets returns all markets seen so far.
func (s *Service) GetSubscribedMarkets() []*Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subs := make([]*Subscription, 0, len(s.subscribed))
	for _, sub := range s.subscribed {
		subs = append(subs, sub)
	}
	return subs
}
