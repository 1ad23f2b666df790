package discovery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mselser95/polymarket-lens/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeSource struct {
	mu      sync.Mutex
	markets []types.Market
	err     error
	queries []types.MarketQuery
}

func (f *fakeSource) FetchMarkets(ctx context.Context, q types.MarketQuery) (*types.MarketsResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	return &types.MarketsResult{
		Markets: f.markets,
		Meta:    types.FetchMeta{CacheStatus: types.CacheMiss},
	}, nil
}

func (f *fakeSource) Queries() []types.MarketQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.MarketQuery(nil), f.queries...)
}

type fakeSubscriber struct {
	mu     sync.Mutex
	tokens []string
	err    error
}

func (f *fakeSubscriber) Subscribe(ctx context.Context, tokenIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.tokens = append(f.tokens, tokenIDs...)
	return nil
}

func market(id string, tokens ...string) types.Market {
	m := types.Market{ID: id, Slug: "slug-" + id}
	for _, tok := range tokens {
		m.Outcomes = append(m.Outcomes, types.MarketOutcome{Name: tok, Price: 0.5, TokenID: tok})
	}
	return m
}

func TestNew_DefaultQuery(t *testing.T) {
	svc := New(&Config{Source: &fakeSource{}, MarketLimit: 50, Logger: zaptest.NewLogger(t)})
	require.Len(t, svc.queries, 1)
	assert.Equal(t, 50, svc.queries[0].Limit)
	assert.True(t, svc.queries[0].Active)
	assert.Equal(t, "volume24hr", svc.queries[0].SortBy)
}

func TestService_PollSubscribesNewMarketsOnce(t *testing.T) {
	source := &fakeSource{markets: []types.Market{
		market("1", "1-yes", "1-no"),
		market("2"),
		market("3", "3-yes", "3-no"),
	}}
	sub := &fakeSubscriber{}
	svc := New(&Config{Source: source, Subscriber: sub, MarketLimit: 10, Logger: zaptest.NewLogger(t)})

	require.NoError(t, svc.Poll(context.Background()))
	assert.Equal(t, []string{"1-yes", "1-no", "3-yes", "3-no"}, sub.tokens)
	assert.Len(t, svc.GetSubscribedMarkets(), 2)

	require.NoError(t, svc.Poll(context.Background()))
	assert.Len(t, sub.tokens, 4, "known markets are not resubscribed")

	source.mu.Lock()
	source.markets = append(source.markets, market("4", "4-yes"))
	source.mu.Unlock()

	require.NoError(t, svc.Poll(context.Background()))
	assert.Equal(t, "4-yes", sub.tokens[4])
}

func TestService_PollErrors(t *testing.T) {
	source := &fakeSource{err: errors.New("upstream down")}
	svc := New(&Config{Source: source, Logger: zaptest.NewLogger(t)})

	err := svc.Poll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream down")
}

func TestService_SubscriberFailureIsSwallowed(t *testing.T) {
	source := &fakeSource{markets: []types.Market{market("1", "1-yes")}}
	sub := &fakeSubscriber{err: errors.New("feed closed")}
	svc := New(&Config{Source: source, Subscriber: sub, Logger: zaptest.NewLogger(t)})

	assert.NoError(t, svc.Poll(context.Background()))
}

func TestService_Run(t *testing.T) {
	source := &fakeSource{}
	svc := New(&Config{Source: source, PollInterval: 10 * time.Millisecond, Logger: zaptest.NewLogger(t)})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	require.Eventually(t, func() bool { return len(source.Queries()) >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestService_RunDisabled(t *testing.T) {
	source := &fakeSource{}
	svc := New(&Config{Source: source, Logger: zaptest.NewLogger(t)})

	assert.NoError(t, svc.Run(context.Background()))
	assert.Empty(t, source.Queries())
}
