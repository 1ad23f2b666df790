package pricefeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recordingSink struct {
	mu     sync.Mutex
	prices map[string]float64
}

func newRecordingSink() *recordingSink {
	return &recordingSink{prices: make(map[string]float64)}
}

func (s *recordingSink) StorePrice(tokenID string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[tokenID] = price
}

func (s *recordingSink) Get(tokenID string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prices[tokenID]
	return p, ok
}

func (s *recordingSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prices)
}

type subscribeMessage struct {
	AssetsIDs []string `json:"assets_ids"`
	Type      string   `json:"type"`
	Operation string   `json:"operation"`
}

// marketServer is a market channel that records subscribe messages and
// exposes each accepted connection.
type marketServer struct {
	*httptest.Server
	conns    chan *websocket.Conn
	received chan subscribeMessage
	reject   atomic.Int32 // handshakes to refuse before upgrading
}

func newMarketServer(t *testing.T) *marketServer {
	t.Helper()
	s := &marketServer{
		conns:    make(chan *websocket.Conn, 4),
		received: make(chan subscribeMessage, 16),
	}
	upgrader := websocket.Upgrader{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.reject.Add(-1) >= 0 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.conns <- conn
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg subscribeMessage
			if json.Unmarshal(data, &msg) == nil {
				s.received <- msg
			}
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *marketServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func (s *marketServer) nextConn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-s.conns:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("no connection accepted")
		return nil
	}
}

func (s *marketServer) nextMessage(t *testing.T) subscribeMessage {
	t.Helper()
	select {
	case msg := <-s.received:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no subscribe message received")
		return subscribeMessage{}
	}
}

func newTestFeed(t *testing.T, url string, sink Sink) *Feed {
	t.Helper()
	feed := New(Config{
		URL:                   url,
		DialTimeout:           time.Second,
		PingInterval:          time.Hour,
		ReconnectInitialDelay: 10 * time.Millisecond,
		ReconnectMaxDelay:     50 * time.Millisecond,
		ReconnectBackoffMult:  2,
		Sink:                  sink,
		Logger:                zaptest.NewLogger(t),
	})
	return feed
}

func TestFeed_SubscribeAndStorePrices(t *testing.T) {
	server := newMarketServer(t)
	sink := newRecordingSink()
	feed := newTestFeed(t, server.wsURL(), sink)

	require.NoError(t, feed.Start())
	defer feed.Close()
	conn := server.nextConn(t)

	require.NoError(t, feed.Subscribe(context.Background(), []string{"a", "b"}))
	msg := server.nextMessage(t)
	assert.Equal(t, "market", msg.Type)
	assert.Equal(t, []string{"a", "b"}, msg.AssetsIDs)

	require.NoError(t, feed.Subscribe(context.Background(), []string{"b", "c"}))
	msg = server.nextMessage(t)
	assert.Equal(t, "subscribe", msg.Operation)
	assert.Equal(t, []string{"c"}, msg.AssetsIDs)
	assert.Equal(t, 3, feed.SubscribedCount())

	frame := `[
		{"event_type":"book","asset_id":"a","market":"0x1","timestamp":"1700000000000",
		 "bids":[{"price":"0.40","size":"10"}],"asks":[{"price":"0.42","size":"5"}]},
		{"event_type":"price_change","market":"0x1","timestamp":"1700000000001",
		 "price_changes":[{"asset_id":"b","price":"0.5","size":"1","side":"BUY","best_bid":"0.60","best_ask":"0.62"}]}
	]`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"event_type":"last_trade_price","asset_id":"c","market":"0x1","price":"0.7"}`)))

	require.Eventually(t, func() bool { return sink.Len() == 3 }, 2*time.Second, 10*time.Millisecond)

	price, _ := sink.Get("a")
	assert.InDelta(t, 0.41, price, 1e-9)
	price, _ = sink.Get("b")
	assert.InDelta(t, 0.61, price, 1e-9)
	price, _ = sink.Get("c")
	assert.InDelta(t, 0.7, price, 1e-9)
}

func TestFeed_IgnoresControlAndMalformedFrames(t *testing.T) {
	server := newMarketServer(t)
	sink := newRecordingSink()
	feed := newTestFeed(t, server.wsURL(), sink)

	require.NoError(t, feed.Start())
	defer feed.Close()
	conn := server.nextConn(t)

	frames := []string{
		"PONG",
		"[]",
		`{"type":"subscribed"}`,
		`[{"event_type":"last_trade_price","asset_id":"x","price":"abc"}]`,
		`{"event_type":"last_trade_price","asset_id":"y","price":"1.5"}`,
		`{"event_type":"tick_size_change","asset_id":"w"}`,
		`{"event_type":"last_trade_price","asset_id":"z","price":"0.3"}`,
	}
	for _, f := range frames {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(f)))
	}

	require.Eventually(t, func() bool { return sink.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	price, ok := sink.Get("z")
	require.True(t, ok)
	assert.InDelta(t, 0.3, price, 1e-9)
	assert.True(t, feed.Connected())
}

func TestFeed_ReconnectResubscribes(t *testing.T) {
	server := newMarketServer(t)
	feed := newTestFeed(t, server.wsURL(), newRecordingSink())

	// subscribed before start: sent on the first connection
	require.NoError(t, feed.Subscribe(context.Background(), []string{"a"}))

	require.NoError(t, feed.Start())
	defer feed.Close()

	first := server.nextConn(t)
	msg := server.nextMessage(t)
	assert.Equal(t, []string{"a"}, msg.AssetsIDs)
	assert.Equal(t, "market", msg.Type)

	require.NoError(t, first.Close())

	server.nextConn(t)
	msg = server.nextMessage(t)
	assert.Equal(t, []string{"a"}, msg.AssetsIDs)
	assert.Equal(t, "market", msg.Type)
	require.Eventually(t, feed.Connected, 2*time.Second, 10*time.Millisecond)
}

func TestFeed_StartFailsWithoutServer(t *testing.T) {
	server := newMarketServer(t)
	url := server.wsURL()
	server.Close()

	feed := newTestFeed(t, url, nil)
	assert.Error(t, feed.Start())
	assert.False(t, feed.Connected())
	assert.NoError(t, feed.Close())
}

func TestFeed_StartRetriesFailedFirstDial(t *testing.T) {
	server := newMarketServer(t)
	server.reject.Store(1)
	feed := newTestFeed(t, server.wsURL(), nil)
	defer feed.Close()

	require.NoError(t, feed.Subscribe(context.Background(), []string{"a"}))
	assert.Error(t, feed.Start())

	server.nextConn(t)
	require.Eventually(t, feed.Connected, 2*time.Second, 10*time.Millisecond)

	msg := server.nextMessage(t)
	assert.Equal(t, []string{"a"}, msg.AssetsIDs)
	assert.Equal(t, "market", msg.Type)
}

func TestFeed_EmptySubscribe(t *testing.T) {
	feed := newTestFeed(t, "ws://unused", nil)
	assert.NoError(t, feed.Subscribe(context.Background(), nil))
	assert.NoError(t, feed.Subscribe(context.Background(), []string{""}))
	assert.Zero(t, feed.SubscribedCount())
}
