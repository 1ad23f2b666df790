package testutil

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/mselser95/polymarket-lens/pkg/types"
)

// requestLog counts requests by path and lets tests force statuses.
type requestLog struct {
	mu       sync.Mutex
	calls    map[string]int
	offsets  []int
	statuses map[string]int
}

func newRequestLog() *requestLog {
	return &requestLog{calls: make(map[string]int), statuses: make(map[string]int)}
}

func (l *requestLog) record(path string) (status int, forced bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls[path]++
	status, forced = l.statuses[path]
	return status, forced
}

// Calls returns how many requests hit path.
func (l *requestLog) Calls(path string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[path]
}

// SetStatus makes every request to path answer with status. Zero clears it.
func (l *requestLog) SetStatus(path string, status int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if status == 0 {
		delete(l.statuses, path)
		return
	}
	l.statuses[path] = status
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// MockGammaAPI is a mock HTTP server that simulates the Polymarket Gamma API.
type MockGammaAPI struct {
	*httptest.Server
	*requestLog

	mu          sync.RWMutex
	Markets     []MarketFixture
	Tags        []types.Tag
	History     map[string][]Sample // /markets/{id}/prices-history
	AltHistory  map[string][]Sample // /prices-history?market={id}
	DisableByID bool                // /markets/{id} always 404s
	EmptyByID   bool                // /markets/{id} answers 200 with {}
}

// NewMockGammaAPI creates a new mock Gamma API server. /markets pages the
// fixtures by offset and limit in the given order.
func NewMockGammaAPI(markets []MarketFixture) *MockGammaAPI {
	mock := &MockGammaAPI{
		requestLog: newRequestLog(),
		Markets:    markets,
		History:    make(map[string][]Sample),
		AltHistory: make(map[string][]Sample),
	}
	mock.Server = httptest.NewServer(http.HandlerFunc(mock.serve))
	return mock
}

func (m *MockGammaAPI) serve(w http.ResponseWriter, r *http.Request) {
	if status, forced := m.record(r.URL.Path); forced {
		w.WriteHeader(status)
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	path := r.URL.Path
	q := r.URL.Query()

	switch {
	case path == "/markets":
		if slug := q.Get("slug"); slug != "" {
			out := []map[string]any{}
			for _, f := range m.Markets {
				if f.Slug == slug {
					out = append(out, f.Raw())
				}
			}
			writeJSON(w, out)
			return
		}

		offset, _ := strconv.Atoi(q.Get("offset"))
		limit, _ := strconv.Atoi(q.Get("limit"))
		if limit <= 0 {
			limit = 100
		}
		m.requestLog.mu.Lock()
		m.offsets = append(m.offsets, offset)
		m.requestLog.mu.Unlock()

		out := []map[string]any{}
		for i := offset; i < len(m.Markets) && i < offset+limit; i++ {
			out = append(out, m.Markets[i].Raw())
		}
		writeJSON(w, out)

	case path == "/tags":
		writeJSON(w, m.Tags)

	case path == "/prices-history":
		writeJSON(w, map[string]any{"history": samplesOrEmpty(m.AltHistory[q.Get("market")])})

	case strings.HasPrefix(path, "/markets/") && strings.HasSuffix(path, "/prices-history"):
		id := strings.TrimSuffix(strings.TrimPrefix(path, "/markets/"), "/prices-history")
		writeJSON(w, map[string]any{"history": samplesOrEmpty(m.History[id])})

	case strings.HasPrefix(path, "/markets/"):
		if m.DisableByID {
			http.NotFound(w, r)
			return
		}
		if m.EmptyByID {
			writeJSON(w, map[string]any{})
			return
		}
		id := strings.TrimPrefix(path, "/markets/")
		for _, f := range m.Markets {
			if f.ID == id {
				writeJSON(w, f.Raw())
				return
			}
		}
		http.NotFound(w, r)

	default:
		http.NotFound(w, r)
	}
}

// Offsets returns the offsets of every /markets page request, in order.
func (m *MockGammaAPI) Offsets() []int {
	m.requestLog.mu.Lock()
	defer m.requestLog.mu.Unlock()
	return append([]int(nil), m.offsets...)
}

// AddMarket adds a market to the mock API.
func (m *MockGammaAPI) AddMarket(market MarketFixture) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Markets = append(m.Markets, market)
}

// SetMarkets replaces the served markets.
func (m *MockGammaAPI) SetMarkets(markets []MarketFixture) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Markets = markets
}

// MockCLOBAPI is a mock HTTP server that simulates the Polymarket CLOB API.
type MockCLOBAPI struct {
	*httptest.Server
	*requestLog

	mu        sync.RWMutex
	Midpoints map[string]float64
	Books     map[string]types.BookResponse
	History   map[string][]Sample // /prices-history?market={token}
}

// NewMockCLOBAPI creates a new mock CLOB API server.
func NewMockCLOBAPI() *MockCLOBAPI {
	mock := &MockCLOBAPI{
		requestLog: newRequestLog(),
		Midpoints:  make(map[string]float64),
		Books:      make(map[string]types.BookResponse),
		History:    make(map[string][]Sample),
	}
	mock.Server = httptest.NewServer(http.HandlerFunc(mock.serve))
	return mock
}

func (m *MockCLOBAPI) serve(w http.ResponseWriter, r *http.Request) {
	if status, forced := m.record(r.URL.Path); forced {
		w.WriteHeader(status)
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	q := r.URL.Query()
	switch r.URL.Path {
	case "/midpoint":
		mid, ok := m.Midpoints[q.Get("token_id")]
		if !ok {
			http.Error(w, `{"error":"No orderbook exists for the requested token id"}`, http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]string{"mid": strconv.FormatFloat(mid, 'f', -1, 64)})

	case "/book":
		book, ok := m.Books[q.Get("token_id")]
		if !ok {
			http.Error(w, `{"error":"No orderbook exists for the requested token id"}`, http.StatusNotFound)
			return
		}
		writeJSON(w, book)

	case "/prices-history":
		writeJSON(w, map[string]any{"history": samplesOrEmpty(m.History[q.Get("market")])})

	default:
		http.NotFound(w, r)
	}
}

// SetMidpoint sets the midpoint served for a token.
func (m *MockCLOBAPI) SetMidpoint(tokenID string, mid float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Midpoints[tokenID] = mid
}

func samplesOrEmpty(s []Sample) []Sample {
	if s == nil {
		return []Sample{}
	}
	return s
}
