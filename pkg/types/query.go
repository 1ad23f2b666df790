package types

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// CacheStatus describes how a read was served.
type CacheStatus string

const (
	CacheHit   CacheStatus = "HIT"
	CacheMiss  CacheStatus = "MISS"
	CacheStale CacheStatus = "STALE"
)

// Data sources reported in FetchMeta.
const (
	SourceGamma     = "gamma"
	SourceCLOB      = "clob"
	SourceCache     = "cache"
	SourceArchive   = "archive"
	SourceSynthetic = "synthetic"
	SourceFeed      = "feed"
)

// FetchMeta is the observability envelope attached to every query result.
type FetchMeta struct {
	FetchedAt   time.Time   `json:"fetchedAt"`
	CacheStatus CacheStatus `json:"cacheStatus"`
	Sources     []string    `json:"sources"`
	DurationMs  int64       `json:"durationMs"`
}

// AddSource records a source once, keeping Sources sorted.
func (m *FetchMeta) AddSource(source string) {
	for _, s := range m.Sources {
		if s == source {
			return
		}
	}
	m.Sources = append(m.Sources, source)
	sort.Strings(m.Sources)
}

// HasSource reports whether source was recorded.
func (m *FetchMeta) HasSource(source string) bool {
	for _, s := range m.Sources {
		if s == source {
			return true
		}
	}
	return false
}

// Sort fields accepted by the Gamma /markets endpoint.
var validSorts = map[string]bool{
	"volume24hr": true,
	"volume":     true,
	"liquidity":  true,
	"endDate":    true,
	"createdAt":  true,
}

// MarketQuery holds listing parameters.
type MarketQuery struct {
	Active        bool
	Closed        bool
	Limit         int
	Offset        int
	SortBy        string
	SortDirection string // "asc" or "desc"
	Category      string
	Query         string
	Enrich        bool
}

// DefaultMarketQuery returns the listing shown on the landing page.
func DefaultMarketQuery() MarketQuery {
	return MarketQuery{
		Active:        true,
		Limit:         20,
		SortBy:        "volume24hr",
		SortDirection: "desc",
		Enrich:        true,
	}
}

// Normalize fills defaults and validates the query.
func (q *MarketQuery) Normalize() error {
	q.Category = strings.TrimSpace(q.Category)
	q.Query = strings.TrimSpace(q.Query)
	q.SortDirection = strings.ToLower(strings.TrimSpace(q.SortDirection))

	if q.Limit == 0 {
		q.Limit = 20
	}
	if q.Limit < 0 || q.Limit > 500 {
		return fmt.Errorf("%w: limit must be between 1 and 500, got %d", ErrInvalidQuery, q.Limit)
	}
	if q.Offset < 0 {
		return fmt.Errorf("%w: offset must be >= 0, got %d", ErrInvalidQuery, q.Offset)
	}
	if q.SortBy == "" {
		q.SortBy = "volume24hr"
	}
	if !validSorts[q.SortBy] {
		return fmt.Errorf("%w: invalid sort %q", ErrInvalidQuery, q.SortBy)
	}
	if q.SortDirection == "" {
		q.SortDirection = "desc"
	}
	if q.SortDirection != "asc" && q.SortDirection != "desc" {
		return fmt.Errorf("%w: invalid sort direction %q", ErrInvalidQuery, q.SortDirection)
	}
	return nil
}

// MarketsResult is the response of a listing query.
type MarketsResult struct {
	Markets    []Market  `json:"markets"`
	Total      int       `json:"total"`
	TotalExact bool      `json:"totalExact"`
	HasMore    bool      `json:"hasMore"`
	Meta       FetchMeta `json:"meta"`
}

// MarketDetail is the response of a single market lookup.
type MarketDetail struct {
	Market Market    `json:"market"`
	Meta   FetchMeta `json:"meta"`
}

// CategoriesResult lists known category tags.
type CategoriesResult struct {
	Categories []Tag     `json:"categories"`
	Meta       FetchMeta `json:"meta"`
}

// PricePoint is a single timestamped price sample.
type PricePoint struct {
	Timestamp time.Time `json:"t"`
	Price     float64   `json:"p"`
}

// ValidPrice reports whether p is a finite probability.
func ValidPrice(p float64) bool {
	return !math.IsNaN(p) && !math.IsInf(p, 0) && p >= 0 && p <= 1
}

// HistoryRange is a requested history window.
type HistoryRange string

const (
	Range1H  HistoryRange = "1H"
	Range6H  HistoryRange = "6H"
	Range1D  HistoryRange = "1D"
	Range1W  HistoryRange = "1W"
	Range1M  HistoryRange = "1M"
	RangeAll HistoryRange = "ALL"
)

// span for ALL is what the synthetic fallback covers; the upstream decides
// how far genuine ALL history reaches.
var rangeSpans = map[HistoryRange]time.Duration{
	Range1H:  time.Hour,
	Range6H:  6 * time.Hour,
	Range1D:  24 * time.Hour,
	Range1W:  7 * 24 * time.Hour,
	Range1M:  30 * 24 * time.Hour,
	RangeAll: 90 * 24 * time.Hour,
}

var rangeIntervals = map[HistoryRange]string{
	Range1H:  "1h",
	Range6H:  "6h",
	Range1D:  "1d",
	Range1W:  "1w",
	Range1M:  "1m",
	RangeAll: "max",
}

// ParseHistoryRange parses a range, defaulting to 1D when empty.
func ParseHistoryRange(s string) (HistoryRange, error) {
	if strings.TrimSpace(s) == "" {
		return Range1D, nil
	}
	r := HistoryRange(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := rangeSpans[r]; !ok {
		return "", fmt.Errorf("%w: invalid history range %q", ErrInvalidQuery, s)
	}
	return r, nil
}

// Span returns the duration covered by the range.
func (r HistoryRange) Span() time.Duration {
	if d, ok := rangeSpans[r]; ok {
		return d
	}
	return 24 * time.Hour
}

// Interval returns the CLOB prices-history interval for the range.
func (r HistoryRange) Interval() string {
	if s, ok := rangeIntervals[r]; ok {
		return s
	}
	return "1d"
}

// HistoryResult is the response of a history lookup. Synthetic marks
// generated filler that is not real market data.
type HistoryResult struct {
	MarketID  string       `json:"marketId"`
	Range     HistoryRange `json:"range"`
	Points    []PricePoint `json:"points"`
	Synthetic bool         `json:"synthetic"`
	Source    string       `json:"source"`
	Meta      FetchMeta    `json:"meta"`
}
