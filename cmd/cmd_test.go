package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mselser95/polymarket-lens/pkg/types"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQueryCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	addMarketQueryFlags(cmd)
	require.NoError(t, cmd.Flags().Parse(args))
	return cmd
}

func TestMarketQueryFromFlags(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected types.MarketQuery
	}{
		{
			name:     "defaults-match-landing-listing",
			args:     nil,
			expected: types.DefaultMarketQuery(),
		},
		{
			name: "filters-and-paging",
			args: []string{"--limit", "5", "--offset", "10", "-c", "crypto", "-q", "bitcoin", "--sort", "liquidity", "--order", "asc"},
			expected: types.MarketQuery{
				Active:        true,
				Limit:         5,
				Offset:        10,
				SortBy:        "liquidity",
				SortDirection: "asc",
				Category:      "crypto",
				Query:         "bitcoin",
				Enrich:        true,
			},
		},
		{
			name: "closed-without-enrichment",
			args: []string{"--closed", "--no-enrich"},
			expected: types.MarketQuery{
				Closed:        true,
				Limit:         20,
				SortBy:        "volume24hr",
				SortDirection: "desc",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := marketQueryFromFlags(newQueryCommand(t, tt.args...))
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "exactly10!", truncate("exactly10!", 10))
	assert.Equal(t, "a long ...", truncate("a long question", 10))
	assert.Equal(t, "ab", truncate("abcdef", 2))
}

func TestPrintMarkets(t *testing.T) {
	result := &types.MarketsResult{
		Markets: []types.Market{
			{
				ID:         "m1",
				Slug:       "will-it-rain",
				Question:   "Will it rain?",
				Volume24hr: 1234,
				Outcomes: []types.MarketOutcome{
					{Name: "Yes", Price: 0.62, TokenID: "t-yes"},
					{Name: "No", Price: 0.38, TokenID: "t-no"},
				},
			},
		},
		Total:      40,
		TotalExact: false,
		Meta:       types.FetchMeta{CacheStatus: types.CacheHit, DurationMs: 3},
	}

	var buf bytes.Buffer
	require.NoError(t, printMarkets(&buf, result, true))

	out := buf.String()
	assert.Contains(t, out, "will-it-rain")
	assert.Contains(t, out, "0.620")
	assert.Contains(t, out, "t-no")
	assert.Contains(t, out, "Total: at least 40 markets (showing 1, cache HIT, 3ms)")
}

func TestPrintMarkets_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printMarkets(&buf, &types.MarketsResult{}, false))
	assert.Equal(t, "No markets found.\n", buf.String())
}

func TestPrintHistory(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	points := make([]types.PricePoint, 5)
	for i := range points {
		points[i] = types.PricePoint{Timestamp: start.Add(time.Duration(i) * time.Hour), Price: 0.5 + float64(i)/100}
	}

	var buf bytes.Buffer
	printHistory(&buf, &types.HistoryResult{
		MarketID:  "m1",
		Range:     types.Range1D,
		Points:    points,
		Synthetic: true,
		Source:    types.SourceSynthetic,
	}, 2)

	out := buf.String()
	assert.Contains(t, out, "Market m1, range 1D, source synthetic, 5 points")
	assert.Contains(t, out, "WARNING")
	assert.Contains(t, out, "2026-01-01T04:00:00Z  0.5400")
	assert.NotContains(t, out, "2026-01-01T02:00:00Z")
}

func TestPrintOrderBook(t *testing.T) {
	book := &types.OrderBook{
		TokenID:      "t1",
		BestBidPrice: 0.48,
		BestBidSize:  100,
		BestAskPrice: 0.52,
		BestAskSize:  50,
		Spread:       0.04,
		Midpoint:     0.5,
		Bids:         []types.Level{{Price: 0.48, Size: 100}, {Price: 0.47, Size: 10}},
		Asks:         []types.Level{{Price: 0.52, Size: 50}},
	}

	var buf bytes.Buffer
	require.NoError(t, printOrderBook(&buf, book, 1))

	out := buf.String()
	assert.Contains(t, out, "Spread: 0.040  Midpoint: 0.500")
	assert.Contains(t, out, "0.480")
	assert.NotContains(t, out, "0.470")
}

func TestPrintSink(t *testing.T) {
	market := &types.Market{
		Outcomes: []types.MarketOutcome{
			{Name: "Yes", TokenID: "t-yes"},
			{Name: "No", TokenID: "t-no"},
			{Name: "Void"},
		},
	}

	var buf bytes.Buffer
	sink := newPrintSink(&buf, market)
	sink.now = func() time.Time { return time.Date(2026, 1, 1, 9, 30, 0, 0, time.UTC) }

	assert.ElementsMatch(t, []string{"t-yes", "t-no"}, sink.tokenIDs())

	sink.StorePrice("t-yes", 0.61)
	sink.StorePrice("other", 0.1)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "[09:30:00] Yes        0.6100", lines[0])
	assert.Contains(t, lines[1], "UNKNOWN")
}

func TestLoadDotEnv(t *testing.T) {
	const key = "POLYMARKET_LENS_DOTENV_TEST"
	t.Cleanup(func() { _ = os.Unsetenv(key) })

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(key+"=from-file\n"), 0o600))

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("env-file", path, "")

	require.NoError(t, loadDotEnv(cmd, nil))
	assert.Equal(t, "from-file", os.Getenv(key))
}

func TestLoadDotEnv_MissingFileIgnored(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("env-file", filepath.Join(t.TempDir(), "missing.env"), "")

	assert.NoError(t, loadDotEnv(cmd, nil))
}
