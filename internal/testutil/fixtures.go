package testutil

import (
	"fmt"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/mselser95/polymarket-lens/pkg/types"
)

// MarketFixture describes a market as served by the mock Gamma API.
type MarketFixture struct {
	ID                string
	Slug              string
	Question          string
	Description       string
	Category          string
	Tags              []types.Tag
	Outcomes          []string
	Prices            []float64
	Tokens            []string
	Volume24hr        float64
	OneDayPriceChange float64
	Active            bool
	Closed            bool

	// RawOutcomes, when set, replaces the encoded outcomes field verbatim.
	RawOutcomes string
}

// CreateTestMarket creates a binary market with tokens "<id>-yes" and "<id>-no".
func CreateTestMarket(id string, slug string, question string) MarketFixture {
	return MarketFixture{
		ID:          id,
		Slug:        slug,
		Question:    question,
		Description: "Test market: " + question,
		Outcomes:    []string{"Yes", "No"},
		Prices:      []float64{0.52, 0.48},
		Tokens:      []string{id + "-yes", id + "-no"},
		Volume24hr:  1000,
		Active:      true,
	}
}

// CreateTestMarkets creates n markets with ids "m0".."m<n-1>". category picks
// the category of market i; a nil func leaves it empty.
func CreateTestMarkets(n int, category func(i int) string) []MarketFixture {
	markets := make([]MarketFixture, n)
	for i := range markets {
		id := "m" + strconv.Itoa(i)
		markets[i] = CreateTestMarket(id, "market-"+strconv.Itoa(i), fmt.Sprintf("Question %d", i))
		markets[i].Volume24hr = float64(n - i)
		if category != nil {
			markets[i].Category = category(i)
		}
	}
	return markets
}

// WithTag adds a tag to the fixture.
func (f MarketFixture) WithTag(label string) MarketFixture {
	f.Tags = append(append([]types.Tag(nil), f.Tags...), types.Tag{
		ID:    strconv.Itoa(len(f.Tags) + 1),
		Label: label,
		Slug:  slugify(label),
	})
	return f
}

// Raw returns the Gamma wire shape: numeric strings and JSON-encoded lists.
func (f MarketFixture) Raw() map[string]any {
	outcomes := f.RawOutcomes
	if outcomes == "" {
		outcomes = encodeList(f.Outcomes)
	}

	prices := make([]string, len(f.Prices))
	for i, p := range f.Prices {
		prices[i] = strconv.FormatFloat(p, 'f', -1, 64)
	}

	raw := map[string]any{
		"id":                f.ID,
		"question":          f.Question,
		"slug":              f.Slug,
		"description":       f.Description,
		"category":          f.Category,
		"active":            f.Active,
		"closed":            f.Closed,
		"endDate":           time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC).Format(time.RFC3339),
		"volume":            strconv.FormatFloat(f.Volume24hr*10, 'f', -1, 64),
		"volume24hr":        f.Volume24hr,
		"liquidity":         "5000",
		"oneDayPriceChange": f.OneDayPriceChange,
		"outcomes":          outcomes,
		"outcomePrices":     encodeList(prices),
		"clobTokenIds":      encodeList(f.Tokens),
	}
	if len(f.Tags) > 0 {
		tags := make([]map[string]any, len(f.Tags))
		for i, t := range f.Tags {
			tags[i] = map[string]any{"id": t.ID, "label": t.Label, "slug": t.Slug}
		}
		raw["tags"] = tags
	}
	return raw
}

// Sample is a prices-history sample in unix seconds.
type Sample struct {
	T int64   `json:"t"`
	P float64 `json:"p"`
}

// CreateTestSamples returns n samples one hour apart ending at end.
func CreateTestSamples(n int, end time.Time, price float64) []Sample {
	samples := make([]Sample, n)
	for i := range samples {
		samples[i] = Sample{
			T: end.Add(-time.Duration(n-1-i) * time.Hour).Unix(),
			P: price,
		}
	}
	return samples
}

// CreateTestBook returns a CLOB /book payload for tokenID.
func CreateTestBook(tokenID string) types.BookResponse {
	return types.BookResponse{
		Market:  "0xmarket",
		AssetID: tokenID,
		Bids: []types.PriceLevel{
			{Price: "0.51", Size: "50.0"},
			{Price: "0.52", Size: "100.0"},
		},
		Asks: []types.PriceLevel{
			{Price: "0.54", Size: "50.0"},
			{Price: "0.53", Size: "100.0"},
		},
	}
}

func encodeList[T any](values []T) string {
	if values == nil {
		values = []T{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		panic(err)
	}
	return string(b)
}

func slugify(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		case r == ' ':
			out = append(out, '-')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}
