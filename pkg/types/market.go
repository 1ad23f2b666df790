package types

import (
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// Market represents a Polymarket market from the Gamma API.
type Market struct {
	ID                string          `json:"id"`
	Question          string          `json:"question"`
	Slug              string          `json:"slug"`
	ConditionID       string          `json:"conditionId"`
	Description       string          `json:"description"`
	Category          string          `json:"category"`
	Image             string          `json:"image,omitempty"`
	Closed            bool            `json:"closed"`
	Active            bool            `json:"active"`
	EndDate           time.Time       `json:"endDate"`
	Volume            float64         `json:"volume"`
	Volume24hr        float64         `json:"volume24hr"`
	Liquidity         float64         `json:"liquidity"`
	OneDayPriceChange float64         `json:"oneDayPriceChange"`
	Tags              []Tag           `json:"tags,omitempty"`
	Outcomes          []MarketOutcome `json:"outcomes"`

	// OutcomesFallback is set when the upstream outcome fields could not be
	// parsed and the 50/50 default was substituted.
	OutcomesFallback bool `json:"outcomesFallback,omitempty"`
}

// MarketOutcome is one tradable outcome of a market.
type MarketOutcome struct {
	Name    string  `json:"name"`
	Price   float64 `json:"price"`
	TokenID string  `json:"tokenId,omitempty"`
}

// Tag is a Gamma category tag.
type Tag struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Slug  string `json:"slug"`
}

// UnmarshalJSON decodes the Gamma wire shape, where numbers may arrive as
// strings and outcomes, prices and token ids are JSON-encoded string fields.
func (m *Market) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID                flexString `json:"id"`
		Question          string     `json:"question"`
		Slug              string     `json:"slug"`
		ConditionID       string     `json:"conditionId"`
		Description       string     `json:"description"`
		Category          string     `json:"category"`
		Image             string     `json:"image"`
		Closed            bool       `json:"closed"`
		Active            bool       `json:"active"`
		EndDate           string     `json:"endDate"`
		Volume            flexFloat  `json:"volume"`
		VolumeNum         flexFloat  `json:"volumeNum"`
		Volume24hr        flexFloat  `json:"volume24hr"`
		Liquidity         flexFloat  `json:"liquidity"`
		LiquidityNum      flexFloat  `json:"liquidityNum"`
		OneDayPriceChange flexFloat  `json:"oneDayPriceChange"`
		Tags              []rawTag   `json:"tags"`
		Outcomes          rawField   `json:"outcomes"`
		OutcomePrices     rawField   `json:"outcomePrices"`
		ClobTokens        rawField   `json:"clobTokenIds"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*m = Market{
		ID:                string(raw.ID),
		Question:          raw.Question,
		Slug:              raw.Slug,
		ConditionID:       raw.ConditionID,
		Description:       raw.Description,
		Category:          raw.Category,
		Image:             raw.Image,
		Closed:            raw.Closed,
		Active:            raw.Active,
		Volume:            firstNonZero(float64(raw.VolumeNum), float64(raw.Volume)),
		Volume24hr:        float64(raw.Volume24hr),
		Liquidity:         firstNonZero(float64(raw.LiquidityNum), float64(raw.Liquidity)),
		OneDayPriceChange: float64(raw.OneDayPriceChange),
	}

	if raw.EndDate != "" {
		if t, err := time.Parse(time.RFC3339, raw.EndDate); err == nil {
			m.EndDate = t
		}
	}

	for _, t := range raw.Tags {
		m.Tags = append(m.Tags, Tag{ID: string(t.ID), Label: t.Label, Slug: t.Slug})
	}

	outcomes := ParseOutcomes(raw.Outcomes.String(), raw.OutcomePrices.String(), raw.ClobTokens.String())
	m.Outcomes = outcomes.Value
	m.OutcomesFallback = outcomes.Fallback

	return nil
}

// LeadOutcome returns the first outcome, which is the one shown as the market price.
func (m *Market) LeadOutcome() *MarketOutcome {
	if len(m.Outcomes) == 0 {
		return nil
	}
	return &m.Outcomes[0]
}

// CurrentPrice returns the lead outcome price, or 0.5 when no outcomes are known.
func (m *Market) CurrentPrice() float64 {
	lead := m.LeadOutcome()
	if lead == nil {
		return 0.5
	}
	return lead.Price
}

// HasCategory reports whether the market belongs to the category, matching the
// market category field or any tag label/slug case-insensitively.
func (m *Market) HasCategory(category string) bool {
	category = strings.TrimSpace(category)
	if category == "" {
		return true
	}
	if strings.EqualFold(m.Category, category) {
		return true
	}
	for _, tag := range m.Tags {
		if strings.EqualFold(tag.Label, category) || strings.EqualFold(tag.Slug, category) {
			return true
		}
	}
	return false
}

// MatchesQuery reports whether every whitespace-separated token of query is
// contained in the market question, description or category.
func (m *Market) MatchesQuery(query string) bool {
	tokens := strings.Fields(strings.ToLower(query))
	if len(tokens) == 0 {
		return true
	}

	haystack := strings.ToLower(strings.Join([]string{m.Question, m.Description, m.Category}, " "))
	for _, token := range tokens {
		if !strings.Contains(haystack, token) {
			return false
		}
	}
	return true
}

// Clone returns a copy that shares no slices with m.
func (m *Market) Clone() Market {
	out := *m
	out.Outcomes = append([]MarketOutcome(nil), m.Outcomes...)
	out.Tags = append([]Tag(nil), m.Tags...)
	return out
}

type rawTag struct {
	ID    flexString `json:"id"`
	Label string     `json:"label"`
	Slug  string     `json:"slug"`
}

// flexFloat accepts a JSON number, a numeric string, or null.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Unparseable numeric fields are treated as absent.
		*f = 0
		return nil
	}
	*f = flexFloat(v)
	return nil
}

// flexString accepts a JSON string or number.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	*s = flexString(strings.Trim(string(data), `"`))
	if *s == "null" {
		*s = ""
	}
	return nil
}

// rawField keeps a field that is usually a JSON-encoded string but is
// occasionally sent as a bare array.
type rawField []byte

func (r *rawField) UnmarshalJSON(data []byte) error {
	*r = append((*r)[:0], data...)
	return nil
}

// String returns the encoded list as text, unwrapping one level of string quoting.
func (r rawField) String() string {
	if len(r) == 0 || string(r) == "null" {
		return ""
	}
	if r[0] == '"' {
		var s string
		if err := json.Unmarshal(r, &s); err != nil {
			return ""
		}
		return s
	}
	return string(r)
}

func firstNonZero(values ...float64) float64 {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}
