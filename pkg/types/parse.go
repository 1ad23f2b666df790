package types

import (
	"fmt"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// ParseResult is the outcome of decoding a JSON-encoded upstream sub-field.
// When Fallback is set, Value holds the substituted default and Err the reason.
type ParseResult[T any] struct {
	Value    T
	Fallback bool
	Err      error
}

// Ok wraps a successfully parsed value.
func Ok[T any](v T) ParseResult[T] {
	return ParseResult[T]{Value: v}
}

// Fallback wraps a default substituted for an unparseable value.
func Fallback[T any](v T, err error) ParseResult[T] {
	return ParseResult[T]{Value: v, Fallback: true, Err: err}
}

// DefaultOutcomes is the synthetic two-outcome 50/50 market used when the
// upstream outcome fields are malformed.
func DefaultOutcomes() []MarketOutcome {
	return []MarketOutcome{
		{Name: "Yes", Price: 0.5},
		{Name: "No", Price: 0.5},
	}
}

// ParseStringList decodes a JSON-encoded list of strings such as `["Yes","No"]`.
func ParseStringList(encoded string) ParseResult[[]string] {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return Fallback[[]string](nil, fmt.Errorf("empty list"))
	}

	var out []string
	if err := json.Unmarshal([]byte(encoded), &out); err != nil {
		return Fallback[[]string](nil, fmt.Errorf("decode list: %w", err))
	}
	return Ok(out)
}

// ParsePriceList decodes a JSON-encoded list of prices. Elements may be numbers
// or numeric strings; every price must lie in [0,1].
func ParsePriceList(encoded string) ParseResult[[]float64] {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return Fallback[[]float64](nil, fmt.Errorf("empty list"))
	}

	var raw []any
	if err := json.Unmarshal([]byte(encoded), &raw); err != nil {
		return Fallback[[]float64](nil, fmt.Errorf("decode prices: %w", err))
	}

	prices := make([]float64, 0, len(raw))
	for i, item := range raw {
		var p float64
		switch v := item.(type) {
		case float64:
			p = v
		case string:
			parsed, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return Fallback[[]float64](nil, fmt.Errorf("price %d: %w", i, err))
			}
			p = parsed
		default:
			return Fallback[[]float64](nil, fmt.Errorf("price %d: unexpected type %T", i, item))
		}
		if !ValidPrice(p) {
			return Fallback[[]float64](nil, fmt.Errorf("price %d out of range: %v", i, p))
		}
		prices = append(prices, p)
	}
	return Ok(prices)
}

// ParseOutcomes combines the three encoded Gamma fields into outcomes. Names and
// prices must both parse and have equal length, otherwise DefaultOutcomes is
// returned as a fallback. Token ids are optional.
func ParseOutcomes(namesEncoded, pricesEncoded, tokensEncoded string) ParseResult[[]MarketOutcome] {
	names := ParseStringList(namesEncoded)
	if names.Fallback {
		return Fallback(DefaultOutcomes(), fmt.Errorf("outcomes: %w", names.Err))
	}
	prices := ParsePriceList(pricesEncoded)
	if prices.Fallback {
		return Fallback(DefaultOutcomes(), fmt.Errorf("outcome prices: %w", prices.Err))
	}
	if len(names.Value) == 0 || len(names.Value) != len(prices.Value) {
		return Fallback(DefaultOutcomes(),
			fmt.Errorf("outcome count mismatch: %d names, %d prices", len(names.Value), len(prices.Value)))
	}

	tokens := ParseStringList(tokensEncoded)

	outcomes := make([]MarketOutcome, len(names.Value))
	for i, name := range names.Value {
		outcomes[i] = MarketOutcome{Name: name, Price: prices.Value[i]}
		if !tokens.Fallback && i < len(tokens.Value) {
			outcomes[i].TokenID = tokens.Value[i]
		}
	}
	return Ok(outcomes)
}
