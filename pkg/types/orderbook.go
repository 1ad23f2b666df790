package types

import (
	"sort"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
)

// PriceLevel represents a single price level in the orderbook.
type PriceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// Values parses the level price and size, returning ok=false if either is malformed.
func (l PriceLevel) Values() (price, size float64, ok bool) {
	p, err := strconv.ParseFloat(l.Price, 64)
	if err != nil {
		return 0, 0, false
	}
	s, err := strconv.ParseFloat(l.Size, 64)
	if err != nil {
		return 0, 0, false
	}
	return p, s, true
}

// BookResponse is the CLOB /book payload and the websocket "book" event.
type BookResponse struct {
	EventType string       `json:"event_type,omitempty"`
	Market    string       `json:"market"`
	AssetID   string       `json:"asset_id"`
	Timestamp int64        `json:"-"`
	Hash      string       `json:"hash,omitempty"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
}

// UnmarshalJSON handles the string-encoded timestamp.
func (b *BookResponse) UnmarshalJSON(data []byte) error {
	type Alias BookResponse
	aux := &struct {
		TimestampStr string `json:"timestamp"`
		*Alias
	}{
		Alias: (*Alias)(b),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.TimestampStr != "" {
		timestamp, err := strconv.ParseInt(aux.TimestampStr, 10, 64)
		if err != nil {
			return err
		}
		b.Timestamp = timestamp
	}

	return nil
}

// PriceChange is one asset entry of a "price_change" event.
type PriceChange struct {
	AssetID string `json:"asset_id"`
	Price   string `json:"price,omitempty"`
	Size    string `json:"size,omitempty"`
	Side    string `json:"side,omitempty"`
	BestBid string `json:"best_bid"`
	BestAsk string `json:"best_ask"`
}

// PriceChangeMessage is the websocket "price_change" event.
type PriceChangeMessage struct {
	EventType    string        `json:"event_type"`
	Market       string        `json:"market"`
	Timestamp    int64         `json:"-"`
	PriceChanges []PriceChange `json:"price_changes"`
}

// UnmarshalJSON handles the string-encoded timestamp.
func (p *PriceChangeMessage) UnmarshalJSON(data []byte) error {
	type Alias PriceChangeMessage
	aux := &struct {
		TimestampStr string `json:"timestamp"`
		*Alias
	}{
		Alias: (*Alias)(p),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.TimestampStr != "" {
		timestamp, err := strconv.ParseInt(aux.TimestampStr, 10, 64)
		if err != nil {
			return err
		}
		p.Timestamp = timestamp
	}

	return nil
}

// LastTradePriceMessage is the websocket "last_trade_price" event.
type LastTradePriceMessage struct {
	EventType string `json:"event_type"`
	AssetID   string `json:"asset_id"`
	Market    string `json:"market"`
	Price     string `json:"price"`
}

// OrderBook is the normalized order book of one token.
type OrderBook struct {
	TokenID      string    `json:"tokenId"`
	BestBidPrice float64   `json:"bestBid"`
	BestBidSize  float64   `json:"bestBidSize"`
	BestAskPrice float64   `json:"bestAsk"`
	BestAskSize  float64   `json:"bestAskSize"`
	Spread       float64   `json:"spread"`
	Midpoint     float64   `json:"midpoint"`
	Bids         []Level   `json:"bids"`
	Asks         []Level   `json:"asks"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Level is a parsed price level.
type Level struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// OrderBookResult is the response of an order book lookup.
type OrderBookResult struct {
	Book OrderBook `json:"book"`
	Meta FetchMeta `json:"meta"`
}

// NormalizeBook parses levels, sorts bids descending and asks ascending, and
// computes best prices, spread and midpoint. Malformed levels are skipped.
func NormalizeBook(tokenID string, resp *BookResponse, now time.Time) OrderBook {
	book := OrderBook{
		TokenID:   tokenID,
		Bids:      parseLevels(resp.Bids),
		Asks:      parseLevels(resp.Asks),
		UpdatedAt: now,
	}

	sort.Slice(book.Bids, func(i, j int) bool { return book.Bids[i].Price > book.Bids[j].Price })
	sort.Slice(book.Asks, func(i, j int) bool { return book.Asks[i].Price < book.Asks[j].Price })

	if len(book.Bids) > 0 {
		book.BestBidPrice = book.Bids[0].Price
		book.BestBidSize = book.Bids[0].Size
	}
	if len(book.Asks) > 0 {
		book.BestAskPrice = book.Asks[0].Price
		book.BestAskSize = book.Asks[0].Size
	}
	if len(book.Bids) > 0 && len(book.Asks) > 0 {
		book.Spread = book.BestAskPrice - book.BestBidPrice
		book.Midpoint = (book.BestAskPrice + book.BestBidPrice) / 2
	}

	return book
}

func parseLevels(levels []PriceLevel) []Level {
	out := make([]Level, 0, len(levels))
	for _, l := range levels {
		price, size, ok := l.Values()
		if !ok {
			continue
		}
		out = append(out, Level{Price: price, Size: size})
	}
	return out
}
