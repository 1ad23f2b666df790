package pricefeed

import (
	"bytes"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/mselser95/polymarket-lens/pkg/types"
)

// Market channel event types.
const (
	EventBook           = "book"
	EventPriceChange    = "price_change"
	EventLastTradePrice = "last_trade_price"
)

// Quote is a token price extracted from a feed event.
type Quote struct {
	TokenID   string
	Price     float64
	EventType string
}

// splitFrame returns the events of a frame, which is either a JSON array of
// events or a single event object.
func splitFrame(frame []byte) ([]json.RawMessage, error) {
	frame = bytes.TrimSpace(frame)
	if len(frame) == 0 {
		return nil, nil
	}
	if frame[0] == '[' {
		var events []json.RawMessage
		if err := json.Unmarshal(frame, &events); err != nil {
			return nil, err
		}
		return events, nil
	}
	return []json.RawMessage{frame}, nil
}

// eventType peeks at the event_type field. ok is false for control
// messages and anything that is not an object.
func eventType(event json.RawMessage) (string, bool) {
	var head struct {
		EventType string `json:"event_type"`
	}
	if err := json.Unmarshal(event, &head); err != nil || head.EventType == "" {
		return "", false
	}
	return head.EventType, true
}

// parseQuotes extracts token prices from one event. Unknown event types
// yield nothing.
func parseQuotes(kind string, event json.RawMessage) ([]Quote, error) {
	switch kind {
	case EventBook:
		var book types.BookResponse
		if err := json.Unmarshal(event, &book); err != nil {
			return nil, err
		}
		normalized := types.NormalizeBook(book.AssetID, &book, time.Time{})
		if normalized.Midpoint <= 0 {
			return nil, nil
		}
		return []Quote{{TokenID: book.AssetID, Price: normalized.Midpoint, EventType: kind}}, nil

	case EventPriceChange:
		var msg types.PriceChangeMessage
		if err := json.Unmarshal(event, &msg); err != nil {
			return nil, err
		}
		quotes := make([]Quote, 0, len(msg.PriceChanges))
		for _, change := range msg.PriceChanges {
			if price, ok := changePrice(change); ok {
				quotes = append(quotes, Quote{TokenID: change.AssetID, Price: price, EventType: kind})
			}
		}
		return quotes, nil

	case EventLastTradePrice:
		var msg types.LastTradePriceMessage
		if err := json.Unmarshal(event, &msg); err != nil {
			return nil, err
		}
		price, err := strconv.ParseFloat(msg.Price, 64)
		if err != nil {
			return nil, err
		}
		return []Quote{{TokenID: msg.AssetID, Price: price, EventType: kind}}, nil
	}
	return nil, nil
}

// changePrice prefers the best bid/ask midpoint and falls back to the
// change price.
func changePrice(c types.PriceChange) (float64, bool) {
	bid, bidErr := strconv.ParseFloat(c.BestBid, 64)
	ask, askErr := strconv.ParseFloat(c.BestAsk, 64)
	if bidErr == nil && askErr == nil && bid > 0 && ask > 0 {
		return (bid + ask) / 2, true
	}
	price, err := strconv.ParseFloat(c.Price, 64)
	if err != nil {
		return 0, false
	}
	return price, true
}
