package types

import (
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceChangeMessage_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantErr   bool
		checkFunc func(*testing.T, *PriceChangeMessage)
	}{
		{
			name: "valid-price-change-multiple-assets",
			input: `{
				"event_type": "price_change",
				"market": "0xdef456",
				"timestamp": "1234567890000",
				"price_changes": [
					{"asset_id": "token1", "best_bid": "0.52", "best_ask": "0.53"},
					{"asset_id": "token2", "best_bid": "0.48", "best_ask": "0.49"}
				]
			}`,
			checkFunc: func(t *testing.T, msg *PriceChangeMessage) {
				assert.Equal(t, "price_change", msg.EventType)
				assert.Equal(t, int64(1234567890000), msg.Timestamp)
				require.Len(t, msg.PriceChanges, 2)
				assert.Equal(t, "token2", msg.PriceChanges[1].AssetID)
				assert.Equal(t, "0.49", msg.PriceChanges[1].BestAsk)
			},
		},
		{
			name:  "no-timestamp",
			input: `{"event_type": "price_change", "market": "0xjkl012", "price_changes": []}`,
			checkFunc: func(t *testing.T, msg *PriceChangeMessage) {
				assert.Zero(t, msg.Timestamp)
				assert.Empty(t, msg.PriceChanges)
			},
		},
		{
			name:    "invalid-timestamp-format",
			input:   `{"event_type": "price_change", "timestamp": "not_a_number", "price_changes": []}`,
			wantErr: true,
		},
		{
			name:    "invalid-json",
			input:   `{"event_type": "price_change", "price_changes": [INVALID}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var msg PriceChangeMessage
			err := json.Unmarshal([]byte(tt.input), &msg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.checkFunc(t, &msg)
		})
	}
}

func TestNormalizeBook(t *testing.T) {
	resp := &BookResponse{
		Bids: []PriceLevel{{Price: "0.40", Size: "10"}, {Price: "0.45", Size: "5"}, {Price: "bad", Size: "1"}},
		Asks: []PriceLevel{{Price: "0.55", Size: "3"}, {Price: "0.50", Size: "7"}},
	}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	book := NormalizeBook("tok", resp, now)

	require.Len(t, book.Bids, 2, "malformed level must be skipped")
	assert.Equal(t, 0.45, book.BestBidPrice)
	assert.Equal(t, 5.0, book.BestBidSize)
	assert.Equal(t, 0.50, book.BestAskPrice)
	assert.InDelta(t, 0.05, book.Spread, 1e-9)
	assert.InDelta(t, 0.475, book.Midpoint, 1e-9)
	assert.Equal(t, now, book.UpdatedAt)
}

func TestNormalizeBook_OneSided(t *testing.T) {
	book := NormalizeBook("tok", &BookResponse{Bids: []PriceLevel{{Price: "0.3", Size: "1"}}}, time.Now())

	assert.Equal(t, 0.3, book.BestBidPrice)
	assert.Zero(t, book.Midpoint)
	assert.Zero(t, book.Spread)
}

func TestBookResponse_UnmarshalJSON(t *testing.T) {
	var resp BookResponse
	err := json.Unmarshal([]byte(`{"market":"0x1","asset_id":"a1","timestamp":"1700000000000","bids":[{"price":"0.5","size":"2"}],"asks":[]}`), &resp)
	require.NoError(t, err)

	assert.Equal(t, "a1", resp.AssetID)
	assert.Equal(t, int64(1700000000000), resp.Timestamp)
	require.Len(t, resp.Bids, 1)
}
