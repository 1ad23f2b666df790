package markets

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/mselser95/polymarket-lens/internal/fetch"
	"github.com/mselser95/polymarket-lens/pkg/types"
	"go.uber.org/zap"
)

// CLOBClient reads prices, books and price history from the Polymarket CLOB API.
type CLOBClient struct {
	baseURL string
	fetch   *fetch.Client
	logger  *zap.Logger
}

// NewCLOBClient creates a new CLOB client.
func NewCLOBClient(baseURL string, fetchClient *fetch.Client, logger *zap.Logger) *CLOBClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CLOBClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		fetch:   fetchClient,
		logger:  logger,
	}
}

// Midpoint fetches the midpoint price of a token.
func (c *CLOBClient) Midpoint(ctx context.Context, tokenID string) (float64, error) {
	requestURL := fmt.Sprintf("%s/midpoint?token_id=%s", c.baseURL, url.QueryEscape(tokenID))

	var data struct {
		Mid string `json:"mid"`
	}
	if err := c.fetch.GetJSON(ctx, requestURL, &data); err != nil {
		return 0, fmt.Errorf("fetch midpoint: %w", err)
	}

	mid, err := strconv.ParseFloat(data.Mid, 64)
	if err != nil {
		return 0, fmt.Errorf("parse midpoint %q: %w", data.Mid, err)
	}
	if !types.ValidPrice(mid) {
		return 0, fmt.Errorf("midpoint %v out of range", mid)
	}
	return mid, nil
}

// Book fetches the order book of a token.
func (c *CLOBClient) Book(ctx context.Context, tokenID string) (*types.BookResponse, error) {
	requestURL := fmt.Sprintf("%s/book?token_id=%s", c.baseURL, url.QueryEscape(tokenID))

	var book types.BookResponse
	if err := c.fetch.GetJSON(ctx, requestURL, &book); err != nil {
		return nil, fmt.Errorf("fetch book: %w", err)
	}
	return &book, nil
}

// PriceHistory fetches the token-scoped price history.
func (c *CLOBClient) PriceHistory(ctx context.Context, tokenID string, r types.HistoryRange) ([]types.PricePoint, error) {
	params := url.Values{}
	params.Set("market", tokenID)
	params.Set("interval", r.Interval())
	requestURL := fmt.Sprintf("%s/prices-history?%s", c.baseURL, params.Encode())

	var resp types.PriceHistoryResponse
	if err := c.fetch.GetJSON(ctx, requestURL, &resp); err != nil {
		return nil, fmt.Errorf("fetch price history: %w", err)
	}
	return resp.Points(), nil
}
