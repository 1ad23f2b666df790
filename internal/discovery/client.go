package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/mselser95/polymarket-lens/internal/fetch"
	"github.com/mselser95/polymarket-lens/pkg/types"
	"go.uber.org/zap"
)

const (
	// MaxBatchSize is the maximum number of markets to fetch per API request.
	MaxBatchSize = 100

	defaultTagLimit = 100
)

// Client is an HTTP client for the Polymarket Gamma API.
type Client struct {
	baseURL string
	fetch   *fetch.Client
	logger  *zap.Logger
}

// NewClient creates a new Gamma API client.
func NewClient(baseURL string, fetchClient *fetch.Client, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		fetch:   fetchClient,
		logger:  logger,
	}
}

// ListParams selects one page of the /markets listing.
type ListParams struct {
	Limit      int
	Offset     int
	Order      string
	Ascending  bool
	Active     bool
	Closed     bool
	IncludeTag bool
}

// Values encodes the params as a Gamma query string.
func (p ListParams) Values() url.Values {
	limit := p.Limit
	if limit <= 0 || limit > MaxBatchSize {
		limit = MaxBatchSize
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(p.Offset))
	params.Set("active", strconv.FormatBool(p.Active))
	params.Set("closed", strconv.FormatBool(p.Closed))
	if p.Order != "" {
		params.Set("order", p.Order)
		params.Set("ascending", strconv.FormatBool(p.Ascending))
	}
	if p.IncludeTag {
		params.Set("include_tag", "true")
	}
	return params
}

// ListMarkets fetches one page of markets. Gamma returns a bare array.
func (c *Client) ListMarkets(ctx context.Context, p ListParams) ([]types.Market, error) {
	requestURL := fmt.Sprintf("%s/markets?%s", c.baseURL, p.Values().Encode())

	c.logger.Debug("fetching-markets",
		zap.String("url", requestURL),
		zap.Int("limit", p.Limit),
		zap.Int("offset", p.Offset))

	var markets []types.Market
	if err := c.fetch.GetJSON(ctx, requestURL, &markets); err != nil {
		return nil, fmt.Errorf("list markets: %w", err)
	}

	c.logger.Debug("fetched-markets", zap.Int("count", len(markets)))
	return markets, nil
}

// MarketByID fetches /markets/{id}. A 404 matches fetch.ErrNotFound.
func (c *Client) MarketByID(ctx context.Context, id string) (*types.Market, error) {
	requestURL := fmt.Sprintf("%s/markets/%s", c.baseURL, url.PathEscape(id))

	var market types.Market
	if err := c.fetch.GetJSON(ctx, requestURL, &market); err != nil {
		return nil, fmt.Errorf("fetch market %s: %w", id, err)
	}
	if market.ID == "" {
		return nil, fmt.Errorf("fetch market %s: %w", id, fetch.ErrNotFound)
	}
	return &market, nil
}

// MarketBySlug fetches /markets?slug=. An empty result matches fetch.ErrNotFound.
func (c *Client) MarketBySlug(ctx context.Context, slug string) (*types.Market, error) {
	params := url.Values{}
	params.Set("slug", slug)
	params.Set("include_tag", "true")
	requestURL := fmt.Sprintf("%s/markets?%s", c.baseURL, params.Encode())

	var markets []types.Market
	if err := c.fetch.GetJSON(ctx, requestURL, &markets); err != nil {
		return nil, fmt.Errorf("fetch market by slug %s: %w", slug, err)
	}

	for i := range markets {
		if strings.EqualFold(markets[i].Slug, slug) {
			return &markets[i], nil
		}
	}
	if len(markets) > 0 {
		return &markets[0], nil
	}
	return nil, fmt.Errorf("fetch market by slug %s: %w", slug, fetch.ErrNotFound)
}

// ListTags fetches the category tags.
func (c *Client) ListTags(ctx context.Context) ([]types.Tag, error) {
	requestURL := fmt.Sprintf("%s/tags?limit=%d", c.baseURL, defaultTagLimit)

	var raw []struct {
		ID    any    `json:"id"`
		Label string `json:"label"`
		Slug  string `json:"slug"`
	}
	if err := c.fetch.GetJSON(ctx, requestURL, &raw); err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}

	tags := make([]types.Tag, 0, len(raw))
	for _, t := range raw {
		if t.Label == "" {
			continue
		}
		tags = append(tags, types.Tag{ID: fmt.Sprint(t.ID), Label: t.Label, Slug: t.Slug})
	}
	return tags, nil
}

// MarketHistory fetches /markets/{id}/prices-history.
func (c *Client) MarketHistory(ctx context.Context, id string, r types.HistoryRange) ([]types.PricePoint, error) {
	requestURL := fmt.Sprintf("%s/markets/%s/prices-history?interval=%s",
		c.baseURL, url.PathEscape(id), url.QueryEscape(r.Interval()))
	return c.history(ctx, requestURL)
}

// MarketHistoryAlt fetches the alternate /prices-history?market={id} path.
func (c *Client) MarketHistoryAlt(ctx context.Context, id string, r types.HistoryRange) ([]types.PricePoint, error) {
	params := url.Values{}
	params.Set("market", id)
	params.Set("interval", r.Interval())
	requestURL := fmt.Sprintf("%s/prices-history?%s", c.baseURL, params.Encode())
	return c.history(ctx, requestURL)
}

func (c *Client) history(ctx context.Context, requestURL string) ([]types.PricePoint, error) {
	var resp types.PriceHistoryResponse
	if err := c.fetch.GetJSON(ctx, requestURL, &resp); err != nil {
		if errors.Is(err, fetch.ErrMalformedPayload) {
			c.logger.Debug("history-malformed-payload", zap.String("url", requestURL), zap.Error(err))
		}
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	return resp.Points(), nil
}
