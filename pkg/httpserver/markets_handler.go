package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/mselser95/polymarket-lens/pkg/types"
	"go.uber.org/zap"
)

// MarketService is the query surface served under /api.
type MarketService interface {
	FetchMarkets(ctx context.Context, q types.MarketQuery) (*types.MarketsResult, error)
	FetchMarketDetail(ctx context.Context, id string) (*types.MarketDetail, error)
	FetchMarketHistory(ctx context.Context, id string, r types.HistoryRange) (*types.HistoryResult, error)
	FetchOrderBook(ctx context.Context, tokenID string) (*types.OrderBookResult, error)
	FetchCategories(ctx context.Context) *types.CategoriesResult
	ClearCache()
	Invalidate(pattern string) int
}

// MarketsHandler handles HTTP requests for market data.
type MarketsHandler struct {
	markets MarketService
	logger  *zap.Logger
}

// NewMarketsHandler creates a new markets handler.
func NewMarketsHandler(markets MarketService, logger *zap.Logger) *MarketsHandler {
	return &MarketsHandler{markets: markets, logger: logger}
}

// ErrorResponse represents an HTTP error response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

// CacheResponse is the response of DELETE /api/cache.
type CacheResponse struct {
	Cleared bool   `json:"cleared"`
	Pattern string `json:"pattern,omitempty"`
	Removed int    `json:"removed"`
}

// HandleMarkets handles GET /api/markets.
//
// Query parameters: active, closed, limit, offset, sort, order, category, q, enrich.
func (h *MarketsHandler) HandleMarkets(w http.ResponseWriter, r *http.Request) {
	q, err := parseMarketQuery(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	res, err := h.markets.FetchMarkets(r.Context(), q)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// HandleMarketDetail handles GET /api/markets/{id}. The id may also be a slug.
func (h *MarketsHandler) HandleMarketDetail(w http.ResponseWriter, r *http.Request) {
	res, err := h.markets.FetchMarketDetail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// HandleMarketHistory handles GET /api/markets/{id}/history?range=.
func (h *MarketsHandler) HandleMarketHistory(w http.ResponseWriter, r *http.Request) {
	rng, err := types.ParseHistoryRange(r.URL.Query().Get("range"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	res, err := h.markets.FetchMarketHistory(r.Context(), chi.URLParam(r, "id"), rng)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// HandleOrderBook handles GET /api/orderbook?token_id=.
func (h *MarketsHandler) HandleOrderBook(w http.ResponseWriter, r *http.Request) {
	tokenID := r.URL.Query().Get("token_id")
	if tokenID == "" {
		h.writeError(w, fmt.Errorf("%w: missing required query parameter: token_id", types.ErrInvalidQuery))
		return
	}

	res, err := h.markets.FetchOrderBook(r.Context(), tokenID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// HandleCategories handles GET /api/categories.
func (h *MarketsHandler) HandleCategories(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.markets.FetchCategories(r.Context()))
}

// HandleClearCache handles DELETE /api/cache. With ?pattern= only matching
// keys are dropped.
func (h *MarketsHandler) HandleClearCache(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		h.markets.ClearCache()
		h.writeJSON(w, http.StatusOK, CacheResponse{Cleared: true})
		return
	}

	removed := h.markets.Invalidate(pattern)
	h.writeJSON(w, http.StatusOK, CacheResponse{Pattern: pattern, Removed: removed})
}

func parseMarketQuery(r *http.Request) (types.MarketQuery, error) {
	values := r.URL.Query()
	q := types.DefaultMarketQuery()

	var err error
	if q.Active, err = boolParam(values.Get("active"), q.Active); err != nil {
		return q, err
	}
	if q.Closed, err = boolParam(values.Get("closed"), q.Closed); err != nil {
		return q, err
	}
	if q.Enrich, err = boolParam(values.Get("enrich"), q.Enrich); err != nil {
		return q, err
	}
	if q.Limit, err = intParam(values.Get("limit"), q.Limit); err != nil {
		return q, err
	}
	if q.Offset, err = intParam(values.Get("offset"), q.Offset); err != nil {
		return q, err
	}
	if s := values.Get("sort"); s != "" {
		q.SortBy = s
	}
	if s := values.Get("order"); s != "" {
		q.SortDirection = s
	}
	q.Category = values.Get("category")
	q.Query = values.Get("q")

	return q, nil
}

func boolParam(raw string, def bool) (bool, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def, fmt.Errorf("%w: invalid boolean %q", types.ErrInvalidQuery, raw)
	}
	return v, nil
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def, fmt.Errorf("%w: invalid integer %q", types.ErrInvalidQuery, raw)
	}
	return v, nil
}

// statusFor maps query errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrMarketNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrInvalidQuery):
		return http.StatusBadRequest
	case types.IsRetryable(err), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *MarketsHandler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Warn("api-request-failed", zap.Int("status", status), zap.Error(err))
	}

	h.writeJSON(w, status, ErrorResponse{
		Error:     err.Error(),
		Retryable: status == http.StatusServiceUnavailable,
	})
}

func (h *MarketsHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed-to-encode-response", zap.Error(err))
	}
}
