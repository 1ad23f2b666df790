package app

import (
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/mselser95/polymarket-lens/internal/testutil"
	"github.com/mselser95/polymarket-lens/pkg/config"
	"github.com/mselser95/polymarket-lens/pkg/healthprobe"
	"github.com/mselser95/polymarket-lens/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testConfig(t *testing.T, gammaURL, clobURL string) *config.Config {
	t.Helper()
	t.Setenv("POLYMARKET_GAMMA_API_URL", gammaURL)
	t.Setenv("POLYMARKET_CLOB_API_URL", clobURL)
	t.Setenv("HTTP_PORT", "0")
	t.Setenv("STORAGE_MODE", "memory")
	t.Setenv("PRICE_FEED_ENABLED", "false")
	t.Setenv("FETCH_MAX_ATTEMPTS", "1")

	cfg, err := config.LoadFromEnv()
	require.NoError(t, err)
	return cfg
}

// apiListing is the HTTP shape of a listing; types.Market decodes the Gamma
// wire format, not its own encoding.
type apiListing struct {
	Markets []struct {
		ID       string                `json:"id"`
		Outcomes []types.MarketOutcome `json:"outcomes"`
	} `json:"markets"`
	Meta types.FetchMeta `json:"meta"`
}

type apiDetail struct {
	Market struct {
		ID string `json:"id"`
	} `json:"market"`
	Meta types.FetchMeta `json:"meta"`
}

func newTestApp(t *testing.T, cfg *config.Config, opts *Options) *App {
	t.Helper()
	a, err := New(cfg, zaptest.NewLogger(t), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown() })
	return a
}

func TestNew_ServesMarketListing(t *testing.T) {
	gamma := testutil.NewMockGammaAPI(testutil.CreateTestMarkets(3, nil))
	defer gamma.Close()
	clob := testutil.NewMockCLOBAPI()
	defer clob.Close()
	clob.SetMidpoint("m0-yes", 0.7)

	a := newTestApp(t, testConfig(t, gamma.URL, clob.URL), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/markets?limit=3", nil)
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var result apiListing
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Markets, 3)
	assert.Equal(t, "m0", result.Markets[0].ID)
	assert.InDelta(t, 0.7, result.Markets[0].Outcomes[0].Price, 1e-9)
	assert.Equal(t, types.CacheMiss, result.Meta.CacheStatus)
}

func TestNew_EngineSharesCacheWithHandler(t *testing.T) {
	gamma := testutil.NewMockGammaAPI(testutil.CreateTestMarkets(2, nil))
	defer gamma.Close()
	clob := testutil.NewMockCLOBAPI()
	defer clob.Close()

	a := newTestApp(t, testConfig(t, gamma.URL, clob.URL), &Options{OneShot: true})

	_, err := a.Engine().FetchMarketDetail(t.Context(), "m1")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/markets/m1", nil)
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var detail apiDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, "m1", detail.Market.ID)
	assert.Equal(t, types.CacheHit, detail.Meta.CacheStatus)
	assert.Equal(t, 1, gamma.Calls("/markets/m1"))
}

func TestNew_StorageModes(t *testing.T) {
	gamma := testutil.NewMockGammaAPI(nil)
	defer gamma.Close()
	clob := testutil.NewMockCLOBAPI()
	defer clob.Close()

	t.Run("none", func(t *testing.T) {
		cfg := testConfig(t, gamma.URL, clob.URL)
		cfg.StorageMode = "none"
		a := newTestApp(t, cfg, nil)
		assert.Nil(t, a.archive)
	})

	t.Run("memory", func(t *testing.T) {
		a := newTestApp(t, testConfig(t, gamma.URL, clob.URL), nil)
		assert.NotNil(t, a.archive)
	})

	t.Run("invalid", func(t *testing.T) {
		cfg := testConfig(t, gamma.URL, clob.URL)
		cfg.StorageMode = "sqlite"
		_, err := New(cfg, zaptest.NewLogger(t), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid storage mode")
	})
}

func TestNew_OneShotSkipsBackgroundComponents(t *testing.T) {
	gamma := testutil.NewMockGammaAPI(nil)
	defer gamma.Close()
	clob := testutil.NewMockCLOBAPI()
	defer clob.Close()

	cfg := testConfig(t, gamma.URL, clob.URL)
	cfg.PriceFeedEnabled = true

	oneShot := newTestApp(t, cfg, &Options{OneShot: true})
	assert.Nil(t, oneShot.priceFeed)
	assert.Nil(t, oneShot.discoveryService)

	full := newTestApp(t, cfg, nil)
	assert.NotNil(t, full.priceFeed)
	assert.NotNil(t, full.discoveryService)
}

func TestReady_ReportsDisconnectedPriceFeed(t *testing.T) {
	gamma := testutil.NewMockGammaAPI(nil)
	defer gamma.Close()
	clob := testutil.NewMockCLOBAPI()
	defer clob.Close()

	cfg := testConfig(t, gamma.URL, clob.URL)
	cfg.PriceFeedEnabled = true

	a := newTestApp(t, cfg, nil)
	a.healthChecker.SetReady(true)

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp healthprobe.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "disconnected", resp.Checks["price-feed"])
}

func TestShutdown_WithoutRunIsIdempotent(t *testing.T) {
	gamma := testutil.NewMockGammaAPI(nil)
	defer gamma.Close()
	clob := testutil.NewMockCLOBAPI()
	defer clob.Close()

	a, err := New(testConfig(t, gamma.URL, clob.URL), zaptest.NewLogger(t), nil)
	require.NoError(t, err)

	require.NoError(t, a.Shutdown())
	require.NoError(t, a.Shutdown())
}
