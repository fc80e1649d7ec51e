package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"klinehub/pkg/calendar"
	"klinehub/pkg/config"
	"klinehub/pkg/instant"
	"klinehub/pkg/provider/core"
	"klinehub/pkg/query"
	"klinehub/pkg/realtime"
	"klinehub/pkg/storage"
	"klinehub/pkg/timing"
)

// stubProvider 固定数据的模拟行情提供商
type stubProvider struct {
	healthy bool
	tickErr error
}

func (p *stubProvider) Name() string    { return "stub" }
func (p *stubProvider) IsHealthy() bool { return p.healthy }

func (p *stubProvider) DownloadHolidayData(ctx context.Context) error { return nil }

func (p *stubProvider) GetTradingDates(ctx context.Context, market string, start, end time.Time) ([]string, error) {
	return []string{"20250827", "20250828"}, nil
}

func (p *stubProvider) GetCandlesByRange(ctx context.Context, symbol, period string, start, end time.Time, dividendType string) ([]core.Candle, error) {
	return p.GetCandlesByCount(ctx, symbol, period, 5, dividendType)
}

func (p *stubProvider) GetCandlesByCount(ctx context.Context, symbol, period string, count int, dividendType string) ([]core.Candle, error) {
	base := time.Date(2025, 8, 28, 9, 30, 0, 0, time.Local)
	out := make([]core.Candle, 0, 5)
	for i := 0; i < 5; i++ {
		out = append(out, core.Candle{
			Symbol:    symbol,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Open:      10,
			High:      10.2,
			Low:       9.9,
			Close:     10.1,
			Volume:    100,
			Period:    period,
		})
	}
	return out, nil
}

func (p *stubProvider) GetLatestTick(ctx context.Context, symbol string) (*core.Tick, error) {
	if p.tickErr != nil {
		return nil, p.tickErr
	}
	return &core.Tick{Symbol: symbol, Price: 10.5, Timestamp: time.Now()}, nil
}

func newTestServer(t *testing.T, provider *stubProvider) *Server {
	gin.SetMode(gin.TestMode)

	store, err := storage.NewCSVStore(t.TempDir())
	require.NoError(t, err)

	resolver := calendar.NewResolver(provider, "XSHG")
	mapper := calendar.NewMapper(resolver, timing.DefaultMarketTime(), 30)
	selector := query.NewSelector(mapper)
	monitor := realtime.NewMonitor(provider, store, nil)
	orchestrator := instant.NewOrchestrator(provider, selector, store, monitor, nil)

	cfg := config.Default()
	return NewServer(cfg.Server, cfg.Instant, provider, orchestrator, monitor, store, nil, nil)
}

func doRequest(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestServer_HealthCheck(t *testing.T) {
	provider := &stubProvider{healthy: true}
	srv := newTestServer(t, provider)
	router := srv.Router()

	w := doRequest(router, http.MethodGet, "/health", nil)
	assert.Equal(t, 200, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])

	// 网关不可用时降级
	provider.healthy = false
	w = doRequest(router, http.MethodGet, "/health", nil)
	assert.Equal(t, 503, w.Code)
}

func TestServer_InstantQuery(t *testing.T) {
	srv := newTestServer(t, &stubProvider{healthy: true})
	router := srv.Router()

	w := doRequest(router, http.MethodPost, "/api/instant_query", map[string]any{
		"stock_code": "600689SH",
		"periods":    []string{"1d"},
	})
	require.Equal(t, 200, w.Code, w.Body.String())

	var result instant.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, "600689.SH", result.Symbol)
	assert.Len(t, result.KlineFiles, 1)
	assert.NotNil(t, result.Realtime)
}

func TestServer_InstantQuery_BadRequest(t *testing.T) {
	srv := newTestServer(t, &stubProvider{healthy: true})
	router := srv.Router()

	// 缺少 stock_code
	w := doRequest(router, http.MethodPost, "/api/instant_query", map[string]any{})
	assert.Equal(t, 400, w.Code)

	// 非法股票代码
	w = doRequest(router, http.MethodPost, "/api/instant_query", map[string]any{
		"stock_code": "600689",
	})
	assert.Equal(t, 400, w.Code)

	// 非法周期
	w = doRequest(router, http.MethodPost, "/api/instant_query", map[string]any{
		"stock_code": "600689.SH",
		"periods":    []string{"2h"},
	})
	assert.Equal(t, 400, w.Code)
}

func TestServer_GetRealtime(t *testing.T) {
	srv := newTestServer(t, &stubProvider{healthy: true})
	router := srv.Router()

	w := doRequest(router, http.MethodGet, "/api/realtime/sh600689", nil)
	require.Equal(t, 200, w.Code, w.Body.String())

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "tick", body["source"])

	data := body["data"].(map[string]any)
	assert.Equal(t, "600689.SH", data["symbol"])

	// 非法代码
	w = doRequest(router, http.MethodGet, "/api/realtime/abc", nil)
	assert.Equal(t, 400, w.Code)
}

func TestServer_FilesAndStats(t *testing.T) {
	srv := newTestServer(t, &stubProvider{healthy: true})
	router := srv.Router()

	// 先生成一些文件
	w := doRequest(router, http.MethodPost, "/api/instant_query", map[string]any{
		"stock_code": "600689.SH",
		"periods":    []string{"1d"},
	})
	require.Equal(t, 200, w.Code)

	w = doRequest(router, http.MethodGet, "/api/files", nil)
	require.Equal(t, 200, w.Code)

	var listing struct {
		Count int      `json:"count"`
		Files []string `json:"files"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listing))
	assert.GreaterOrEqual(t, listing.Count, 1)

	// 下载其中一个文件
	w = doRequest(router, http.MethodGet, "/api/files/"+listing.Files[0], nil)
	assert.Equal(t, 200, w.Code)
	assert.NotEmpty(t, w.Body.Bytes())

	// 路径穿越被拒绝
	w = doRequest(router, http.MethodGet, "/api/files/..%2Fsecret.csv", nil)
	assert.NotEqual(t, 200, w.Code)

	w = doRequest(router, http.MethodGet, "/api/stats", nil)
	require.Equal(t, 200, w.Code)

	var stats map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Contains(t, stats, "storage")
}

func TestServer_JobsWithoutScheduler(t *testing.T) {
	srv := newTestServer(t, &stubProvider{healthy: true})
	router := srv.Router()

	w := doRequest(router, http.MethodGet, "/api/jobs", nil)
	require.Equal(t, 200, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["enabled"])

	w = doRequest(router, http.MethodPost, "/api/jobs/any/run", nil)
	assert.Equal(t, 404, w.Code)
}
