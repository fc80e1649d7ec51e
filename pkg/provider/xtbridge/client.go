package xtbridge

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"klinehub/pkg/logger"
	"klinehub/pkg/provider/core"
)

// Provider xtquant桥接网关数据提供商
// 通过本机HTTP桥接服务访问券商行情终端，响应为GBK编码的文本协议
type Provider struct {
	baseURL     string
	httpClient  *http.Client
	lastRequest time.Time
	requestMu   sync.Mutex
	rateLimit   time.Duration
	maxRetries  int
	userAgent   string
	log         *logrus.Entry
}

// Config 桥接客户端配置
type Config struct {
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	RateLimit  time.Duration `mapstructure:"rate_limit"`
	UserAgent  string        `mapstructure:"user_agent"`
}

// DefaultConfig 默认桥接客户端配置
func DefaultConfig() Config {
	return Config{
		BaseURL:    "http://127.0.0.1:58610",
		Timeout:    15 * time.Second,
		MaxRetries: 3,
		RateLimit:  200 * time.Millisecond,
		UserAgent:  "KlineHub/1.0",
	}
}

// NewProvider 创建桥接数据提供商
func NewProvider(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg = DefaultConfig()
	}
	return &Provider{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     30 * time.Second,
				MaxConnsPerHost:     10,
			},
			Timeout: cfg.Timeout,
		},
		rateLimit:  cfg.RateLimit,
		maxRetries: cfg.MaxRetries,
		userAgent:  cfg.UserAgent,
		log:        logger.WithComponent("XTBridgeProvider"),
	}
}

// Name 返回提供商名称
func (p *Provider) Name() string {
	return "xtbridge"
}

// IsHealthy 检查桥接服务健康状态
func (p *Provider) IsHealthy() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err := p.get(ctx, "/api/health", nil)
	return err == nil
}

// DownloadHolidayData 触发桥接服务刷新节假日数据
func (p *Provider) DownloadHolidayData(ctx context.Context) error {
	_, err := p.get(ctx, "/api/holiday/refresh", nil)
	return err
}

// GetTradingDates 获取交易日列表，返回紧凑格式日期字符串
func (p *Provider) GetTradingDates(ctx context.Context, market string, start, end time.Time) ([]string, error) {
	body, err := p.get(ctx, "/api/trading_dates", url.Values{
		"market": {market},
		"start":  {start.Format("20060102")},
		"end":    {end.Format("20060102")},
	})
	if err != nil {
		return nil, err
	}
	return parseTradingDates(body), nil
}

// GetCandlesByRange 按时间范围获取K线数据
func (p *Provider) GetCandlesByRange(ctx context.Context, symbol, period string, start, end time.Time, dividendType string) ([]core.Candle, error) {
	body, err := p.get(ctx, "/api/kline", url.Values{
		"symbol":   {symbol},
		"period":   {period},
		"start":    {start.Format("20060102")},
		"end":      {end.Format("20060102")},
		"dividend": {dividendType},
	})
	if err != nil {
		return nil, err
	}
	return parseCandles(body, symbol, period, dividendType)
}

// GetCandlesByCount 获取最新的 count 根K线，count <= 0 表示全量
func (p *Provider) GetCandlesByCount(ctx context.Context, symbol, period string, count int, dividendType string) ([]core.Candle, error) {
	body, err := p.get(ctx, "/api/kline", url.Values{
		"symbol":   {symbol},
		"period":   {period},
		"count":    {strconv.Itoa(count)},
		"dividend": {dividendType},
	})
	if err != nil {
		return nil, err
	}
	return parseCandles(body, symbol, period, dividendType)
}

// GetLatestTick 获取最新实时行情快照
func (p *Provider) GetLatestTick(ctx context.Context, symbol string) (*core.Tick, error) {
	body, err := p.get(ctx, "/api/tick", url.Values{"symbol": {symbol}})
	if err != nil {
		return nil, err
	}
	return parseTick(body, symbol)
}

// Close 释放HTTP连接资源
func (p *Provider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// get 执行一次带限流与重试的GET请求，返回GBK解码后的响应文本
func (p *Provider) get(ctx context.Context, path string, params url.Values) (string, error) {
	if err := p.enforceRateLimit(); err != nil {
		return "", err
	}

	reqURL := p.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var lastErr error
	for i := 0; i < p.maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(i) * time.Second):
			}
		}

		req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
		if err != nil {
			lastErr = fmt.Errorf("create request failed: %w", err)
			continue
		}
		req.Header.Set("User-Agent", p.userAgent)

		resp, err := p.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("HTTP request failed: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response failed: %w", err)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("HTTP status error: %d", resp.StatusCode)
			continue
		}

		if len(body) == 0 {
			lastErr = core.ErrEmptyResponse
			continue
		}

		decoded, err := decodeGBK(body)
		if err != nil {
			lastErr = fmt.Errorf("decode response failed: %w", err)
			continue
		}
		return decoded, nil
	}

	p.log.Warnf("请求失败（重试 %d 次）: %s, %v", p.maxRetries, path, lastErr)
	return "", lastErr
}

// enforceRateLimit 保证两次请求之间的最小间隔
func (p *Provider) enforceRateLimit() error {
	p.requestMu.Lock()
	defer p.requestMu.Unlock()

	if elapsed := time.Since(p.lastRequest); elapsed < p.rateLimit {
		time.Sleep(p.rateLimit - elapsed)
	}
	p.lastRequest = time.Now()
	return nil
}
