package decorators

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"klinehub/pkg/logger"
	"klinehub/pkg/provider/core"
)

// CircuitBreakerProvider 熔断器装饰器
// 使用 sony/gobreaker 保护行情网关：连续失败达到阈值后快速失败一段时间，
// 避免在网关不可用时持续占用符号锁等待超时。
type CircuitBreakerProvider struct {
	inner  core.MarketDataProvider
	cb     *gobreaker.CircuitBreaker
	config *CircuitBreakerConfig
	log    *logrus.Entry
}

// CircuitBreakerConfig 熔断器配置
type CircuitBreakerConfig struct {
	Name        string        `mapstructure:"name"`          // 熔断器名称
	MaxRequests uint32        `mapstructure:"max_requests"`  // 半开状态下的最大请求数
	Interval    time.Duration `mapstructure:"interval"`      // 统计窗口时间
	Timeout     time.Duration `mapstructure:"timeout"`       // 熔断器打开后的超时时间
	ReadyToTrip uint32        `mapstructure:"ready_to_trip"` // 触发熔断的连续失败次数阈值
	Enabled     bool          `mapstructure:"enabled"`       // 是否启用熔断器
}

// DefaultCircuitBreakerConfig 默认熔断器配置
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Name:        "MarketDataProvider",
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: 5,
		Enabled:     true,
	}
}

// NewCircuitBreakerProvider 创建熔断器装饰器
func NewCircuitBreakerProvider(inner core.MarketDataProvider, config *CircuitBreakerConfig) *CircuitBreakerProvider {
	if config == nil {
		config = DefaultCircuitBreakerConfig()
	}

	log := logger.WithComponent("CircuitBreaker")

	settings := gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.ReadyToTrip
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnf("熔断器 %s 状态从 %v 变更为 %v", name, from, to)
		},
	}

	return &CircuitBreakerProvider{
		inner:  inner,
		cb:     gobreaker.NewCircuitBreaker(settings),
		config: config,
		log:    log,
	}
}

// Name 返回装饰器名称
func (c *CircuitBreakerProvider) Name() string {
	return fmt.Sprintf("CircuitBreaker(%s)", c.inner.Name())
}

// IsHealthy 检查健康状态，熔断器打开状态视为不健康
func (c *CircuitBreakerProvider) IsHealthy() bool {
	if !c.config.Enabled {
		return c.inner.IsHealthy()
	}
	return c.cb.State() != gobreaker.StateOpen && c.inner.IsHealthy()
}

// DownloadHolidayData 节假日刷新本身是尽力而为操作，不经过熔断器
func (c *CircuitBreakerProvider) DownloadHolidayData(ctx context.Context) error {
	return c.inner.DownloadHolidayData(ctx)
}

// GetTradingDates 实现带熔断的交易日查询
func (c *CircuitBreakerProvider) GetTradingDates(ctx context.Context, market string, start, end time.Time) ([]string, error) {
	return execute(c, func() ([]string, error) {
		return c.inner.GetTradingDates(ctx, market, start, end)
	})
}

// GetCandlesByRange 实现带熔断的范围K线查询
func (c *CircuitBreakerProvider) GetCandlesByRange(ctx context.Context, symbol, period string, start, end time.Time, dividendType string) ([]core.Candle, error) {
	return execute(c, func() ([]core.Candle, error) {
		return c.inner.GetCandlesByRange(ctx, symbol, period, start, end, dividendType)
	})
}

// GetCandlesByCount 实现带熔断的最新N根K线查询
func (c *CircuitBreakerProvider) GetCandlesByCount(ctx context.Context, symbol, period string, count int, dividendType string) ([]core.Candle, error) {
	return execute(c, func() ([]core.Candle, error) {
		return c.inner.GetCandlesByCount(ctx, symbol, period, count, dividendType)
	})
}

// GetLatestTick 实现带熔断的实时快照查询
func (c *CircuitBreakerProvider) GetLatestTick(ctx context.Context, symbol string) (*core.Tick, error) {
	return execute(c, func() (*core.Tick, error) {
		return c.inner.GetLatestTick(ctx, symbol)
	})
}

// Close 透传给内层提供商
func (c *CircuitBreakerProvider) Close() error {
	if closer, ok := c.inner.(core.Closable); ok {
		return closer.Close()
	}
	return nil
}

// execute 通过熔断器执行一次网关调用
func execute[T any](c *CircuitBreakerProvider, fn func() (T, error)) (T, error) {
	if !c.config.Enabled {
		return fn()
	}

	result, err := c.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}
