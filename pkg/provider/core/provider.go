package core

import (
	"context"
	"time"
)

// MarketDataProvider 行情数据提供商接口
// 封装底层行情网关（如 xtquant 桥接服务），上层不感知其实现细节
type MarketDataProvider interface {
	// Name 返回提供商名称，用于标识和日志记录
	Name() string

	// DownloadHolidayData 触发节假日数据刷新（尽力而为，失败不阻断后续查询）
	DownloadHolidayData(ctx context.Context) error

	// GetTradingDates 获取交易日列表
	// market: 市场代码，如 "XSHG"
	// 返回紧凑格式日期字符串列表，如 ["20250825", "20250826"]
	GetTradingDates(ctx context.Context, market string, start, end time.Time) ([]string, error)

	// GetCandlesByRange 按时间范围获取K线数据
	GetCandlesByRange(ctx context.Context, symbol, period string, start, end time.Time, dividendType string) ([]Candle, error)

	// GetCandlesByCount 获取最新的 count 根K线
	// count <= 0 表示获取全量历史
	GetCandlesByCount(ctx context.Context, symbol, period string, count int, dividendType string) ([]Candle, error)

	// GetLatestTick 获取最新实时行情快照，无数据时返回 ErrTickNotAvailable
	GetLatestTick(ctx context.Context, symbol string) (*Tick, error)

	// IsHealthy 检查提供商健康状态
	IsHealthy() bool
}

// Closable 可关闭接口
// 需要清理资源的提供商应实现此接口
type Closable interface {
	Close() error
}
