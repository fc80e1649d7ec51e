package realtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"klinehub/pkg/cache"
	"klinehub/pkg/logger"
	"klinehub/pkg/provider/core"
	"klinehub/pkg/storage"
)

// Monitor 实时价格采集器
// 优先取网关的实时快照；快照不可用时回退到最新一根1分钟K线的收盘价。
type Monitor struct {
	provider core.MarketDataProvider
	store    *storage.CSVStore
	cache    *cache.TickCache // 可选
	log      *logrus.Entry
}

// NewMonitor 创建实时价格采集器，tickCache 可为 nil
func NewMonitor(provider core.MarketDataProvider, store *storage.CSVStore, tickCache *cache.TickCache) *Monitor {
	return &Monitor{
		provider: provider,
		store:    store,
		cache:    tickCache,
		log:      logger.WithComponent("RealtimeMonitor"),
	}
}

// Snapshot 获取一次实时快照并持久化，返回快照与落地文件名
func (m *Monitor) Snapshot(ctx context.Context, symbol string) (*core.Tick, string, error) {
	tick, err := m.fetch(ctx, symbol)
	if err != nil {
		return nil, "", err
	}

	filename, err := m.store.SaveTick(tick)
	if err != nil {
		return tick, "", fmt.Errorf("实时快照持久化失败: %w", err)
	}

	if m.cache != nil {
		m.cache.SetBestEffort(ctx, tick)
	}

	return tick, filename, nil
}

func (m *Monitor) fetch(ctx context.Context, symbol string) (*core.Tick, error) {
	tick, err := m.provider.GetLatestTick(ctx, symbol)
	if err == nil && tick != nil {
		tick.Source = "tick"
		return tick, nil
	}

	if err != nil && !errors.Is(err, core.ErrTickNotAvailable) {
		return nil, fmt.Errorf("获取实时快照失败: %w", err)
	}

	// 非交易时段网关常无tick数据，回退到最新1分钟K线
	m.log.Debugf("%s 无实时tick数据，回退到K线收盘价", symbol)

	candles, err := m.provider.GetCandlesByCount(ctx, symbol, "1m", 1, "none")
	if err != nil {
		return nil, fmt.Errorf("K线回退获取失败: %w", err)
	}
	if len(candles) == 0 {
		return nil, core.ErrTickNotAvailable
	}

	last := candles[len(candles)-1]
	return &core.Tick{
		Symbol:    symbol,
		Price:     last.Close,
		Open:      last.Open,
		High:      last.High,
		Low:       last.Low,
		Volume:    last.Volume,
		Turnover:  last.Turnover,
		Timestamp: last.Timestamp,
		Source:    "kline",
	}, nil
}
