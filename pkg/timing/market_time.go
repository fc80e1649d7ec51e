package timing

import (
	"time"
)

// TimeService 提供当前时间接口，用于mock测试
type TimeService interface {
	Now() time.Time
}

// SystemTimeService 使用系统实际时间
type SystemTimeService struct{}

func (s *SystemTimeService) Now() time.Time {
	return time.Now()
}

// WindowPolicy 交易时段窗口策略
type WindowPolicy int

const (
	// WindowIntraday 盘中精确时段：上午 09:15-11:30，下午 13:00-15:00
	WindowIntraday WindowPolicy = iota
	// WindowCoarse 粗粒度活跃时段：09:00-15:30，用于调度与存活判断
	WindowCoarse
)

// MarketTime 提供市场交易时间检测功能
type MarketTime struct {
	timeService TimeService
}

// NewMarketTime 创建新的市场时间检测器
func NewMarketTime(timeService TimeService) *MarketTime {
	return &MarketTime{
		timeService: timeService,
	}
}

// DefaultMarketTime 使用系统时间的默认市场时间检测器
func DefaultMarketTime() *MarketTime {
	return NewMarketTime(&SystemTimeService{})
}

// Now 返回当前时间
func (m *MarketTime) Now() time.Time {
	return m.timeService.Now()
}

// IsTradingDay 判断是否是交易日（周一到周五，不含节假日历）
func (m *MarketTime) IsTradingDay(t time.Time) bool {
	weekday := t.Weekday()
	return weekday >= time.Monday && weekday <= time.Friday
}

// IsSessionActiveAt 判断给定时刻是否处于指定策略的交易时段内。
// 周末永远返回 false。
func (m *MarketTime) IsSessionActiveAt(t time.Time, policy WindowPolicy) bool {
	if !m.IsTradingDay(t) {
		return false
	}

	currentTime := t.Format("15:04:05")

	switch policy {
	case WindowCoarse:
		return currentTime >= "09:00:00" && currentTime <= "15:30:00"
	default:
		// 上午时段含集合竞价，下午时段到收盘
		return (currentTime >= "09:15:00" && currentTime <= "11:30:00") ||
			(currentTime >= "13:00:00" && currentTime <= "15:00:00")
	}
}

// IsSessionActive 判断当前时刻是否处于指定策略的交易时段内
func (m *MarketTime) IsSessionActive(policy WindowPolicy) bool {
	return m.IsSessionActiveAt(m.timeService.Now(), policy)
}

// IsBeforeMarketOpen 判断给定时刻是否在当日开盘前（09:00 之前）
func (m *MarketTime) IsBeforeMarketOpen(t time.Time) bool {
	return t.Hour() < 9
}
