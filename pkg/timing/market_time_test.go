package timing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// MockTimeService 模拟时间服务
type MockTimeService struct {
	current time.Time
}

func (m *MockTimeService) Now() time.Time {
	return m.current
}

func TestMarketTime_IntradayWindow_AllCases(t *testing.T) {
	// 测试边界条件：准确的时间窗口检测
	tests := []struct {
		name     string
		mockTime string
		expected bool
	}{
		// 上午时段边界测试
		{"开盘前-09:14:59", "2025-08-21 09:14:59", false},
		{"集合竞价-09:15:00", "2025-08-21 09:15:00", true},
		{"正常交易-10:00:00", "2025-08-21 10:00:00", true},
		{"上午收盘-11:30:00", "2025-08-21 11:30:00", true},
		{"午间休市-11:30:01", "2025-08-21 11:30:01", false},

		// 下午时段边界测试
		{"午间休市-12:59:59", "2025-08-21 12:59:59", false},
		{"下午开盘-13:00:00", "2025-08-21 13:00:00", true},
		{"下午正常-14:00:00", "2025-08-21 14:00:00", true},
		{"收盘-15:00:00", "2025-08-21 15:00:00", true},
		{"收盘后-15:00:01", "2025-08-21 15:00:01", false},

		// 非交易日测试
		{"周六-休市", "2025-08-23 10:00:00", false},
		{"周日-休市", "2025-08-24 10:00:00", false},

		// 边沿时间测试
		{"凌晨-02:00:00", "2025-08-21 02:00:00", false},
		{"深夜-22:00:00", "2025-08-21 22:00:00", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockTime, _ := time.Parse("2006-01-02 15:04:05", tt.mockTime)
			mt := NewMarketTime(&MockTimeService{current: mockTime})

			assert.Equal(t, tt.expected, mt.IsSessionActiveAt(mockTime, WindowIntraday),
				"时间 %s 的盘中状态应匹配预期", mockTime.Format("15:04:05"))
		})
	}
}

func TestMarketTime_CoarseWindow_AllCases(t *testing.T) {
	tests := []struct {
		name     string
		mockTime string
		expected bool
	}{
		{"窗口前-08:59:59", "2025-08-21 08:59:59", false},
		{"窗口起点-09:00:00", "2025-08-21 09:00:00", true},
		{"午间休市仍活跃-12:00:00", "2025-08-21 12:00:00", true},
		{"窗口终点-15:30:00", "2025-08-21 15:30:00", true},
		{"窗口后-15:30:01", "2025-08-21 15:30:01", false},
		{"周六-休市", "2025-08-23 10:00:00", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockTime, _ := time.Parse("2006-01-02 15:04:05", tt.mockTime)
			mt := NewMarketTime(&MockTimeService{current: mockTime})

			assert.Equal(t, tt.expected, mt.IsSessionActiveAt(mockTime, WindowCoarse))
		})
	}
}

func TestMarketTime_TradingDay(t *testing.T) {
	tests := []struct {
		name     string
		mockTime string
		expected bool
	}{
		{"周一-交易日", "2025-08-25", true},
		{"周五-交易日", "2025-08-29", true},
		{"周六-休市", "2025-08-23", false},
		{"周日-休市", "2025-08-24", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockTime, _ := time.Parse("2006-01-02", tt.mockTime)
			mt := DefaultMarketTime()

			assert.Equal(t, tt.expected, mt.IsTradingDay(mockTime))
		})
	}
}

func TestMarketTime_BeforeMarketOpen(t *testing.T) {
	mt := DefaultMarketTime()

	early, _ := time.Parse("2006-01-02 15:04:05", "2025-08-21 08:30:00")
	late, _ := time.Parse("2006-01-02 15:04:05", "2025-08-21 09:00:00")

	assert.True(t, mt.IsBeforeMarketOpen(early))
	assert.False(t, mt.IsBeforeMarketOpen(late))
}
