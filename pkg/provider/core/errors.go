package core

import "errors"

// 定义核心错误
var (
	// ErrInvalidSymbol 无效的股票代码错误
	ErrInvalidSymbol = errors.New("invalid symbol")

	// ErrInvalidPeriod 不支持的时间周期错误
	ErrInvalidPeriod = errors.New("invalid period")

	// ErrTickNotAvailable 实时行情暂不可用错误
	ErrTickNotAvailable = errors.New("tick not available")

	// ErrEmptyResponse 提供商返回空响应错误
	ErrEmptyResponse = errors.New("empty response")

	// ErrProviderNotHealthy 提供商不健康错误
	ErrProviderNotHealthy = errors.New("provider is not healthy")

	// ErrRateLimitExceeded 频率限制超出错误
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrProviderClosed 提供商已关闭错误
	ErrProviderClosed = errors.New("provider is closed")
)

// SupportedPeriods 支持的K线周期列表
var SupportedPeriods = []string{"1m", "5m", "15m", "30m", "60m", "1d", "1w", "1M"}

// IsPeriodSupported 判断周期是否受支持
func IsPeriodSupported(period string) bool {
	for _, p := range SupportedPeriods {
		if p == period {
			return true
		}
	}
	return false
}

// IsMinutePeriod 判断是否为分钟级周期
func IsMinutePeriod(period string) bool {
	switch period {
	case "1m", "5m", "15m", "30m", "60m":
		return true
	}
	return false
}
