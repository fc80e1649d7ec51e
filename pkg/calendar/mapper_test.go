package calendar

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"klinehub/pkg/timing"
)

// newTestMapper 构造使用固定日历与固定时间的映射器
func newTestMapper(t *testing.T, dates []string, now time.Time) *Mapper {
	provider := &mockDateProvider{dates: dates}
	ts := &fixedTime{t: now}
	resolver := NewResolver(provider, "XSHG", WithTimeService(ts))
	return NewMapper(resolver, timing.NewMarketTime(ts), 30)
}

func TestParseToken(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		kind    TokenKind
		wantErr bool
	}{
		{"空字符串", "", TokenNone, false},
		{"today", "today", TokenToday, false},
		{"大小写混合", " Today ", TokenToday, false},
		{"yesterday", "yesterday", TokenYesterday, false},
		{"标准日期", "2024-01-31", TokenExplicit, false},
		{"紧凑日期", "20240131", TokenExplicit, false},
		{"非法日期", "2024-13-99", 0, true},
		{"非法紧凑日期", "20241399", 0, true},
		{"非法格式", "tomorrow", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, err := ParseToken(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidDateFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, tok.Kind)
		})
	}
}

func TestMapper_ResolveToday_ActiveSession(t *testing.T) {
	// 2025-08-28 周四 10:00，盘中
	now := mustTime(t, "2025-08-28 10:00:00")
	m := newTestMapper(t, []string{"20250826", "20250827", "20250828"}, now)

	got, err := m.Resolve(context.Background(), Token{Kind: TokenToday}, now)

	require.NoError(t, err)
	assert.Equal(t, "2025-08-28", got.Format("2006-01-02"))
}

func TestMapper_ResolveToday_PreMarket(t *testing.T) {
	// 2025-08-28 周四 08:30，开盘前应映射到上一交易日
	now := mustTime(t, "2025-08-28 08:30:00")
	m := newTestMapper(t, []string{"20250826", "20250827", "20250828"}, now)

	got, err := m.Resolve(context.Background(), Token{Kind: TokenToday}, now)

	require.NoError(t, err)
	assert.Equal(t, "2025-08-27", got.Format("2006-01-02"))
}

func TestMapper_ResolveToday_PreMarketNoPredecessor(t *testing.T) {
	// 开盘前但日历中没有更早的条目，仍返回今日
	now := mustTime(t, "2025-08-28 08:30:00")
	m := newTestMapper(t, []string{"20250828"}, now)

	got, err := m.Resolve(context.Background(), Token{Kind: TokenToday}, now)

	require.NoError(t, err)
	assert.Equal(t, "2025-08-28", got.Format("2006-01-02"))
}

func TestMapper_ResolveToday_AfterClose(t *testing.T) {
	// 收盘后，今日数据已完整，返回今日
	now := mustTime(t, "2025-08-28 16:00:00")
	m := newTestMapper(t, []string{"20250827", "20250828"}, now)

	got, err := m.Resolve(context.Background(), Token{Kind: TokenToday}, now)

	require.NoError(t, err)
	assert.Equal(t, "2025-08-28", got.Format("2006-01-02"))
}

func TestMapper_ResolveToday_NonTradingDay(t *testing.T) {
	// 2025-08-30 周六，映射到最近一个早于今日的交易日
	now := mustTime(t, "2025-08-30 10:00:00")
	m := newTestMapper(t, []string{"20250828", "20250829", "20250901"}, now)

	got, err := m.Resolve(context.Background(), Token{Kind: TokenToday}, now)

	require.NoError(t, err)
	assert.Equal(t, "2025-08-29", got.Format("2006-01-02"))
}

func TestMapper_ResolveToday_EmptyCalendar(t *testing.T) {
	// 日历为空时退化为今日（备用日历永不为空，此处直接构造空解析结果）
	now := mustTime(t, "2025-08-28 10:00:00")
	m := newTestMapper(t, nil, now)

	got, err := m.Resolve(context.Background(), Token{Kind: TokenToday}, now)

	require.NoError(t, err)
	// 提供商为空会触发备用周内日历，今日是周四应包含在内
	assert.Equal(t, "2025-08-28", got.Format("2006-01-02"))
}

func TestMapper_ResolveYesterday_IsPredecessorOfToday(t *testing.T) {
	now := mustTime(t, "2025-08-28 10:00:00")
	m := newTestMapper(t, []string{"20250826", "20250827", "20250828"}, now)

	today, err := m.Resolve(context.Background(), Token{Kind: TokenToday}, now)
	require.NoError(t, err)
	yesterday, err := m.Resolve(context.Background(), Token{Kind: TokenYesterday}, now)
	require.NoError(t, err)

	assert.Equal(t, "2025-08-28", today.Format("2006-01-02"))
	assert.Equal(t, "2025-08-27", yesterday.Format("2006-01-02"))
}

func TestMapper_ResolveYesterday_SingleEntryCalendar(t *testing.T) {
	// 日历只有一个条目时，yesterday 返回该条目而非报错
	now := mustTime(t, "2025-08-28 10:00:00")
	m := newTestMapper(t, []string{"20250828"}, now)

	got, err := m.Resolve(context.Background(), Token{Kind: TokenYesterday}, now)

	require.NoError(t, err)
	assert.Equal(t, "2025-08-28", got.Format("2006-01-02"))
}

func TestMapper_ResolveExplicit(t *testing.T) {
	now := mustTime(t, "2025-08-28 10:00:00")
	m := newTestMapper(t, []string{"20250828"}, now)

	tok, err := ParseToken("2024-01-15")
	require.NoError(t, err)

	got, err := m.Resolve(context.Background(), tok, now)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15", got.Format("2006-01-02"))
}

func TestMapper_ResolveNone(t *testing.T) {
	now := mustTime(t, "2025-08-28 10:00:00")
	m := newTestMapper(t, []string{"20250828"}, now)

	got, err := m.Resolve(context.Background(), Token{Kind: TokenNone}, now)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}
