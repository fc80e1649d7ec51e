package calendar

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"klinehub/pkg/logger"
	"klinehub/pkg/timing"
)

// ErrInvalidDateFormat 无效的日期格式错误
var ErrInvalidDateFormat = errors.New("invalid date format, expect 'today', 'yesterday' or 'YYYY-MM-DD'")

// TokenKind 符号日期类型
type TokenKind int

const (
	// TokenNone 未指定日期
	TokenNone TokenKind = iota
	// TokenToday 今日（映射到最近的交易日）
	TokenToday
	// TokenYesterday 昨日（映射到上一个交易日）
	TokenYesterday
	// TokenExplicit 明确的 YYYY-MM-DD 日期
	TokenExplicit
)

// Token 符号日期
// today/yesterday 需要结合交易日历与当前时间才能解析为具体日期
type Token struct {
	Kind TokenKind
	Date time.Time // 仅 TokenExplicit 有效
	Raw  string
}

// IsSymbolic 判断是否为需要智能映射的符号日期（today/yesterday）
func (t Token) IsSymbolic() bool {
	return t.Kind == TokenToday || t.Kind == TokenYesterday
}

// IsZero 判断是否未指定日期
func (t Token) IsZero() bool {
	return t.Kind == TokenNone
}

// ParseToken 解析日期参数，支持特殊值 today 和 yesterday
// 空字符串返回 TokenNone，格式错误返回 ErrInvalidDateFormat
func ParseToken(s string) (Token, error) {
	s = strings.ToLower(strings.TrimSpace(s))

	switch s {
	case "":
		return Token{Kind: TokenNone}, nil
	case "today":
		return Token{Kind: TokenToday, Raw: "today"}, nil
	case "yesterday":
		return Token{Kind: TokenYesterday, Raw: "yesterday"}, nil
	}

	// 支持 2006-01-02 与紧凑的 20060102 两种写法
	layout := "2006-01-02"
	if len(s) == 8 {
		layout = "20060102"
	}
	d, err := time.ParseInLocation(layout, s, time.Local)
	if err != nil {
		return Token{}, ErrInvalidDateFormat
	}
	return Token{Kind: TokenExplicit, Date: d, Raw: s}, nil
}

// Mapper 相对日期映射器
// 将 today/yesterday 映射到实际交易日：
//   - today: 盘中返回今日；开盘前（9点前）返回上一交易日；收盘后返回今日；
//     非交易日返回最近一个已完成的交易日
//   - yesterday: today 结果在日历中的前一个条目
type Mapper struct {
	resolver   *Resolver
	market     *timing.MarketTime
	windowDays int
	log        *logrus.Entry
}

// NewMapper 创建相对日期映射器
// windowDays: 解析时向历史方向取日历的天数
func NewMapper(resolver *Resolver, market *timing.MarketTime, windowDays int) *Mapper {
	return &Mapper{
		resolver:   resolver,
		market:     market,
		windowDays: windowDays,
		log:        logger.WithComponent("DateMapper"),
	}
}

// IsSessionActive 判断给定时刻是否处于指定策略的交易时段
func (m *Mapper) IsSessionActive(now time.Time, policy timing.WindowPolicy) bool {
	return m.market.IsSessionActiveAt(now, policy)
}

// Resolve 将符号日期解析为具体日期
// TokenNone 返回零值时间，TokenExplicit 原样返回
func (m *Mapper) Resolve(ctx context.Context, token Token, now time.Time) (time.Time, error) {
	switch token.Kind {
	case TokenNone:
		return time.Time{}, nil
	case TokenExplicit:
		return token.Date, nil
	case TokenToday:
		return m.resolveToday(ctx, now), nil
	case TokenYesterday:
		return m.resolveYesterday(ctx, now), nil
	}
	return time.Time{}, ErrInvalidDateFormat
}

// resolveToday 获取最近的交易日
func (m *Mapper) resolveToday(ctx context.Context, now time.Time) time.Time {
	dates := m.resolver.TradingDates(ctx, m.windowDays)

	y, mo, d := now.Date()
	today := time.Date(y, mo, d, 0, 0, 0, 0, now.Location())

	if len(dates) == 0 {
		// 日历为空，退化为今日
		return today
	}

	idx := indexOfDate(dates, today)
	if idx >= 0 {
		if m.market.IsSessionActiveAt(now, timing.WindowIntraday) {
			m.log.Debugf("当前是交易时间，today 映射到今日: %s", today.Format("2006-01-02"))
			return today
		}
		if m.market.IsBeforeMarketOpen(now) {
			// 早于开盘时间，今日尚未产生数据，映射到上一交易日
			if idx > 0 {
				prev := dates[idx-1]
				m.log.Debugf("当前早于开盘时间，today 映射到上一交易日: %s", prev.Format("2006-01-02"))
				return prev
			}
			return today
		}
		// 收盘后，今日数据已完整
		m.log.Debugf("今日交易已结束，today 映射到今日: %s", today.Format("2006-01-02"))
		return today
	}

	// 今日非交易日，返回最近一个早于今日的交易日
	for i := len(dates) - 1; i >= 0; i-- {
		if dates[i].Before(today) {
			m.log.Debugf("今日非交易日，today 映射到最近交易日: %s", dates[i].Format("2006-01-02"))
			return dates[i]
		}
	}

	// 没有更早的交易日，返回日历中最新的日期
	return dates[len(dates)-1]
}

// resolveYesterday 获取上一个交易日（相对于 today 解析结果的前一个日历条目）
func (m *Mapper) resolveYesterday(ctx context.Context, now time.Time) time.Time {
	dates := m.resolver.TradingDates(ctx, m.windowDays)
	latest := m.resolveToday(ctx, now)

	if len(dates) == 0 {
		return latest
	}

	idx := indexOfDate(dates, latest)
	if idx > 0 {
		return dates[idx-1]
	}
	if idx == 0 {
		// 日历中没有更早的交易日，返回已知最早的条目（记录在案的边界行为）
		return dates[0]
	}

	// today 结果不在日历中，取倒数第二个条目
	if len(dates) >= 2 {
		return dates[len(dates)-2]
	}
	return dates[len(dates)-1]
}

// indexOfDate 在升序日期序列中查找与 target 同一自然日的下标，未找到返回 -1
func indexOfDate(dates []time.Time, target time.Time) int {
	ty, tm, td := target.Date()
	for i, d := range dates {
		y, m, dd := d.Date()
		if y == ty && m == tm && dd == td {
			return i
		}
	}
	return -1
}
