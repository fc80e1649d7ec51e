package query

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"klinehub/pkg/calendar"
	"klinehub/pkg/logger"
	"klinehub/pkg/provider/core"
)

// Strategy K线获取策略
type Strategy int

const (
	// StrategyFullHistory 全量历史，受周期默认保留数量约束
	StrategyFullHistory Strategy = iota
	// StrategyRange 明确日期范围查询
	StrategyRange
	// StrategyLatestN 按最新N根获取，随后按日期做结果内过滤
	// 用于 today/yesterday：临近交易时段边界时按日期范围查询不可靠
	StrategyLatestN
)

func (s Strategy) String() string {
	switch s {
	case StrategyRange:
		return "range"
	case StrategyLatestN:
		return "latest_n"
	default:
		return "full_history"
	}
}

// periodDefaults 各周期的默认获取数量，-1 表示全量
var periodDefaults = map[string]int{
	"1m":  500,
	"5m":  500,
	"15m": 300,
	"30m": 200,
	"60m": 100,
	"1d":  -1,
	"1w":  -1,
	"1M":  -1,
}

// symbolicOverfetchFloor 符号日期过量获取的最低根数
// 足以覆盖至少一个完整交易日的任意周期数据
const symbolicOverfetchFloor = 1000

// DefaultPeriodCount 返回周期的默认获取数量，未知周期返回 -1
func DefaultPeriodCount(period string) int {
	if c, ok := periodDefaults[period]; ok {
		return c
	}
	return -1
}

// Request K线获取请求
// Strategy 决定 Start/End 与 FetchCount 哪组参数生效；
// CountLimit 是独立于获取策略的结果条数上限，在日期过滤之后应用。
type Request struct {
	Symbol       string
	Period       string
	DividendType string
	Strategy     Strategy

	Start time.Time // StrategyRange 有效
	End   time.Time // StrategyRange 有效

	FetchCount int // StrategyLatestN / StrategyFullHistory 有效

	StartToken calendar.Token // 原始符号日期，驱动结果内过滤
	EndToken   calendar.Token

	CountLimit int // 0 表示不限制
}

// Selector K线获取策略选择器
type Selector struct {
	mapper *calendar.Mapper
	log    *logrus.Entry
}

// NewSelector 创建策略选择器
func NewSelector(mapper *calendar.Mapper) *Selector {
	return &Selector{
		mapper: mapper,
		log:    logger.WithComponent("StrategySelector"),
	}
}

// Select 根据日期参数决定获取策略
//   - 含 today/yesterday：LatestN 过量获取 + 结果内日期过滤
//   - 明确的开始与结束日期：Range 直接按范围查询
//   - 未指定日期：FullHistory 按周期默认数量
func (s *Selector) Select(ctx context.Context, symbol, period string, startTok, endTok calendar.Token, countLimit int, now time.Time) (Request, error) {
	if !core.IsPeriodSupported(period) {
		return Request{}, fmt.Errorf("%w: %s", core.ErrInvalidPeriod, period)
	}

	req := Request{
		Symbol:     symbol,
		Period:     period,
		StartToken: startTok,
		EndToken:   endTok,
		CountLimit: countLimit,
	}

	if startTok.IsSymbolic() || endTok.IsSymbolic() {
		req.Strategy = StrategyLatestN
		req.FetchCount = overfetchCount(period)
		return req, nil
	}

	if startTok.Kind == calendar.TokenExplicit && endTok.Kind == calendar.TokenExplicit {
		start, err := s.mapper.Resolve(ctx, startTok, now)
		if err != nil {
			return Request{}, err
		}
		end, err := s.mapper.Resolve(ctx, endTok, now)
		if err != nil {
			return Request{}, err
		}

		req.Strategy = StrategyRange
		req.Start = start
		req.End = end

		// 分钟级数据跨日期范围查询在部分网关上不可靠，仅提示不拦截
		if core.IsMinutePeriod(period) && end.Sub(start) >= 24*time.Hour {
			s.log.Warnf("分钟级数据跨日期查询可能失败，建议单日查询: %s %s~%s",
				period, start.Format("2006-01-02"), end.Format("2006-01-02"))
		}
		return req, nil
	}

	req.Strategy = StrategyFullHistory
	req.FetchCount = DefaultPeriodCount(period)
	return req, nil
}

// overfetchCount 符号日期的过量获取数量：取周期默认值与下限中的较大者
func overfetchCount(period string) int {
	c := DefaultPeriodCount(period)
	if c < symbolicOverfetchFloor {
		return symbolicOverfetchFloor
	}
	return c
}

// Fetch 按请求策略执行K线获取，并应用符号日期过滤与条数上限
func (s *Selector) Fetch(ctx context.Context, provider core.MarketDataProvider, req Request) ([]core.Candle, error) {
	var (
		candles []core.Candle
		err     error
	)

	switch req.Strategy {
	case StrategyRange:
		candles, err = provider.GetCandlesByRange(ctx, req.Symbol, req.Period, req.Start, req.End, req.DividendType)
	case StrategyLatestN:
		candles, err = provider.GetCandlesByCount(ctx, req.Symbol, req.Period, req.FetchCount, req.DividendType)
	default:
		candles, err = provider.GetCandlesByCount(ctx, req.Symbol, req.Period, req.FetchCount, req.DividendType)
	}
	if err != nil {
		return nil, err
	}

	if req.Strategy == StrategyLatestN {
		candles = FilterBySymbolicDates(candles, req.StartToken, req.EndToken)
	}

	if req.CountLimit > 0 && len(candles) > req.CountLimit {
		candles = candles[len(candles)-req.CountLimit:]
	}

	return candles, nil
}

// FilterBySymbolicDates 按符号日期在结果内过滤K线。
// 以结果中实际出现的交易日为准：today 映射到最新交易日，yesterday 映射到
// 倒数第二个交易日；数据不足以解析 yesterday 时返回空结果而非报错。
func FilterBySymbolicDates(candles []core.Candle, startTok, endTok calendar.Token) []core.Candle {
	if len(candles) == 0 {
		return candles
	}

	available := availableDates(candles)

	resolve := func(tok calendar.Token) (time.Time, bool) {
		switch tok.Kind {
		case calendar.TokenToday:
			return available[len(available)-1], true
		case calendar.TokenYesterday:
			if len(available) < 2 {
				return time.Time{}, false
			}
			return available[len(available)-2], true
		case calendar.TokenExplicit:
			return tok.Date, true
		}
		return time.Time{}, true // TokenNone：该端不设界
	}

	var start, end time.Time
	if !startTok.IsZero() {
		d, ok := resolve(startTok)
		if !ok {
			return candles[:0]
		}
		start = d
	}
	if !endTok.IsZero() {
		d, ok := resolve(endTok)
		if !ok {
			return candles[:0]
		}
		end = d
	}

	filtered := make([]core.Candle, 0, len(candles))
	for _, c := range candles {
		date := c.Date()
		if !start.IsZero() && date.Before(start) {
			continue
		}
		if !end.IsZero() && date.After(end) {
			continue
		}
		filtered = append(filtered, c)
	}
	return filtered
}

// availableDates 返回K线结果中出现的全部交易日，升序去重
func availableDates(candles []core.Candle) []time.Time {
	seen := make(map[string]struct{})
	dates := make([]time.Time, 0, 8)
	for _, c := range candles {
		d := c.Date()
		key := d.Format("2006-01-02")
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		dates = append(dates, d)
	}
	// K线按时间升序返回，但保险起见仍做一次排序
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}
