package calendar

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"klinehub/pkg/logger"
	"klinehub/pkg/timing"
)

// DateProvider 交易日历数据源接口，仅覆盖日历解析所需的提供商能力
type DateProvider interface {
	// DownloadHolidayData 触发节假日数据刷新（尽力而为）
	DownloadHolidayData(ctx context.Context) error
	// GetTradingDates 获取紧凑格式（YYYYMMDD）交易日字符串列表
	GetTradingDates(ctx context.Context, market string, start, end time.Time) ([]string, error)
}

// Resolver 交易日历解析器
// 按窗口天数缓存交易日列表；提供商不可用时退化为仅排除周末的备用日历，
// 降级警告整个进程只输出一次。
type Resolver struct {
	provider      DateProvider
	market        string
	lookaheadDays int
	timeService   timing.TimeService

	mu       sync.Mutex
	cache    map[int][]time.Time
	cacheDay map[int]string // 缓存填充时的自然日，跨天后强制刷新

	warnOnce sync.Once
	log      *logrus.Entry
}

// ResolverOption Resolver 可选配置
type ResolverOption func(*Resolver)

// WithTimeService 注入时间服务，用于测试
func WithTimeService(ts timing.TimeService) ResolverOption {
	return func(r *Resolver) {
		r.timeService = ts
	}
}

// WithLookaheadDays 设置向未来查询的天数（默认10天，确保能覆盖下一交易日）
func WithLookaheadDays(days int) ResolverOption {
	return func(r *Resolver) {
		r.lookaheadDays = days
	}
}

// NewResolver 创建交易日历解析器
// market: 市场代码，如 "XSHG"
func NewResolver(provider DateProvider, market string, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		provider:      provider,
		market:        market,
		lookaheadDays: 10,
		timeService:   &timing.SystemTimeService{},
		cache:         make(map[int][]time.Time),
		cacheDay:      make(map[int]string),
		log:           logger.WithComponent("CalendarResolver"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TradingDates 获取最近 windowDays 天（及向未来 lookaheadDays 天）内的交易日列表。
// 返回严格升序、去重后的日期序列（本地时区零点对齐）。
// 此方法从不返回错误：提供商失败时使用备用周内日历。
func (r *Resolver) TradingDates(ctx context.Context, windowDays int) []time.Time {
	now := r.timeService.Now()
	today := now.Format("2006-01-02")

	r.mu.Lock()
	if cached, ok := r.cache[windowDays]; ok && r.cacheDay[windowDays] == today {
		out := append([]time.Time(nil), cached...)
		r.mu.Unlock()
		return out
	}
	r.mu.Unlock()

	dates := r.fetchTradingDates(ctx, windowDays, now)

	r.mu.Lock()
	r.cache[windowDays] = dates
	r.cacheDay[windowDays] = today
	r.mu.Unlock()

	// 缓存中的切片不对外暴露，调用方可安全修改返回值
	return append([]time.Time(nil), dates...)
}

// IsTradingDate 判断给定日期是否在交易日历内（按年月日比较）
func (r *Resolver) IsTradingDate(ctx context.Context, windowDays int, d time.Time) bool {
	for _, td := range r.TradingDates(ctx, windowDays) {
		if td.Year() == d.Year() && td.Month() == d.Month() && td.Day() == d.Day() {
			return true
		}
	}
	return false
}

func (r *Resolver) fetchTradingDates(ctx context.Context, windowDays int, now time.Time) []time.Time {
	start := now.AddDate(0, 0, -windowDays)
	end := now.AddDate(0, 0, r.lookaheadDays)

	// 先刷新节假日数据，失败不阻断日历查询
	if err := r.provider.DownloadHolidayData(ctx); err != nil {
		r.log.Debugf("节假日数据刷新失败: %v", err)
	}

	raw, err := r.provider.GetTradingDates(ctx, r.market, start, end)
	if err != nil || len(raw) == 0 {
		r.warnOnce.Do(func() {
			if err != nil {
				r.log.Warnf("获取交易日列表失败: %v，使用备用周内日历（仅提示一次）", err)
			} else {
				r.log.Warn("交易日列表为空，使用备用周内日历（仅提示一次）")
			}
		})
		return FallbackTradingDates(now, windowDays, r.lookaheadDays)
	}

	return normalizeCompactDates(raw, now.Location())
}

// normalizeCompactDates 将紧凑格式（YYYYMMDD）日期字符串规范化为升序去重的日期序列
func normalizeCompactDates(raw []string, loc *time.Location) []time.Time {
	seen := make(map[string]struct{}, len(raw))
	dates := make([]time.Time, 0, len(raw))

	for _, s := range raw {
		if len(s) != 8 {
			continue
		}
		t, err := time.ParseInLocation("20060102", s, loc)
		if err != nil {
			continue
		}
		key := t.Format("2006-01-02")
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		dates = append(dates, t)
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// FallbackTradingDates 备用方案：简单的交易日计算（仅排除周末，不考虑节假日）
func FallbackTradingDates(now time.Time, windowDays, lookaheadDays int) []time.Time {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())

	dates := make([]time.Time, 0, windowDays+lookaheadDays)
	for i := -windowDays; i <= lookaheadDays; i++ {
		day := today.AddDate(0, 0, i)
		if wd := day.Weekday(); wd >= time.Monday && wd <= time.Friday {
			dates = append(dates, day)
		}
	}
	return dates
}
