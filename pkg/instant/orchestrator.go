package instant

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"klinehub/pkg/calendar"
	"klinehub/pkg/logger"
	"klinehub/pkg/provider/core"
	"klinehub/pkg/query"
	"klinehub/pkg/realtime"
	"klinehub/pkg/storage"
	"klinehub/pkg/timing"
)

// DefaultPeriods 即时查询默认覆盖的全部周期
var DefaultPeriods = []string{"1m", "5m", "15m", "30m", "60m", "1d", "1w", "1M"}

// Options 即时查询选项
type Options struct {
	DividendType    string   // 复权类型，默认 front
	Periods         []string // nil 表示全部默认周期，空切片表示仅实时
	IncludeRealtime bool     // 是否同时获取实时快照
	PreviewLimit    int      // 响应中每个周期的预览条数
}

// Result 即时查询结果
// 单个周期或实时任务失败不影响兄弟任务，Success 仅在整体意外异常时为 false
type Result struct {
	Success      bool                         `json:"success"`
	Symbol       string                       `json:"stock_code"`
	KlineFiles   map[string]string            `json:"kline_files"`
	KlinePreview map[string][]core.Candle     `json:"kline_preview"`
	PeriodErrors map[string]string            `json:"period_errors,omitempty"`
	RealtimeFile string                       `json:"realtime_file,omitempty"`
	Realtime     *core.Tick                   `json:"realtime_data,omitempty"`
	Message      string                       `json:"message"`
}

// Orchestrator 即时查询协调器
// 同一股票代码的查询串行化（每代码一把锁），不同代码完全并行；
// 单次查询内K线与实时两类任务并发执行，K线各周期顺序处理以保护网关连接。
type Orchestrator struct {
	provider core.MarketDataProvider
	selector *query.Selector
	store    *storage.CSVStore
	monitor  *realtime.Monitor
	influx   *storage.InfluxSink // 可选
	market   *timing.MarketTime

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	log *logrus.Entry
}

// NewOrchestrator 创建即时查询协调器，influx 可为 nil
func NewOrchestrator(provider core.MarketDataProvider, selector *query.Selector, store *storage.CSVStore, monitor *realtime.Monitor, influx *storage.InfluxSink) *Orchestrator {
	return &Orchestrator{
		provider: provider,
		selector: selector,
		store:    store,
		monitor:  monitor,
		influx:   influx,
		market:   timing.DefaultMarketTime(),
		locks:    make(map[string]*sync.Mutex),
		log:      logger.WithComponent("InstantQuery"),
	}
}

// symbolLock 获取股票代码专属的互斥锁，惰性创建，进程生命周期内不回收
func (o *Orchestrator) symbolLock(symbol string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()

	lock, ok := o.locks[symbol]
	if !ok {
		lock = &sync.Mutex{}
		o.locks[symbol] = lock
	}
	return lock
}

// Run 执行一次即时查询：多周期K线 + 实时快照，全部落盘后返回预览。
// 代码/参数校验在加锁与任何I/O之前完成并快速失败。
func (o *Orchestrator) Run(ctx context.Context, symbol string, opts Options) (result *Result, err error) {
	normalized, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	if opts.DividendType == "" {
		opts.DividendType = "front"
	}
	if opts.PreviewLimit <= 0 {
		opts.PreviewLimit = 5
	}

	// nil 表示默认全部周期；空切片表示仅实时
	periods := opts.Periods
	if periods == nil {
		periods = DefaultPeriods
	}

	result = &Result{
		Symbol:       normalized,
		KlineFiles:   make(map[string]string),
		KlinePreview: make(map[string][]core.Candle),
		PeriodErrors: make(map[string]string),
	}

	for _, p := range periods {
		if !core.IsPeriodSupported(p) {
			return nil, fmt.Errorf("%w: %s", core.ErrInvalidPeriod, p)
		}
		result.KlineFiles[p] = storage.CandleFileName(normalized, p, opts.DividendType,
			calendar.Token{}, calendar.Token{}, 0)
	}

	lock := o.symbolLock(normalized)
	lock.Lock()
	defer lock.Unlock()

	defer func() {
		// 任何逃逸的意外异常标记整体失败，同时保证锁被释放
		if r := recover(); r != nil {
			o.log.Errorf("即时查询发生意外异常: %s, %v", normalized, r)
			result.Success = false
			result.Message = fmt.Sprintf("即时更新失败: %v", r)
			err = fmt.Errorf("instant query panic: %v", r)
		}
	}()

	var wg sync.WaitGroup

	// 任务1：K线（各周期顺序处理，避免并发冲击限速的网关连接）
	if len(periods) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.collectKlines(ctx, normalized, periods, opts, result)
		}()
	}

	// 任务2：实时快照
	var (
		tick     *core.Tick
		tickFile string
		tickErr  error
	)
	if opts.IncludeRealtime {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tick, tickFile, tickErr = o.monitor.Snapshot(ctx, normalized)
		}()
	}

	wg.Wait()

	if opts.IncludeRealtime {
		result.RealtimeFile = storage.TickFileName(normalized)
		if tickErr != nil {
			o.log.Warnf("实时快照获取失败: %s, %v", normalized, tickErr)
		} else {
			result.Realtime = tick
			result.RealtimeFile = tickFile
			if o.influx != nil {
				o.influx.WriteTick(tick)
			}
		}
	}

	// 落盘完成后按文件回读预览，响应内容与实际保留数据解耦
	for p, filename := range result.KlineFiles {
		preview, perr := o.store.TailCandles(filename, opts.PreviewLimit)
		if perr != nil {
			o.log.Warnf("预览读取失败: %s, %v", filename, perr)
			continue
		}
		result.KlinePreview[p] = preview
	}

	result.Success = true
	result.Message = "即时更新完成"
	return result, nil
}

// collectKlines 顺序拉取并持久化每个周期的K线，失败按周期隔离记录
func (o *Orchestrator) collectKlines(ctx context.Context, symbol string, periods []string, opts Options, result *Result) {
	now := o.market.Now()

	for _, period := range periods {
		req, err := o.selector.Select(ctx, symbol, period, calendar.Token{}, calendar.Token{}, 0, now)
		if err != nil {
			result.PeriodErrors[period] = err.Error()
			continue
		}
		req.DividendType = opts.DividendType

		candles, err := o.selector.Fetch(ctx, o.provider, req)
		if err != nil {
			o.log.Warnf("周期 %s 数据获取失败: %s, %v", period, symbol, err)
			result.PeriodErrors[period] = err.Error()
			continue
		}

		if err := o.store.SaveCandles(result.KlineFiles[period], candles); err != nil {
			o.log.Errorf("周期 %s 数据保存失败: %s, %v", period, symbol, err)
			result.PeriodErrors[period] = err.Error()
			continue
		}

		if o.influx != nil {
			o.influx.WriteCandles(candles)
		}
	}
}
