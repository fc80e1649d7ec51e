package scheduler

import (
	"context"
	"errors"
	"fmt"

	"klinehub/pkg/calendar"
	"klinehub/pkg/instant"
	"klinehub/pkg/logger"
	"klinehub/pkg/timing"
)

// ErrOutsideTradingWindow 当前不在交易时段，任务按跳过处理而非失败
var ErrOutsideTradingWindow = errors.New("当前不在交易时段")

// QueryRunner 即时查询执行入口
type QueryRunner interface {
	Run(ctx context.Context, symbol string, opts instant.Options) (*instant.Result, error)
}

// InstantQueryExecutor 将定时任务映射为一次即时查询
type InstantQueryExecutor struct {
	runner     QueryRunner
	resolver   *calendar.Resolver // 可为 nil，此时只按时段判断
	windowDays int
	market     *timing.MarketTime
	log        *logger.Entry
}

// NewInstantQueryExecutor 创建即时查询执行器
func NewInstantQueryExecutor(runner QueryRunner, resolver *calendar.Resolver, windowDays int, market *timing.MarketTime) *InstantQueryExecutor {
	if market == nil {
		market = timing.DefaultMarketTime()
	}
	if windowDays <= 0 {
		windowDays = 10
	}
	return &InstantQueryExecutor{
		runner:     runner,
		resolver:   resolver,
		windowDays: windowDays,
		market:     market,
		log:        logger.WithComponent("InstantQueryExecutor"),
	}
}

// Execute 执行一次采集任务
// 配置了 only_active_window 的任务在交易时段之外或非交易日（节假日）
// 返回 ErrOutsideTradingWindow
func (e *InstantQueryExecutor) Execute(ctx context.Context, job *Job) error {
	if job.Config.OnlyActiveWindow {
		now := e.market.Now()
		if !e.market.IsSessionActiveAt(now, timing.WindowCoarse) {
			return ErrOutsideTradingWindow
		}
		if e.resolver != nil && !e.resolver.IsTradingDate(ctx, e.windowDays, now) {
			return ErrOutsideTradingWindow
		}
	}

	opts := instant.Options{
		DividendType:    job.Config.DividendType,
		Periods:         job.Config.Periods,
		IncludeRealtime: job.Config.IncludeRealtime,
	}

	result, err := e.runner.Run(ctx, job.Config.Symbol, opts)
	if err != nil {
		return fmt.Errorf("即时查询失败 %s: %w", job.Config.Symbol, err)
	}

	if !result.Success {
		return fmt.Errorf("即时查询异常终止 %s: %s", job.Config.Symbol, result.Message)
	}

	if len(result.PeriodErrors) > 0 {
		e.log.Warnf("任务 %s 部分周期失败: %v", job.Config.Name, result.PeriodErrors)
	}

	return nil
}
