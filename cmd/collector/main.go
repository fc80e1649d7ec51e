package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"klinehub/pkg/calendar"
	"klinehub/pkg/instant"
	"klinehub/pkg/logger"
	"klinehub/pkg/provider/core"
	"klinehub/pkg/provider/decorators"
	"klinehub/pkg/provider/xtbridge"
	"klinehub/pkg/query"
	"klinehub/pkg/storage"
	"klinehub/pkg/timing"
)

var (
	symbol       = flag.String("symbol", "", "股票代码，如 600689.SH（必填）")
	periods      = flag.String("periods", "1d", "采集周期，逗号分隔，如 1d,5m,1w")
	dividendType = flag.String("dividend", "front", "复权类型 (none, front, back)")
	startDate    = flag.String("start", "", "开始日期 (YYYYMMDD 或 today/yesterday)")
	endDate      = flag.String("end", "", "结束日期 (YYYYMMDD 或 today/yesterday)")
	countLimit   = flag.Int("count", 0, "仅保留最近 N 条，0 表示不限制")
	outputDir    = flag.String("output", "data", "输出目录")
	outputJSON   = flag.Bool("json", false, "同时输出 JSON 格式")
	gatewayURL   = flag.String("gateway", "", "行情网关地址（默认 http://127.0.0.1:58610）")
	market       = flag.String("market", "SH", "交易日历市场代码")
	windowDays   = flag.Int("window", 10, "日期解析回看窗口（交易日数）")
	logLevel     = flag.String("log-level", "info", "日志级别")
	timeout      = flag.Duration("timeout", 5*time.Minute, "整体超时时间")
)

func main() {
	flag.Parse()

	logger.Init(logger.Config{Level: *logLevel, Format: "text"})
	log := logger.WithComponent("collector")

	if *symbol == "" {
		fmt.Fprintln(os.Stderr, "必须指定 -symbol")
		flag.Usage()
		os.Exit(2)
	}

	normalized, err := instant.NormalizeSymbol(*symbol)
	if err != nil {
		log.WithError(err).Fatal("股票代码格式错误")
	}

	startTok, err := calendar.ParseToken(*startDate)
	if err != nil {
		log.WithError(err).Fatal("开始日期格式错误")
	}
	endTok, err := calendar.ParseToken(*endDate)
	if err != nil {
		log.WithError(err).Fatal("结束日期格式错误")
	}

	providerCfg := xtbridge.DefaultConfig()
	if *gatewayURL != "" {
		providerCfg.BaseURL = *gatewayURL
	}

	bridge := xtbridge.NewProvider(providerCfg)
	var provider core.MarketDataProvider = decorators.NewCircuitBreakerProvider(bridge, decorators.DefaultCircuitBreakerConfig())
	defer bridge.Close()

	store, err := storage.NewCSVStore(*outputDir)
	if err != nil {
		log.WithError(err).Fatal("初始化输出目录失败")
	}

	marketTime := timing.DefaultMarketTime()
	resolver := calendar.NewResolver(provider, *market)
	mapper := calendar.NewMapper(resolver, marketTime, *windowDays)
	selector := query.NewSelector(mapper)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := provider.DownloadHolidayData(ctx); err != nil {
		log.WithError(err).Warn("节假日数据刷新失败")
	}

	failures := 0
	for _, period := range strings.Split(*periods, ",") {
		period = strings.TrimSpace(period)
		if period == "" {
			continue
		}

		if err := collect(ctx, log, provider, selector, store, normalized, period, startTok, endTok); err != nil {
			log.WithError(err).Errorf("周期 %s 采集失败", period)
			failures++
		}
	}

	if failures > 0 {
		os.Exit(1)
	}
}

func collect(ctx context.Context, log *logger.Entry, provider core.MarketDataProvider, selector *query.Selector, store *storage.CSVStore, symbol, period string, startTok, endTok calendar.Token) error {
	req, err := selector.Select(ctx, symbol, period, startTok, endTok, *countLimit, time.Now())
	if err != nil {
		return err
	}
	req.DividendType = *dividendType

	candles, err := selector.Fetch(ctx, provider, req)
	if err != nil {
		return err
	}

	if len(candles) == 0 {
		log.Warnf("周期 %s 无数据返回", period)
		return nil
	}

	filename := storage.CandleFileName(symbol, period, *dividendType, startTok, endTok, *countLimit)
	if err := store.SaveCandles(filename, candles); err != nil {
		return err
	}
	log.Infof("周期 %s 采集完成: %d 条 -> %s", period, len(candles), filename)

	if *outputJSON {
		jsonName := strings.TrimSuffix(filename, ".csv") + ".json"
		if err := store.SaveCandlesJSON(jsonName, candles); err != nil {
			return err
		}
		log.Infof("JSON 输出: %s", jsonName)
	}

	return nil
}
