package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"klinehub/pkg/cache"
	"klinehub/pkg/calendar"
	"klinehub/pkg/config"
	"klinehub/pkg/instant"
	"klinehub/pkg/logger"
	"klinehub/pkg/provider/core"
	"klinehub/pkg/provider/decorators"
	"klinehub/pkg/provider/xtbridge"
	"klinehub/pkg/query"
	"klinehub/pkg/realtime"
	"klinehub/pkg/scheduler"
	"klinehub/pkg/server"
	"klinehub/pkg/storage"
	"klinehub/pkg/timing"
)

var (
	configPath = flag.String("config", "", "配置文件路径（为空时使用默认配置与环境变量）")
	logLevel   = flag.String("log-level", "", "日志级别（覆盖配置文件）")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.InitFromEnv()
		logger.GetLogger().WithError(err).Fatal("加载配置失败")
	}

	logger.Init(logger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
	})
	if *logLevel != "" {
		logger.SetLevel(*logLevel)
	}

	log := logger.WithComponent("server")
	log.WithField("gateway", cfg.Provider.BaseURL).Info("启动行情数据服务")

	gin.SetMode(cfg.Server.Mode)

	// 行情网关客户端 + 熔断装饰
	bridge := xtbridge.NewProvider(cfg.Provider)
	var provider core.MarketDataProvider = decorators.NewCircuitBreakerProvider(bridge, &cfg.CircuitBreaker)

	// 启动时尽力刷新节假日数据，失败不阻断
	{
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := provider.DownloadHolidayData(ctx); err != nil {
			log.WithError(err).Warn("节假日数据刷新失败")
		}
		cancel()
	}

	store, err := storage.NewCSVStore(cfg.Storage.Dir)
	if err != nil {
		log.WithError(err).Fatal("初始化存储目录失败")
	}

	// 可选的 Redis 实时缓存
	var tickCache *cache.TickCache
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warn("Redis 连接失败，实时缓存不可用")
		} else {
			tickCache = cache.NewTickCache(redisClient, cfg.Redis.TTL)
			log.Info("Redis 实时缓存已启用")
		}
		cancel()
	}

	// 可选的 InfluxDB 落地
	var influx *storage.InfluxSink
	if cfg.Influx.Enabled {
		influx = storage.NewInfluxSink(cfg.Influx.InfluxConfig)
		log.WithField("bucket", cfg.Influx.Bucket).Info("InfluxDB 落地已启用")
	}

	market := timing.DefaultMarketTime()
	resolver := calendar.NewResolver(provider, cfg.Calendar.Market,
		calendar.WithLookaheadDays(cfg.Calendar.LookaheadDays))
	mapper := calendar.NewMapper(resolver, market, cfg.Calendar.WindowDays)
	selector := query.NewSelector(mapper)
	monitor := realtime.NewMonitor(provider, store, tickCache)
	orchestrator := instant.NewOrchestrator(provider, selector, store, monitor, influx)

	// 可选的定时采集
	var sched *scheduler.DefaultJobScheduler
	if cfg.JobsFile != "" {
		sched = scheduler.NewJobScheduler()
		sched.SetExecutor(scheduler.NewInstantQueryExecutor(orchestrator, resolver, cfg.Calendar.WindowDays, market))

		if err := sched.LoadConfig(cfg.JobsFile); err != nil {
			log.WithError(err).Fatal("加载任务配置失败")
		}
		if err := sched.Start(); err != nil {
			log.WithError(err).Fatal("启动调度器失败")
		}
	}

	srv := server.NewServer(cfg.Server, cfg.Instant, provider, orchestrator, monitor, store, tickCache, sched)
	if err := srv.Start(); err != nil {
		log.WithError(err).Fatal("启动 HTTP 服务失败")
	}

	// 等待退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("收到退出信号，正在关闭...")

	srv.Stop()
	if sched != nil {
		if err := sched.Stop(); err != nil {
			log.WithError(err).Error("停止调度器失败")
		}
	}
	if influx != nil {
		influx.Close()
	}
	if redisClient != nil {
		redisClient.Close()
	}
	if closer, ok := provider.(core.Closable); ok {
		closer.Close()
	}

	log.Info("服务已退出")
}
