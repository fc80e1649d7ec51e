package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"klinehub/pkg/cache"
	"klinehub/pkg/config"
	"klinehub/pkg/instant"
	"klinehub/pkg/logger"
	"klinehub/pkg/provider/core"
	"klinehub/pkg/realtime"
	"klinehub/pkg/scheduler"
	"klinehub/pkg/storage"
)

// ErrorResponse 标准错误响应
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// InstantQueryRequest 即时查询请求体
type InstantQueryRequest struct {
	StockCode       string   `json:"stock_code" binding:"required"`
	DividendType    string   `json:"dividend_type"`
	Periods         []string `json:"periods"`
	IncludeRealtime *bool    `json:"include_realtime"`
	PreviewLimit    int      `json:"preview_limit"`
}

// Server 数据服务 HTTP 入口
type Server struct {
	cfg          config.ServerConfig
	defaults     config.InstantConfig
	provider     core.MarketDataProvider
	orchestrator *instant.Orchestrator
	monitor      *realtime.Monitor
	store        *storage.CSVStore
	tickCache    *cache.TickCache               // 可选
	sched        *scheduler.DefaultJobScheduler // 可选
	server       *http.Server
	log          *logger.Entry
}

// NewServer 创建 HTTP 服务，tickCache 与 sched 允许为 nil
func NewServer(cfg config.ServerConfig, defaults config.InstantConfig, provider core.MarketDataProvider, orchestrator *instant.Orchestrator, monitor *realtime.Monitor, store *storage.CSVStore, tickCache *cache.TickCache, sched *scheduler.DefaultJobScheduler) *Server {
	return &Server{
		cfg:          cfg,
		defaults:     defaults,
		provider:     provider,
		orchestrator: orchestrator,
		monitor:      monitor,
		store:        store,
		tickCache:    tickCache,
		sched:        sched,
		log:          logger.WithComponent("APIServer"),
	}
}

// Router 构建路由，独立出来方便测试
func (s *Server) Router() *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(s.corsMiddleware())

	router.GET("/health", s.healthCheck)

	api := router.Group("/api")
	{
		api.POST("/instant_query", s.instantQuery)
		api.GET("/realtime/:symbol", s.getRealtime)
		api.GET("/files", s.listFiles)
		api.GET("/files/:name", s.downloadFile)
		api.GET("/stats", s.getStats)

		api.GET("/jobs", s.listJobs)
		api.POST("/jobs/:name/run", s.runJob)
	}

	return router
}

// Start 启动 HTTP 服务（非阻塞）
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	s.log.WithField("addr", s.cfg.Addr).Info("启动 HTTP 服务")

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Fatal("HTTP 服务启动失败")
		}
	}()

	return nil
}

// Stop 优雅停止 HTTP 服务
func (s *Server) Stop() {
	if s.server == nil {
		return
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		s.log.WithError(err).Error("HTTP 服务停止失败")
	}
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	services := map[string]string{}
	status := "ok"

	if s.provider.IsHealthy() {
		services["provider"] = "ok"
	} else {
		services["provider"] = "unreachable"
		status = "degraded"
	}

	if s.tickCache != nil {
		if err := s.tickCache.Ping(ctx); err != nil {
			services["redis"] = "error: " + err.Error()
			status = "degraded"
		} else {
			services["redis"] = "ok"
		}
	}

	health := gin.H{
		"status":    status,
		"timestamp": time.Now(),
		"services":  services,
	}

	if status == "ok" {
		c.JSON(200, health)
	} else {
		c.JSON(503, health)
	}
}

// instantQuery 触发一次即时查询：按周期拉取K线并持久化，附带实时快照
func (s *Server) instantQuery(c *gin.Context) {
	var req InstantQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, ErrorResponse{Error: "bad_request", Message: "stock_code is required"})
		return
	}

	includeRealtime := true
	if req.IncludeRealtime != nil {
		includeRealtime = *req.IncludeRealtime
	}

	opts := instant.Options{
		DividendType:    req.DividendType,
		Periods:         req.Periods,
		IncludeRealtime: includeRealtime,
		PreviewLimit:    req.PreviewLimit,
	}
	if opts.DividendType == "" {
		opts.DividendType = s.defaults.DividendType
	}
	if opts.Periods == nil {
		opts.Periods = s.defaults.Periods
	}
	if opts.PreviewLimit <= 0 {
		opts.PreviewLimit = s.defaults.PreviewLimit
	}

	result, err := s.orchestrator.Run(c.Request.Context(), req.StockCode, opts)
	if err != nil {
		switch {
		case errors.Is(err, instant.ErrInvalidSymbolFormat):
			c.JSON(400, ErrorResponse{Error: "bad_request", Message: err.Error()})
		case errors.Is(err, core.ErrInvalidPeriod):
			c.JSON(400, ErrorResponse{Error: "bad_request", Message: err.Error()})
		default:
			s.log.WithError(err).Error("即时查询失败")
			c.JSON(500, ErrorResponse{Error: "internal_error", Message: err.Error()})
		}
		return
	}

	c.JSON(200, result)
}

// getRealtime 查询实时快照，优先读缓存，未命中时穿透到网关
func (s *Server) getRealtime(c *gin.Context) {
	symbol, err := instant.NormalizeSymbol(c.Param("symbol"))
	if err != nil {
		c.JSON(400, ErrorResponse{Error: "bad_request", Message: err.Error()})
		return
	}

	ctx := c.Request.Context()

	if s.tickCache != nil {
		tick, err := s.tickCache.Get(ctx, symbol)
		if err != nil {
			s.log.WithError(err).Warn("读取实时缓存失败")
		}
		if tick != nil {
			c.JSON(200, gin.H{"source": "cache", "data": tick})
			return
		}
	}

	tick, file, err := s.monitor.Snapshot(ctx, symbol)
	if err != nil {
		s.log.WithError(err).Error("获取实时快照失败")
		c.JSON(502, ErrorResponse{Error: "upstream_error", Message: err.Error()})
		return
	}

	c.JSON(200, gin.H{"source": tick.Source, "file": file, "data": tick})
}

func (s *Server) listFiles(c *gin.Context) {
	files, err := s.store.ListFiles()
	if err != nil {
		c.JSON(500, ErrorResponse{Error: "internal_error", Message: err.Error()})
		return
	}

	c.JSON(200, gin.H{"count": len(files), "files": files})
}

func (s *Server) downloadFile(c *gin.Context) {
	path, err := s.store.FilePath(c.Param("name"))
	if err != nil {
		c.JSON(400, ErrorResponse{Error: "bad_request", Message: err.Error()})
		return
	}

	c.FileAttachment(path, c.Param("name"))
}

func (s *Server) getStats(c *gin.Context) {
	c.JSON(200, gin.H{
		"storage": s.store.Stats(),
		"dir":     s.store.Dir(),
	})
}

func (s *Server) listJobs(c *gin.Context) {
	if s.sched == nil {
		c.JSON(200, gin.H{"enabled": false, "jobs": []any{}})
		return
	}

	jobs := s.sched.GetAllJobs()
	views := make([]gin.H, 0, len(jobs))
	for _, job := range jobs {
		view := gin.H{
			"id":          job.ID,
			"name":        job.Config.Name,
			"schedule":    job.Config.Schedule,
			"symbol":      job.Config.Symbol,
			"status":      job.Status,
			"run_count":   job.RunCount,
			"error_count": job.ErrorCount,
			"skip_count":  job.SkipCount,
		}
		if job.LastRun != nil {
			view["last_run"] = job.LastRun
		}
		if job.NextRun != nil {
			view["next_run"] = job.NextRun
		}
		if job.LastError != nil {
			view["last_error"] = job.LastError.Error()
		}
		views = append(views, view)
	}

	c.JSON(200, gin.H{"enabled": true, "jobs": views})
}

func (s *Server) runJob(c *gin.Context) {
	if s.sched == nil {
		c.JSON(404, ErrorResponse{Error: "not_found", Message: "调度器未启用"})
		return
	}

	if err := s.sched.RunJob(c.Param("name")); err != nil {
		c.JSON(400, ErrorResponse{Error: "bad_request", Message: err.Error()})
		return
	}

	c.JSON(202, gin.H{"message": "任务已触发"})
}
