package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"klinehub/pkg/provider/decorators"
	"klinehub/pkg/provider/xtbridge"
	"klinehub/pkg/storage"
)

// Config 主配置结构
type Config struct {
	// HTTP 服务配置
	Server ServerConfig `mapstructure:"server"`

	// 行情网关配置
	Provider xtbridge.Config `mapstructure:"provider"`

	// 熔断器配置
	CircuitBreaker decorators.CircuitBreakerConfig `mapstructure:"circuit_breaker"`

	// 交易日历配置
	Calendar CalendarConfig `mapstructure:"calendar"`

	// 本地存储配置
	Storage StorageConfig `mapstructure:"storage"`

	// InfluxDB 落地配置
	Influx InfluxConfig `mapstructure:"influx"`

	// Redis 实时缓存配置
	Redis RedisConfig `mapstructure:"redis"`

	// 即时查询配置
	Instant InstantConfig `mapstructure:"instant"`

	// 定时任务配置文件路径，为空则不启动调度器
	JobsFile string `mapstructure:"jobs_file"`

	// 日志配置
	Logger LoggerConfig `mapstructure:"logger"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`             // 监听地址
	Mode            string        `mapstructure:"mode"`             // gin 模式 (debug, release)
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`     // 读超时
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`    // 写超时
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"` // 优雅关闭超时
}

// CalendarConfig 交易日历配置
type CalendarConfig struct {
	Market        string `mapstructure:"market"`         // 市场代码 ("SH")
	WindowDays    int    `mapstructure:"window_days"`    // 日期解析回看窗口（交易日数）
	LookaheadDays int    `mapstructure:"lookahead_days"` // 向provider请求时的自然日前瞻余量
}

// StorageConfig 本地存储配置
type StorageConfig struct {
	Dir string `mapstructure:"dir"` // CSV/JSON 输出目录
}

// InfluxConfig InfluxDB 落地配置
type InfluxConfig struct {
	Enabled              bool `mapstructure:"enabled"`
	storage.InfluxConfig `mapstructure:",squash"`
}

// RedisConfig Redis 实时缓存配置
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"` // 实时快照缓存有效期
}

// InstantConfig 即时查询配置
type InstantConfig struct {
	DividendType string   `mapstructure:"dividend_type"` // 默认复权类型
	Periods      []string `mapstructure:"periods"`       // 默认采集周期，为空使用内置全集
	PreviewLimit int      `mapstructure:"preview_limit"` // 响应预览条数
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别 (debug, info, warn, error)
	Format string `mapstructure:"format"` // 输出格式 (text, json)
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			Mode:            "release",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Provider:       xtbridge.DefaultConfig(),
		CircuitBreaker: *decorators.DefaultCircuitBreakerConfig(),
		Calendar: CalendarConfig{
			Market:        "SH",
			WindowDays:    10,
			LookaheadDays: 10,
		},
		Storage: StorageConfig{
			Dir: "data",
		},
		Influx: InfluxConfig{
			Enabled: false,
			InfluxConfig: storage.InfluxConfig{
				URL:    "http://localhost:8086",
				Org:    "klinehub",
				Bucket: "market_data",
			},
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			TTL:     30 * time.Second,
		},
		Instant: InstantConfig{
			DividendType: "front",
			PreviewLimit: 5,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load 加载配置文件并合并默认值，path 为空时仅使用默认值与环境变量。
// 环境变量前缀 KLINEHUB，层级用下划线分隔，如 KLINEHUB_SERVER_ADDR。
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("KLINEHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server addr cannot be empty")
	}

	if c.Provider.BaseURL == "" {
		return errors.New("provider base_url cannot be empty")
	}

	if c.Provider.Timeout <= 0 {
		return errors.New("provider timeout must be positive")
	}

	if c.Provider.MaxRetries < 0 {
		return errors.New("provider max_retries cannot be negative")
	}

	if c.Provider.RateLimit < 0 {
		return errors.New("provider rate_limit cannot be negative")
	}

	if c.Calendar.Market == "" {
		return errors.New("calendar market cannot be empty")
	}

	if c.Calendar.WindowDays <= 1 {
		return errors.New("calendar window_days must be greater than 1")
	}

	if c.Calendar.LookaheadDays < 0 {
		return errors.New("calendar lookahead_days cannot be negative")
	}

	if c.Storage.Dir == "" {
		return errors.New("storage dir cannot be empty")
	}

	if c.Influx.Enabled {
		if c.Influx.URL == "" || c.Influx.Org == "" || c.Influx.Bucket == "" {
			return errors.New("influx url/org/bucket cannot be empty when enabled")
		}
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			return errors.New("redis addr cannot be empty when enabled")
		}
		if c.Redis.TTL <= 0 {
			return errors.New("redis ttl must be positive when enabled")
		}
	}

	if c.Instant.PreviewLimit < 0 {
		return errors.New("instant preview_limit cannot be negative")
	}

	return nil
}
