package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "http://127.0.0.1:58610", cfg.Provider.BaseURL)
	assert.Equal(t, "SH", cfg.Calendar.Market)
	assert.Equal(t, 10, cfg.Calendar.WindowDays)
	assert.Equal(t, "front", cfg.Instant.DividendType)
	assert.False(t, cfg.Influx.Enabled)
	assert.False(t, cfg.Redis.Enabled)

	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Addr, cfg.Server.Addr)
}

func TestLoad_FromFile(t *testing.T) {
	yaml := `
server:
  addr: ":9090"
  mode: "debug"
provider:
  base_url: "http://10.0.0.5:58610"
  timeout: 20s
calendar:
  market: "SH"
  window_days: 15
storage:
  dir: "/tmp/klinehub-data"
influx:
  enabled: true
  url: "http://influx:8086"
  token: "secret"
  org: "trading"
  bucket: "kline"
redis:
  enabled: true
  addr: "redis:6379"
  ttl: 60s
instant:
  dividend_type: "back"
  periods: ["1d", "5m"]
  preview_limit: 10
logger:
  level: "debug"
`
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Server.Mode)
	assert.Equal(t, "http://10.0.0.5:58610", cfg.Provider.BaseURL)
	assert.Equal(t, 20*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, 15, cfg.Calendar.WindowDays)
	assert.Equal(t, "/tmp/klinehub-data", cfg.Storage.Dir)
	assert.True(t, cfg.Influx.Enabled)
	assert.Equal(t, "http://influx:8086", cfg.Influx.URL)
	assert.Equal(t, "trading", cfg.Influx.Org)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 60*time.Second, cfg.Redis.TTL)
	assert.Equal(t, "back", cfg.Instant.DividendType)
	assert.Equal(t, []string{"1d", "5m"}, cfg.Instant.Periods)
	assert.Equal(t, 10, cfg.Instant.PreviewLimit)
	assert.Equal(t, "debug", cfg.Logger.Level)

	// 文件未覆盖的字段保留默认值
	assert.Equal(t, 3, cfg.Provider.MaxRetries)
}

func TestLoad_FileNotExist(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{"默认配置合法", func(c *Config) {}, false},
		{"缺少监听地址", func(c *Config) { c.Server.Addr = "" }, true},
		{"缺少网关地址", func(c *Config) { c.Provider.BaseURL = "" }, true},
		{"超时为零", func(c *Config) { c.Provider.Timeout = 0 }, true},
		{"重试次数为负", func(c *Config) { c.Provider.MaxRetries = -1 }, true},
		{"缺少市场代码", func(c *Config) { c.Calendar.Market = "" }, true},
		{"回看窗口过小", func(c *Config) { c.Calendar.WindowDays = 1 }, true},
		{"缺少存储目录", func(c *Config) { c.Storage.Dir = "" }, true},
		{"启用influx缺少url", func(c *Config) {
			c.Influx.Enabled = true
			c.Influx.URL = ""
		}, true},
		{"启用redis缺少地址", func(c *Config) {
			c.Redis.Enabled = true
			c.Redis.Addr = ""
		}, true},
		{"预览条数为负", func(c *Config) { c.Instant.PreviewLimit = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
