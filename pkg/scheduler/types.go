package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
)

// JobConfig 定时采集任务配置
type JobConfig struct {
	Name             string   `mapstructure:"name" yaml:"name"`
	Schedule         string   `mapstructure:"schedule" yaml:"schedule"` // 支持秒级的 cron 表达式
	Enabled          bool     `mapstructure:"enabled" yaml:"enabled"`
	Symbol           string   `mapstructure:"symbol" yaml:"symbol"`
	DividendType     string   `mapstructure:"dividend_type" yaml:"dividend_type"`
	Periods          []string `mapstructure:"periods" yaml:"periods"`
	IncludeRealtime  bool     `mapstructure:"include_realtime" yaml:"include_realtime"`
	OnlyActiveWindow bool     `mapstructure:"only_active_window" yaml:"only_active_window"` // 仅在交易时段内执行
}

// JobsConfig 任务配置文件结构
type JobsConfig struct {
	Jobs []JobConfig `mapstructure:"jobs" yaml:"jobs"`
}

// JobStatus 任务状态
type JobStatus string

const (
	JobStatusPending  JobStatus = "pending"
	JobStatusRunning  JobStatus = "running"
	JobStatusError    JobStatus = "error"
	JobStatusDisabled JobStatus = "disabled"
)

// Job 调度中的任务实例
type Job struct {
	ID         string
	Config     JobConfig
	EntryID    cron.EntryID
	Status     JobStatus
	LastRun    *time.Time
	NextRun    *time.Time
	RunCount   int64
	ErrorCount int64
	SkipCount  int64 // 因处于非交易时段被跳过的次数
	LastError  error
}

// JobExecutor 任务执行器接口
type JobExecutor interface {
	Execute(ctx context.Context, job *Job) error
}

// JobScheduler 任务调度器接口
type JobScheduler interface {
	LoadConfig(configPath string) error
	Start() error
	Stop() error
	AddJob(config JobConfig) error
	RemoveJob(jobName string) error
	GetJob(jobName string) (*Job, error)
	GetAllJobs() []*Job
	RunJob(jobName string) error
	SetExecutor(executor JobExecutor)
}
