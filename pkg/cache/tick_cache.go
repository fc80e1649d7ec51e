package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"klinehub/pkg/logger"
	"klinehub/pkg/provider/core"
)

// TickCache 最新实时快照的热缓存，供HTTP查询接口读取，
// 避免每次查询都穿透到行情网关。写入失败只记日志不影响主流程。
type TickCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logrus.Entry
}

// NewTickCache 创建基于Redis的快照缓存
func NewTickCache(client *redis.Client, ttl time.Duration) *TickCache {
	return &TickCache{
		client: client,
		ttl:    ttl,
		log:    logger.WithComponent("TickCache"),
	}
}

func tickKey(symbol string) string {
	return "klinehub:tick:" + symbol
}

// Set 写入最新快照，带TTL
func (c *TickCache) Set(ctx context.Context, tick *core.Tick) error {
	payload, err := json.Marshal(tick)
	if err != nil {
		return fmt.Errorf("序列化快照失败: %w", err)
	}

	if err := c.client.Set(ctx, tickKey(tick.Symbol), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("写入Redis失败: %w", err)
	}
	return nil
}

// Get 读取缓存的快照，未命中返回 (nil, nil)
func (c *TickCache) Get(ctx context.Context, symbol string) (*core.Tick, error) {
	payload, err := c.client.Get(ctx, tickKey(symbol)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取Redis失败: %w", err)
	}

	var tick core.Tick
	if err := json.Unmarshal(payload, &tick); err != nil {
		return nil, fmt.Errorf("解析缓存快照失败: %w", err)
	}
	return &tick, nil
}

// Ping 检查Redis连通性
func (c *TickCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// SetBestEffort 尽力写入：失败降级为日志
func (c *TickCache) SetBestEffort(ctx context.Context, tick *core.Tick) {
	if err := c.Set(ctx, tick); err != nil {
		c.log.Warnf("快照缓存写入失败: %v", err)
	}
}
