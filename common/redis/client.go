package redis

import (
	"context"
	"fmt"
	"time"

	"glycemic-guard/common/config"

	"github.com/go-redis/redis/v8"
)

// DefaultDialTimeout 建立连接并完成首次 PING 的时限
const DefaultDialTimeout = 3 * time.Second

// NewRedisClient 按配置创建客户端（不会立即建立连接）
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: DefaultDialTimeout,
	})
}

// Connect 创建客户端并在 timeout 内 PING 一次，失败时关闭客户端并返回错误
func Connect(ctx context.Context, cfg *config.RedisConfig, timeout time.Duration) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}

	client := NewRedisClient(cfg)
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// Close 关闭客户端，nil 安全
func Close(client *redis.Client) error {
	if client == nil {
		return nil
	}
	return client.Close()
}
