package sweep

import (
	"context"

	commonredis "glycemic-guard/common/redis"

	"github.com/go-redis/redis/v8"
)

// DefaultStatsStream 扫描汇总写入的 Redis Stream
const DefaultStatsStream = "glycemic:sweep:stats"

// RedisStatsPublisher 将扫描汇总写入 Redis Stream
type RedisStatsPublisher struct {
	client *redis.Client
	opts   commonredis.StreamOptions
}

// NewRedisStatsPublisher 创建汇总发布器
func NewRedisStatsPublisher(client *redis.Client, stream string, maxLen int64) *RedisStatsPublisher {
	if stream == "" {
		stream = DefaultStatsStream
	}
	return &RedisStatsPublisher{
		client: client,
		opts:   commonredis.StreamOptions{Stream: stream, MaxLen: maxLen},
	}
}

// PublishStats 实现 StatsPublisher
func (p *RedisStatsPublisher) PublishStats(ctx context.Context, stats Stats) error {
	_, err := commonredis.PublishJSONToStream(ctx, p.client, p.opts, stats)
	return err
}
