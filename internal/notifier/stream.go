package notifier

import (
	"context"

	commonredis "glycemic-guard/common/redis"
	"glycemic-guard/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// DefaultEscalationStream 升级通知写入的 Redis Stream，由下游推送服务消费
const DefaultEscalationStream = "glycemic:escalations"

// StreamDispatcher 将通知写入 Redis Stream
type StreamDispatcher struct {
	client *redis.Client
	opts   commonredis.StreamOptions
	logger *zap.Logger
}

// NewStreamDispatcher 创建 Redis Stream 发送器
func NewStreamDispatcher(client *redis.Client, stream string, maxLen int64, logger *zap.Logger) *StreamDispatcher {
	if stream == "" {
		stream = DefaultEscalationStream
	}
	return &StreamDispatcher{
		client: client,
		opts:   commonredis.StreamOptions{Stream: stream, MaxLen: maxLen},
		logger: logger,
	}
}

// Send 写入 data(JSON) + timestamp，写入失败返回 failed
func (d *StreamDispatcher) Send(ctx context.Context, n models.Notification) models.NotificationStatus {
	id, err := commonredis.PublishJSONToStream(ctx, d.client, d.opts, n)
	if err != nil {
		d.logger.Error("Failed to publish escalation to stream",
			zap.String("stream", d.opts.Stream),
			zap.String("alert_id", n.AlertID),
			zap.Error(err),
		)
		return models.NotificationFailed
	}

	d.logger.Debug("Escalation published to stream",
		zap.String("stream", d.opts.Stream),
		zap.String("message_id", id),
		zap.String("alert_id", n.AlertID),
	)
	return models.NotificationSent
}
