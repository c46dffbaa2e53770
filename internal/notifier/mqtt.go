package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	commonmqtt "glycemic-guard/common/mqtt"
	"glycemic-guard/internal/models"

	"go.uber.org/zap"
)

// DefaultTopicPrefix MQTT 主题前缀，完整主题为 <prefix>/<user_id>/<tier>
const DefaultTopicPrefix = "glycemic/escalation"

// MQTTDispatcher 通过 MQTT 发布通知
type MQTTDispatcher struct {
	publisher   commonmqtt.Publisher
	topicPrefix string
	logger      *zap.Logger
}

// NewMQTTDispatcher 创建 MQTT 发送器
func NewMQTTDispatcher(publisher commonmqtt.Publisher, topicPrefix string, logger *zap.Logger) *MQTTDispatcher {
	if topicPrefix == "" {
		topicPrefix = DefaultTopicPrefix
	}
	return &MQTTDispatcher{publisher: publisher, topicPrefix: topicPrefix, logger: logger}
}

// Topic 通知对应的主题
func (d *MQTTDispatcher) Topic(n models.Notification) string {
	return fmt.Sprintf("%s/%s/%s", d.topicPrefix, n.UserID, n.Tier)
}

// Send 发布 JSON 负载，失败返回 failed
func (d *MQTTDispatcher) Send(ctx context.Context, n models.Notification) models.NotificationStatus {
	payload, err := json.Marshal(n)
	if err != nil {
		d.logger.Error("Failed to marshal escalation notification", zap.Error(err))
		return models.NotificationFailed
	}

	topic := d.Topic(n)
	if err := d.publisher.Publish(ctx, topic, payload); err != nil {
		d.logger.Error("Failed to publish escalation to MQTT",
			zap.String("topic", topic),
			zap.String("alert_id", n.AlertID),
			zap.Error(err),
		)
		return models.NotificationFailed
	}
	return models.NotificationSent
}
