package notifier

import (
	"context"

	"glycemic-guard/internal/models"

	"go.uber.org/zap"
)

// LogDispatcher 只写日志的发送器（默认渠道，本地调试用）
type LogDispatcher struct {
	logger *zap.Logger
}

// NewLogDispatcher 创建日志发送器
func NewLogDispatcher(logger *zap.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

// Send 记录通知内容，始终返回 sent
func (d *LogDispatcher) Send(_ context.Context, n models.Notification) models.NotificationStatus {
	d.logger.Info("Escalation notification",
		zap.String("alert_id", n.AlertID),
		zap.String("user_id", n.UserID),
		zap.String("tier", string(n.Tier)),
		zap.Strings("contact_ids", n.ContactIDs()),
		zap.String("message", n.Message),
	)
	return models.NotificationSent
}
