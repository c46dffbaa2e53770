package escalation

import (
	"context"
	"fmt"

	"glycemic-guard/internal/models"

	"go.uber.org/zap"
)

// ConfigUpdate 部分更新，nil 字段保持原值
type ConfigUpdate struct {
	ReminderDelayMinutes       *int
	PrimaryContactDelayMinutes *int
	AllContactsDelayMinutes    *int
}

// ConfigService 升级配置读写
type ConfigService struct {
	store  ConfigStore
	logger *zap.Logger
}

// NewConfigService 创建配置服务
func NewConfigService(store ConfigStore, logger *zap.Logger) *ConfigService {
	return &ConfigService{store: store, logger: logger}
}

// Get 获取配置（不存在时创建默认值）
func (s *ConfigService) Get(ctx context.Context, userID string) (*models.EscalationConfig, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	return s.store.GetOrCreate(ctx, userID)
}

// Update 合并部分更新并校验；违反递增约束时返回包装了 models.ErrConfigInvariant 的错误，不做任何修正
func (s *ConfigService) Update(ctx context.Context, userID string, update ConfigUpdate) (*models.EscalationConfig, error) {
	current, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	merged := *current
	if update.ReminderDelayMinutes != nil {
		merged.ReminderDelayMinutes = *update.ReminderDelayMinutes
	}
	if update.PrimaryContactDelayMinutes != nil {
		merged.PrimaryContactDelayMinutes = *update.PrimaryContactDelayMinutes
	}
	if update.AllContactsDelayMinutes != nil {
		merged.AllContactsDelayMinutes = *update.AllContactsDelayMinutes
	}

	if err := merged.Validate(); err != nil {
		s.logger.Info("Rejected escalation config update",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil, err
	}

	if err := s.store.Save(ctx, &merged); err != nil {
		return nil, fmt.Errorf("failed to save escalation config: %w", err)
	}
	return &merged, nil
}
