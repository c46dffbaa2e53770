package escalation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"glycemic-guard/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultDispatchTimeout 单次通知发送的超时
const DefaultDispatchTimeout = 10 * time.Second

// ConfigStore 升级配置存储
type ConfigStore interface {
	// GetOrCreate 获取配置，不存在时按默认值创建（并发创建时返回已存在的记录）
	GetOrCreate(ctx context.Context, userID string) (*models.EscalationConfig, error)
	Save(ctx context.Context, cfg *models.EscalationConfig) error
}

// EventStore 升级审计记录存储
type EventStore interface {
	ListForAlert(ctx context.Context, alertID string) ([]models.EscalationEvent, error)
	// Insert 写入记录，(alert_id, tier) 冲突时返回 models.ErrDuplicateEscalation
	Insert(ctx context.Context, event *models.EscalationEvent) error
}

// Dispatcher 通知发送器，失败以状态值返回，不返回 error
type Dispatcher interface {
	Send(ctx context.Context, n models.Notification) models.NotificationStatus
}

// Orchestrator 单条报警的升级编排：决策 → 联系人 → 发送 → 写审计记录。
// 并发安全完全依赖 escalation_events 的唯一约束，不使用任何锁。
type Orchestrator struct {
	configs    ConfigStore
	events     EventStore
	contacts   *ContactResolver
	dispatcher Dispatcher
	logger     *zap.Logger

	dispatchTimeout time.Duration
	now             func() time.Time
}

// Option 编排器选项
type Option func(*Orchestrator)

// WithClock 替换时钟（测试用）
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithDispatchTimeout 设置发送超时
func WithDispatchTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.dispatchTimeout = d
		}
	}
}

// NewOrchestrator 创建编排器
func NewOrchestrator(
	configs ConfigStore,
	events EventStore,
	contacts *ContactResolver,
	dispatcher Dispatcher,
	logger *zap.Logger,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		configs:         configs,
		events:          events,
		contacts:        contacts,
		dispatcher:      dispatcher,
		logger:          logger,
		dispatchTimeout: DefaultDispatchTimeout,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Escalate 尝试将报警推进到下一层级。
// 返回 (nil, nil) 表示本次无需升级，或并发的另一次执行已写入该层级。
func (o *Orchestrator) Escalate(ctx context.Context, alert models.Alert, userEmail string) (*models.EscalationEvent, error) {
	now := o.now()
	if !alert.IsEscalationCandidate(now) {
		return nil, nil
	}

	// 1. 配置（get-or-create）
	cfg, err := o.configs.GetOrCreate(ctx, alert.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load escalation config: %w", err)
	}

	// 2. 已触发的层级
	existing, err := o.events.ListForAlert(ctx, alert.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list escalation events: %w", err)
	}
	triggered := models.NewTierSet()
	for _, e := range existing {
		triggered.Add(e.Tier)
	}

	// 3. 决策
	decision := Decide(alert.CreatedAt, now, *cfg, triggered)
	if !decision.Escalate {
		o.logger.Debug("No escalation",
			zap.String("alert_id", alert.ID),
			zap.String("reason", decision.Reason),
		)
		return nil, nil
	}

	// 4. 联系人
	contacts, err := o.contacts.ContactsFor(ctx, decision.Tier, alert.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve contacts for %s: %w", decision.Tier, err)
	}

	// 5. 发送
	notification := models.Notification{
		AlertID:   alert.ID,
		UserID:    alert.UserID,
		UserEmail: userEmail,
		Tier:      decision.Tier,
		Severity:  alert.Severity,
		Message:   BuildMessage(decision.Tier, alert, userEmail, now),
		Contacts:  contacts,
	}
	status := o.dispatch(ctx, notification)

	// 6. 写审计记录（唯一约束保证每个层级只有一条）
	event := &models.EscalationEvent{
		ID:                 uuid.NewString(),
		AlertID:            alert.ID,
		UserID:             alert.UserID,
		Tier:               decision.Tier,
		TriggeredAt:        now,
		MessageContent:     notification.Message,
		NotificationStatus: status,
		ContactsNotified:   notification.ContactIDs(),
	}
	if err := o.events.Insert(ctx, event); err != nil {
		if errors.Is(err, models.ErrDuplicateEscalation) {
			o.logger.Debug("Escalation tier already recorded by concurrent run",
				zap.String("alert_id", alert.ID),
				zap.String("tier", string(decision.Tier)),
			)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to record escalation event: %w", err)
	}

	o.logger.Info("Alert escalated",
		zap.String("alert_id", alert.ID),
		zap.String("user_id", alert.UserID),
		zap.String("tier", string(decision.Tier)),
		zap.String("notification_status", string(status)),
		zap.Int("contacts", len(contacts)),
	)

	return event, nil
}

func (o *Orchestrator) dispatch(ctx context.Context, n models.Notification) models.NotificationStatus {
	sendCtx, cancel := context.WithTimeout(ctx, o.dispatchTimeout)
	defer cancel()

	status := o.dispatcher.Send(sendCtx, n)
	if status != models.NotificationSent {
		o.logger.Warn("Escalation notification not delivered",
			zap.String("alert_id", n.AlertID),
			zap.String("tier", string(n.Tier)),
			zap.String("status", string(status)),
		)
	}
	return status
}
