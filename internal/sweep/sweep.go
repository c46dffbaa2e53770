package sweep

import (
	"context"
	"errors"
	"fmt"
	"time"

	"glycemic-guard/internal/models"

	"go.uber.org/zap"
)

// AlertSource 待升级报警查询
type AlertSource interface {
	UnacknowledgedCritical(ctx context.Context, userID string, now time.Time) ([]models.Alert, error)
}

// Escalator 单条报警升级（escalation.Orchestrator）
type Escalator interface {
	Escalate(ctx context.Context, alert models.Alert, userEmail string) (*models.EscalationEvent, error)
}

// Sweep 单个用户的升级扫描
type Sweep struct {
	alerts    AlertSource
	escalator Escalator
	logger    *zap.Logger
	now       func() time.Time
}

// NewSweep 创建扫描器
func NewSweep(alerts AlertSource, escalator Escalator, logger *zap.Logger) *Sweep {
	return &Sweep{
		alerts:    alerts,
		escalator: escalator,
		logger:    logger,
		now:       time.Now,
	}
}

// RunForUser 依次处理用户所有未确认的 urgent/emergency 报警（最新的在前），返回本次触发的升级数。
// 单条报警失败（包括 panic）只记录日志，不影响其余报警。
func (s *Sweep) RunForUser(ctx context.Context, userID, userEmail string) int {
	return s.runForUser(ctx, userID, userEmail).escalations
}

// userResult 单个用户一次扫描的结果
type userResult struct {
	escalations int
	panics      int
}

func (s *Sweep) runForUser(ctx context.Context, userID, userEmail string) userResult {
	var res userResult

	alerts, err := s.alerts.UnacknowledgedCritical(ctx, userID, s.now())
	if err != nil {
		s.logger.Error("Failed to load pending alerts",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return res
	}

	for _, alert := range alerts {
		// 检查上下文是否已取消
		select {
		case <-ctx.Done():
			return res
		default:
		}

		event, err := s.escalateOne(ctx, alert, userEmail)
		if err != nil {
			if errors.Is(err, errEscalationPanic) {
				res.panics++
			}
			s.logger.Error("Failed to escalate alert",
				zap.String("user_id", userID),
				zap.String("alert_id", alert.ID),
				zap.Error(err),
			)
			continue
		}
		if event != nil {
			res.escalations++
		}
	}

	if res.escalations > 0 {
		s.logger.Info("User sweep finished",
			zap.String("user_id", userID),
			zap.Int("alerts", len(alerts)),
			zap.Int("escalations", res.escalations),
		)
	}
	return res
}

var errEscalationPanic = errors.New("panic during escalation")

// escalateOne 将单条报警升级中的 panic 转为错误
func (s *Sweep) escalateOne(ctx context.Context, alert models.Alert, userEmail string) (event *models.EscalationEvent, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("Panic during alert escalation",
				zap.String("alert_id", alert.ID),
				zap.Any("panic", rec),
				zap.Stack("stack"),
			)
			event, err = nil, fmt.Errorf("%w: %v", errEscalationPanic, rec)
		}
	}()
	return s.escalator.Escalate(ctx, alert, userEmail)
}
