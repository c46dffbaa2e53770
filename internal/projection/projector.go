package projection

import (
	"context"
	"fmt"
	"math"
	"time"

	"glycemic-guard/internal/decay"
	"glycemic-guard/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	// StaleAfterMinutes 超过该时长未收到设备确认的 IoB 即视为过期
	StaleAfterMinutes = 120
	// MaxLookbackHours 查询窗口上限
	MaxLookbackHours = 12.0
)

// PumpEventStore 泵事件读取接口
type PumpEventStore interface {
	// QueryDeliveryEvents 查询 [from, to] 内指定类型、剂量为正的事件（按时间升序）
	QueryDeliveryEvents(ctx context.Context, userID string, types []models.PumpEventType, from, to time.Time) ([]models.PumpEvent, error)
	// LastConfirmedIoB 查询 [since, until] 内最近一次设备确认的 IoB，不存在时返回 nil
	LastConfirmedIoB(ctx context.Context, userID string, since, until time.Time) (*models.ConfirmedIoB, error)
}

// InsulinConfig 用户胰岛素配置
type InsulinConfig interface {
	DIAHours(ctx context.Context, userID string) (float64, error)
}

// Projector IoB 投影器
type Projector struct {
	events  PumpEventStore
	insulin InsulinConfig
	model   decay.Model
	logger  *zap.Logger
}

// NewProjector 创建投影器，model 为 nil 时使用抛物线模型
func NewProjector(events PumpEventStore, insulin InsulinConfig, model decay.Model, logger *zap.Logger) *Projector {
	if model == nil {
		model = decay.Parabolic{}
	}
	return &Projector{
		events:  events,
		insulin: insulin,
		model:   model,
		logger:  logger,
	}
}

// dose 快照之后的一次投药
type dose struct {
	units float64
	at    time.Time
}

// Project 计算用户在 asOf 时刻的 IoB 投影。
// 没有任何快照和投药记录时返回 (nil, nil)，调用方应视为“数据不足”。
func (p *Projector) Project(ctx context.Context, userID string, asOf time.Time) (*models.IoBProjection, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	dia, err := p.insulin.DIAHours(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get dia: %w", err)
	}
	if dia <= 0 {
		dia = decay.DefaultDIAHours
	}

	window := hoursToDuration(math.Min(dia, MaxLookbackHours))
	from := asOf.Add(-window)

	// 1. 最近一次设备确认的快照
	snapshot, err := p.events.LastConfirmedIoB(ctx, userID, from, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to get confirmed iob: %w", err)
	}

	// 2. 窗口内 bolus/correction
	events, err := p.events.QueryDeliveryEvents(ctx, userID, models.DeliveryEventTypes, from, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to query delivery events: %w", err)
	}

	// 3. 快照之前的剂量已包含在快照中
	doses := make([]dose, 0, len(events))
	for _, e := range events {
		if !e.IsDelivery() {
			continue
		}
		if snapshot != nil && !e.EventTimestamp.After(snapshot.Timestamp) {
			continue
		}
		doses = append(doses, dose{units: *e.Units, at: e.EventTimestamp})
	}

	// 6. 无数据
	if snapshot == nil && len(doses) == 0 {
		p.logger.Debug("No pump data to project",
			zap.String("user_id", userID),
			zap.Float64("dia_hours", dia),
		)
		return nil, nil
	}

	// 4. computeAt(t)
	computeAt := func(t time.Time) float64 {
		total := 0.0
		if snapshot != nil {
			total += snapshot.Value * p.model.RemainingFraction(t.Sub(snapshot.Timestamp).Hours(), dia)
		}
		for _, d := range doses {
			total += d.units * p.model.RemainingFraction(t.Sub(d.at).Hours(), dia)
		}
		return math.Max(0, total)
	}

	// 5. 当前、+30 分钟、+60 分钟
	now := computeAt(asOf)
	in30 := computeAt(asOf.Add(30 * time.Minute))
	in60 := computeAt(asOf.Add(60 * time.Minute))

	// 7. 锚点
	var anchor models.IoBAnchor
	if snapshot != nil {
		anchor = models.IoBAnchor{Kind: models.AnchorConfirmed, Value: snapshot.Value, At: snapshot.Timestamp}
	} else {
		anchor = models.IoBAnchor{Kind: models.AnchorEstimated, Value: now, At: asOf}
	}

	// 8. 过期判定
	minutesSince := int(asOf.Sub(anchor.At).Minutes())
	if minutesSince < 0 {
		minutesSince = 0
	}
	isStale := minutesSince > StaleAfterMinutes
	isEstimated := anchor.Kind == models.AnchorEstimated

	result := &models.IoBProjection{
		Anchor: models.IoBAnchor{
			Kind:  anchor.Kind,
			Value: Round2(anchor.Value),
			At:    anchor.At,
		},
		ConfirmedIoB:          Round2(anchor.Value),
		ConfirmedAt:           anchor.At,
		ProjectedIoB:          Round2(now),
		ProjectedAt:           asOf,
		Projected30Min:        Round2(in30),
		Projected60Min:        Round2(in60),
		MinutesSinceConfirmed: minutesSince,
		IsStale:               isStale,
		IsEstimated:           isEstimated,
		StaleWarning:          staleWarning(isStale, isEstimated, minutesSince, len(doses)),
	}

	p.logger.Debug("IoB projected",
		zap.String("user_id", userID),
		zap.String("anchor", string(anchor.Kind)),
		zap.Float64("projected_iob", result.ProjectedIoB),
		zap.Int("post_confirmation_doses", len(doses)),
		zap.Bool("is_stale", isStale),
	)

	return result, nil
}

func staleWarning(isStale, isEstimated bool, minutesSince, doseCount int) string {
	switch {
	case isEstimated:
		return fmt.Sprintf("No pump-confirmed IoB in the insulin action window; estimated from %d recorded dose(s)", doseCount)
	case isStale:
		return fmt.Sprintf("Last pump-confirmed IoB is %d minutes old (%s); projection may be inaccurate",
			minutesSince, formatAge(minutesSince))
	}
	return ""
}

func formatAge(minutes int) string {
	h, m := minutes/60, minutes%60
	if m == 0 {
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dh%02dm", h, m)
}

// Round2 展示用的两位小数
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func hoursToDuration(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}
