package models

import "time"

// AlertSeverity 报警级别
type AlertSeverity string

const (
	SeverityInfo      AlertSeverity = "info"
	SeverityWarning   AlertSeverity = "warning"
	SeverityUrgent    AlertSeverity = "urgent"
	SeverityEmergency AlertSeverity = "emergency"
)

// IsCritical urgent / emergency 才会进入升级流程
func (s AlertSeverity) IsCritical() bool {
	return s == SeverityUrgent || s == SeverityEmergency
}

// Alert 血糖报警（由外部报警生成器创建，本服务只读）
type Alert struct {
	ID           string        `json:"id"`
	UserID       string        `json:"user_id"`
	Severity     AlertSeverity `json:"severity"`
	CreatedAt    time.Time     `json:"created_at"`
	ExpiresAt    time.Time     `json:"expires_at"`
	Acknowledged bool          `json:"acknowledged"`
	Message      string        `json:"message"`
	CurrentValue float64       `json:"current_value"` // 当前血糖值 mg/dL
}

// IsEscalationCandidate 是否为升级候选：critical、未确认、未过期
func (a Alert) IsEscalationCandidate(now time.Time) bool {
	return a.Severity.IsCritical() && !a.Acknowledged && a.ExpiresAt.After(now)
}
