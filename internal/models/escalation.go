package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrConfigInvariant 升级配置违反 reminder < primary_contact < all_contacts
	ErrConfigInvariant = errors.New("escalation config invariant violated")
	// ErrDuplicateEscalation (alert_id, tier) 已存在升级记录（并发的另一次执行已写入）
	ErrDuplicateEscalation = errors.New("escalation event already exists for alert and tier")
)

// EscalationTier 升级层级
type EscalationTier string

const (
	TierReminder       EscalationTier = "reminder"
	TierPrimaryContact EscalationTier = "primary_contact"
	TierAllContacts    EscalationTier = "all_contacts"
)

// EscalationTiers 层级顺序（严格按此顺序触发）
var EscalationTiers = []EscalationTier{TierReminder, TierPrimaryContact, TierAllContacts}

// Valid 是否为已知层级
func (t EscalationTier) Valid() bool {
	switch t {
	case TierReminder, TierPrimaryContact, TierAllContacts:
		return true
	}
	return false
}

// TierSet 已触发的层级集合
type TierSet map[EscalationTier]struct{}

// NewTierSet 创建层级集合
func NewTierSet(tiers ...EscalationTier) TierSet {
	s := make(TierSet, len(tiers))
	for _, t := range tiers {
		s[t] = struct{}{}
	}
	return s
}

// Has 是否包含层级
func (s TierSet) Has(t EscalationTier) bool {
	_, ok := s[t]
	return ok
}

// Add 添加层级
func (s TierSet) Add(t EscalationTier) {
	s[t] = struct{}{}
}

// 默认升级延迟（分钟）
const (
	DefaultReminderDelayMinutes       = 5
	DefaultPrimaryContactDelayMinutes = 10
	DefaultAllContactsDelayMinutes    = 20
)

// EscalationConfig 用户升级配置（首次访问时按默认值创建）
type EscalationConfig struct {
	UserID                     string    `json:"user_id"`
	ReminderDelayMinutes       int       `json:"reminder_delay_minutes"`
	PrimaryContactDelayMinutes int       `json:"primary_contact_delay_minutes"`
	AllContactsDelayMinutes    int       `json:"all_contacts_delay_minutes"`
	CreatedAt                  time.Time `json:"created_at"`
	UpdatedAt                  time.Time `json:"updated_at"`
}

// DefaultEscalationConfig 默认配置 {5, 10, 20}
func DefaultEscalationConfig(userID string) EscalationConfig {
	return EscalationConfig{
		UserID:                     userID,
		ReminderDelayMinutes:       DefaultReminderDelayMinutes,
		PrimaryContactDelayMinutes: DefaultPrimaryContactDelayMinutes,
		AllContactsDelayMinutes:    DefaultAllContactsDelayMinutes,
	}
}

// DelayFor 返回层级对应的延迟（分钟）
func (c EscalationConfig) DelayFor(t EscalationTier) int {
	switch t {
	case TierReminder:
		return c.ReminderDelayMinutes
	case TierPrimaryContact:
		return c.PrimaryContactDelayMinutes
	case TierAllContacts:
		return c.AllContactsDelayMinutes
	}
	return 0
}

// Validate 检查延迟严格递增且为正
func (c EscalationConfig) Validate() error {
	if c.ReminderDelayMinutes <= 0 {
		return fmt.Errorf("%w: reminder_delay_minutes must be positive, got %d",
			ErrConfigInvariant, c.ReminderDelayMinutes)
	}
	if c.ReminderDelayMinutes >= c.PrimaryContactDelayMinutes {
		return fmt.Errorf("%w: reminder_delay_minutes (%d) must be less than primary_contact_delay_minutes (%d)",
			ErrConfigInvariant, c.ReminderDelayMinutes, c.PrimaryContactDelayMinutes)
	}
	if c.PrimaryContactDelayMinutes >= c.AllContactsDelayMinutes {
		return fmt.Errorf("%w: primary_contact_delay_minutes (%d) must be less than all_contacts_delay_minutes (%d)",
			ErrConfigInvariant, c.PrimaryContactDelayMinutes, c.AllContactsDelayMinutes)
	}
	return nil
}

// ContactPriority 紧急联系人优先级
type ContactPriority string

const (
	ContactPrimary   ContactPriority = "primary"
	ContactSecondary ContactPriority = "secondary"
)

// Rank primary 排在 secondary 前面
func (p ContactPriority) Rank() int {
	if p == ContactPrimary {
		return 0
	}
	return 1
}

// EmergencyContact 紧急联系人（外部维护，每个用户最多 3 个）
type EmergencyContact struct {
	ID               string          `json:"id"`
	UserID           string          `json:"user_id"`
	Name             string          `json:"name,omitempty"`
	TelegramUsername string          `json:"telegram_username"`
	Priority         ContactPriority `json:"priority"`
	Position         int             `json:"position"`
}

// NotificationStatus 通知发送状态
type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
)

// EscalationEvent 升级审计记录，(alert_id, tier) 唯一
type EscalationEvent struct {
	ID                 string             `json:"id"`
	AlertID            string             `json:"alert_id"`
	UserID             string             `json:"user_id"`
	Tier               EscalationTier     `json:"tier"`
	TriggeredAt        time.Time          `json:"triggered_at"`
	MessageContent     string             `json:"message_content"`
	NotificationStatus NotificationStatus `json:"notification_status"`
	ContactsNotified   []string           `json:"contacts_notified"`
}
