package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"glycemic-guard/internal/decay"
	"glycemic-guard/internal/models"
)

// MemoryStore 内存实现，供未启用数据库时的本地调试和单元测试使用。
// Insert 对 (alert_id, tier) 的唯一性检查与数据库唯一约束语义一致。
type MemoryStore struct {
	mu sync.RWMutex

	users     map[string]string // userID -> email
	pump      []models.PumpEvent
	alerts    map[string]models.Alert
	contacts  map[string][]models.EmergencyContact
	dia       map[string]float64
	configs   map[string]models.EscalationConfig
	events    map[string][]models.EscalationEvent // alertID -> events
	eventKeys map[string]struct{}                 // alertID|tier
	chats     map[string]string                   // userID -> telegram chat_id

	defaultDIA float64
}

// NewMemoryStore 创建内存 Store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      map[string]string{},
		alerts:     map[string]models.Alert{},
		contacts:   map[string][]models.EmergencyContact{},
		dia:        map[string]float64{},
		configs:    map[string]models.EscalationConfig{},
		events:     map[string][]models.EscalationEvent{},
		eventKeys:  map[string]struct{}{},
		chats:      map[string]string{},
		defaultDIA: decay.DefaultDIAHours,
	}
}

// PutUser 写入用户
func (s *MemoryStore) PutUser(userID, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = email
}

// AddPumpEvents 追加泵事件
func (s *MemoryStore) AddPumpEvents(events ...models.PumpEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pump = append(s.pump, events...)
}

// PutAlert 写入或替换报警（模拟外部生成器和用户确认）
func (s *MemoryStore) PutAlert(a models.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[a.ID] = a
}

// PutContacts 替换用户的紧急联系人
func (s *MemoryStore) PutContacts(userID string, contacts ...models.EmergencyContact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts[userID] = append([]models.EmergencyContact(nil), contacts...)
}

// SetDIA 设置用户 DIA
func (s *MemoryStore) SetDIA(userID string, hours float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dia[userID] = hours
}

// QueryDeliveryEvents 见 PumpEventsRepository.QueryDeliveryEvents
func (s *MemoryStore) QueryDeliveryEvents(_ context.Context, userID string, types []models.PumpEventType, from, to time.Time) ([]models.PumpEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[models.PumpEventType]bool, len(types))
	for _, t := range types {
		wanted[t] = true
	}

	out := make([]models.PumpEvent, 0)
	for _, e := range s.pump {
		if e.UserID != userID || !wanted[e.EventType] {
			continue
		}
		if e.EventTimestamp.Before(from) || e.EventTimestamp.After(to) {
			continue
		}
		if e.Units == nil || *e.Units <= 0 {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EventTimestamp.Before(out[j].EventTimestamp)
	})
	return out, nil
}

// LastConfirmedIoB 见 PumpEventsRepository.LastConfirmedIoB
func (s *MemoryStore) LastConfirmedIoB(_ context.Context, userID string, since, until time.Time) (*models.ConfirmedIoB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *models.ConfirmedIoB
	for _, e := range s.pump {
		if e.UserID != userID || e.IoBAtEvent == nil {
			continue
		}
		if e.EventTimestamp.Before(since) || e.EventTimestamp.After(until) {
			continue
		}
		if best == nil || e.EventTimestamp.After(best.Timestamp) {
			best = &models.ConfirmedIoB{Value: *e.IoBAtEvent, Timestamp: e.EventTimestamp}
		}
	}
	return best, nil
}

// UnacknowledgedCritical 见 AlertsRepository.UnacknowledgedCritical
func (s *MemoryStore) UnacknowledgedCritical(_ context.Context, userID string, now time.Time) ([]models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Alert, 0)
	for _, a := range s.alerts {
		if a.UserID == userID && a.IsEscalationCandidate(now) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// UsersWithPendingAlerts 见 AlertsRepository.UsersWithPendingAlerts
func (s *MemoryStore) UsersWithPendingAlerts(_ context.Context, now time.Time) ([]UserRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := map[string]bool{}
	out := make([]UserRef, 0)
	for _, a := range s.alerts {
		if !a.IsEscalationCandidate(now) || seen[a.UserID] {
			continue
		}
		email, ok := s.users[a.UserID]
		if !ok {
			continue
		}
		seen[a.UserID] = true
		out = append(out, UserRef{UserID: a.UserID, Email: email})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// UserEmail 见 AlertsRepository.UserEmail
func (s *MemoryStore) UserEmail(_ context.Context, userID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	email, ok := s.users[userID]
	if !ok {
		return "", fmt.Errorf("user not found: user_id=%s", userID)
	}
	return email, nil
}

// List 见 ContactsRepository.List
func (s *MemoryStore) List(_ context.Context, userID string) ([]models.EmergencyContact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.EmergencyContact(nil), s.contacts[userID]...), nil
}

// DIAHours 见 InsulinConfigRepository.DIAHours
func (s *MemoryStore) DIAHours(_ context.Context, userID string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if dia, ok := s.dia[userID]; ok {
		return ClampDIA(dia, s.defaultDIA), nil
	}
	return s.defaultDIA, nil
}

// GetOrCreate 见 EscalationConfigRepository.GetOrCreate
func (s *MemoryStore) GetOrCreate(_ context.Context, userID string) (*models.EscalationConfig, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, ok := s.configs[userID]
	if !ok {
		cfg = models.DefaultEscalationConfig(userID)
		cfg.CreatedAt = time.Now().UTC()
		cfg.UpdatedAt = cfg.CreatedAt
		s.configs[userID] = cfg
	}
	return &cfg, nil
}

// Save 见 EscalationConfigRepository.Save
func (s *MemoryStore) Save(_ context.Context, cfg *models.EscalationConfig) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.configs[cfg.UserID]; !ok {
		return fmt.Errorf("escalation config not found: user_id=%s", cfg.UserID)
	}
	cfg.UpdatedAt = time.Now().UTC()
	s.configs[cfg.UserID] = *cfg
	return nil
}

// ListForAlert 见 EscalationEventsRepository.ListForAlert
func (s *MemoryStore) ListForAlert(_ context.Context, alertID string) ([]models.EscalationEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.EscalationEvent(nil), s.events[alertID]...), nil
}

// Insert 见 EscalationEventsRepository.Insert
func (s *MemoryStore) Insert(_ context.Context, event *models.EscalationEvent) error {
	if event == nil {
		return fmt.Errorf("event is required")
	}
	key := event.AlertID + "|" + string(event.Tier)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.eventKeys[key]; exists {
		return fmt.Errorf("%w: alert_id=%s, tier=%s", models.ErrDuplicateEscalation, event.AlertID, event.Tier)
	}
	s.eventKeys[key] = struct{}{}
	s.events[event.AlertID] = append(s.events[event.AlertID], *event)
	return nil
}

// ChatID 见 PatientChatsRepository.ChatID
func (s *MemoryStore) ChatID(_ context.Context, userID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chats[userID], nil
}

// SetChatID 见 PatientChatsRepository.SetChatID
func (s *MemoryStore) SetChatID(_ context.Context, userID, chatID string) error {
	if userID == "" {
		return fmt.Errorf("user_id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if chatID = strings.TrimSpace(chatID); chatID == "" {
		delete(s.chats, userID)
		return nil
	}
	s.chats[userID] = chatID
	return nil
}

// EventCount 升级记录总数（测试用）
func (s *MemoryStore) EventCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.eventKeys)
}
