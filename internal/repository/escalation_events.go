package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"glycemic-guard/internal/models"

	"go.uber.org/zap"
)

// EscalationEventsRepository 升级审计记录仓库
// (alert_id, tier) 的唯一约束是升级幂等性的唯一保证
type EscalationEventsRepository struct {
	base
}

// NewEscalationEventsRepository 创建升级审计记录仓库
func NewEscalationEventsRepository(db *sql.DB, dialect Dialect, logger *zap.Logger) *EscalationEventsRepository {
	return &EscalationEventsRepository{base{db: db, dialect: dialect, logger: logger}}
}

// ListForAlert 报警的全部升级记录（按触发时间升序，同一时刻按层级顺序）
func (r *EscalationEventsRepository) ListForAlert(ctx context.Context, alertID string) ([]models.EscalationEvent, error) {
	if alertID == "" {
		return nil, fmt.Errorf("alert_id is required")
	}

	query := `
		SELECT
			id,
			alert_id,
			user_id,
			tier,
			triggered_at,
			message_content,
			notification_status,
			contacts_notified
		FROM escalation_events
		WHERE alert_id = ?
		ORDER BY
			triggered_at ASC,
			CASE tier
				WHEN 'reminder' THEN 1
				WHEN 'primary_contact' THEN 2
				ELSE 3
			END ASC
	`

	rows, err := r.db.QueryContext(ctx, r.q(query), alertID)
	if err != nil {
		return nil, fmt.Errorf("failed to query escalation events: %w", err)
	}
	defer rows.Close()

	events := make([]models.EscalationEvent, 0, len(models.EscalationTiers))
	for rows.Next() {
		var e models.EscalationEvent
		var tier, status string
		var contacts []byte
		if err := rows.Scan(&e.ID, &e.AlertID, &e.UserID, &tier, &e.TriggeredAt, &e.MessageContent, &status, &contacts); err != nil {
			return nil, fmt.Errorf("failed to scan escalation event: %w", err)
		}
		e.Tier = models.EscalationTier(tier)
		e.NotificationStatus = models.NotificationStatus(status)
		e.ContactsNotified = []string{}
		if len(contacts) > 0 {
			if err := json.Unmarshal(contacts, &e.ContactsNotified); err != nil {
				return nil, fmt.Errorf("failed to decode contacts_notified: %w", err)
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate escalation events: %w", err)
	}

	return events, nil
}

// Insert 写入升级记录；(alert_id, tier) 冲突时返回 models.ErrDuplicateEscalation
func (r *EscalationEventsRepository) Insert(ctx context.Context, event *models.EscalationEvent) error {
	if event == nil {
		return fmt.Errorf("event is required")
	}
	if event.AlertID == "" {
		return fmt.Errorf("alert_id is required")
	}
	if !event.Tier.Valid() {
		return fmt.Errorf("invalid tier: %s", event.Tier)
	}

	contacts := event.ContactsNotified
	if contacts == nil {
		contacts = []string{}
	}
	contactsJSON, err := json.Marshal(contacts)
	if err != nil {
		return fmt.Errorf("failed to encode contacts_notified: %w", err)
	}

	query := `
		INSERT INTO escalation_events (
			id,
			alert_id,
			user_id,
			tier,
			triggered_at,
			message_content,
			notification_status,
			contacts_notified
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.q(query),
		event.ID,
		event.AlertID,
		event.UserID,
		string(event.Tier),
		utc(event.TriggeredAt),
		event.MessageContent,
		string(event.NotificationStatus),
		string(contactsJSON),
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("%w: alert_id=%s, tier=%s", models.ErrDuplicateEscalation, event.AlertID, event.Tier)
		}
		return fmt.Errorf("failed to insert escalation event: %w", err)
	}

	return nil
}
