package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"glycemic-guard/internal/models"

	"go.uber.org/zap"
)

// PumpEventsRepository 泵事件仓库（只读）
type PumpEventsRepository struct {
	base
}

// NewPumpEventsRepository 创建泵事件仓库
func NewPumpEventsRepository(db *sql.DB, dialect Dialect, logger *zap.Logger) *PumpEventsRepository {
	return &PumpEventsRepository{base{db: db, dialect: dialect, logger: logger}}
}

// QueryDeliveryEvents 查询 [from, to] 内指定类型、剂量为正的事件，按时间升序
func (r *PumpEventsRepository) QueryDeliveryEvents(ctx context.Context, userID string, types []models.PumpEventType, from, to time.Time) ([]models.PumpEvent, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	if len(types) == 0 {
		return []models.PumpEvent{}, nil
	}

	args := []interface{}{userID, utc(from), utc(to)}
	marks := make([]string, 0, len(types))
	for _, t := range types {
		marks = append(marks, "?")
		args = append(args, string(t))
	}

	query := fmt.Sprintf(`
		SELECT id, user_id, event_type, event_timestamp, units, iob_at_event
		FROM pump_events
		WHERE user_id = ?
		  AND event_timestamp >= ?
		  AND event_timestamp <= ?
		  AND event_type IN (%s)
		  AND units IS NOT NULL
		  AND units > 0
		ORDER BY event_timestamp ASC
	`, strings.Join(marks, ", "))

	rows, err := r.db.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pump events: %w", err)
	}
	defer rows.Close()

	events := make([]models.PumpEvent, 0)
	for rows.Next() {
		var e models.PumpEvent
		var eventType string
		var units, iob sql.NullFloat64
		if err := rows.Scan(&e.ID, &e.UserID, &eventType, &e.EventTimestamp, &units, &iob); err != nil {
			return nil, fmt.Errorf("failed to scan pump event: %w", err)
		}
		e.EventType = models.PumpEventType(eventType)
		if units.Valid {
			v := units.Float64
			e.Units = &v
		}
		if iob.Valid {
			v := iob.Float64
			e.IoBAtEvent = &v
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pump events: %w", err)
	}

	return events, nil
}

// LastConfirmedIoB 查询 [since, until] 内最近一次设备确认的 IoB，不存在时返回 nil
func (r *PumpEventsRepository) LastConfirmedIoB(ctx context.Context, userID string, since, until time.Time) (*models.ConfirmedIoB, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	query := `
		SELECT iob_at_event, event_timestamp
		FROM pump_events
		WHERE user_id = ?
		  AND iob_at_event IS NOT NULL
		  AND event_timestamp >= ?
		  AND event_timestamp <= ?
		ORDER BY event_timestamp DESC
		LIMIT 1
	`

	var snap models.ConfirmedIoB
	err := r.db.QueryRowContext(ctx, r.q(query), userID, utc(since), utc(until)).Scan(&snap.Value, &snap.Timestamp)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get confirmed iob: %w", err)
	}

	return &snap, nil
}
