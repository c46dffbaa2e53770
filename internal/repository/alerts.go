package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"glycemic-guard/internal/models"

	"go.uber.org/zap"
)

// UserRef 有待升级报警的用户
type UserRef struct {
	UserID string
	Email  string
}

// AlertsRepository 报警仓库（只读，报警由外部生成器写入并由用户确认）
type AlertsRepository struct {
	base
}

// NewAlertsRepository 创建报警仓库
func NewAlertsRepository(db *sql.DB, dialect Dialect, logger *zap.Logger) *AlertsRepository {
	return &AlertsRepository{base{db: db, dialect: dialect, logger: logger}}
}

// UnacknowledgedCritical 未确认、未过期的 urgent/emergency 报警，最新的在前
func (r *AlertsRepository) UnacknowledgedCritical(ctx context.Context, userID string, now time.Time) ([]models.Alert, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	query := `
		SELECT id, user_id, severity, created_at, expires_at, acknowledged, message, current_value
		FROM alerts
		WHERE user_id = ?
		  AND severity IN ('urgent', 'emergency')
		  AND acknowledged = ?
		  AND expires_at > ?
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, r.q(query), userID, false, utc(now))
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]models.Alert, 0)
	for rows.Next() {
		var a models.Alert
		var severity string
		if err := rows.Scan(&a.ID, &a.UserID, &severity, &a.CreatedAt, &a.ExpiresAt, &a.Acknowledged, &a.Message, &a.CurrentValue); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.Severity = models.AlertSeverity(severity)
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}

	return alerts, nil
}

// UsersWithPendingAlerts 有待升级报警的用户列表（供周期任务遍历）
func (r *AlertsRepository) UsersWithPendingAlerts(ctx context.Context, now time.Time) ([]UserRef, error) {
	query := `
		SELECT DISTINCT u.id, u.email
		FROM alerts a
		JOIN users u ON u.id = a.user_id
		WHERE a.severity IN ('urgent', 'emergency')
		  AND a.acknowledged = ?
		  AND a.expires_at > ?
		ORDER BY u.id
	`

	rows, err := r.db.QueryContext(ctx, r.q(query), false, utc(now))
	if err != nil {
		return nil, fmt.Errorf("failed to query users with pending alerts: %w", err)
	}
	defer rows.Close()

	users := make([]UserRef, 0)
	for rows.Next() {
		var u UserRef
		if err := rows.Scan(&u.UserID, &u.Email); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return users, nil
}

// UserEmail 查询用户邮箱
func (r *AlertsRepository) UserEmail(ctx context.Context, userID string) (string, error) {
	var email string
	err := r.db.QueryRowContext(ctx, r.q(`SELECT email FROM users WHERE id = ?`), userID).Scan(&email)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", fmt.Errorf("user not found: user_id=%s", userID)
		}
		return "", fmt.Errorf("failed to get user email: %w", err)
	}
	return email, nil
}
