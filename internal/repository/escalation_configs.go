package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"glycemic-guard/internal/models"

	"go.uber.org/zap"
)

// EscalationConfigRepository 用户升级配置仓库
type EscalationConfigRepository struct {
	base
	now func() time.Time
}

// NewEscalationConfigRepository 创建升级配置仓库
func NewEscalationConfigRepository(db *sql.DB, dialect Dialect, logger *zap.Logger) *EscalationConfigRepository {
	return &EscalationConfigRepository{
		base: base{db: db, dialect: dialect, logger: logger},
		now:  time.Now,
	}
}

// GetOrCreate 获取用户配置，不存在时以默认值插入。
// 并发首次创建通过 ON CONFLICT DO NOTHING 收敛，随后统一读取已存在的记录。
func (r *EscalationConfigRepository) GetOrCreate(ctx context.Context, userID string) (*models.EscalationConfig, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	cfg, err := r.get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cfg != nil {
		return cfg, nil
	}

	def := models.DefaultEscalationConfig(userID)
	now := utc(r.now())
	insert := `
		INSERT INTO escalation_configs (
			user_id,
			reminder_delay_minutes,
			primary_contact_delay_minutes,
			all_contacts_delay_minutes,
			created_at,
			updated_at
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, r.q(insert),
		userID,
		def.ReminderDelayMinutes,
		def.PrimaryContactDelayMinutes,
		def.AllContactsDelayMinutes,
		now,
		now,
	); err != nil {
		return nil, fmt.Errorf("failed to create escalation config: %w", err)
	}

	cfg, err = r.get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("escalation config not found after create: user_id=%s", userID)
	}

	r.logger.Debug("Escalation config initialized",
		zap.String("user_id", userID),
	)
	return cfg, nil
}

func (r *EscalationConfigRepository) get(ctx context.Context, userID string) (*models.EscalationConfig, error) {
	query := `
		SELECT
			user_id,
			reminder_delay_minutes,
			primary_contact_delay_minutes,
			all_contacts_delay_minutes,
			created_at,
			updated_at
		FROM escalation_configs
		WHERE user_id = ?
	`

	var cfg models.EscalationConfig
	err := r.db.QueryRowContext(ctx, r.q(query), userID).Scan(
		&cfg.UserID,
		&cfg.ReminderDelayMinutes,
		&cfg.PrimaryContactDelayMinutes,
		&cfg.AllContactsDelayMinutes,
		&cfg.CreatedAt,
		&cfg.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get escalation config: %w", err)
	}
	return &cfg, nil
}

// Save 写入配置（先校验递增约束）
func (r *EscalationConfigRepository) Save(ctx context.Context, cfg *models.EscalationConfig) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if cfg.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	cfg.UpdatedAt = utc(r.now())
	query := `
		UPDATE escalation_configs
		SET reminder_delay_minutes = ?,
		    primary_contact_delay_minutes = ?,
		    all_contacts_delay_minutes = ?,
		    updated_at = ?
		WHERE user_id = ?
	`

	result, err := r.db.ExecContext(ctx, r.q(query),
		cfg.ReminderDelayMinutes,
		cfg.PrimaryContactDelayMinutes,
		cfg.AllContactsDelayMinutes,
		cfg.UpdatedAt,
		cfg.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update escalation config: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("escalation config not found: user_id=%s", cfg.UserID)
	}

	return nil
}
