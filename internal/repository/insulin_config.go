package repository

import (
	"context"
	"database/sql"
	"fmt"

	"glycemic-guard/internal/decay"

	"go.uber.org/zap"
)

// DIA 合理范围（小时）
const (
	MinDIAHours = 2.0
	MaxDIAHours = 8.0
)

// InsulinConfigRepository 用户胰岛素配置（DIA）
type InsulinConfigRepository struct {
	base
	defaultDIA float64
}

// NewInsulinConfigRepository 创建胰岛素配置仓库，defaultDIA <= 0 时使用 4.0
func NewInsulinConfigRepository(db *sql.DB, dialect Dialect, defaultDIA float64, logger *zap.Logger) *InsulinConfigRepository {
	if defaultDIA <= 0 {
		defaultDIA = decay.DefaultDIAHours
	}
	return &InsulinConfigRepository{
		base:       base{db: db, dialect: dialect, logger: logger},
		defaultDIA: defaultDIA,
	}
}

// DIAHours 用户的 DIA，未配置时返回默认值
func (r *InsulinConfigRepository) DIAHours(ctx context.Context, userID string) (float64, error) {
	var dia float64
	err := r.db.QueryRowContext(ctx, r.q(`SELECT dia_hours FROM insulin_configs WHERE user_id = ?`), userID).Scan(&dia)
	if err != nil {
		if err == sql.ErrNoRows {
			return r.defaultDIA, nil
		}
		return 0, fmt.Errorf("failed to get insulin config: %w", err)
	}
	return ClampDIA(dia, r.defaultDIA), nil
}

// ClampDIA 将 DIA 限制在 [MinDIAHours, MaxDIAHours]，非正值回退到默认值
func ClampDIA(dia, def float64) float64 {
	if dia <= 0 {
		return def
	}
	if dia < MinDIAHours {
		return MinDIAHours
	}
	if dia > MaxDIAHours {
		return MaxDIAHours
	}
	return dia
}
