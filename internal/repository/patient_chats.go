package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// PatientChatsRepository 患者本人的 Telegram chat_id（用于 reminder 层级）
type PatientChatsRepository struct {
	base
	now func() time.Time
}

// NewPatientChatsRepository 创建患者 chat 仓库
func NewPatientChatsRepository(db *sql.DB, dialect Dialect, logger *zap.Logger) *PatientChatsRepository {
	return &PatientChatsRepository{
		base: base{db: db, dialect: dialect, logger: logger},
		now:  time.Now,
	}
}

// ChatID 患者的 chat_id，未登记时返回 ""
func (r *PatientChatsRepository) ChatID(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user_id is required")
	}

	var chatID string
	err := r.db.QueryRowContext(ctx,
		r.q(`SELECT chat_id FROM patient_telegram_chats WHERE user_id = ?`), userID,
	).Scan(&chatID)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("failed to get patient chat: %w", err)
	}
	return chatID, nil
}

// SetChatID 登记或替换患者的 chat_id；空值表示删除
func (r *PatientChatsRepository) SetChatID(ctx context.Context, userID, chatID string) error {
	if userID == "" {
		return fmt.Errorf("user_id is required")
	}

	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		if _, err := r.db.ExecContext(ctx,
			r.q(`DELETE FROM patient_telegram_chats WHERE user_id = ?`), userID,
		); err != nil {
			return fmt.Errorf("failed to delete patient chat: %w", err)
		}
		return nil
	}

	query := `
		INSERT INTO patient_telegram_chats (user_id, chat_id, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE
		SET chat_id = excluded.chat_id,
		    updated_at = excluded.updated_at
	`
	if _, err := r.db.ExecContext(ctx, r.q(query), userID, chatID, utc(r.now())); err != nil {
		return fmt.Errorf("failed to save patient chat: %w", err)
	}

	r.logger.Debug("Patient telegram chat saved",
		zap.String("user_id", userID),
	)
	return nil
}
