package repository

import (
	"context"
	"database/sql"
	"fmt"

	"glycemic-guard/internal/models"

	"go.uber.org/zap"
)

// ContactsRepository 紧急联系人仓库（只读）
type ContactsRepository struct {
	base
}

// NewContactsRepository 创建联系人仓库
func NewContactsRepository(db *sql.DB, dialect Dialect, logger *zap.Logger) *ContactsRepository {
	return &ContactsRepository{base{db: db, dialect: dialect, logger: logger}}
}

// List 用户的全部紧急联系人
func (r *ContactsRepository) List(ctx context.Context, userID string) ([]models.EmergencyContact, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	query := `
		SELECT id, user_id, name, telegram_username, priority, position
		FROM emergency_contacts
		WHERE user_id = ?
		ORDER BY position ASC
	`

	rows, err := r.db.QueryContext(ctx, r.q(query), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query emergency contacts: %w", err)
	}
	defer rows.Close()

	contacts := make([]models.EmergencyContact, 0, 3)
	for rows.Next() {
		var c models.EmergencyContact
		var priority string
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.TelegramUsername, &priority, &c.Position); err != nil {
			return nil, fmt.Errorf("failed to scan emergency contact: %w", err)
		}
		c.Priority = models.ContactPriority(priority)
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate emergency contacts: %w", err)
	}

	return contacts, nil
}
