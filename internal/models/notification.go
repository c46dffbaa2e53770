package models

// Notification 一次待发送的升级通知
// reminder 层级 Contacts 为空，由发送端投递给患者本人
type Notification struct {
	AlertID   string             `json:"alert_id"`
	UserID    string             `json:"user_id"`
	UserEmail string             `json:"user_email"`
	Tier      EscalationTier     `json:"tier"`
	Severity  AlertSeverity      `json:"severity"`
	Message   string             `json:"message"`
	Contacts  []EmergencyContact `json:"contacts"`
}

// ContactIDs 联系人 ID 列表
func (n Notification) ContactIDs() []string {
	ids := make([]string, 0, len(n.Contacts))
	for _, c := range n.Contacts {
		ids = append(ids, c.ID)
	}
	return ids
}
