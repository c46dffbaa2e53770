package escalation

import (
	"fmt"
	"strings"
	"time"

	"glycemic-guard/internal/models"
)

// BuildMessage 生成层级对应的通知文本。
// reminder 发给患者本人；primary_contact / all_contacts 发给紧急联系人，包含患者邮箱、当前值和级别。
func BuildMessage(tier models.EscalationTier, alert models.Alert, userEmail string, now time.Time) string {
	age := int(now.Sub(alert.CreatedAt).Minutes())
	severity := strings.ToUpper(string(alert.Severity))

	var b strings.Builder
	switch tier {
	case models.TierReminder:
		fmt.Fprintf(&b, "Reminder: your %s glucose alert is still unacknowledged after %d minutes.\n", severity, age)
		fmt.Fprintf(&b, "Current glucose: %.0f mg/dL\n", alert.CurrentValue)
		if alert.Message != "" {
			fmt.Fprintf(&b, "%s\n", alert.Message)
		}
		b.WriteString("Please check your glucose and acknowledge the alert. Your emergency contacts will be notified if it stays unacknowledged.")

	case models.TierPrimaryContact, models.TierAllContacts:
		fmt.Fprintf(&b, "%s glucose alert for %s\n", severity, userEmail)
		fmt.Fprintf(&b, "Current glucose: %.0f mg/dL\n", alert.CurrentValue)
		if alert.Message != "" {
			fmt.Fprintf(&b, "%s\n", alert.Message)
		}
		fmt.Fprintf(&b, "The alert has not been acknowledged for %d minutes. Please check on them.", age)
		if tier == models.TierAllContacts {
			b.WriteString("\nAll emergency contacts are being notified.")
		}
	}

	return b.String()
}
