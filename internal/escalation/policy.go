package escalation

import (
	"fmt"
	"time"

	"glycemic-guard/internal/models"
)

// Decision 升级决策结果
type Decision struct {
	Escalate bool
	Tier     models.EscalationTier // Escalate 为 false 时为空
	Reason   string
}

// Decide 严格顺序的升级判定：reminder → primary_contact → all_contacts。
// 每次调用最多推进一个层级，即使多个延迟都已到期；前一层级未触发时不会评估后一层级。
func Decide(alertCreatedAt, now time.Time, cfg models.EscalationConfig, triggered models.TierSet) Decision {
	ageMinutes := now.Sub(alertCreatedAt).Minutes()

	tier, ok := NextTier(triggered)
	if !ok {
		return Decision{Reason: "all tiers already triggered"}
	}

	delay := cfg.DelayFor(tier)
	if ageMinutes >= float64(delay) {
		return Decision{
			Escalate: true,
			Tier:     tier,
			Reason:   fmt.Sprintf("alert age %.1f min reached %s delay of %d min", ageMinutes, tier, delay),
		}
	}
	return Decision{
		Reason: fmt.Sprintf("waiting for %s: alert age %.1f min, due at %d min", tier, ageMinutes, delay),
	}
}

// NextTier 返回下一个待触发的层级，全部触发后返回 ("", false)
func NextTier(triggered models.TierSet) (models.EscalationTier, bool) {
	for _, tier := range models.EscalationTiers {
		if !triggered.Has(tier) {
			return tier, true
		}
	}
	return "", false
}
