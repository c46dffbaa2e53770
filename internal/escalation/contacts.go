package escalation

import (
	"context"
	"fmt"
	"sort"

	"glycemic-guard/internal/models"
)

// ContactDirectory 紧急联系人目录
type ContactDirectory interface {
	List(ctx context.Context, userID string) ([]models.EmergencyContact, error)
}

// ContactResolver 将升级层级映射为需要通知的联系人（有序）
type ContactResolver struct {
	directory ContactDirectory
}

// NewContactResolver 创建联系人解析器
func NewContactResolver(directory ContactDirectory) *ContactResolver {
	return &ContactResolver{directory: directory}
}

// ContactsFor 按层级返回联系人
//   - reminder：空（只提醒患者本人）
//   - primary_contact：priority=primary，按 position 排序
//   - all_contacts：全部，primary 在前，再按 position 排序
func (r *ContactResolver) ContactsFor(ctx context.Context, tier models.EscalationTier, userID string) ([]models.EmergencyContact, error) {
	if tier == models.TierReminder {
		return []models.EmergencyContact{}, nil
	}
	if !tier.Valid() {
		return nil, fmt.Errorf("unknown escalation tier: %s", tier)
	}

	all, err := r.directory.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list emergency contacts: %w", err)
	}

	out := make([]models.EmergencyContact, 0, len(all))
	for _, c := range all {
		if tier == models.TierPrimaryContact && c.Priority != models.ContactPrimary {
			continue
		}
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if ri, rj := out[i].Priority.Rank(), out[j].Priority.Rank(); ri != rj {
			return ri < rj
		}
		return out[i].Position < out[j].Position
	})

	return out, nil
}
