package models

import "time"

// PumpEventType 泵事件类型
type PumpEventType string

const (
	PumpEventBasal      PumpEventType = "basal"
	PumpEventBolus      PumpEventType = "bolus"
	PumpEventCorrection PumpEventType = "correction"
	PumpEventSuspend    PumpEventType = "suspend"
	PumpEventResume     PumpEventType = "resume"
)

// DeliveryEventTypes 参与剂量累加的事件类型（basal 已包含在设备 IoB 快照中）
var DeliveryEventTypes = []PumpEventType{PumpEventBolus, PumpEventCorrection}

// PumpEvent 胰岛素泵事件（只读，来自 pump_events 表）
type PumpEvent struct {
	ID             string        `json:"id"`
	UserID         string        `json:"user_id"`
	EventType      PumpEventType `json:"event_type"`
	EventTimestamp time.Time     `json:"event_timestamp"`
	Units          *float64      `json:"units,omitempty"`        // 剂量（单位 U），可能为空
	IoBAtEvent     *float64      `json:"iob_at_event,omitempty"` // 设备确认的 IoB 快照，仅部分事件携带
}

// IsDelivery 是否为有效投药事件（bolus/correction 且剂量为正）
func (e PumpEvent) IsDelivery() bool {
	if e.EventType != PumpEventBolus && e.EventType != PumpEventCorrection {
		return false
	}
	return e.Units != nil && *e.Units > 0
}

// ConfirmedIoB 设备确认的 IoB 快照
type ConfirmedIoB struct {
	Value     float64
	Timestamp time.Time
}
