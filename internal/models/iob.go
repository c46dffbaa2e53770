package models

import "time"

// AnchorKind IoB 锚点类型
type AnchorKind string

const (
	// AnchorConfirmed 锚点来自设备确认的快照
	AnchorConfirmed AnchorKind = "confirmed"
	// AnchorEstimated 无快照，锚点由剂量推算并锚定在当前时间
	AnchorEstimated AnchorKind = "estimated"
)

// IoBAnchor 投影的起点：Confirmed(value, at) 或 Estimated(value, at)
type IoBAnchor struct {
	Kind  AnchorKind `json:"kind"`
	Value float64    `json:"value"`
	At    time.Time  `json:"at"`
}

// IoBProjection IoB 投影结果（按需计算，不落库）
type IoBProjection struct {
	Anchor IoBAnchor `json:"anchor"`

	ConfirmedIoB float64   `json:"confirmed_iob"`
	ConfirmedAt  time.Time `json:"confirmed_at"`

	ProjectedIoB   float64   `json:"projected_iob"`
	ProjectedAt    time.Time `json:"projected_at"`
	Projected30Min float64   `json:"projected_30min"`
	Projected60Min float64   `json:"projected_60min"`

	MinutesSinceConfirmed int    `json:"minutes_since_confirmed"`
	IsStale               bool   `json:"is_stale"`
	IsEstimated           bool   `json:"is_estimated"`
	StaleWarning          string `json:"stale_warning,omitempty"`
}
