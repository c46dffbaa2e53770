// Package decay 胰岛素剩余比例曲线
//
// 所有函数都是纯函数：给定距离给药的小时数和 DIA（胰岛素作用持续时间），
// 返回仍在体内起作用的胰岛素比例 [0,1]。
package decay

import (
	"fmt"
	"math"
	"strings"
)

// DefaultDIAHours 用户未配置时的 DIA
const DefaultDIAHours = 4.0

// 模型名称
const (
	ModelParabolic = "parabolic"
	ModelBilinear  = "bilinear"
)

// Model 剩余比例曲线
type Model interface {
	Name() string
	RemainingFraction(elapsedHours, diaHours float64) float64
}

// Parabolic 抛物线衰减：1 - (t/DIA)^2
// 开始下降缓慢，接近作用结束时下降陡峭。投影默认使用此模型。
type Parabolic struct{}

// Name 模型名称
func (Parabolic) Name() string { return ModelParabolic }

// RemainingFraction 剩余比例
func (Parabolic) RemainingFraction(elapsedHours, diaHours float64) float64 {
	return RemainingFraction(elapsedHours, diaHours)
}

// RemainingFraction 抛物线模型的剩余比例
func RemainingFraction(elapsedHours, diaHours float64) float64 {
	if elapsedHours <= 0 {
		return 1.0
	}
	if diaHours <= 0 || elapsedHours >= diaHours {
		return 0.0
	}
	r := elapsedHours / diaHours
	return clamp01(1 - r*r)
}

// Bilinear 双线性活性曲线：活性从 0 线性升到峰值（PeakHours），再线性降到 DIA 时为 0。
// 剩余比例 = 1 - 活性曲线下已吸收的面积比例。
type Bilinear struct {
	PeakHours float64
}

// Name 模型名称
func (Bilinear) Name() string { return ModelBilinear }

// RemainingFraction 剩余比例
func (b Bilinear) RemainingFraction(elapsedHours, diaHours float64) float64 {
	if elapsedHours <= 0 {
		return 1.0
	}
	if diaHours <= 0 || elapsedHours >= diaHours {
		return 0.0
	}

	peak := b.PeakHours
	if peak <= 0 || peak >= diaHours {
		// 峰值不合法时退化为对称三角形
		peak = diaHours / 2
	}

	var absorbed float64
	if elapsedHours <= peak {
		absorbed = elapsedHours * elapsedHours / (peak * diaHours)
	} else {
		rest := diaHours - elapsedHours
		absorbed = 1 - rest*rest/((diaHours-peak)*diaHours)
	}
	return clamp01(1 - absorbed)
}

// NewModel 按名称创建模型，空名称返回默认的抛物线模型
func NewModel(name string, peakMinutes float64) (Model, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ModelParabolic:
		return Parabolic{}, nil
	case ModelBilinear:
		return Bilinear{PeakHours: peakMinutes / 60}, nil
	default:
		return nil, fmt.Errorf("unknown decay model: %s", name)
	}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
