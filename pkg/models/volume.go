package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// VolumeStats 单个 (赛事, 结果) 的投注量统计
type VolumeStats struct {
	ID          int64       `json:"id"`
	EventID     string      `json:"event_id"`
	OutcomeType OutcomeType `json:"outcome_type"`

	WagerCount  int64           `json:"wager_count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	AvgAmount   decimal.Decimal `json:"avg_amount"`
	MinAmount   decimal.Decimal `json:"min_amount"`
	MaxAmount   decimal.Decimal `json:"max_amount"`

	// 本结果投注额占全场投注额的百分比，由 RecomputeShares 维护
	SharePercent decimal.Decimal `json:"share_percent"`

	// 走势标签，由趋势分析器回写
	TrendTag TrendTag `json:"trend_tag"`

	UpdatedAt time.Time `json:"updated_at"`
}

// HasWagers 是否已有投注记录
func (v *VolumeStats) HasWagers() bool {
	return v != nil && v.WagerCount > 0
}
