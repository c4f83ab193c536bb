package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Policy 赔率调整策略。同一时间只有一条 active = true 的策略，
// 引擎每次重算开始时加载一份快照，算法内部不再回读。
type Policy struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`

	Active bool `json:"active"`

	// 单次调整允许的最大百分比变化
	MaxChangePercent decimal.Decimal `json:"max_change_percent"`

	// 同一赔率两次变更之间的最小间隔
	MinTimeBetween time.Duration `json:"min_time_between"`

	// 全局赔率上下界
	MinOdds decimal.Decimal `json:"min_odds"`
	MaxOdds decimal.Decimal `json:"max_odds"`

	// 投注量影响权重与概率影响权重
	VolumeWeight      decimal.Decimal `json:"volume_weight"`
	ProbabilityWeight decimal.Decimal `json:"probability_weight"`

	// 抽水百分比，[0, 100)
	HouseMarginPercent decimal.Decimal `json:"house_margin_percent"`

	// 触发通知的变化百分比阈值
	NotifyThresholdPercent decimal.Decimal `json:"notify_threshold_percent"`

	// 是否启用自动调整
	AutoUpdate bool `json:"auto_update"`

	// 定时重算间隔（分钟）
	RefreshIntervalMinutes int `json:"refresh_interval_minutes"`

	// 开赛前冻结窗口（分钟），窗口内不做自动调整
	FreezeWindowMinutes int `json:"freeze_window_minutes"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FreezeWindow 冻结窗口时长
func (p *Policy) FreezeWindow() time.Duration {
	return time.Duration(p.FreezeWindowMinutes) * time.Minute
}

// ClampPrice 将价格裁剪到策略允许的上下界内
func (p *Policy) ClampPrice(price decimal.Decimal) decimal.Decimal {
	if price.LessThan(p.MinOdds) {
		return p.MinOdds
	}
	if price.GreaterThan(p.MaxOdds) {
		return p.MaxOdds
	}
	return price
}

// WithinBounds 检查价格是否在上下界内
func (p *Policy) WithinBounds(price decimal.Decimal) bool {
	return price.GreaterThanOrEqual(p.MinOdds) && price.LessThanOrEqual(p.MaxOdds)
}
