package services

import (
	"github.com/shopspring/decimal"

	"odds-engine/pkg/models"
)

var (
	decimal100  = decimal.NewFromInt(100)
	decimalOne  = decimal.NewFromInt(1)
	factorLimit = decimal.RequireFromString("0.2")
)

// FactorCalculator 赔率调整因子计算器
type FactorCalculator struct{}

// NewFactorCalculator 创建因子计算器
func NewFactorCalculator() *FactorCalculator {
	return &FactorCalculator{}
}

// VolumeFactor 计算投注量因子，范围 [-0.2, +0.2]。
//
// 规则:
// - 本结果投注额占比超过盘口的过重阈值: 负因子压价（本方持仓过重）
// - 占比低于不足阈值: 正因子抬价
// - 阈值之间: 因子为 0
//
// 因子大小与偏离阈值的幅度成正比（每偏离 1 个百分点计 0.01），
// 形成把持仓推回均衡的负反馈。
func (c *FactorCalculator) VolumeFactor(sharePercent decimal.Decimal, market *models.MarketSpec) decimal.Decimal {
	if sharePercent.GreaterThan(market.Overexposed) {
		factor := sharePercent.Sub(market.Overexposed).Div(decimal100)
		if factor.GreaterThan(factorLimit) {
			factor = factorLimit
		}
		return factor.Neg()
	}

	if sharePercent.LessThan(market.Underexposed) {
		factor := market.Underexposed.Sub(sharePercent).Div(decimal100)
		if factor.GreaterThan(factorLimit) {
			factor = factorLimit
		}
		return factor
	}

	return decimal.Zero
}

// ProbabilityFactor 计算概率因子。
//
// 把本结果投注额占比视为市场隐含概率，与盘口的理论均分概率
// (1/结果数) 比较，有符号差与投注量因子同向作用:
// 占比高于均分 -> 负因子，占比低于均分 -> 正因子。
// 同样限制在 [-0.2, +0.2]。
func (c *FactorCalculator) ProbabilityFactor(sharePercent decimal.Decimal, market *models.MarketSpec) decimal.Decimal {
	evenFraction := decimalOne.Div(decimal.NewFromInt(int64(market.OutcomeCount())))
	shareFraction := sharePercent.Div(decimal100)

	factor := evenFraction.Sub(shareFraction)
	if factor.GreaterThan(factorLimit) {
		return factorLimit
	}
	if factor.LessThan(factorLimit.Neg()) {
		return factorLimit.Neg()
	}
	return factor
}

// CandidatePrice 按当前价和因子计算候选价:
//
//	candidate = price × (1 + volumeFactor × volumeWeight)
//	                  × (1 + probabilityFactor × probabilityWeight)
//	                  × (1 − houseMargin/100)
//
// 裁剪到策略上下界后保留两位小数（四舍五入）。
func (c *FactorCalculator) CandidatePrice(current decimal.Decimal, volumeFactor, probabilityFactor decimal.Decimal, policy *models.Policy) decimal.Decimal {
	candidate := current.
		Mul(decimalOne.Add(volumeFactor.Mul(policy.VolumeWeight))).
		Mul(decimalOne.Add(probabilityFactor.Mul(policy.ProbabilityWeight))).
		Mul(decimalOne.Sub(policy.HouseMarginPercent.Div(decimal100)))

	return policy.ClampPrice(candidate).Round(2)
}
