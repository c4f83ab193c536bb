package models

import "github.com/shopspring/decimal"

// OutcomeType 可投注结果类型
type OutcomeType string

// 1X2 胜平负
const (
	OutcomeHome OutcomeType = "home"
	OutcomeDraw OutcomeType = "draw"
	OutcomeAway OutcomeType = "away"
)

// 大小球 2.5
const (
	OutcomeOver25  OutcomeType = "over_2_5"
	OutcomeUnder25 OutcomeType = "under_2_5"
)

// 让球 -1
const (
	OutcomeHandicapHome OutcomeType = "handicap_home_minus_1"
	OutcomeHandicapAway OutcomeType = "handicap_away_plus_1"
)

// 双方进球
const (
	OutcomeBTTSYes OutcomeType = "btts_yes"
	OutcomeBTTSNo  OutcomeType = "btts_no"
)

// 双重机会
const (
	OutcomeDC1X OutcomeType = "dc_home_or_draw"
	OutcomeDC12 OutcomeType = "dc_home_or_away"
	OutcomeDCX2 OutcomeType = "dc_draw_or_away"
)

// 波胆（常见比分）
const (
	OutcomeScore10 OutcomeType = "score_1_0"
	OutcomeScore20 OutcomeType = "score_2_0"
	OutcomeScore21 OutcomeType = "score_2_1"
	OutcomeScore00 OutcomeType = "score_0_0"
	OutcomeScore11 OutcomeType = "score_1_1"
	OutcomeScore22 OutcomeType = "score_2_2"
	OutcomeScore01 OutcomeType = "score_0_1"
	OutcomeScore02 OutcomeType = "score_0_2"
	OutcomeScore12 OutcomeType = "score_1_2"
	OutcomeScoreOther OutcomeType = "score_other"
)

// MarketSpec 盘口定义。原实现按结果类型写了一大段 switch 分支，
// 这里改为数据驱动的盘口表：每个盘口声明自己的结果集合、开盘价区间
// 和按结果数推导出的持仓占比阈值，新增盘口只需加一行数据。
type MarketSpec struct {
	Code     string
	Name     string
	Outcomes []OutcomeType

	// 开盘价区间，开盘时按区间中值定价
	BaseMin decimal.Decimal
	BaseMax decimal.Decimal

	// 持仓占比阈值（百分比）。EvenShare 为理论均衡占比 100/n；
	// 占比超过 Overexposed 视为本方持仓过重（压价），低于
	// Underexposed 视为持仓不足（抬价）。默认按结果数推导，
	// 允许逐盘口覆盖。
	EvenShare    decimal.Decimal
	Overexposed  decimal.Decimal
	Underexposed decimal.Decimal
}

// OutcomeCount 盘口的结果数
func (m *MarketSpec) OutcomeCount() int {
	return len(m.Outcomes)
}

// BasePrice 开盘价：开盘区间中值，保留两位小数
func (m *MarketSpec) BasePrice() decimal.Decimal {
	return m.BaseMin.Add(m.BaseMax).Div(decimal.NewFromInt(2)).Round(2)
}

// newMarketSpec 按结果数推导占比阈值。3 路盘推导出 33.33/20 的阈值，
// 与原实现对胜平负盘的硬编码常量一致。
func newMarketSpec(code, name string, baseMin, baseMax string, outcomes ...OutcomeType) *MarketSpec {
	n := decimal.NewFromInt(int64(len(outcomes)))
	even := decimal.NewFromInt(100).Div(n).Round(2)
	return &MarketSpec{
		Code:         code,
		Name:         name,
		Outcomes:     outcomes,
		BaseMin:      decimal.RequireFromString(baseMin),
		BaseMax:      decimal.RequireFromString(baseMax),
		EvenShare:    even,
		Overexposed:  even,
		Underexposed: even.Mul(decimal.RequireFromString("0.6")).Round(2),
	}
}

// marketTable 支持的盘口表
var marketTable = []*MarketSpec{
	newMarketSpec("1x2", "Match Result", "1.50", "6.00",
		OutcomeHome, OutcomeDraw, OutcomeAway),
	newMarketSpec("totals_2_5", "Over/Under 2.5 Goals", "1.70", "2.20",
		OutcomeOver25, OutcomeUnder25),
	newMarketSpec("handicap_1", "Handicap -1", "1.60", "2.40",
		OutcomeHandicapHome, OutcomeHandicapAway),
	newMarketSpec("btts", "Both Teams To Score", "1.60", "2.30",
		OutcomeBTTSYes, OutcomeBTTSNo),
	newMarketSpec("double_chance", "Double Chance", "1.15", "2.10",
		OutcomeDC1X, OutcomeDC12, OutcomeDCX2),
	newMarketSpec("correct_score", "Correct Score", "5.00", "35.00",
		OutcomeScore10, OutcomeScore20, OutcomeScore21, OutcomeScore00,
		OutcomeScore11, OutcomeScore22, OutcomeScore01, OutcomeScore02,
		OutcomeScore12, OutcomeScoreOther),
}

// outcomeIndex 结果类型 -> 所属盘口
var outcomeIndex = func() map[OutcomeType]*MarketSpec {
	idx := make(map[OutcomeType]*MarketSpec)
	for _, m := range marketTable {
		for _, o := range m.Outcomes {
			idx[o] = m
		}
	}
	return idx
}()

// AllMarkets 返回支持的盘口表
func AllMarkets() []*MarketSpec {
	return marketTable
}

// MarketForOutcome 查找结果类型所属的盘口
func MarketForOutcome(outcome OutcomeType) (*MarketSpec, bool) {
	m, ok := outcomeIndex[outcome]
	return m, ok
}

// IsValidOutcome 检查结果类型是否受支持
func IsValidOutcome(outcome OutcomeType) bool {
	_, ok := outcomeIndex[outcome]
	return ok
}
