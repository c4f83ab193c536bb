package services

import (
	"context"

	"odds-engine/pkg/models"
)

// DefaultTrendLookback 默认取最近几条变更记录做走势判断
const DefaultTrendLookback = 5

// TrendAdvisor 赔率走势分析器。只读变更日志，不做任何修改。
type TrendAdvisor struct {
	ledger   ChangeLedger
	lookback int
}

// NewTrendAdvisor 创建走势分析器
func NewTrendAdvisor(ledger ChangeLedger, lookback int) *TrendAdvisor {
	if lookback <= 0 {
		lookback = DefaultTrendLookback
	}
	return &TrendAdvisor{ledger: ledger, lookback: lookback}
}

// Trend 判断 (赛事, 结果) 的近期走势。
// 统计最近 N 条记录变化量的符号，多数方向获胜；
// 不足 3 条记录判为数据不足，平票判为平稳。
func (a *TrendAdvisor) Trend(ctx context.Context, eventID string, outcome models.OutcomeType) (models.TrendTag, error) {
	records, err := a.ledger.History(ctx, eventID, outcome, a.lookback)
	if err != nil {
		return "", err
	}
	return ClassifyTrend(records), nil
}

// ClassifyTrend 对一组变更记录（时间倒序）做走势分类
func ClassifyTrend(records []*models.ChangeRecord) models.TrendTag {
	if len(records) < 3 {
		return models.TrendInsufficientData
	}

	rising, falling := 0, 0
	for _, r := range records {
		switch r.ChangePercent.Sign() {
		case 1:
			rising++
		case -1:
			falling++
		}
	}

	switch {
	case rising > falling:
		return models.TrendRising
	case falling > rising:
		return models.TrendFalling
	default:
		return models.TrendStable
	}
}
