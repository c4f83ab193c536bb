package services

import (
	"context"

	"github.com/shopspring/decimal"

	"odds-engine/logger"
	"odds-engine/pkg/models"
)

// WagerIntake 投注登记入口。
// 先更新投注量统计，再同步触发一次重算。投注本身在上游已经成交，
// 重算的任何失败都不能影响投注结果，只记录日志。
type WagerIntake struct {
	volumes VolumeStore
	engine  *RecalcEngine
}

// NewWagerIntake 创建投注登记入口
func NewWagerIntake(volumes VolumeStore, engine *RecalcEngine) *WagerIntake {
	return &WagerIntake{volumes: volumes, engine: engine}
}

// Register 登记一笔已接受的投注并触发重算。
// 返回的 error 只反映投注量登记本身的失败。
func (w *WagerIntake) Register(ctx context.Context, eventID string, outcome models.OutcomeType, amount decimal.Decimal) (*models.VolumeStats, error) {
	stats, err := w.volumes.RecordWager(ctx, eventID, outcome, amount)
	if err != nil {
		return nil, err
	}

	// 投注触发的重算，reason 标记为 volume。
	// 限流在引擎里做：同一结果上的投注风暴只会产生一次生效变更。
	result, err := w.engine.Recalculate(ctx, eventID, outcome, models.ReasonVolume)
	if err != nil {
		logger.Errorf("[WagerIntake] Recalculation failed for %s/%s: %v", eventID, outcome, err)
		return stats, nil
	}
	if result.Outcome == RecalcRejected {
		logger.Printf("[WagerIntake] Recalculation rejected for %s/%s: %s", eventID, outcome, result.Reason)
	}

	return stats, nil
}
