package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"odds-engine/pkg/common"
	"odds-engine/pkg/models"
)

// SQLVolumeAggregator 投注量统计的 PostgreSQL 实现。
// 首笔投注时惰性建行，之后 count/total 单调递增；
// 占比重算按重算周期触发一次，不随每笔投注执行。
type SQLVolumeAggregator struct {
	db *sql.DB
}

// NewSQLVolumeAggregator 创建投注量统计
func NewSQLVolumeAggregator(db *sql.DB) *SQLVolumeAggregator {
	return &SQLVolumeAggregator{db: db}
}

const volumeColumns = `id, event_id, outcome_type, wager_count, total_amount,
	avg_amount, min_amount, max_amount, share_percent, trend_tag, updated_at`

func scanVolume(row interface{ Scan(...interface{}) error }) (*models.VolumeStats, error) {
	var v models.VolumeStats
	var outcome, trend string
	if err := row.Scan(&v.ID, &v.EventID, &outcome, &v.WagerCount, &v.TotalAmount,
		&v.AvgAmount, &v.MinAmount, &v.MaxAmount, &v.SharePercent, &trend, &v.UpdatedAt); err != nil {
		return nil, err
	}
	v.OutcomeType = models.OutcomeType(outcome)
	v.TrendTag = models.TrendTag(trend)
	return &v, nil
}

// RecordWager 登记一笔已接受的投注。
// 金额必须为正数且以平台基准货币计
func (a *SQLVolumeAggregator) RecordWager(ctx context.Context, eventID string, outcome models.OutcomeType, amount decimal.Decimal) (*models.VolumeStats, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: wager amount must be positive", common.ErrInvalidInput)
	}
	if !models.IsValidOutcome(outcome) {
		return nil, fmt.Errorf("%w: %s", common.ErrUnknownOutcome, outcome)
	}

	row := a.db.QueryRowContext(ctx,
		`INSERT INTO wagering_volumes
			(event_id, outcome_type, wager_count, total_amount, avg_amount, min_amount, max_amount)
		 VALUES ($1, $2, 1, $3, $3, $3, $3)
		 ON CONFLICT (event_id, outcome_type) DO UPDATE SET
			wager_count = wagering_volumes.wager_count + 1,
			total_amount = wagering_volumes.total_amount + EXCLUDED.total_amount,
			avg_amount = ROUND((wagering_volumes.total_amount + EXCLUDED.total_amount)
				/ (wagering_volumes.wager_count + 1), 2),
			min_amount = LEAST(wagering_volumes.min_amount, EXCLUDED.min_amount),
			max_amount = GREATEST(wagering_volumes.max_amount, EXCLUDED.max_amount),
			updated_at = CURRENT_TIMESTAMP
		 RETURNING `+volumeColumns,
		eventID, string(outcome), amount)

	stats, err := scanVolume(row)
	if err != nil {
		return nil, common.StorageError("failed to record wager", err)
	}
	return stats, nil
}

// RecomputeShares 重算赛事内各结果的投注额占比。
// 占比保留两位小数，各结果之和允许因舍入有少量偏差。
func (a *SQLVolumeAggregator) RecomputeShares(ctx context.Context, eventID string) error {
	_, err := a.db.ExecContext(ctx,
		`UPDATE wagering_volumes v
		 SET share_percent = ROUND(v.total_amount * 100.0 / t.event_total, 2),
			 updated_at = CURRENT_TIMESTAMP
		 FROM (
			SELECT SUM(total_amount) AS event_total
			FROM wagering_volumes
			WHERE event_id = $1
		 ) t
		 WHERE v.event_id = $1 AND t.event_total > 0`,
		eventID)
	if err != nil {
		return common.StorageError("failed to recompute shares", err)
	}
	return nil
}

// Get 获取单个结果的统计
func (a *SQLVolumeAggregator) Get(ctx context.Context, eventID string, outcome models.OutcomeType) (*models.VolumeStats, error) {
	row := a.db.QueryRowContext(ctx,
		`SELECT `+volumeColumns+` FROM wagering_volumes
		 WHERE event_id = $1 AND outcome_type = $2`,
		eventID, string(outcome))

	stats, err := scanVolume(row)
	if err == sql.ErrNoRows {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, common.StorageError("failed to query volume", err)
	}
	return stats, nil
}

// ListByEvent 获取赛事的全部统计
func (a *SQLVolumeAggregator) ListByEvent(ctx context.Context, eventID string) ([]*models.VolumeStats, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT `+volumeColumns+` FROM wagering_volumes
		 WHERE event_id = $1 ORDER BY outcome_type`,
		eventID)
	if err != nil {
		return nil, common.StorageError("failed to query volumes", err)
	}
	defer rows.Close()

	var result []*models.VolumeStats
	for rows.Next() {
		v, err := scanVolume(rows)
		if err != nil {
			return nil, common.StorageError("failed to scan volume", err)
		}
		result = append(result, v)
	}
	return result, rows.Err()
}

// SetTrendTag 回写走势标签
func (a *SQLVolumeAggregator) SetTrendTag(ctx context.Context, eventID string, outcome models.OutcomeType, tag models.TrendTag) error {
	_, err := a.db.ExecContext(ctx,
		`UPDATE wagering_volumes SET trend_tag = $1, updated_at = CURRENT_TIMESTAMP
		 WHERE event_id = $2 AND outcome_type = $3`,
		string(tag), eventID, string(outcome))
	if err != nil {
		return common.StorageError("failed to set trend tag", err)
	}
	return nil
}

// PurgeEvent 删除赛事的全部统计（赛事归档后调用）
func (a *SQLVolumeAggregator) PurgeEvent(ctx context.Context, eventID string) (int64, error) {
	res, err := a.db.ExecContext(ctx,
		`DELETE FROM wagering_volumes WHERE event_id = $1`, eventID)
	if err != nil {
		return 0, common.StorageError("failed to purge volumes", err)
	}
	return res.RowsAffected()
}
