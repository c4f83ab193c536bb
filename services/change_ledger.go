package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"odds-engine/pkg/common"
	"odds-engine/pkg/models"
)

// SQLChangeLedger 赔率变更审计日志的 PostgreSQL 实现。
// 记录只由重算引擎的提交步骤产生，除保留期清理外不删不改。
type SQLChangeLedger struct {
	db *sql.DB
}

// NewSQLChangeLedger 创建变更日志
func NewSQLChangeLedger(db *sql.DB) *SQLChangeLedger {
	return &SQLChangeLedger{db: db}
}

const recordColumns = `id, record_uid, event_id, outcome_type, previous_price,
	new_price, change_percent, reason, wager_count_snapshot, total_amount_snapshot,
	COALESCE(detail, ''), created_at`

func scanRecord(row interface{ Scan(...interface{}) error }) (*models.ChangeRecord, error) {
	var r models.ChangeRecord
	var outcome, reason, uid string
	if err := row.Scan(&r.ID, &uid, &r.EventID, &outcome, &r.PreviousPrice,
		&r.NewPrice, &r.ChangePercent, &reason, &r.WagerCountSnapshot,
		&r.TotalAmountSnapshot, &r.Detail, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.OutcomeType = models.OutcomeType(outcome)
	r.Reason = models.ChangeReason(reason)
	if parsed, err := uuid.Parse(uid); err == nil {
		r.RecordUID = parsed
	}
	return &r, nil
}

// Append 追加一条变更记录，回填 ID/RecordUID/CreatedAt
func (l *SQLChangeLedger) Append(ctx context.Context, record *models.ChangeRecord) error {
	if record.RecordUID == uuid.Nil {
		record.RecordUID = uuid.New()
	}
	err := l.db.QueryRowContext(ctx,
		`INSERT INTO odds_change_records
			(record_uid, event_id, outcome_type, previous_price, new_price,
			 change_percent, reason, wager_count_snapshot, total_amount_snapshot, detail)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id, created_at`,
		record.RecordUID.String(), record.EventID, string(record.OutcomeType),
		record.PreviousPrice, record.NewPrice, record.ChangePercent,
		string(record.Reason), record.WagerCountSnapshot, record.TotalAmountSnapshot,
		record.Detail).Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		return common.StorageError("failed to append change record", err)
	}
	return nil
}

// History 按时间倒序返回变更历史
func (l *SQLChangeLedger) History(ctx context.Context, eventID string, outcome models.OutcomeType, limit int) ([]*models.ChangeRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM odds_change_records
		 WHERE event_id = $1 AND outcome_type = $2
		 ORDER BY created_at DESC, id DESC
		 LIMIT $3`,
		eventID, string(outcome), limit)
	if err != nil {
		return nil, common.StorageError("failed to query change history", err)
	}
	defer rows.Close()

	var records []*models.ChangeRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, common.StorageError("failed to scan change record", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// LastChangeAt 最近一次变更时间，无记录时返回 nil
func (l *SQLChangeLedger) LastChangeAt(ctx context.Context, eventID string, outcome models.OutcomeType) (*time.Time, error) {
	var t time.Time
	err := l.db.QueryRowContext(ctx,
		`SELECT created_at FROM odds_change_records
		 WHERE event_id = $1 AND outcome_type = $2
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		eventID, string(outcome)).Scan(&t)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, common.StorageError("failed to query last change time", err)
	}
	return &t, nil
}

// PurgeBefore 删除指定时间之前的记录（保留期清理），返回删除数量
func (l *SQLChangeLedger) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := l.db.ExecContext(ctx,
		`DELETE FROM odds_change_records WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, common.StorageError("failed to purge change records", err)
	}
	return res.RowsAffected()
}
