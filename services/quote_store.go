package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"odds-engine/pkg/common"
	"odds-engine/pkg/models"
)

// SQLQuoteStore 赔率存储的 PostgreSQL 实现。
// 所有写入都经过带 revision 条件的 UPDATE，落败的写入者拿到
// ErrConcurrencyConflict 而不是覆盖别人的结果。
type SQLQuoteStore struct {
	db *sql.DB
}

// NewSQLQuoteStore 创建赔率存储
func NewSQLQuoteStore(db *sql.DB) *SQLQuoteStore {
	return &SQLQuoteStore{db: db}
}

const quoteColumns = `id, event_id, outcome_type, price, state, revision, created_at, updated_at`

func scanQuote(row interface{ Scan(...interface{}) error }) (*models.Quote, error) {
	var q models.Quote
	var state string
	var outcome string
	if err := row.Scan(&q.ID, &q.EventID, &outcome, &q.Price, &state, &q.Revision, &q.CreatedAt, &q.UpdatedAt); err != nil {
		return nil, err
	}
	q.OutcomeType = models.OutcomeType(outcome)
	q.State = models.QuoteState(state)
	return &q, nil
}

// GetActiveQuote 获取当前 active 赔率。
// 发现同一 (赛事, 结果) 存在多条 active 记录时返回 ErrInvariantViolation。
func (s *SQLQuoteStore) GetActiveQuote(ctx context.Context, eventID string, outcome models.OutcomeType) (*models.Quote, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+quoteColumns+` FROM odds_quotes
		 WHERE event_id = $1 AND outcome_type = $2 AND state = 'active'`,
		eventID, string(outcome))
	if err != nil {
		return nil, common.StorageError("failed to query active quote", err)
	}
	defer rows.Close()

	var quotes []*models.Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, common.StorageError("failed to scan quote", err)
		}
		quotes = append(quotes, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(quotes) {
	case 0:
		// active 不存在时区分 closed/suspended 和完全不存在
		return nil, s.classifyMissing(ctx, eventID, outcome)
	case 1:
		return quotes[0], nil
	default:
		return nil, fmt.Errorf("%w: %d active quotes for %s/%s",
			common.ErrInvariantViolation, len(quotes), eventID, outcome)
	}
}

func (s *SQLQuoteStore) classifyMissing(ctx context.Context, eventID string, outcome models.OutcomeType) error {
	var state string
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM odds_quotes
		 WHERE event_id = $1 AND outcome_type = $2
		 ORDER BY updated_at DESC LIMIT 1`,
		eventID, string(outcome)).Scan(&state)
	if err == sql.ErrNoRows {
		return common.ErrNotFound
	}
	if err != nil {
		return common.StorageError("failed to query quote state", err)
	}
	switch models.QuoteState(state) {
	case models.QuoteStateClosed:
		return common.ErrQuoteClosed
	case models.QuoteStateSuspended:
		return common.ErrQuoteSuspended
	default:
		return common.ErrNotFound
	}
}

// ListQuotes 获取赛事的全部赔率
func (s *SQLQuoteStore) ListQuotes(ctx context.Context, eventID string) ([]*models.Quote, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+quoteColumns+` FROM odds_quotes
		 WHERE event_id = $1 ORDER BY outcome_type`,
		eventID)
	if err != nil {
		return nil, common.StorageError("failed to query quotes", err)
	}
	defer rows.Close()

	var quotes []*models.Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, common.StorageError("failed to scan quote", err)
		}
		quotes = append(quotes, q)
	}
	return quotes, rows.Err()
}

// Commit 提交新价格（compare-and-swap）。
// revision 不匹配说明本轮已有其他写入者更新过该赔率。
func (s *SQLQuoteStore) Commit(ctx context.Context, eventID string, outcome models.OutcomeType, expectedRevision int64, newPrice decimal.Decimal) (*models.Quote, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE odds_quotes
		 SET price = $1, revision = revision + 1, updated_at = CURRENT_TIMESTAMP
		 WHERE event_id = $2 AND outcome_type = $3 AND state = 'active' AND revision = $4
		 RETURNING `+quoteColumns,
		newPrice, eventID, string(outcome), expectedRevision)

	q, err := scanQuote(row)
	if err == sql.ErrNoRows {
		// 更新没有命中：要么 revision 过期，要么赔率已不是 active
		if missErr := s.classifyMissing(ctx, eventID, outcome); missErr != common.ErrNotFound {
			if missErr == common.ErrQuoteClosed || missErr == common.ErrQuoteSuspended {
				return nil, missErr
			}
		}
		return nil, common.ErrConcurrencyConflict
	}
	if err != nil {
		return nil, common.StorageError("failed to commit quote", err)
	}
	return q, nil
}

// Close 关闭单个赔率，终态
func (s *SQLQuoteStore) Close(ctx context.Context, eventID string, outcome models.OutcomeType) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE odds_quotes
		 SET state = 'closed', updated_at = CURRENT_TIMESTAMP
		 WHERE event_id = $1 AND outcome_type = $2 AND state <> 'closed'`,
		eventID, string(outcome))
	if err != nil {
		return common.StorageError("failed to close quote", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return common.ErrNotFound
	}
	return nil
}

// Suspend 暂停赔率。暂停期间引擎和手工调价都会拒绝，
// 可由 Reactivate 恢复；closed 是终态，不受影响。
func (s *SQLQuoteStore) Suspend(ctx context.Context, eventID string, outcome models.OutcomeType) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE odds_quotes
		 SET state = 'suspended', updated_at = CURRENT_TIMESTAMP
		 WHERE event_id = $1 AND outcome_type = $2 AND state = 'active'`,
		eventID, string(outcome))
	if err != nil {
		return common.StorageError("failed to suspend quote", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return s.classifyMissing(ctx, eventID, outcome)
	}
	return nil
}

// Reactivate 恢复被暂停的赔率
func (s *SQLQuoteStore) Reactivate(ctx context.Context, eventID string, outcome models.OutcomeType) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE odds_quotes
		 SET state = 'active', updated_at = CURRENT_TIMESTAMP
		 WHERE event_id = $1 AND outcome_type = $2 AND state = 'suspended'`,
		eventID, string(outcome))
	if err != nil {
		return common.StorageError("failed to reactivate quote", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return s.classifyMissing(ctx, eventID, outcome)
	}
	return nil
}

// CloseAll 关闭赛事的全部赔率，返回关闭数量
func (s *SQLQuoteStore) CloseAll(ctx context.Context, eventID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE odds_quotes
		 SET state = 'closed', updated_at = CURRENT_TIMESTAMP
		 WHERE event_id = $1 AND state <> 'closed'`,
		eventID)
	if err != nil {
		return 0, common.StorageError("failed to close quotes", err)
	}
	return res.RowsAffected()
}

// SeedEvent 为新赛事按盘口表开盘：每个支持的结果类型一条 active 赔率，
// 价格取盘口开盘区间中值。已存在的结果类型跳过。
func (s *SQLQuoteStore) SeedEvent(ctx context.Context, eventID string) (int, error) {
	seeded := 0
	for _, market := range models.AllMarkets() {
		base := market.BasePrice()
		for _, outcome := range market.Outcomes {
			res, err := s.db.ExecContext(ctx,
				`INSERT INTO odds_quotes (event_id, outcome_type, price, state, revision)
				 SELECT $1, $2, $3, 'active', 1
				 WHERE NOT EXISTS (
					SELECT 1 FROM odds_quotes
					WHERE event_id = $1 AND outcome_type = $2 AND state = 'active'
				 )`,
				eventID, string(outcome), base)
			if err != nil {
				return seeded, common.StorageError(fmt.Sprintf("failed to seed quote %s/%s", eventID, outcome), err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				seeded++
			}
		}
	}
	return seeded, nil
}
