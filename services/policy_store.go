package services

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"odds-engine/pkg/common"
	"odds-engine/pkg/models"
)

// SQLPolicyStore 赔率策略存储。策略读多写少，激活策略带短 TTL 缓存，
// 管理端更新时主动失效；引擎允许读到短暂过期的策略，硬性边界在
// 重算校验步骤里会再检查一遍。
type SQLPolicyStore struct {
	db  *sql.DB
	ttl time.Duration

	mu        sync.RWMutex
	cached    *models.Policy
	expiresAt time.Time
}

// NewSQLPolicyStore 创建策略存储
func NewSQLPolicyStore(db *sql.DB, cacheTTL time.Duration) *SQLPolicyStore {
	return &SQLPolicyStore{db: db, ttl: cacheTTL}
}

const policyColumns = `id, name, active, max_change_percent, min_seconds_between,
	min_odds, max_odds, volume_weight, probability_weight, house_margin_percent,
	notify_threshold_percent, auto_update, refresh_interval_minutes,
	freeze_window_minutes, created_at, updated_at`

func scanPolicy(row interface{ Scan(...interface{}) error }) (*models.Policy, error) {
	var p models.Policy
	var minSeconds int64
	if err := row.Scan(&p.ID, &p.Name, &p.Active, &p.MaxChangePercent, &minSeconds,
		&p.MinOdds, &p.MaxOdds, &p.VolumeWeight, &p.ProbabilityWeight,
		&p.HouseMarginPercent, &p.NotifyThresholdPercent, &p.AutoUpdate,
		&p.RefreshIntervalMinutes, &p.FreezeWindowMinutes,
		&p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.MinTimeBetween = time.Duration(minSeconds) * time.Second
	return &p, nil
}

// ActivePolicy 返回当前激活策略（缓存命中时不访问数据库）
func (s *SQLPolicyStore) ActivePolicy(ctx context.Context) (*models.Policy, error) {
	s.mu.RLock()
	if s.cached != nil && time.Now().Before(s.expiresAt) {
		p := *s.cached
		s.mu.RUnlock()
		return &p, nil
	}
	s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+policyColumns+` FROM odds_policies WHERE active = TRUE`)
	p, err := scanPolicy(row)
	if err == sql.ErrNoRows {
		return nil, common.ErrNoActivePolicy
	}
	if err != nil {
		return nil, common.StorageError("failed to query active policy", err)
	}

	s.mu.Lock()
	s.cached = p
	s.expiresAt = time.Now().Add(s.ttl)
	s.mu.Unlock()

	snapshot := *p
	return &snapshot, nil
}

// Invalidate 使激活策略缓存失效（管理端更新后调用）
func (s *SQLPolicyStore) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

// List 返回全部策略
func (s *SQLPolicyStore) List(ctx context.Context) ([]*models.Policy, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+policyColumns+` FROM odds_policies ORDER BY id`)
	if err != nil {
		return nil, common.StorageError("failed to query policies", err)
	}
	defer rows.Close()

	var policies []*models.Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, common.StorageError("failed to scan policy", err)
		}
		policies = append(policies, p)
	}
	return policies, rows.Err()
}

// Update 更新策略参数（管理端操作）
func (s *SQLPolicyStore) Update(ctx context.Context, p *models.Policy) error {
	if p.HouseMarginPercent.IsNegative() ||
		p.HouseMarginPercent.GreaterThanOrEqual(decimal100) {
		return fmt.Errorf("%w: house margin must be in [0, 100)", common.ErrInvalidInput)
	}
	if p.MinOdds.GreaterThanOrEqual(p.MaxOdds) {
		return fmt.Errorf("%w: min odds must be below max odds", common.ErrInvalidInput)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE odds_policies SET
			max_change_percent = $1, min_seconds_between = $2,
			min_odds = $3, max_odds = $4,
			volume_weight = $5, probability_weight = $6,
			house_margin_percent = $7, notify_threshold_percent = $8,
			auto_update = $9, refresh_interval_minutes = $10,
			freeze_window_minutes = $11, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $12`,
		p.MaxChangePercent, int64(p.MinTimeBetween.Seconds()),
		p.MinOdds, p.MaxOdds,
		p.VolumeWeight, p.ProbabilityWeight,
		p.HouseMarginPercent, p.NotifyThresholdPercent,
		p.AutoUpdate, p.RefreshIntervalMinutes,
		p.FreezeWindowMinutes, p.ID)
	if err != nil {
		return common.StorageError("failed to update policy", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return common.ErrNotFound
	}

	s.Invalidate()
	return nil
}

// Activate 激活指定策略。事务内先全部取消激活再激活目标策略，
// 保证任何时刻只有一条 active = true。
func (s *SQLPolicyStore) Activate(ctx context.Context, policyID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return common.StorageError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE odds_policies SET active = FALSE, updated_at = CURRENT_TIMESTAMP
		 WHERE active = TRUE`); err != nil {
		return common.StorageError("failed to deactivate policies", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE odds_policies SET active = TRUE, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $1`, policyID)
	if err != nil {
		return common.StorageError("failed to activate policy", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return common.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return common.StorageError("failed to commit activation", err)
	}

	s.Invalidate()
	return nil
}
