package services

import (
	"context"
	"database/sql"
	"time"

	"odds-engine/pkg/common"
	"odds-engine/pkg/models"
)

// SQLEventStore 跟踪赛事存储。赛事生命周期由外部系统驱动，
// 引擎只读取开赛时间（冻结窗口）和状态（扫描资格）。
type SQLEventStore struct {
	db *sql.DB
}

// NewSQLEventStore 创建赛事存储
func NewSQLEventStore(db *sql.DB) *SQLEventStore {
	return &SQLEventStore{db: db}
}

const eventColumns = `id, event_id, COALESCE(sport_id, ''), COALESCE(home_team, ''),
	COALESCE(away_team, ''), status, kickoff_at, created_at, updated_at`

func scanEvent(row interface{ Scan(...interface{}) error }) (*models.TrackedEvent, error) {
	var e models.TrackedEvent
	var status string
	if err := row.Scan(&e.ID, &e.EventID, &e.SportID, &e.HomeTeam, &e.AwayTeam,
		&status, &e.KickoffAt, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.Status = models.EventStatus(status)
	return &e, nil
}

// GetEvent 获取赛事
func (s *SQLEventStore) GetEvent(ctx context.Context, eventID string) (*models.TrackedEvent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM tracked_events WHERE event_id = $1`, eventID)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, common.StorageError("failed to query event", err)
	}
	return e, nil
}

// ListSweepableEvents 获取参与定时扫描的赛事（open/live）
func (s *SQLEventStore) ListSweepableEvents(ctx context.Context) ([]*models.TrackedEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM tracked_events
		 WHERE status IN ('open', 'live')
		 ORDER BY kickoff_at`)
	if err != nil {
		return nil, common.StorageError("failed to query sweepable events", err)
	}
	defer rows.Close()

	var events []*models.TrackedEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, common.StorageError("failed to scan event", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// ListArchivedEventIDs 获取已归档赛事 ID（保留期清理用）
func (s *SQLEventStore) ListArchivedEventIDs(ctx context.Context, before time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_id FROM tracked_events
		 WHERE status IN ('finished', 'cancelled', 'archived') AND updated_at < $1`,
		before)
	if err != nil {
		return nil, common.StorageError("failed to query archived events", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Upsert 创建或更新赛事
func (s *SQLEventStore) Upsert(ctx context.Context, e *models.TrackedEvent) error {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO tracked_events (event_id, sport_id, home_team, away_team, status, kickoff_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (event_id) DO UPDATE SET
			sport_id = EXCLUDED.sport_id,
			home_team = EXCLUDED.home_team,
			away_team = EXCLUDED.away_team,
			status = EXCLUDED.status,
			kickoff_at = EXCLUDED.kickoff_at,
			updated_at = CURRENT_TIMESTAMP
		 RETURNING id, created_at, updated_at`,
		e.EventID, e.SportID, e.HomeTeam, e.AwayTeam, string(e.Status), e.KickoffAt).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return common.StorageError("failed to upsert event", err)
	}
	return nil
}

// SetStatus 更新赛事状态
func (s *SQLEventStore) SetStatus(ctx context.Context, eventID string, status models.EventStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tracked_events SET status = $1, updated_at = CURRENT_TIMESTAMP
		 WHERE event_id = $2`,
		string(status), eventID)
	if err != nil {
		return common.StorageError("failed to set event status", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return common.ErrNotFound
	}
	return nil
}
