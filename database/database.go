package database

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// Connect 连接到数据库
func Connect(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 测试连接
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// 设置连接池
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return db, nil
}

// Migrate 运行数据库迁移
func Migrate(db *sql.DB) error {
	migrations := []string{
		// 跟踪的赛事表
		`CREATE TABLE IF NOT EXISTS tracked_events (
			id BIGSERIAL PRIMARY KEY,
			event_id VARCHAR(100) UNIQUE NOT NULL,
			sport_id VARCHAR(50),
			home_team VARCHAR(200),
			away_team VARCHAR(200),
			status VARCHAR(20) DEFAULT 'open',
			kickoff_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tracked_events_status ON tracked_events(status)`,
		`CREATE INDEX IF NOT EXISTS idx_tracked_events_kickoff_at ON tracked_events(kickoff_at)`,

		// 当前赔率表，revision 用于乐观并发控制
		`CREATE TABLE IF NOT EXISTS odds_quotes (
			id BIGSERIAL PRIMARY KEY,
			event_id VARCHAR(100) NOT NULL,
			outcome_type VARCHAR(50) NOT NULL,
			price NUMERIC(10,2) NOT NULL,
			state VARCHAR(20) NOT NULL DEFAULT 'active',
			revision BIGINT NOT NULL DEFAULT 1,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		// 不变式：每个 (赛事, 结果) 至多一条 active 赔率
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_odds_quotes_active
			ON odds_quotes(event_id, outcome_type) WHERE state = 'active'`,
		`CREATE INDEX IF NOT EXISTS idx_odds_quotes_event_id ON odds_quotes(event_id)`,

		// 赔率变更记录表，只追加
		`CREATE TABLE IF NOT EXISTS odds_change_records (
			id BIGSERIAL PRIMARY KEY,
			record_uid UUID NOT NULL,
			event_id VARCHAR(100) NOT NULL,
			outcome_type VARCHAR(50) NOT NULL,
			previous_price NUMERIC(10,2) NOT NULL,
			new_price NUMERIC(10,2) NOT NULL,
			change_percent NUMERIC(8,2) NOT NULL,
			reason VARCHAR(30) NOT NULL,
			wager_count_snapshot BIGINT NOT NULL DEFAULT 0,
			total_amount_snapshot NUMERIC(14,2) NOT NULL DEFAULT 0,
			detail TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_change_records_pair
			ON odds_change_records(event_id, outcome_type, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_change_records_created_at
			ON odds_change_records(created_at)`,

		// 投注量统计表
		`CREATE TABLE IF NOT EXISTS wagering_volumes (
			id BIGSERIAL PRIMARY KEY,
			event_id VARCHAR(100) NOT NULL,
			outcome_type VARCHAR(50) NOT NULL,
			wager_count BIGINT NOT NULL DEFAULT 0,
			total_amount NUMERIC(14,2) NOT NULL DEFAULT 0,
			avg_amount NUMERIC(14,2) NOT NULL DEFAULT 0,
			min_amount NUMERIC(14,2) NOT NULL DEFAULT 0,
			max_amount NUMERIC(14,2) NOT NULL DEFAULT 0,
			share_percent NUMERIC(5,2) NOT NULL DEFAULT 0,
			trend_tag VARCHAR(30) DEFAULT 'insufficient_data',
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(event_id, outcome_type)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_wagering_volumes_event_id ON wagering_volumes(event_id)`,

		// 赔率策略表
		`CREATE TABLE IF NOT EXISTS odds_policies (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(100) UNIQUE NOT NULL,
			active BOOLEAN NOT NULL DEFAULT FALSE,
			max_change_percent NUMERIC(6,2) NOT NULL DEFAULT 15.00,
			min_seconds_between INTEGER NOT NULL DEFAULT 300,
			min_odds NUMERIC(10,2) NOT NULL DEFAULT 1.01,
			max_odds NUMERIC(10,2) NOT NULL DEFAULT 50.00,
			volume_weight NUMERIC(6,4) NOT NULL DEFAULT 0.1000,
			probability_weight NUMERIC(6,4) NOT NULL DEFAULT 0.1000,
			house_margin_percent NUMERIC(5,2) NOT NULL DEFAULT 0.00,
			notify_threshold_percent NUMERIC(6,2) NOT NULL DEFAULT 10.00,
			auto_update BOOLEAN NOT NULL DEFAULT TRUE,
			refresh_interval_minutes INTEGER NOT NULL DEFAULT 15,
			freeze_window_minutes INTEGER NOT NULL DEFAULT 30,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		// 不变式：同一时间只有一条激活策略
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_odds_policies_active
			ON odds_policies(active) WHERE active = TRUE`,

		// 缺省策略。已有激活策略时插入未激活，避免撞 uniq_odds_policies_active
		`INSERT INTO odds_policies (name, active)
			VALUES ('default', NOT EXISTS (SELECT 1 FROM odds_policies WHERE active))
			ON CONFLICT (name) DO NOTHING`,
	}

	for i, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return nil
}
