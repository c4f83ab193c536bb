package models

import "time"

// EventStatus 赛事状态
type EventStatus string

const (
	EventStatusOpen      EventStatus = "open"
	EventStatusLive      EventStatus = "live"
	EventStatusFinished  EventStatus = "finished"
	EventStatusCancelled EventStatus = "cancelled"
	EventStatusArchived  EventStatus = "archived"
)

// TrackedEvent 跟踪的赛事，提供开赛时间和状态给重算引擎
type TrackedEvent struct {
	ID        int64       `json:"id"`
	EventID   string      `json:"event_id"`
	SportID   string      `json:"sport_id,omitempty"`
	HomeTeam  string      `json:"home_team,omitempty"`
	AwayTeam  string      `json:"away_team,omitempty"`
	Status    EventStatus `json:"status"`
	KickoffAt time.Time   `json:"kickoff_at"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Sweepable 是否参与定时重算扫描
func (e *TrackedEvent) Sweepable() bool {
	return e.Status == EventStatusOpen || e.Status == EventStatusLive
}

// InFreezeWindow 当前时刻是否处于开赛前冻结窗口内。
// 窗口为 [开赛时间 - freeze, 开赛时间)，开赛后（滚球阶段）不再冻结。
func (e *TrackedEvent) InFreezeWindow(now time.Time, freeze time.Duration) bool {
	if freeze <= 0 {
		return false
	}
	if now.After(e.KickoffAt) || now.Equal(e.KickoffAt) {
		return false
	}
	return now.After(e.KickoffAt.Add(-freeze)) || now.Equal(e.KickoffAt.Add(-freeze))
}
