package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"odds-engine/pkg/models"
)

// QuoteStore 赔率存储接口
type QuoteStore interface {
	// GetActiveQuote 获取当前 active 赔率
	GetActiveQuote(ctx context.Context, eventID string, outcome models.OutcomeType) (*models.Quote, error)

	// ListQuotes 获取赛事的全部赔率
	ListQuotes(ctx context.Context, eventID string) ([]*models.Quote, error)

	// Commit 以 compare-and-swap 方式提交新价格。
	// expectedRevision 与当前 revision 不一致时返回 ErrConcurrencyConflict。
	Commit(ctx context.Context, eventID string, outcome models.OutcomeType, expectedRevision int64, newPrice decimal.Decimal) (*models.Quote, error)

	// Close 将赔率置为 closed，终态，之后任何提交都会失败
	Close(ctx context.Context, eventID string, outcome models.OutcomeType) error

	// CloseAll 关闭赛事的全部赔率
	CloseAll(ctx context.Context, eventID string) (int64, error)
}

// VolumeStore 投注量统计接口
type VolumeStore interface {
	// RecordWager 登记一笔投注：count+1、累加金额、维护 min/max/avg
	RecordWager(ctx context.Context, eventID string, outcome models.OutcomeType, amount decimal.Decimal) (*models.VolumeStats, error)

	// RecomputeShares 重算赛事内各结果的投注额占比
	RecomputeShares(ctx context.Context, eventID string) error

	// Get 获取单个结果的统计，未有投注时返回 ErrNotFound
	Get(ctx context.Context, eventID string, outcome models.OutcomeType) (*models.VolumeStats, error)

	// SetTrendTag 回写走势标签
	SetTrendTag(ctx context.Context, eventID string, outcome models.OutcomeType, tag models.TrendTag) error
}

// ChangeLedger 赔率变更审计日志接口，只追加
type ChangeLedger interface {
	// Append 追加一条变更记录
	Append(ctx context.Context, record *models.ChangeRecord) error

	// History 按时间倒序返回变更历史
	History(ctx context.Context, eventID string, outcome models.OutcomeType, limit int) ([]*models.ChangeRecord, error)

	// LastChangeAt 最近一次变更时间，无记录时返回 nil
	LastChangeAt(ctx context.Context, eventID string, outcome models.OutcomeType) (*time.Time, error)
}

// PolicySource 策略读取接口
type PolicySource interface {
	// ActivePolicy 返回当前激活策略，没有时返回 ErrNoActivePolicy
	ActivePolicy(ctx context.Context) (*models.Policy, error)
}

// EventSource 赛事信息接口
type EventSource interface {
	// GetEvent 获取赛事
	GetEvent(ctx context.Context, eventID string) (*models.TrackedEvent, error)

	// ListSweepableEvents 获取参与定时扫描的赛事（open/live）
	ListSweepableEvents(ctx context.Context) ([]*models.TrackedEvent, error)
}

// ChangeNotifier 变更通知接口，尽力而为，失败不回滚已提交的变更
type ChangeNotifier interface {
	// NotifyOddsChange 赔率变化超过阈值时通知
	NotifyOddsChange(record *models.ChangeRecord) error

	// NotifyInvariantViolation 数据不变式被破坏时告警
	NotifyInvariantViolation(eventID string, outcome models.OutcomeType, detail string) error
}
