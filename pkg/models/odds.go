package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// QuoteState 赔率生命周期状态
type QuoteState string

const (
	QuoteStateActive    QuoteState = "active"
	QuoteStateSuspended QuoteState = "suspended"
	QuoteStateClosed    QuoteState = "closed"
)

// ChangeReason 赔率变更原因
type ChangeReason string

const (
	ReasonVolume           ChangeReason = "volume"
	ReasonScheduledRefresh ChangeReason = "scheduled_refresh"
	ReasonManualAdjustment ChangeReason = "manual_adjustment"
	ReasonExternalFeed     ChangeReason = "external_feed"
	ReasonRiskManagement   ChangeReason = "risk_management"
	ReasonMarketEvent      ChangeReason = "market_event"
)

// Quote 当前发布的赔率，每个 (赛事, 结果) 一条
type Quote struct {
	ID          int64           `json:"id"`
	EventID     string          `json:"event_id"`
	OutcomeType OutcomeType     `json:"outcome_type"`
	Price       decimal.Decimal `json:"price"`
	State       QuoteState      `json:"state"`
	Revision    int64           `json:"revision"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ChangeRecord 一次已接受的赔率变更，只追加不修改
type ChangeRecord struct {
	ID                  int64           `json:"id"`
	RecordUID           uuid.UUID       `json:"record_uid"`
	EventID             string          `json:"event_id"`
	OutcomeType         OutcomeType     `json:"outcome_type"`
	PreviousPrice       decimal.Decimal `json:"previous_price"`
	NewPrice            decimal.Decimal `json:"new_price"`
	ChangePercent       decimal.Decimal `json:"change_percent"`
	Reason              ChangeReason    `json:"reason"`
	WagerCountSnapshot  int64           `json:"wager_count_snapshot"`
	TotalAmountSnapshot decimal.Decimal `json:"total_amount_snapshot"`
	Detail              string          `json:"detail,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
}

// TrendTag 赔率走势标签
type TrendTag string

const (
	TrendRising           TrendTag = "rising"
	TrendFalling          TrendTag = "falling"
	TrendStable           TrendTag = "stable"
	TrendInsufficientData TrendTag = "insufficient_data"
)

// ChangePercent 计算 old -> new 的百分比变化，保留两位小数（四舍五入）
func ChangePercent(oldPrice, newPrice decimal.Decimal) decimal.Decimal {
	if oldPrice.IsZero() {
		return decimal.Zero
	}
	return newPrice.Sub(oldPrice).
		Div(oldPrice).
		Mul(decimal.NewFromInt(100)).
		Round(2)
}
