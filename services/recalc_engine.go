package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"odds-engine/logger"
	"odds-engine/pkg/common"
	"odds-engine/pkg/models"
)

// RecalcOutcome 重算结果类别
type RecalcOutcome string

const (
	RecalcUnchanged RecalcOutcome = "unchanged"
	RecalcApplied   RecalcOutcome = "applied"
	RecalcRejected  RecalcOutcome = "rejected"
)

// RejectReason 拒绝原因。这些都是校验管线的常规出口，
// 不是异常：TooSoon 是限流生效的正常表现
type RejectReason string

const (
	RejectTooSoon        RejectReason = "too_soon"
	RejectOutOfBounds    RejectReason = "out_of_bounds"
	RejectConflict       RejectReason = "conflict"
	RejectPolicyInactive RejectReason = "policy_inactive"
	RejectFrozenWindow   RejectReason = "frozen_window"
	RejectQuoteClosed    RejectReason = "quote_closed"
)

// RecalcResult 一次重算的结果
type RecalcResult struct {
	Outcome RecalcOutcome        `json:"outcome"`
	Reason  RejectReason         `json:"reason,omitempty"`
	Quote   *models.Quote        `json:"quote,omitempty"`
	Record  *models.ChangeRecord `json:"record,omitempty"`
}

func unchanged() RecalcResult {
	return RecalcResult{Outcome: RecalcUnchanged}
}

func rejected(reason RejectReason) RecalcResult {
	return RecalcResult{Outcome: RecalcRejected, Reason: reason}
}

// RecalcEngine 赔率重算引擎。
// 读取策略/赔率/投注量，计算候选价，校验通过后以 CAS 提交并写入
// 变更日志。所有拒绝路径都以结果值返回，调用方（定时扫描、投注
// 触发）据此跳过而不是中断。
type RecalcEngine struct {
	quotes   QuoteStore
	volumes  VolumeStore
	ledger   ChangeLedger
	policies PolicySource
	events   EventSource
	factors  *FactorCalculator
	broker   MessageBroker
	notifier ChangeNotifier

	// 测试注入用，默认 time.Now
	now func() time.Time
}

// NewRecalcEngine 创建重算引擎。broker 和 notifier 可以为 nil（不推送）。
func NewRecalcEngine(quotes QuoteStore, volumes VolumeStore, ledger ChangeLedger,
	policies PolicySource, events EventSource, broker MessageBroker, notifier ChangeNotifier) *RecalcEngine {
	return &RecalcEngine{
		quotes:   quotes,
		volumes:  volumes,
		ledger:   ledger,
		policies: policies,
		events:   events,
		factors:  NewFactorCalculator(),
		broker:   broker,
		notifier: notifier,
		now:      time.Now,
	}
}

// Recalculate 对单个 (赛事, 结果) 执行一次重算。
// reason 标记触发来源：投注触发为 volume，定时扫描为 scheduled_refresh。
// 返回的 error 仅表示存储访问失败，业务性拒绝都在 RecalcResult 里。
func (e *RecalcEngine) Recalculate(ctx context.Context, eventID string, outcome models.OutcomeType, reason models.ChangeReason) (RecalcResult, error) {
	// 1. 加载激活策略
	policy, err := e.policies.ActivePolicy(ctx)
	if err != nil {
		if errors.Is(err, common.ErrNoActivePolicy) {
			return rejected(RejectPolicyInactive), nil
		}
		return RecalcResult{}, err
	}
	if !policy.AutoUpdate {
		return unchanged(), nil
	}

	// 2. 开赛前冻结窗口内不做自动调整
	event, err := e.events.GetEvent(ctx, eventID)
	if err != nil {
		return RecalcResult{}, err
	}
	if event.InFreezeWindow(e.now(), policy.FreezeWindow()) {
		return unchanged(), nil
	}

	// 3. 加载当前赔率和投注量
	quote, err := e.quotes.GetActiveQuote(ctx, eventID, outcome)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrQuoteClosed), errors.Is(err, common.ErrQuoteSuspended):
			return rejected(RejectQuoteClosed), nil
		case errors.Is(err, common.ErrInvariantViolation):
			e.alertInvariant(eventID, outcome, err)
			return RecalcResult{}, err
		default:
			return RecalcResult{}, err
		}
	}

	// 占比重算按周期执行一次，不随每笔投注执行
	if err := e.volumes.RecomputeShares(ctx, eventID); err != nil {
		return RecalcResult{}, err
	}
	volume, err := e.volumes.Get(ctx, eventID, outcome)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			// 没有任何投注，无从调整
			return unchanged(), nil
		}
		return RecalcResult{}, err
	}
	if !volume.HasWagers() {
		return unchanged(), nil
	}

	market, ok := models.MarketForOutcome(outcome)
	if !ok {
		return RecalcResult{}, fmt.Errorf("%w: %s", common.ErrUnknownOutcome, outcome)
	}

	// 4-9. 计算候选价
	volumeFactor := e.factors.VolumeFactor(volume.SharePercent, market)
	probFactor := e.factors.ProbabilityFactor(volume.SharePercent, market)
	candidate := e.factors.CandidatePrice(quote.Price, volumeFactor, probFactor, policy)

	// 10. 无变化
	if candidate.Equal(quote.Price) {
		return unchanged(), nil
	}

	// 11. 策略校验：变化幅度与全局边界
	// 裁剪后再检查一次，覆盖边界/舍入的边角情况
	delta := models.ChangePercent(quote.Price, candidate)
	if delta.Abs().GreaterThan(policy.MaxChangePercent) {
		return rejected(RejectOutOfBounds), nil
	}
	if !policy.WithinBounds(candidate) {
		return rejected(RejectOutOfBounds), nil
	}

	// 12. 限流：距上次变更不足最小间隔则拒绝
	lastAt, err := e.ledger.LastChangeAt(ctx, eventID, outcome)
	if err != nil {
		return RecalcResult{}, err
	}
	if lastAt != nil && e.now().Sub(*lastAt) < policy.MinTimeBetween {
		return rejected(RejectTooSoon), nil
	}

	// 13. CAS 提交；冲突说明本轮已有其他写入者处理过，不重试
	detail := fmt.Sprintf("volume_factor=%s probability_factor=%s share=%s%%",
		volumeFactor.StringFixed(4), probFactor.StringFixed(4), volume.SharePercent.StringFixed(2))
	return e.commit(ctx, quote, candidate, delta, reason, volume, policy, detail)
}

// commit 提交候选价并追加变更记录、发布通知
func (e *RecalcEngine) commit(ctx context.Context, quote *models.Quote, candidate, delta decimal.Decimal,
	reason models.ChangeReason, volume *models.VolumeStats, policy *models.Policy, detail string) (RecalcResult, error) {

	updated, err := e.quotes.Commit(ctx, quote.EventID, quote.OutcomeType, quote.Revision, candidate)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrConcurrencyConflict):
			return rejected(RejectConflict), nil
		case errors.Is(err, common.ErrQuoteClosed), errors.Is(err, common.ErrQuoteSuspended):
			return rejected(RejectQuoteClosed), nil
		default:
			return RecalcResult{}, err
		}
	}

	// 14. 追加审计记录
	record := &models.ChangeRecord{
		EventID:       quote.EventID,
		OutcomeType:   quote.OutcomeType,
		PreviousPrice: quote.Price,
		NewPrice:      candidate,
		ChangePercent: delta,
		Reason:        reason,
		Detail:        detail,
	}
	if volume != nil {
		record.WagerCountSnapshot = volume.WagerCount
		record.TotalAmountSnapshot = volume.TotalAmount
	}
	if err := e.ledger.Append(ctx, record); err != nil {
		// 价格已生效，审计缺口只记日志
		logger.Errorf("[RecalcEngine] Failed to append change record for %s/%s: %v",
			quote.EventID, quote.OutcomeType, err)
	}

	// 15. 发布变更事件并按阈值通知，失败不回滚
	e.publish(record)
	if e.notifier != nil && delta.Abs().GreaterThanOrEqual(policy.NotifyThresholdPercent) {
		if err := e.notifier.NotifyOddsChange(record); err != nil {
			logger.Warnf("[RecalcEngine] Notification failed for %s/%s: %v",
				quote.EventID, quote.OutcomeType, err)
		}
	}

	logger.Printf("[RecalcEngine] 📈 %s/%s %s -> %s (%s%%, reason=%s)",
		quote.EventID, quote.OutcomeType, quote.Price.StringFixed(2),
		candidate.StringFixed(2), delta.StringFixed(2), reason)

	return RecalcResult{Outcome: RecalcApplied, Quote: updated, Record: record}, nil
}

// ApplyManualAdjustment 管理端手工调价。
// 绕过自动调整开关和冻结窗口，但仍受全局边界和 CAS 保护。
func (e *RecalcEngine) ApplyManualAdjustment(ctx context.Context, eventID string, outcome models.OutcomeType, newPrice decimal.Decimal, operator string) (RecalcResult, error) {
	policy, err := e.policies.ActivePolicy(ctx)
	if err != nil {
		if errors.Is(err, common.ErrNoActivePolicy) {
			return rejected(RejectPolicyInactive), nil
		}
		return RecalcResult{}, err
	}

	newPrice = newPrice.Round(2)
	if !policy.WithinBounds(newPrice) {
		return rejected(RejectOutOfBounds), nil
	}

	quote, err := e.quotes.GetActiveQuote(ctx, eventID, outcome)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrQuoteClosed), errors.Is(err, common.ErrQuoteSuspended):
			return rejected(RejectQuoteClosed), nil
		case errors.Is(err, common.ErrInvariantViolation):
			e.alertInvariant(eventID, outcome, err)
			return RecalcResult{}, err
		default:
			return RecalcResult{}, err
		}
	}
	if newPrice.Equal(quote.Price) {
		return unchanged(), nil
	}

	delta := models.ChangePercent(quote.Price, newPrice)
	volume := e.volumeSnapshot(ctx, eventID, outcome)
	detail := fmt.Sprintf("manual adjustment by %s", operator)
	return e.commit(ctx, quote, newPrice, delta, models.ReasonManualAdjustment, volume, policy, detail)
}

// ApplyExternalPrice 应用外部行情源价格。
// 走完整校验管线：冻结窗口、变化幅度、全局边界、限流、CAS，
// 因此行情源异常值不会穿透策略约束。
func (e *RecalcEngine) ApplyExternalPrice(ctx context.Context, eventID string, outcome models.OutcomeType, feedPrice decimal.Decimal, source string) (RecalcResult, error) {
	policy, err := e.policies.ActivePolicy(ctx)
	if err != nil {
		if errors.Is(err, common.ErrNoActivePolicy) {
			return rejected(RejectPolicyInactive), nil
		}
		return RecalcResult{}, err
	}
	if !policy.AutoUpdate {
		return unchanged(), nil
	}

	event, err := e.events.GetEvent(ctx, eventID)
	if err != nil {
		return RecalcResult{}, err
	}
	if event.InFreezeWindow(e.now(), policy.FreezeWindow()) {
		return rejected(RejectFrozenWindow), nil
	}

	quote, err := e.quotes.GetActiveQuote(ctx, eventID, outcome)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrQuoteClosed), errors.Is(err, common.ErrQuoteSuspended):
			return rejected(RejectQuoteClosed), nil
		case errors.Is(err, common.ErrInvariantViolation):
			e.alertInvariant(eventID, outcome, err)
			return RecalcResult{}, err
		default:
			return RecalcResult{}, err
		}
	}

	candidate := policy.ClampPrice(feedPrice).Round(2)
	if candidate.Equal(quote.Price) {
		return unchanged(), nil
	}

	delta := models.ChangePercent(quote.Price, candidate)
	if delta.Abs().GreaterThan(policy.MaxChangePercent) {
		return rejected(RejectOutOfBounds), nil
	}

	lastAt, err := e.ledger.LastChangeAt(ctx, eventID, outcome)
	if err != nil {
		return RecalcResult{}, err
	}
	if lastAt != nil && e.now().Sub(*lastAt) < policy.MinTimeBetween {
		return rejected(RejectTooSoon), nil
	}

	volume := e.volumeSnapshot(ctx, eventID, outcome)
	detail := fmt.Sprintf("external feed price from %s", source)
	return e.commit(ctx, quote, candidate, delta, models.ReasonExternalFeed, volume, policy, detail)
}

// volumeSnapshot 尽力取一份投注量快照用于审计记录，取不到返回 nil
func (e *RecalcEngine) volumeSnapshot(ctx context.Context, eventID string, outcome models.OutcomeType) *models.VolumeStats {
	volume, err := e.volumes.Get(ctx, eventID, outcome)
	if err != nil {
		return nil
	}
	return volume
}

func (e *RecalcEngine) alertInvariant(eventID string, outcome models.OutcomeType, cause error) {
	logger.Errorf("[RecalcEngine] 🚨 Invariant violation for %s/%s: %v", eventID, outcome, cause)
	if e.notifier != nil {
		if err := e.notifier.NotifyInvariantViolation(eventID, outcome, cause.Error()); err != nil {
			logger.Errorf("[RecalcEngine] Failed to send invariant alert: %v", err)
		}
	}
}

func (e *RecalcEngine) publish(record *models.ChangeRecord) {
	if e.broker == nil {
		return
	}
	payload, err := encodeChangeEvent(record)
	if err != nil {
		logger.Errorf("[RecalcEngine] Failed to encode change event: %v", err)
		return
	}
	if err := e.broker.Produce(BrokerMessage{
		Topic: TopicOddsChanges,
		Key:   record.EventID,
		Value: payload,
	}); err != nil {
		logger.Warnf("[RecalcEngine] Failed to publish change event: %v", err)
	}
}
