package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"odds-engine/pkg/common"
	"odds-engine/pkg/models"
)

// 内存版存储实现，测试用。CAS 语义与 SQL 实现一致。

type pairKey struct {
	eventID string
	outcome models.OutcomeType
}

type memQuoteStore struct {
	mu     sync.Mutex
	quotes map[pairKey]*models.Quote
}

func newMemQuoteStore() *memQuoteStore {
	return &memQuoteStore{quotes: make(map[pairKey]*models.Quote)}
}

func (s *memQuoteStore) put(eventID string, outcome models.OutcomeType, price string, state models.QuoteState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[pairKey{eventID, outcome}] = &models.Quote{
		EventID:     eventID,
		OutcomeType: outcome,
		Price:       decimal.RequireFromString(price),
		State:       state,
		Revision:    1,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
}

func (s *memQuoteStore) GetActiveQuote(ctx context.Context, eventID string, outcome models.OutcomeType) (*models.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quotes[pairKey{eventID, outcome}]
	if !ok {
		return nil, common.ErrNotFound
	}
	switch q.State {
	case models.QuoteStateClosed:
		return nil, common.ErrQuoteClosed
	case models.QuoteStateSuspended:
		return nil, common.ErrQuoteSuspended
	}
	snapshot := *q
	return &snapshot, nil
}

func (s *memQuoteStore) ListQuotes(ctx context.Context, eventID string) ([]*models.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*models.Quote
	for k, q := range s.quotes {
		if k.eventID == eventID {
			snapshot := *q
			result = append(result, &snapshot)
		}
	}
	return result, nil
}

func (s *memQuoteStore) Commit(ctx context.Context, eventID string, outcome models.OutcomeType, expectedRevision int64, newPrice decimal.Decimal) (*models.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quotes[pairKey{eventID, outcome}]
	if !ok {
		return nil, common.ErrConcurrencyConflict
	}
	if q.State == models.QuoteStateClosed {
		return nil, common.ErrQuoteClosed
	}
	if q.Revision != expectedRevision {
		return nil, common.ErrConcurrencyConflict
	}
	q.Price = newPrice
	q.Revision++
	q.UpdatedAt = time.Now()
	snapshot := *q
	return &snapshot, nil
}

func (s *memQuoteStore) Close(ctx context.Context, eventID string, outcome models.OutcomeType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quotes[pairKey{eventID, outcome}]
	if !ok {
		return common.ErrNotFound
	}
	q.State = models.QuoteStateClosed
	return nil
}

func (s *memQuoteStore) CloseAll(ctx context.Context, eventID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, q := range s.quotes {
		if k.eventID == eventID && q.State != models.QuoteStateClosed {
			q.State = models.QuoteStateClosed
			n++
		}
	}
	return n, nil
}

type memVolumeStore struct {
	mu      sync.Mutex
	volumes map[pairKey]*models.VolumeStats
}

func newMemVolumeStore() *memVolumeStore {
	return &memVolumeStore{volumes: make(map[pairKey]*models.VolumeStats)}
}

func (s *memVolumeStore) put(eventID string, outcome models.OutcomeType, count int64, total string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	totalAmount := decimal.RequireFromString(total)
	avg := decimal.Zero
	if count > 0 {
		avg = totalAmount.Div(decimal.NewFromInt(count)).Round(2)
	}
	s.volumes[pairKey{eventID, outcome}] = &models.VolumeStats{
		EventID:     eventID,
		OutcomeType: outcome,
		WagerCount:  count,
		TotalAmount: totalAmount,
		AvgAmount:   avg,
		MinAmount:   avg,
		MaxAmount:   avg,
		UpdatedAt:   time.Now(),
	}
}

func (s *memVolumeStore) RecordWager(ctx context.Context, eventID string, outcome models.OutcomeType, amount decimal.Decimal) (*models.VolumeStats, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, common.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{eventID, outcome}
	v, ok := s.volumes[key]
	if !ok {
		v = &models.VolumeStats{
			EventID:     eventID,
			OutcomeType: outcome,
			MinAmount:   amount,
			MaxAmount:   amount,
		}
		s.volumes[key] = v
	}
	v.WagerCount++
	v.TotalAmount = v.TotalAmount.Add(amount)
	v.AvgAmount = v.TotalAmount.Div(decimal.NewFromInt(v.WagerCount)).Round(2)
	if amount.LessThan(v.MinAmount) || v.WagerCount == 1 {
		v.MinAmount = amount
	}
	if amount.GreaterThan(v.MaxAmount) {
		v.MaxAmount = amount
	}
	v.UpdatedAt = time.Now()
	snapshot := *v
	return &snapshot, nil
}

func (s *memVolumeStore) RecomputeShares(ctx context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := decimal.Zero
	for k, v := range s.volumes {
		if k.eventID == eventID {
			total = total.Add(v.TotalAmount)
		}
	}
	if total.IsZero() {
		return nil
	}
	for k, v := range s.volumes {
		if k.eventID == eventID {
			v.SharePercent = v.TotalAmount.Mul(decimal.NewFromInt(100)).Div(total).Round(2)
		}
	}
	return nil
}

func (s *memVolumeStore) Get(ctx context.Context, eventID string, outcome models.OutcomeType) (*models.VolumeStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.volumes[pairKey{eventID, outcome}]
	if !ok {
		return nil, common.ErrNotFound
	}
	snapshot := *v
	return &snapshot, nil
}

func (s *memVolumeStore) SetTrendTag(ctx context.Context, eventID string, outcome models.OutcomeType, tag models.TrendTag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.volumes[pairKey{eventID, outcome}]; ok {
		v.TrendTag = tag
	}
	return nil
}

type memLedger struct {
	mu      sync.Mutex
	records map[pairKey][]*models.ChangeRecord
}

func newMemLedger() *memLedger {
	return &memLedger{records: make(map[pairKey][]*models.ChangeRecord)}
}

func (l *memLedger) Append(ctx context.Context, record *models.ChangeRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	record.CreatedAt = time.Now()
	key := pairKey{record.EventID, record.OutcomeType}
	l.records[key] = append(l.records[key], record)
	return nil
}

func (l *memLedger) History(ctx context.Context, eventID string, outcome models.OutcomeType, limit int) ([]*models.ChangeRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	records := l.records[pairKey{eventID, outcome}]
	// 时间倒序
	var result []*models.ChangeRecord
	for i := len(records) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, records[i])
	}
	return result, nil
}

func (l *memLedger) LastChangeAt(ctx context.Context, eventID string, outcome models.OutcomeType) (*time.Time, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	records := l.records[pairKey{eventID, outcome}]
	if len(records) == 0 {
		return nil, nil
	}
	t := records[len(records)-1].CreatedAt
	return &t, nil
}

func (l *memLedger) count(eventID string, outcome models.OutcomeType) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records[pairKey{eventID, outcome}])
}

// seed 预置一条指定时间的记录（限流测试用）
func (l *memLedger) seed(eventID string, outcome models.OutcomeType, at time.Time, delta string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := pairKey{eventID, outcome}
	l.records[key] = append(l.records[key], &models.ChangeRecord{
		EventID:       eventID,
		OutcomeType:   outcome,
		ChangePercent: decimal.RequireFromString(delta),
		Reason:        models.ReasonVolume,
		CreatedAt:     at,
	})
}

type memPolicySource struct {
	mu     sync.Mutex
	policy *models.Policy
	err    error
}

func (p *memPolicySource) ActivePolicy(ctx context.Context) (*models.Policy, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	snapshot := *p.policy
	return &snapshot, nil
}

type memEventSource struct {
	mu     sync.Mutex
	events map[string]*models.TrackedEvent
}

func newMemEventSource() *memEventSource {
	return &memEventSource{events: make(map[string]*models.TrackedEvent)}
}

func (s *memEventSource) put(eventID string, status models.EventStatus, kickoff time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[eventID] = &models.TrackedEvent{
		EventID:   eventID,
		Status:    status,
		KickoffAt: kickoff,
	}
}

func (s *memEventSource) GetEvent(ctx context.Context, eventID string) (*models.TrackedEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[eventID]
	if !ok {
		return nil, common.ErrNotFound
	}
	snapshot := *e
	return &snapshot, nil
}

func (s *memEventSource) ListSweepableEvents(ctx context.Context) ([]*models.TrackedEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*models.TrackedEvent
	for _, e := range s.events {
		if e.Sweepable() {
			snapshot := *e
			result = append(result, &snapshot)
		}
	}
	return result, nil
}

type memNotifier struct {
	mu         sync.Mutex
	changes    []*models.ChangeRecord
	violations []string
	fail       bool
}

func (n *memNotifier) NotifyOddsChange(record *models.ChangeRecord) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return fmt.Errorf("notifier down")
	}
	n.changes = append(n.changes, record)
	return nil
}

func (n *memNotifier) NotifyInvariantViolation(eventID string, outcome models.OutcomeType, detail string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.violations = append(n.violations, detail)
	return nil
}

func (n *memNotifier) changeCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.changes)
}

// defaultTestPolicy 基准测试策略
func defaultTestPolicy() *models.Policy {
	return &models.Policy{
		ID:                     1,
		Name:                   "test",
		Active:                 true,
		MaxChangePercent:       decimal.RequireFromString("15"),
		MinTimeBetween:         5 * time.Minute,
		MinOdds:                decimal.RequireFromString("1.01"),
		MaxOdds:                decimal.RequireFromString("50.00"),
		VolumeWeight:           decimal.RequireFromString("0.10"),
		ProbabilityWeight:      decimal.RequireFromString("0.10"),
		HouseMarginPercent:     decimal.Zero,
		NotifyThresholdPercent: decimal.RequireFromString("10"),
		AutoUpdate:             true,
		RefreshIntervalMinutes: 15,
		FreezeWindowMinutes:    30,
	}
}
