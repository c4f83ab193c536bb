package services

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"odds-engine/logger"
	"odds-engine/pkg/models"
)

// SweepSchedulerConfig 调度配置
type SweepSchedulerConfig struct {
	SweepInterval   time.Duration // 定时重算间隔
	SweepWorkers    int           // 并发处理的赛事数
	PerEventTimeout time.Duration // 单场赛事超时，超时即推迟到下一轮
	FeedCronSpec    string        // 外部行情任务 cron 表达式
	RetentionCron   string        // 保留期清理任务 cron 表达式
}

// SweepStats 一轮扫描的统计
type SweepStats struct {
	Events    int
	Applied   int
	Unchanged int
	Rejected  int
	Errors    int
	Deferred  int // 超时推迟到下一轮的赛事数
	Elapsed   time.Duration
}

// SweepScheduler 重算触发调度器。
// 定时扫描和投注触发共用引擎的同一个重算入口；
// 低频任务（外部行情、保留期清理）挂在 cron 上。
type SweepScheduler struct {
	engine    *RecalcEngine
	events    EventSource
	quotes    QuoteStore
	volumes   VolumeStore
	advisor   *TrendAdvisor
	feed      *FeedClient
	retention *RetentionService
	config    SweepSchedulerConfig

	cron     *cron.Cron
	stopChan chan struct{}

	mu      sync.Mutex
	running bool
}

// NewSweepScheduler 创建调度器。feed 和 retention 可以为 nil（对应任务不挂载）。
func NewSweepScheduler(engine *RecalcEngine, events EventSource, quotes QuoteStore,
	volumes VolumeStore, advisor *TrendAdvisor, feed *FeedClient,
	retention *RetentionService, config SweepSchedulerConfig) *SweepScheduler {
	if config.SweepWorkers <= 0 {
		config.SweepWorkers = 8
	}
	if config.PerEventTimeout <= 0 {
		config.PerEventTimeout = 10 * time.Second
	}
	return &SweepScheduler{
		engine:    engine,
		events:    events,
		quotes:    quotes,
		volumes:   volumes,
		advisor:   advisor,
		feed:      feed,
		retention: retention,
		config:    config,
		stopChan:  make(chan struct{}),
	}
}

// Start 启动调度器
func (s *SweepScheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		logger.Println("[SweepScheduler] Already running")
		return
	}
	s.running = true
	s.mu.Unlock()
	logger.Printf("[SweepScheduler] 🚀 Started with sweep interval %v, %d workers",
		s.config.SweepInterval, s.config.SweepWorkers)

	go func() {
		ticker := time.NewTicker(s.config.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				stats := s.RunSweep(context.Background())
				logger.Printf("[SweepScheduler] ✅ Sweep done: %d events, %d applied, %d unchanged, %d rejected, %d errors, %d deferred (%v)",
					stats.Events, stats.Applied, stats.Unchanged, stats.Rejected,
					stats.Errors, stats.Deferred, stats.Elapsed)
			case <-s.stopChan:
				logger.Println("[SweepScheduler] 🛑 Sweep loop stopped")
				return
			}
		}
	}()

	s.cron = cron.New()
	if s.feed != nil && s.config.FeedCronSpec != "" {
		if _, err := s.cron.AddFunc(s.config.FeedCronSpec, s.runFeedAdjustments); err != nil {
			logger.Errorf("[SweepScheduler] Invalid feed cron spec %q: %v", s.config.FeedCronSpec, err)
		}
	}
	if s.retention != nil && s.config.RetentionCron != "" {
		if _, err := s.cron.AddFunc(s.config.RetentionCron, s.runRetention); err != nil {
			logger.Errorf("[SweepScheduler] Invalid retention cron spec %q: %v", s.config.RetentionCron, err)
		}
	}
	s.cron.Start()
}

// Stop 停止调度器
func (s *SweepScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()
	close(s.stopChan)
	if s.cron != nil {
		s.cron.Stop()
	}
	logger.Println("[SweepScheduler] 🛑 Stopping...")
}

// IsRunning 检查是否正在运行
func (s *SweepScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunSweep 执行一轮全量扫描：open/live 赛事的每个 active 结果各重算一次。
// 单个赛事的失败或超时只影响自己，不会中断整轮扫描。
func (s *SweepScheduler) RunSweep(ctx context.Context) SweepStats {
	start := time.Now()
	stats := SweepStats{}

	events, err := s.events.ListSweepableEvents(ctx)
	if err != nil {
		logger.Errorf("[SweepScheduler] Failed to list events: %v", err)
		stats.Errors++
		return stats
	}
	stats.Events = len(events)

	type eventResult struct {
		applied, unchanged, rejected, errors int
		deferred                             bool
	}
	results := make([]eventResult, len(events))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.SweepWorkers)
	for i, event := range events {
		i, event := i, event
		g.Go(func() error {
			evCtx, cancel := context.WithTimeout(gctx, s.config.PerEventTimeout)
			defer cancel()

			r := s.sweepEvent(evCtx, event.EventID)
			if evCtx.Err() == context.DeadlineExceeded {
				logger.Warnf("[SweepScheduler] Event %s timed out, deferred to next sweep", event.EventID)
				r.deferred = true
			}
			results[i] = eventResult{r.applied, r.unchanged, r.rejected, r.errors, r.deferred}
			return nil
		})
	}
	g.Wait()

	for _, r := range results {
		stats.Applied += r.applied
		stats.Unchanged += r.unchanged
		stats.Rejected += r.rejected
		stats.Errors += r.errors
		if r.deferred {
			stats.Deferred++
		}
	}
	stats.Elapsed = time.Since(start)
	return stats
}

type sweepEventResult struct {
	applied, unchanged, rejected, errors int
	deferred                             bool
}

func (s *SweepScheduler) sweepEvent(ctx context.Context, eventID string) sweepEventResult {
	r := sweepEventResult{}

	quotes, err := s.quotes.ListQuotes(ctx, eventID)
	if err != nil {
		logger.Errorf("[SweepScheduler] Failed to list quotes for %s: %v", eventID, err)
		r.errors++
		return r
	}

	for _, quote := range quotes {
		if quote.State != models.QuoteStateActive {
			continue
		}
		if ctx.Err() != nil {
			return r
		}

		result, err := s.engine.Recalculate(ctx, eventID, quote.OutcomeType, models.ReasonScheduledRefresh)
		if err != nil {
			logger.Errorf("[SweepScheduler] Recalculation failed for %s/%s: %v",
				eventID, quote.OutcomeType, err)
			r.errors++
			continue
		}

		switch result.Outcome {
		case RecalcApplied:
			r.applied++
		case RecalcUnchanged:
			r.unchanged++
		case RecalcRejected:
			r.rejected++
		}

		// 扫描顺带把走势标签回写到投注量统计
		s.refreshTrendTag(ctx, eventID, quote.OutcomeType)
	}
	return r
}

func (s *SweepScheduler) refreshTrendTag(ctx context.Context, eventID string, outcome models.OutcomeType) {
	if s.advisor == nil {
		return
	}
	tag, err := s.advisor.Trend(ctx, eventID, outcome)
	if err != nil {
		return
	}
	if err := s.volumes.SetTrendTag(ctx, eventID, outcome, tag); err != nil {
		logger.Warnf("[SweepScheduler] Failed to set trend tag for %s/%s: %v", eventID, outcome, err)
	}
}

// runFeedAdjustments 低频任务：拉取外部行情并套用到开放赛事
func (s *SweepScheduler) runFeedAdjustments() {
	ctx := context.Background()
	logger.Println("[SweepScheduler] 🔄 Running external feed adjustments...")

	events, err := s.events.ListSweepableEvents(ctx)
	if err != nil {
		logger.Errorf("[SweepScheduler] Failed to list events for feed job: %v", err)
		return
	}

	applied := 0
	for _, event := range events {
		prices, err := s.feed.FetchPrices(ctx, event.EventID)
		if err != nil {
			logger.Warnf("[SweepScheduler] Feed fetch failed for %s: %v", event.EventID, err)
			continue
		}
		for _, fp := range prices {
			result, err := s.engine.ApplyExternalPrice(ctx, event.EventID, fp.OutcomeType, fp.Price, s.feed.Source())
			if err != nil {
				logger.Errorf("[SweepScheduler] External price failed for %s/%s: %v",
					event.EventID, fp.OutcomeType, err)
				continue
			}
			if result.Outcome == RecalcApplied {
				applied++
			}
		}
	}
	logger.Printf("[SweepScheduler] ✅ External feed adjustments done: %d applied", applied)
}

// runRetention 低频任务：审计记录保留期清理 + 归档赛事的统计清理
func (s *SweepScheduler) runRetention() {
	logger.Println("[SweepScheduler] 🔄 Running retention cleanup...")
	results := s.retention.Execute(context.Background())
	for _, r := range results {
		if r.Error != nil {
			logger.Errorf("[SweepScheduler] Retention cleanup of %s failed: %v", r.Target, r.Error)
			continue
		}
		logger.Printf("[SweepScheduler] ✅ Retention: %s purged %d rows (retain %d days)",
			r.Target, r.DeletedRows, r.RetainedDays)
	}
}
