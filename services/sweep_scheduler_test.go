package services

import (
	"context"
	"testing"
	"time"

	"odds-engine/pkg/models"
)

func TestRunSweepCountsOutcomes(t *testing.T) {
	f := newEngineFixture(defaultTestPolicy())
	f.openEvent("ev1")
	// finished 赛事不参与扫描
	f.events.put("ev2", models.EventStatusFinished, time.Now().Add(-2*time.Hour))

	f.quotes.put("ev1", models.OutcomeHome, "2.00", models.QuoteStateActive)
	f.quotes.put("ev1", models.OutcomeDraw, "3.40", models.QuoteStateClosed)
	f.quotes.put("ev1", models.OutcomeAway, "3.80", models.QuoteStateActive)
	// home 持仓过重，away 没有任何投注
	f.volumes.put("ev1", models.OutcomeHome, 40, "400.00")
	f.volumes.put("ev1", models.OutcomeDraw, 30, "300.00")

	advisor := NewTrendAdvisor(f.ledger, DefaultTrendLookback)
	scheduler := NewSweepScheduler(f.engine, f.events, f.quotes, f.volumes, advisor,
		nil, nil, SweepSchedulerConfig{SweepInterval: time.Minute})

	stats := scheduler.RunSweep(context.Background())
	if stats.Events != 1 {
		t.Errorf("Expected 1 sweepable event, got %d", stats.Events)
	}
	if stats.Applied != 1 {
		t.Errorf("Expected 1 applied, got %d", stats.Applied)
	}
	if stats.Unchanged != 1 {
		t.Errorf("Expected 1 unchanged, got %d", stats.Unchanged)
	}
	if stats.Rejected != 0 {
		t.Errorf("Expected 0 rejected, got %d", stats.Rejected)
	}
	if stats.Errors != 0 {
		t.Errorf("Expected 0 errors, got %d", stats.Errors)
	}
}

func TestRunSweepRefreshesTrendTags(t *testing.T) {
	f := newEngineFixture(defaultTestPolicy())
	f.openEvent("ev1")
	f.quotes.put("ev1", models.OutcomeHome, "2.00", models.QuoteStateActive)
	f.volumes.put("ev1", models.OutcomeHome, 40, "400.00")
	f.volumes.put("ev1", models.OutcomeDraw, 30, "300.00")
	f.volumes.put("ev1", models.OutcomeAway, 30, "300.00")
	// 近期三次上涨，超过限流间隔
	f.ledger.seed("ev1", models.OutcomeHome, time.Now().Add(-30*time.Minute), "1.00")
	f.ledger.seed("ev1", models.OutcomeHome, time.Now().Add(-20*time.Minute), "0.50")
	f.ledger.seed("ev1", models.OutcomeHome, time.Now().Add(-10*time.Minute), "2.00")

	advisor := NewTrendAdvisor(f.ledger, DefaultTrendLookback)
	scheduler := NewSweepScheduler(f.engine, f.events, f.quotes, f.volumes, advisor,
		nil, nil, SweepSchedulerConfig{SweepInterval: time.Minute})

	scheduler.RunSweep(context.Background())

	stats, err := f.volumes.Get(context.Background(), "ev1", models.OutcomeHome)
	if err != nil {
		t.Fatalf("Get volume failed: %v", err)
	}
	if stats.TrendTag != models.TrendRising {
		t.Errorf("Expected trend tag rising, got %s", stats.TrendTag)
	}
}

func TestSweepSchedulerStartStop(t *testing.T) {
	f := newEngineFixture(defaultTestPolicy())
	advisor := NewTrendAdvisor(f.ledger, DefaultTrendLookback)
	scheduler := NewSweepScheduler(f.engine, f.events, f.quotes, f.volumes, advisor,
		nil, nil, SweepSchedulerConfig{SweepInterval: time.Hour})

	if scheduler.IsRunning() {
		t.Error("Scheduler should not run before Start")
	}

	// IsRunning 从其他 goroutine 轮询，Start/Stop 不能与它竞争
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			scheduler.IsRunning()
		}
	}()

	scheduler.Start()
	if !scheduler.IsRunning() {
		t.Error("Scheduler should run after Start")
	}
	scheduler.Start() // 重复 Start 应当是空操作
	scheduler.Stop()
	if scheduler.IsRunning() {
		t.Error("Scheduler should stop after Stop")
	}
	scheduler.Stop() // 重复 Stop 不应当 panic
	<-done
}
