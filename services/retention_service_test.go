package services

import (
	"context"
	"fmt"
	"testing"
	"time"
)

type fakeChangePurger struct {
	cutoff  time.Time
	deleted int64
	err     error
}

func (p *fakeChangePurger) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	p.cutoff = cutoff
	return p.deleted, p.err
}

type fakeArchivedLister struct {
	eventIDs []string
	err      error
}

func (l *fakeArchivedLister) ListArchivedEventIDs(ctx context.Context, before time.Time) ([]string, error) {
	return l.eventIDs, l.err
}

type fakeVolumePurger struct {
	purged  []string
	perRows int64
	failOn  string
}

func (p *fakeVolumePurger) PurgeEvent(ctx context.Context, eventID string) (int64, error) {
	if eventID == p.failOn {
		return 0, fmt.Errorf("purge failed for %s", eventID)
	}
	p.purged = append(p.purged, eventID)
	return p.perRows, nil
}

func TestRetentionExecute(t *testing.T) {
	ledger := &fakeChangePurger{deleted: 120}
	events := &fakeArchivedLister{eventIDs: []string{"ev1", "ev2"}}
	volumes := &fakeVolumePurger{perRows: 3}

	svc := NewRetentionService(ledger, volumes, events, RetentionConfig{
		RetainDaysChanges: 30,
		RetainDaysVolumes: 7,
	})

	results := svc.Execute(context.Background())
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}

	changes := results[0]
	if changes.Target != "odds_change_records" || changes.Error != nil {
		t.Errorf("Unexpected change record result: %+v", changes)
	}
	if changes.DeletedRows != 120 {
		t.Errorf("Expected 120 deleted rows, got %d", changes.DeletedRows)
	}
	// 截止时间大约在 30 天前
	expected := time.Now().AddDate(0, 0, -30)
	if diff := ledger.cutoff.Sub(expected); diff < -time.Minute || diff > time.Minute {
		t.Errorf("Cutoff %v not near expected %v", ledger.cutoff, expected)
	}

	vols := results[1]
	if vols.Target != "wagering_volumes" || vols.Error != nil {
		t.Errorf("Unexpected volume result: %+v", vols)
	}
	if vols.DeletedRows != 6 {
		t.Errorf("Expected 6 purged rows, got %d", vols.DeletedRows)
	}
	if len(volumes.purged) != 2 {
		t.Errorf("Expected 2 events purged, got %v", volumes.purged)
	}
}

func TestRetentionContinuesPastPurgeFailure(t *testing.T) {
	ledger := &fakeChangePurger{}
	events := &fakeArchivedLister{eventIDs: []string{"ev1", "ev2", "ev3"}}
	volumes := &fakeVolumePurger{perRows: 1, failOn: "ev2"}

	svc := NewRetentionService(ledger, volumes, events, RetentionConfig{
		RetainDaysChanges: 30,
		RetainDaysVolumes: 7,
	})

	results := svc.Execute(context.Background())
	vols := results[1]
	if vols.Error != nil {
		t.Errorf("Single purge failure should not fail the run: %v", vols.Error)
	}
	if vols.DeletedRows != 2 {
		t.Errorf("Expected 2 rows from the surviving events, got %d", vols.DeletedRows)
	}
}

func TestRetentionListFailure(t *testing.T) {
	ledger := &fakeChangePurger{}
	events := &fakeArchivedLister{err: fmt.Errorf("db down")}
	volumes := &fakeVolumePurger{}

	svc := NewRetentionService(ledger, volumes, events, RetentionConfig{
		RetainDaysChanges: 30,
		RetainDaysVolumes: 7,
	})

	results := svc.Execute(context.Background())
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[1].Error == nil {
		t.Error("Expected error carried in volume result")
	}
}
