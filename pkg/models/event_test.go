package models

import (
	"testing"
	"time"
)

func TestSweepable(t *testing.T) {
	tests := []struct {
		status   EventStatus
		expected bool
	}{
		{EventStatusOpen, true},
		{EventStatusLive, true},
		{EventStatusFinished, false},
		{EventStatusCancelled, false},
		{EventStatusArchived, false},
	}
	for _, tt := range tests {
		e := &TrackedEvent{Status: tt.status}
		if got := e.Sweepable(); got != tt.expected {
			t.Errorf("Sweepable(%s): expected %v, got %v", tt.status, tt.expected, got)
		}
	}
}

func TestInFreezeWindow(t *testing.T) {
	kickoff := time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)
	e := &TrackedEvent{KickoffAt: kickoff}
	freeze := 30 * time.Minute

	tests := []struct {
		name     string
		now      time.Time
		expected bool
	}{
		{"well before window", kickoff.Add(-2 * time.Hour), false},
		{"window opens", kickoff.Add(-30 * time.Minute), true},
		{"inside window", kickoff.Add(-10 * time.Minute), true},
		{"one second before kickoff", kickoff.Add(-time.Second), true},
		{"at kickoff", kickoff, false},
		{"in play", kickoff.Add(20 * time.Minute), false},
	}
	for _, tt := range tests {
		if got := e.InFreezeWindow(tt.now, freeze); got != tt.expected {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.expected, got)
		}
	}
}

func TestInFreezeWindowDisabled(t *testing.T) {
	e := &TrackedEvent{KickoffAt: time.Now().Add(time.Minute)}
	if e.InFreezeWindow(time.Now(), 0) {
		t.Error("Zero freeze duration should disable the window")
	}
}
