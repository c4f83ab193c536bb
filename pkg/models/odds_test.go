package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestChangePercent(t *testing.T) {
	tests := []struct {
		oldPrice, newPrice, expected string
	}{
		{"2.00", "1.97", "-1.5"},
		{"2.00", "2.10", "5"},
		{"2.00", "2.00", "0"},
		{"1.50", "3.00", "100"},
		{"3.00", "1.50", "-50"},
		// 1/3 的变化四舍五入到两位
		{"3.00", "4.00", "33.33"},
	}

	for _, tt := range tests {
		got := ChangePercent(decimal.RequireFromString(tt.oldPrice), decimal.RequireFromString(tt.newPrice))
		if !got.Equal(decimal.RequireFromString(tt.expected)) {
			t.Errorf("ChangePercent(%s, %s): expected %s, got %s", tt.oldPrice, tt.newPrice, tt.expected, got)
		}
	}
}

func TestChangePercentZeroOldPrice(t *testing.T) {
	got := ChangePercent(decimal.Zero, decimal.RequireFromString("2.00"))
	if !got.IsZero() {
		t.Errorf("Expected zero for zero old price, got %s", got)
	}
}

func TestChangePercentRoundsHalfUp(t *testing.T) {
	// (2.0031 - 2.00) / 2.00 × 100 = 0.155 -> 0.16
	got := ChangePercent(decimal.RequireFromString("2.0000"), decimal.RequireFromString("2.0031"))
	if expected := decimal.RequireFromString("0.16"); !got.Equal(expected) {
		t.Errorf("Expected %s, got %s", expected, got)
	}
}
