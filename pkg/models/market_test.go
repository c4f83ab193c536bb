package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestMarketTableCoversAllOutcomes(t *testing.T) {
	seen := make(map[OutcomeType]string)
	for _, market := range AllMarkets() {
		if market.OutcomeCount() < 2 {
			t.Errorf("Market %s has fewer than 2 outcomes", market.Code)
		}
		if !market.BaseMin.LessThan(market.BaseMax) {
			t.Errorf("Market %s: base range %s..%s is inverted", market.Code, market.BaseMin, market.BaseMax)
		}
		for _, outcome := range market.Outcomes {
			if prev, dup := seen[outcome]; dup {
				t.Errorf("Outcome %s appears in both %s and %s", outcome, prev, market.Code)
			}
			seen[outcome] = market.Code

			found, ok := MarketForOutcome(outcome)
			if !ok || found.Code != market.Code {
				t.Errorf("MarketForOutcome(%s): expected %s", outcome, market.Code)
			}
			if !IsValidOutcome(outcome) {
				t.Errorf("Outcome %s should be valid", outcome)
			}
		}
	}
	if IsValidOutcome("no_such_outcome") {
		t.Error("Unknown outcome should not be valid")
	}
}

func TestThreeWayMarketThresholds(t *testing.T) {
	market, ok := MarketForOutcome(OutcomeHome)
	if !ok {
		t.Fatal("1x2 market missing")
	}
	if expected := decimal.RequireFromString("33.33"); !market.Overexposed.Equal(expected) {
		t.Errorf("Expected overexposed threshold %s, got %s", expected, market.Overexposed)
	}
	if expected := decimal.RequireFromString("20.00"); !market.Underexposed.Equal(expected) {
		t.Errorf("Expected underexposed threshold %s, got %s", expected, market.Underexposed)
	}
}

func TestTwoWayMarketThresholds(t *testing.T) {
	market, ok := MarketForOutcome(OutcomeOver25)
	if !ok {
		t.Fatal("totals market missing")
	}
	if expected := decimal.RequireFromString("50.00"); !market.Overexposed.Equal(expected) {
		t.Errorf("Expected overexposed threshold %s, got %s", expected, market.Overexposed)
	}
	if expected := decimal.RequireFromString("30.00"); !market.Underexposed.Equal(expected) {
		t.Errorf("Expected underexposed threshold %s, got %s", expected, market.Underexposed)
	}
}

func TestBasePriceIsRangeMidpoint(t *testing.T) {
	market, _ := MarketForOutcome(OutcomeHome)
	// (1.50 + 6.00) / 2 = 3.75
	if expected := decimal.RequireFromString("3.75"); !market.BasePrice().Equal(expected) {
		t.Errorf("Expected base price %s, got %s", expected, market.BasePrice())
	}

	base := market.BasePrice()
	if base.LessThan(market.BaseMin) || base.GreaterThan(market.BaseMax) {
		t.Errorf("Base price %s outside range %s..%s", base, market.BaseMin, market.BaseMax)
	}
}
