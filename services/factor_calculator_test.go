package services

import (
	"testing"

	"github.com/shopspring/decimal"

	"odds-engine/pkg/models"
)

func mustMarket(t *testing.T, outcome models.OutcomeType) *models.MarketSpec {
	t.Helper()
	market, ok := models.MarketForOutcome(outcome)
	if !ok {
		t.Fatalf("No market for outcome %s", outcome)
	}
	return market
}

func TestVolumeFactorDeadZone(t *testing.T) {
	calc := NewFactorCalculator()
	market := mustMarket(t, models.OutcomeHome)

	// 20% 到 33.33% 之间的占比不产生调整
	for _, share := range []string{"20.00", "25.00", "33.33"} {
		factor := calc.VolumeFactor(decimal.RequireFromString(share), market)
		if !factor.IsZero() {
			t.Errorf("Share %s: expected zero factor, got %s", share, factor)
		}
	}
}

func TestVolumeFactorOverexposed(t *testing.T) {
	calc := NewFactorCalculator()
	market := mustMarket(t, models.OutcomeHome)

	factor := calc.VolumeFactor(decimal.RequireFromString("40.00"), market)
	if factor.Sign() >= 0 {
		t.Fatalf("Expected negative factor for overexposed share, got %s", factor)
	}
	// (40 - 33.33) / 100 = 0.0667
	if expected := decimal.RequireFromString("-0.0667"); !factor.Equal(expected) {
		t.Errorf("Expected factor %s, got %s", expected, factor)
	}
}

func TestVolumeFactorUnderexposed(t *testing.T) {
	calc := NewFactorCalculator()
	market := mustMarket(t, models.OutcomeHome)

	factor := calc.VolumeFactor(decimal.RequireFromString("10.00"), market)
	// (20 - 10) / 100 = 0.1
	if expected := decimal.RequireFromString("0.1"); !factor.Equal(expected) {
		t.Errorf("Expected factor %s, got %s", expected, factor)
	}
}

func TestVolumeFactorClamped(t *testing.T) {
	calc := NewFactorCalculator()
	market := mustMarket(t, models.OutcomeHome)

	// 90% 的占比偏离阈值超过 20 个百分点，因子封顶在 -0.2
	factor := calc.VolumeFactor(decimal.RequireFromString("90.00"), market)
	if expected := decimal.RequireFromString("-0.2"); !factor.Equal(expected) {
		t.Errorf("Expected clamped factor %s, got %s", expected, factor)
	}

	factor = calc.VolumeFactor(decimal.Zero, market)
	if factor.GreaterThan(decimal.RequireFromString("0.2")) {
		t.Errorf("Factor exceeds +0.2: %s", factor)
	}
}

func TestProbabilityFactorSign(t *testing.T) {
	calc := NewFactorCalculator()
	market := mustMarket(t, models.OutcomeHome)

	// 占比高于 1/3 -> 负因子
	if factor := calc.ProbabilityFactor(decimal.RequireFromString("50.00"), market); factor.Sign() >= 0 {
		t.Errorf("Expected negative factor for share above even, got %s", factor)
	}
	// 占比低于 1/3 -> 正因子
	if factor := calc.ProbabilityFactor(decimal.RequireFromString("10.00"), market); factor.Sign() <= 0 {
		t.Errorf("Expected positive factor for share below even, got %s", factor)
	}
}

func TestProbabilityFactorClamped(t *testing.T) {
	calc := NewFactorCalculator()
	market := mustMarket(t, models.OutcomeHome)

	// 1/3 - 1.0 = -0.667，封顶 -0.2
	if factor := calc.ProbabilityFactor(decimal.RequireFromString("100.00"), market); !factor.Equal(decimal.RequireFromString("-0.2")) {
		t.Errorf("Expected -0.2, got %s", factor)
	}
	// 两路盘：1/2 - 0 = 0.5，封顶 0.2
	twoWay := mustMarket(t, models.OutcomeOver25)
	if factor := calc.ProbabilityFactor(decimal.Zero, twoWay); !factor.Equal(decimal.RequireFromString("0.2")) {
		t.Errorf("Expected 0.2, got %s", factor)
	}
}

func TestCandidatePriceRounding(t *testing.T) {
	calc := NewFactorCalculator()
	policy := defaultTestPolicy()

	// 2.00 × (1 - 0.00667) × 1 × 1 = 1.98666，四舍五入到 1.99
	candidate := calc.CandidatePrice(decimal.RequireFromString("2.00"),
		decimal.RequireFromString("-0.0667"), decimal.Zero, policy)
	if expected := decimal.RequireFromString("1.99"); !candidate.Equal(expected) {
		t.Errorf("Expected %s, got %s", expected, candidate)
	}
	if candidate.Exponent() < -2 {
		t.Errorf("Candidate carries more than 2 decimal places: %s", candidate)
	}
}

func TestCandidatePriceHouseMargin(t *testing.T) {
	calc := NewFactorCalculator()
	policy := defaultTestPolicy()
	policy.HouseMarginPercent = decimal.RequireFromString("5")

	candidate := calc.CandidatePrice(decimal.RequireFromString("2.00"),
		decimal.Zero, decimal.Zero, policy)
	if expected := decimal.RequireFromString("1.90"); !candidate.Equal(expected) {
		t.Errorf("Expected %s after 5%% margin, got %s", expected, candidate)
	}
}

func TestCandidatePriceClamped(t *testing.T) {
	calc := NewFactorCalculator()
	policy := defaultTestPolicy()
	policy.VolumeWeight = decimal.RequireFromString("1.00")
	policy.ProbabilityWeight = decimal.RequireFromString("1.00")

	// 1.05 × 0.8 × 0.8 = 0.672，裁剪到下界 1.01
	candidate := calc.CandidatePrice(decimal.RequireFromString("1.05"),
		decimal.RequireFromString("-0.2"), decimal.RequireFromString("-0.2"), policy)
	if !candidate.Equal(policy.MinOdds) {
		t.Errorf("Expected clamp to %s, got %s", policy.MinOdds, candidate)
	}

	// 40 × 1.2 × 1.2 = 57.6，裁剪到上界 50.00
	candidate = calc.CandidatePrice(decimal.RequireFromString("40.00"),
		decimal.RequireFromString("0.2"), decimal.RequireFromString("0.2"), policy)
	if !candidate.Equal(policy.MaxOdds) {
		t.Errorf("Expected clamp to %s, got %s", policy.MaxOdds, candidate)
	}
}
