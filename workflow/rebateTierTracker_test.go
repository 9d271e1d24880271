package workflow

import (
	"testing"

	"github.com/pharmadatalab/officine_backend/models"
	"github.com/shopspring/decimal"
)

func tier(min string, max string, rate string) models.RebateTier {
	t := models.RebateTier{
		ThresholdMin: decimal.RequireFromString(min),
		Rate:         decimal.RequireFromString(rate),
	}
	if max != "" {
		m := decimal.RequireFromString(max)
		t.ThresholdMax = &m
	}
	return t
}

func standardTiers() []models.RebateTier {
	return []models.RebateTier{
		tier("0", "1000", "2"),
		tier("1000", "5000", "4"),
		tier("5000", "", "6"),
	}
}

func TestTrackRebateProgression_TierBoundariesAndProgress(t *testing.T) {
	cases := []struct {
		cumulative   string
		wantActive   string // active tier min threshold, "" = none
		wantNext     string // next tier min threshold, "" = none
		wantRate     string
		wantEstimate string
		wantProgress string
	}{
		// reaching a boundary activates the higher tier
		{"1000", "1000", "5000", "4", "40", "0"},
		{"999.99", "0", "1000", "2", "19.9998", "99.999"},
		{"3000", "1000", "5000", "4", "120", "50"},
		{"6000", "5000", "", "6", "360", "100"},
		{"5000", "5000", "", "6", "300", "100"},
		{"0", "0", "1000", "2", "0", "0"},
	}
	for _, tc := range cases {
		p := TrackRebateProgression(7, 2026, decimal.RequireFromString(tc.cumulative), standardTiers())

		if tc.wantActive == "" {
			if p.ActiveTier != nil {
				t.Fatalf("cumulative=%s: expected no active tier, got min %s", tc.cumulative, p.ActiveTier.ThresholdMin)
			}
		} else if p.ActiveTier == nil || !p.ActiveTier.ThresholdMin.Equal(decimal.RequireFromString(tc.wantActive)) {
			t.Fatalf("cumulative=%s: expected active tier min %s, got %+v", tc.cumulative, tc.wantActive, p.ActiveTier)
		}
		if tc.wantNext == "" {
			if p.NextTier != nil {
				t.Fatalf("cumulative=%s: expected no next tier, got min %s", tc.cumulative, p.NextTier.ThresholdMin)
			}
		} else if p.NextTier == nil || !p.NextTier.ThresholdMin.Equal(decimal.RequireFromString(tc.wantNext)) {
			t.Fatalf("cumulative=%s: expected next tier min %s, got %+v", tc.cumulative, tc.wantNext, p.NextTier)
		}
		if !p.ActiveRate.Equal(decimal.RequireFromString(tc.wantRate)) {
			t.Fatalf("cumulative=%s: expected active rate %s, got %s", tc.cumulative, tc.wantRate, p.ActiveRate)
		}
		if !p.AnnualRebateEstimate.Equal(decimal.RequireFromString(tc.wantEstimate)) {
			t.Fatalf("cumulative=%s: expected estimate %s, got %s", tc.cumulative, tc.wantEstimate, p.AnnualRebateEstimate)
		}
		if !p.ProgressPercent.Equal(decimal.RequireFromString(tc.wantProgress)) {
			t.Fatalf("cumulative=%s: expected progress %s, got %s", tc.cumulative, tc.wantProgress, p.ProgressPercent)
		}
	}
}

func TestTrackRebateProgression_BelowLowestTier(t *testing.T) {
	tiers := []models.RebateTier{
		tier("1000", "5000", "2"),
		tier("5000", "", "4"),
	}
	p := TrackRebateProgression(7, 2026, decimal.RequireFromString("400"), tiers)

	if p.ActiveTier != nil {
		t.Fatalf("expected no active tier below the lowest threshold, got min %s", p.ActiveTier.ThresholdMin)
	}
	if !p.ActiveRate.IsZero() || !p.AnnualRebateEstimate.IsZero() {
		t.Fatalf("expected zero rate and estimate, got %s and %s", p.ActiveRate, p.AnnualRebateEstimate)
	}
	if p.NextTier == nil || !p.NextTier.ThresholdMin.Equal(decimal.RequireFromString("1000")) {
		t.Fatalf("expected next tier min 1000, got %+v", p.NextTier)
	}
	if !p.AmountToNextTier.Equal(decimal.RequireFromString("600")) {
		t.Fatalf("expected 600 to next tier, got %s", p.AmountToNextTier)
	}
	if !p.ProgressPercent.Equal(decimal.RequireFromString("40")) {
		t.Fatalf("expected 40%% progress toward the lowest tier, got %s", p.ProgressPercent)
	}
}

func TestTrackRebateProgression_NoTiers(t *testing.T) {
	p := TrackRebateProgression(7, 2026, decimal.RequireFromString("1234"), nil)
	if p.ActiveTier != nil || p.NextTier != nil {
		t.Fatalf("expected no tiers in progression, got active=%+v next=%+v", p.ActiveTier, p.NextTier)
	}
	if !p.CumulativePurchases.Equal(decimal.RequireFromString("1234")) {
		t.Fatalf("expected cumulative carried through, got %s", p.CumulativePurchases)
	}
}
