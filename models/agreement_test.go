package models_test

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

func TestValidateTiers(t *testing.T) {
	cases := []struct {
		name    string
		tiers   []models.RebateTier
		wantErr bool
	}{
		{
			name: "valid ascending contiguous list",
			tiers: []models.RebateTier{
				tier("0", "1000", "2"),
				tier("1000", "5000", "4"),
				tier("5000", "", "6"),
			},
		},
		{
			name:  "single unbounded tier",
			tiers: []models.RebateTier{tier("0", "", "2")},
		},
		{
			name:  "empty list",
			tiers: nil,
		},
		{
			name: "gap between tiers",
			tiers: []models.RebateTier{
				tier("0", "1000", "2"),
				tier("2000", "", "4"),
			},
			wantErr: true,
		},
		{
			name: "overlapping tiers",
			tiers: []models.RebateTier{
				tier("0", "1500", "2"),
				tier("1000", "", "4"),
			},
			wantErr: true,
		},
		{
			name: "not sorted ascending",
			tiers: []models.RebateTier{
				tier("1000", "5000", "4"),
				tier("0", "1000", "2"),
			},
			wantErr: true,
		},
		{
			name: "bounded top tier",
			tiers: []models.RebateTier{
				tier("0", "1000", "2"),
				tier("1000", "5000", "4"),
			},
			wantErr: true,
		},
		{
			name: "unbounded tier below the top",
			tiers: []models.RebateTier{
				tier("0", "", "2"),
				tier("1000", "5000", "4"),
			},
			wantErr: true,
		},
		{
			name:    "negative rate",
			tiers:   []models.RebateTier{tier("0", "", "-1")},
			wantErr: true,
		},
		{
			name:    "max not above min",
			tiers:   []models.RebateTier{tier("1000", "1000", "2"), tier("1000", "", "4")},
			wantErr: true,
		},
	}
	for _, tc := range cases {
		err := models.ValidateTiers(tc.tiers)
		if tc.wantErr && err == nil {
			t.Fatalf("%s: expected error, got nil", tc.name)
		}
		if !tc.wantErr && err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
	}
}

func TestTargetRateFor(t *testing.T) {
	agreement := models.CommercialAgreement{
		TargetRateA:   decimal.RequireFromString("8"),
		TargetRateB:   decimal.RequireFromString("3.5"),
		TargetRateOTC: decimal.RequireFromString("12"),
	}
	cases := []struct {
		tranche models.Tranche
		want    string
	}{
		{models.TrancheA, "8"},
		{models.TrancheB, "3.5"},
		{models.TrancheOTC, "12"},
		{"", "0"},
	}
	for _, tc := range cases {
		got := agreement.TargetRateFor(tc.tranche)
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Fatalf("tranche %q: expected %s, got %s", tc.tranche, tc.want, got)
		}
	}
}
