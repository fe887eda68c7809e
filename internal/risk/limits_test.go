package risk

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kirillm/kalshi-bot/internal/domain"
)

func TestLimits_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Limits)
		wantErr bool
	}{
		{"defaults are valid", nil, false},
		{"zero kelly fraction", func(l *Limits) { l.KellyFraction = 0 }, true},
		{"kelly fraction above one", func(l *Limits) { l.KellyFraction = 1.5 }, true},
		{"min kelly above max", func(l *Limits) { l.MinKellyBet = 0.2; l.MaxKellyBet = 0.1 }, true},
		{"negative daily loss", func(l *Limits) { l.MaxDailyLossDollars = -100 }, true},
		{"single cap above total", func(l *Limits) { l.MaxSinglePositionPct = 0.5 }, true},
		{"group cap above total", func(l *Limits) { l.MaxCorrelatedGroupPct = 0.5 }, true},
		{"zero consecutive losses", func(l *Limits) { l.MaxConsecutiveLosses = 0 }, true},
		{"zero stale book seconds", func(l *Limits) { l.MaxStaleBookSeconds = 0 }, true},
		{"edge window below min samples", func(l *Limits) { l.RealizedEdgeWindow = 10; l.RealizedEdgeMinSamples = 20 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limits := DefaultLimits()
			if tt.mutate != nil {
				tt.mutate(&limits)
			}
			err := limits.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrInvalidLimits) {
				t.Errorf("Validate() error = %v, want wrapped ErrInvalidLimits", err)
			}
		})
	}
}

const testProfilesYAML = `risk_profiles:
  conservative:
    max_total_exposure_pct: 0.20
    max_single_position_pct: 0.05
    max_correlated_group_pct: 0.15
    kelly_fraction: 0.25
    min_kelly_bet: 0.01
    max_kelly_bet: 0.10
    max_daily_loss_dollars: 500
    max_daily_loss_pct: 0.05
    max_daily_trades: 50
    max_consecutive_losses: 5
    loss_streak_pause_hours: 4
    max_slippage_bps: 50
    max_spread_bps: 200
    min_edge_to_trade: 0.03
    max_error_rate_per_hour: 10
    max_stale_book_seconds: 30
    min_fills_per_scan: 1
    min_fills_lookback_scans: 20
    realized_edge_window: 50
    realized_edge_min_samples: 20
  aggressive:
    max_total_exposure_pct: 0.40
    max_single_position_pct: 0.10
    max_correlated_group_pct: 0.25
    kelly_fraction: 0.50
    min_kelly_bet: 0.01
    max_kelly_bet: 0.15
    max_daily_loss_dollars: 1000
    max_daily_loss_pct: 0.10
    max_daily_trades: 100
    max_consecutive_losses: 8
    loss_streak_pause_hours: 2
    max_slippage_bps: 80
    max_spread_bps: 300
    min_edge_to_trade: 0.02
    max_error_rate_per_hour: 20
    max_stale_book_seconds: 60
    min_fills_per_scan: 1
    min_fills_lookback_scans: 30
    realized_edge_window: 50
    realized_edge_min_samples: 20
`

func writeTestProfiles(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "risk_profiles.yaml")
	if err := os.WriteFile(path, []byte(testProfilesYAML), 0o644); err != nil {
		t.Fatalf("failed to write test profiles: %v", err)
	}
	return path
}

func TestLoadLimits(t *testing.T) {
	path := writeTestProfiles(t)

	t.Run("default profile", func(t *testing.T) {
		t.Setenv("RISK_PROFILE", "")
		limits, err := LoadLimits(path)
		if err != nil {
			t.Fatalf("LoadLimits() error = %v", err)
		}
		if limits.ProfileName != "conservative" {
			t.Errorf("ProfileName = %v, want conservative", limits.ProfileName)
		}
		if limits.KellyFraction != 0.25 {
			t.Errorf("KellyFraction = %v, want 0.25", limits.KellyFraction)
		}
	})

	t.Run("profile from env", func(t *testing.T) {
		t.Setenv("RISK_PROFILE", "aggressive")
		limits, err := LoadLimits(path)
		if err != nil {
			t.Fatalf("LoadLimits() error = %v", err)
		}
		if limits.ProfileName != "aggressive" {
			t.Errorf("ProfileName = %v, want aggressive", limits.ProfileName)
		}
		if limits.MaxDailyTrades != 100 {
			t.Errorf("MaxDailyTrades = %v, want 100", limits.MaxDailyTrades)
		}
	})

	t.Run("unknown profile", func(t *testing.T) {
		t.Setenv("RISK_PROFILE", "reckless")
		_, err := LoadLimits(path)
		if !errors.Is(err, domain.ErrInvalidLimits) {
			t.Errorf("LoadLimits() error = %v, want wrapped ErrInvalidLimits", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadLimits(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Error("LoadLimits() error = nil, want error for missing file")
		}
	})
}
