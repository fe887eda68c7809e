package telegram

import (
	"strings"
	"testing"

	"github.com/kirillm/kalshi-bot/internal/domain"
	"github.com/kirillm/kalshi-bot/internal/monitor"
	"github.com/kirillm/kalshi-bot/internal/risk"
)

func TestFormatStatus(t *testing.T) {
	tests := []struct {
		name         string
		status       risk.Status
		wantContains []string
	}{
		{
			name: "active state",
			status: risk.Status{
				TradingState:    domain.StateActive,
				Capital:         10250.50,
				TotalExposure:   1200,
				ExposurePct:     11.7,
				ActivePositions: 3,
				DailyPnL:        42.10,
				DailyTrades:     7,
			},
			wantContains: []string{"✅", "active", "$10250.50", "$1200.00", "7 trades"},
		},
		{
			name: "halted with reason",
			status: risk.Status{
				TradingState: domain.StateHalted,
				StateReason:  domain.ReasonDailyLossLimit,
			},
			wantContains: []string{"🚨", "halted", domain.ReasonDailyLossLimit},
		},
		{
			name: "paused with streak and throttle",
			status: risk.Status{
				TradingState:      domain.StatePaused,
				StateReason:       domain.ReasonLossStreak,
				ConsecutiveLosses: 5,
				Throttled:         true,
			},
			wantContains: []string{"⚠️", "Loss streak: 5", "throttled"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatStatus(tt.status)
			for _, want := range tt.wantContains {
				if !strings.Contains(got, want) {
					t.Errorf("FormatStatus() missing %q:\n%s", want, got)
				}
			}
		})
	}
}

func TestFormatLimits(t *testing.T) {
	got := FormatLimits(risk.DefaultLimits())
	for _, want := range []string{"conservative", "0.25", "5%", "15%", "20%", "$500", "bps"} {
		if !strings.Contains(got, want) {
			t.Errorf("FormatLimits() missing %q:\n%s", want, got)
		}
	}
}

func TestFormatHealth(t *testing.T) {
	t.Run("no trades", func(t *testing.T) {
		if got := FormatHealth(monitor.Health{}); !strings.Contains(got, "No settled trades") {
			t.Errorf("FormatHealth() = %q", got)
		}
	})

	t.Run("with alerts", func(t *testing.T) {
		got := FormatHealth(monitor.Health{
			RecentTrades:  30,
			RecentWinRate: 0.3,
			RecentNetPnL:  -12.5,
			Alerts:        []string{"win rate 30% below 40%"},
		})
		for _, want := range []string{"30 trades", "30%", "-12.50", "Alerts", "win rate"} {
			if !strings.Contains(got, want) {
				t.Errorf("FormatHealth() missing %q:\n%s", want, got)
			}
		}
	})
}

func TestFormatTrade(t *testing.T) {
	win := FormatTrade(domain.TradeRecord{
		Ticker: "KXHIGHLAX-26AUG29-B85", Side: domain.SideYes, Contracts: 20,
		EntryPrice: 91, ExitPrice: 100, NetPnL: 1.67, Fee: 0.13,
		Win: true, MarketFamily: "weather_california", Strategy: domain.StrategyFLB,
	})
	if !strings.Contains(win, "🟢") || !strings.Contains(win, "YES") || !strings.Contains(win, "$1.67") {
		t.Errorf("FormatTrade() win = %q", win)
	}

	loss := FormatTrade(domain.TradeRecord{Ticker: "X", Side: domain.SideNo, NetPnL: -5, Win: false})
	if !strings.Contains(loss, "🔴") {
		t.Errorf("FormatTrade() loss = %q", loss)
	}
}

func TestFormatRiskEvent(t *testing.T) {
	got := FormatRiskEvent(domain.RiskEvent{
		FromState: domain.StateActive,
		ToState:   domain.StateHalted,
		Reason:    domain.ReasonDailyLossLimit,
		Details:   "daily pnl -520.00",
	})
	for _, want := range []string{"🚨", "active → halted", domain.ReasonDailyLossLimit, "-520.00"} {
		if !strings.Contains(got, want) {
			t.Errorf("FormatRiskEvent() missing %q:\n%s", want, got)
		}
	}
}
