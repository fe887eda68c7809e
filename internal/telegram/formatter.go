package telegram

import (
	"fmt"
	"strings"

	"github.com/kirillm/kalshi-bot/internal/domain"
	"github.com/kirillm/kalshi-bot/internal/monitor"
	"github.com/kirillm/kalshi-bot/internal/risk"
)

// stateEmoji возвращает маркер состояния торговли
func stateEmoji(state string) string {
	switch state {
	case domain.StateHalted:
		return "🚨"
	case domain.StatePaused:
		return "⚠️"
	default:
		return "✅"
	}
}

// FormatStatus форматирует сводку леджера для операционного чата
func FormatStatus(s risk.Status) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s Trading state: %s\n", stateEmoji(s.TradingState), s.TradingState)
	if s.StateReason != "" {
		fmt.Fprintf(&sb, "Reason: %s\n", s.StateReason)
	}
	fmt.Fprintf(&sb, "\n💰 Capital: $%.2f (%+.2f%%)\n", s.Capital, s.CapitalChangePct)
	fmt.Fprintf(&sb, "Exposure: $%.2f (%.1f%% of capital)\n", s.TotalExposure, s.ExposurePct)
	fmt.Fprintf(&sb, "Open positions: %d\n", s.ActivePositions)
	fmt.Fprintf(&sb, "\n📊 Daily PnL: $%.2f over %d trades\n", s.DailyPnL, s.DailyTrades)
	if s.ConsecutiveLosses > 0 {
		fmt.Fprintf(&sb, "Loss streak: %d\n", s.ConsecutiveLosses)
	}
	if s.Throttled {
		sb.WriteString("🐢 Sizing throttled: realized edge is negative\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatLimits форматирует активный профиль риск-лимитов
func FormatLimits(l risk.Limits) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🛡 Risk profile: %s\n\n", l.ProfileName)
	fmt.Fprintf(&sb, "Kelly fraction: %.2f (bet %.0f%%-%.0f%% of capital)\n", l.KellyFraction, l.MinKellyBet*100, l.MaxKellyBet*100)
	fmt.Fprintf(&sb, "Position cap: %.0f%% | group cap: %.0f%% | total cap: %.0f%%\n",
		l.MaxSinglePositionPct*100, l.MaxCorrelatedGroupPct*100, l.MaxTotalExposurePct*100)
	fmt.Fprintf(&sb, "Daily loss limit: $%.0f or %.0f%%\n", l.MaxDailyLossDollars, l.MaxDailyLossPct*100)
	fmt.Fprintf(&sb, "Daily trade cap: %d\n", l.MaxDailyTrades)
	fmt.Fprintf(&sb, "Loss streak: %d losses pause %dh\n", l.MaxConsecutiveLosses, l.LossStreakPauseHours)
	fmt.Fprintf(&sb, "Min edge: %.1f%% | max spread: %.0f bps | max slippage: %.0f bps",
		l.MinEdgeToTrade*100, l.MaxSpreadBps, l.MaxSlippageBps)
	return sb.String()
}

// FormatHealth форматирует сводку качества недавних сделок
func FormatHealth(h monitor.Health) string {
	if h.RecentTrades == 0 {
		return "📊 No settled trades yet."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 Last %d trades:\n", h.RecentTrades)
	fmt.Fprintf(&sb, "Win rate: %.0f%%\n", h.RecentWinRate*100)
	fmt.Fprintf(&sb, "Net PnL: $%.2f\n", h.RecentNetPnL)
	fmt.Fprintf(&sb, "Avg slippage: %.0f bps\n", h.AvgSlippageBps)
	if len(h.Alerts) == 0 {
		sb.WriteString("No alerts.")
	} else {
		sb.WriteString("\n⚠️ Alerts:\n")
		for _, alert := range h.Alerts {
			fmt.Fprintf(&sb, "- %s\n", alert)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatTrade форматирует закрытую сделку для уведомления
func FormatTrade(r domain.TradeRecord) string {
	emoji := "🟢"
	if !r.Win {
		emoji = "🔴"
	}
	return fmt.Sprintf("%s %s %s %d @ %.0f¢ → %.0f¢\nNet: $%.2f (fee $%.2f) | %s | %s",
		emoji, r.Ticker, strings.ToUpper(r.Side), r.Contracts, r.EntryPrice, r.ExitPrice,
		r.NetPnL, r.Fee, r.MarketFamily, r.Strategy)
}

// FormatRiskEvent форматирует переход kill switch для алерта
func FormatRiskEvent(e domain.RiskEvent) string {
	return fmt.Sprintf("%s Trading state changed: %s → %s\nReason: %s\n%s",
		stateEmoji(e.ToState), e.FromState, e.ToState, e.Reason, e.Details)
}
