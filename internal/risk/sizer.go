package risk

import (
	"math"

	"github.com/kirillm/kalshi-bot/internal/domain"
)

// SizeOK возвращается в качестве причины при одобренном размере
const SizeOK = "ok"

// Size вычисляет одобренное число контрактов для сигнала.
// Дробный Келли, затем связывающие ограничения в порядке:
// лимит одной позиции, лимит группы корреляции, лимит общей экспозиции.
// Нулевой размер — ожидаемый исход, не ошибка; причина машиночитаема.
func (l *Ledger) Size(signal domain.TradeSignal) (int, string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.resetDailyLocked()

	switch l.state {
	case domain.StateHalted:
		return 0, domain.ReasonTradingHalted
	case domain.StatePaused:
		return 0, domain.ReasonTradingPaused
	}

	if signal.Edge <= 0 || signal.Edge < l.limits.MinEdgeToTrade {
		return 0, domain.ReasonEdgeTooSmall
	}
	if signal.PriceCents <= 0 || signal.PriceCents >= 100 {
		return 0, domain.ReasonInvalidPrice
	}

	// Клэмп вероятности выигрыша: около 0 и 1 формула Келли взрывается
	winProb := math.Min(0.98, math.Max(0.02, signal.WinProb))

	// Келли: f = (p*b - q) / b, где b = (100-цена)/цена
	odds := float64(100-signal.PriceCents) / float64(signal.PriceCents)
	kelly := (winProb*odds - (1 - winProb)) / odds
	if kelly <= 0 {
		return 0, domain.ReasonEdgeTooSmall
	}

	fraction := kelly * l.limits.KellyFraction
	fraction = math.Max(l.limits.MinKellyBet, math.Min(l.limits.MaxKellyBet, fraction))

	dollars := l.capital * fraction
	if l.throttled {
		dollars /= 2
	}

	// 1. Лимит одной позиции
	maxSingle := l.capital * l.limits.MaxSinglePositionPct
	if dollars > maxSingle {
		dollars = maxSingle
	}
	if dollars <= 0 {
		return 0, domain.ReasonPositionCap
	}

	// 2. Лимит группы корреляции (пропускается для сигналов без тега)
	if signal.Group != "" {
		groupExposure := l.groupExposureLocked(signal.Group)
		maxGroup := l.capital * l.limits.MaxCorrelatedGroupPct
		if groupExposure+dollars > maxGroup {
			dollars = maxGroup - groupExposure
			if dollars <= 0 {
				return 0, domain.ReasonGroupCap
			}
		}
	}

	// 3. Лимит общей экспозиции
	totalExposure := l.totalExposureLocked()
	maxTotal := l.capital * l.limits.MaxTotalExposurePct
	if totalExposure+dollars > maxTotal {
		dollars = maxTotal - totalExposure
		if dollars <= 0 {
			return 0, domain.ReasonTotalExposure
		}
	}

	priceDollars := float64(signal.PriceCents) / 100.0
	contracts := int(dollars / priceDollars)
	if contracts < 1 {
		return 0, domain.ReasonBelowMinContract
	}

	return contracts, SizeOK
}
