package risk

import (
	"time"

	"github.com/kirillm/kalshi-bot/internal/domain"
	"github.com/kirillm/kalshi-bot/pkg/utils"
)

// Кулдаун пауз, вызванных качеством исполнения и здоровьем системы.
// Паузы серии убытков используют loss_streak_pause_hours из лимитов.
const qualityPauseCooldown = time.Hour

// Минимум выборок проскальзывания до срабатывания детектора
const minSlippageSamples = 10

// Evaluator — конечный автомат kill switch поверх леджера.
// ACTIVE -> PAUSED: временно, снимается лениво по истечении кулдауна.
// ACTIVE -> HALTED: только ручной возврат через ManualResume.
// Таймеров в фоне нет, все проверки в момент вызова CanTrade.
type Evaluator struct {
	ledger *Ledger
	logger *utils.Logger
}

// NewEvaluator создает kill switch для леджера
func NewEvaluator(ledger *Ledger, logger *utils.Logger) *Evaluator {
	if logger == nil {
		logger = utils.Default()
	}
	return &Evaluator{
		ledger: ledger,
		logger: logger.WithPrefix("killswitch"),
	}
}

// CanTrade проверяет все глобальные условия kill switch.
// Вызывается перед каждой попыткой сайзинга.
func (e *Evaluator) CanTrade() (bool, string) {
	l := e.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	l.resetDailyLocked()
	now := l.now()

	if l.state == domain.StateHalted {
		return false, l.stateReason
	}

	if l.state == domain.StatePaused {
		if now.Before(l.pausedUntil) {
			return false, l.stateReason
		}
		// Кулдаун истек, пауза снимается
		if l.stateReason == domain.ReasonLossStreak {
			l.consecutiveLosses = 0
		}
		l.transitionLocked(domain.StateActive, l.stateReason, 0)
	}

	// Дневной лимит убытка: халт до ручного возврата
	if l.dailyPnL <= -l.limits.MaxDailyLossDollars {
		l.transitionLocked(domain.StateHalted, domain.ReasonDailyLossLimit, l.dailyPnL)
		return false, domain.ReasonDailyLossLimit
	}
	if l.capital > 0 && -l.dailyPnL/l.capital >= l.limits.MaxDailyLossPct {
		l.transitionLocked(domain.StateHalted, domain.ReasonDailyLossLimit, -l.dailyPnL/l.capital)
		return false, domain.ReasonDailyLossLimit
	}

	// Дневной лимит сделок: пауза до следующего дня
	if l.dailyTrades >= l.limits.MaxDailyTrades {
		l.pausedUntil = l.dailyResetDay.Add(24 * time.Hour)
		l.transitionLocked(domain.StatePaused, domain.ReasonTradeCap, float64(l.dailyTrades))
		return false, domain.ReasonTradeCap
	}

	// Всплеск ошибок за последний час
	if errs := e.errorsLastHourLocked(now); errs >= l.limits.MaxErrorRatePerHour {
		l.pausedUntil = now.Add(qualityPauseCooldown)
		l.transitionLocked(domain.StatePaused, domain.ReasonErrorBurst, float64(errs))
		return false, domain.ReasonErrorBurst
	}

	// Систематическое проскальзывание: >30% окна выше порога
	if share := e.highSlippageShareLocked(); share > 0.30 {
		l.pausedUntil = now.Add(qualityPauseCooldown)
		l.transitionLocked(domain.StatePaused, domain.ReasonExcessiveSlippage, share)
		return false, domain.ReasonExcessiveSlippage
	}

	// Liveness: сигналы есть, исполнений нет
	if e.noFillsLocked() {
		fills := 0
		for _, f := range l.recentFills {
			if f {
				fills++
			}
		}
		l.pausedUntil = now.Add(qualityPauseCooldown)
		l.recentFills = nil
		l.transitionLocked(domain.StatePaused, domain.ReasonNoFills, float64(fills))
		return false, domain.ReasonNoFills
	}

	return true, ""
}

// CheckSignal проверяет качество конкретного сигнала против снапшота.
// Отказ здесь не меняет глобальное состояние — бракуется только сделка.
func (e *Evaluator) CheckSignal(signal domain.TradeSignal, snapshot domain.MarketSnapshot) (bool, string) {
	l := e.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	age := snapshot.Age(l.now())
	if age > time.Duration(l.limits.MaxStaleBookSeconds)*time.Second {
		e.logger.Debug("stale book for %s: %.1fs old", signal.Ticker, age.Seconds())
		return false, domain.ReasonStaleBook
	}

	if spread := snapshot.YesSpreadBps(); spread > l.limits.MaxSpreadBps {
		e.logger.Debug("wide spread for %s: %.1f bps", signal.Ticker, spread)
		return false, domain.ReasonWideSpread
	}

	if signal.Group != "" {
		groupExposure := l.groupExposureLocked(signal.Group)
		if groupExposure >= l.capital*l.limits.MaxCorrelatedGroupPct {
			e.logger.Debug("correlation breach for %s: group %s at $%.2f", signal.Ticker, signal.Group, groupExposure)
			return false, domain.ReasonCorrelationBreach
		}
	}

	return true, ""
}

// ManualResume возвращает торговлю из HALTED. Единственный путь
// из халта: после серьезного убытка требуется решение оператора.
func (e *Evaluator) ManualResume() {
	l := e.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	l.consecutiveLosses = 0
	l.pausedUntil = time.Time{}
	l.transitionLocked(domain.StateActive, domain.EventManualResume, 0)
}

// ManualPause ставит торговлю на паузу до истечения cooldown
func (e *Evaluator) ManualPause(cooldown time.Duration) {
	l := e.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pausedUntil = l.now().Add(cooldown)
	l.transitionLocked(domain.StatePaused, domain.ReasonManualPause, cooldown.Hours())
}

// ManualHalt останавливает торговлю по команде оператора
func (e *Evaluator) ManualHalt() {
	l := e.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	l.transitionLocked(domain.StateHalted, domain.ReasonManualHalt, 0)
}

func (e *Evaluator) errorsLastHourLocked(now time.Time) int {
	cutoff := now.Add(-time.Hour)
	count := 0
	for _, ts := range e.ledger.recentErrors {
		if !ts.Before(cutoff) {
			count++
		}
	}
	return count
}

func (e *Evaluator) highSlippageShareLocked() float64 {
	samples := e.ledger.recentSlippage
	if len(samples) < minSlippageSamples {
		return 0
	}
	high := 0
	for _, s := range samples {
		if s.bps > e.ledger.limits.MaxSlippageBps {
			high++
		}
	}
	return float64(high) / float64(len(samples))
}

func (e *Evaluator) noFillsLocked() bool {
	l := e.ledger
	if len(l.recentFills) < l.limits.MinFillsLookbackScans {
		return false
	}
	fills := 0
	for _, f := range l.recentFills {
		if f {
			fills++
		}
	}
	return fills < l.limits.MinFillsPerScan
}
