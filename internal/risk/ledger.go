package risk

import (
	"fmt"
	"sync"
	"time"

	"github.com/kirillm/kalshi-bot/internal/domain"
	"github.com/kirillm/kalshi-bot/pkg/utils"
)

const (
	slippageWindowSize = 100
	errorWindowSize    = 100
)

type slippageSample struct {
	at  time.Time
	bps float64
}

// Status срез состояния леджера для отчетов и ops-канала
type Status struct {
	TradingState      string
	StateReason       string
	Capital           float64
	CapitalChangePct  float64
	TotalExposure     float64
	ExposurePct       float64
	ActivePositions   int
	DailyPnL          float64
	DailyTrades       int
	ConsecutiveLosses int
	Throttled         bool
	RealizedEdgeAvg   float64
	RecentSlippageAvg float64
}

// Ledger владеет капиталом, позициями и скользящими счетчиками качества.
// Единственная изменяемая структура ядра; все мутации сериализуются мьютексом.
// Не синглтон: каждый бэктест или движок создает собственный экземпляр.
type Ledger struct {
	mu     sync.Mutex
	limits Limits
	logger *utils.Logger

	initialCapital float64
	capital        float64

	positions map[string]*domain.Position
	groups    map[string]map[string]bool // group -> set of tickers

	dailyPnL      float64
	dailyTrades   int
	dailyResetDay time.Time

	consecutiveLosses int
	lastLossTime      time.Time

	state       string
	stateReason string
	pausedUntil time.Time

	throttled bool

	recentSlippage []slippageSample
	recentErrors   []time.Time
	recentFills    []bool
	realizedEdge   []float64

	now       func() time.Time
	eventSink func(domain.RiskEvent)
}

// NewLedger создает леджер с валидированными лимитами
func NewLedger(initialCapital float64, limits Limits, logger *utils.Logger) (*Ledger, error) {
	if initialCapital <= 0 {
		return nil, fmt.Errorf("%w: initial capital must be positive, got %v", domain.ErrInvalidLimits, initialCapital)
	}
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = utils.Default()
	}

	l := &Ledger{
		limits:         limits,
		logger:         logger.WithPrefix("ledger"),
		initialCapital: initialCapital,
		capital:        initialCapital,
		positions:      make(map[string]*domain.Position),
		groups:         make(map[string]map[string]bool),
		state:          domain.StateActive,
		now:            time.Now,
	}
	l.dailyResetDay = l.now().Truncate(24 * time.Hour)

	l.logger.Info("ledger initialized: capital=$%.2f profile=%s kelly=%.2f",
		initialCapital, limits.ProfileName, limits.KellyFraction)
	return l, nil
}

// SetClock подменяет источник времени. Бэктест продвигает виртуальные
// часы по меткам исторических событий, прогоны воспроизводимы.
func (l *Ledger) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if now != nil {
		l.now = now
		l.dailyResetDay = now().Truncate(24 * time.Hour)
	}
}

// SetEventSink устанавливает приемник аудита переходов состояния
func (l *Ledger) SetEventSink(sink func(domain.RiskEvent)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.eventSink = sink
}

// Limits возвращает действующую конфигурацию лимитов
func (l *Ledger) Limits() Limits {
	return l.limits
}

// ApplyFill открывает или усредняет позицию после исполнения ордера.
// Нарушение лимита общей экспозиции после мутации — ошибка программирования
// вызывающего слоя, а не ожидаемый отказ.
func (l *Ledger) ApplyFill(fill domain.Fill, group string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if fill.Contracts <= 0 {
		return fmt.Errorf("%w: non-positive fill contracts for %s", domain.ErrInvalidSignal, fill.Ticker)
	}
	if fill.PriceCents <= 0 || fill.PriceCents >= 100 {
		return fmt.Errorf("%w: fill price %.1f out of range for %s", domain.ErrInvalidSignal, fill.PriceCents, fill.Ticker)
	}

	cost := fill.PriceCents / 100.0 * float64(fill.Contracts)
	if l.totalExposureLocked()+cost > l.capital*l.limits.MaxTotalExposurePct+1e-9 {
		return fmt.Errorf("%w: fill of $%.2f would exceed total exposure cap", domain.ErrExposureBreach, cost)
	}

	if pos, ok := l.positions[fill.Ticker]; ok && !pos.Closed {
		total := pos.Contracts + fill.Contracts
		pos.EntryPrice = (pos.EntryPrice*float64(pos.Contracts) + fill.PriceCents*float64(fill.Contracts)) / float64(total)
		pos.Contracts = total
	} else {
		l.positions[fill.Ticker] = &domain.Position{
			Ticker:     fill.Ticker,
			Side:       fill.Side,
			Group:      group,
			Contracts:  fill.Contracts,
			EntryPrice: fill.PriceCents,
			EntryTime:  fill.Timestamp,
		}
	}
	l.dailyTrades++

	if group != "" {
		if l.groups[group] == nil {
			l.groups[group] = make(map[string]bool)
		}
		l.groups[group][fill.Ticker] = true
	}

	l.recordSlippageLocked(fill.SlippageBps)

	l.logger.Info("position opened: %s %s %d@%.1f¢ group=%s",
		fill.Ticker, fill.Side, fill.Contracts, fill.PriceCents, group)
	return nil
}

// ApplySettlement закрывает позицию по итогу рынка и обновляет
// капитал, дневной P&L, серию убытков и окно реализованного эджа
func (l *Ledger) ApplySettlement(record domain.TradeRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[record.Ticker]
	if !ok {
		return fmt.Errorf("%w: no open position for %s", domain.ErrUnknownTicker, record.Ticker)
	}

	l.capital += record.NetPnL
	l.dailyPnL += record.NetPnL
	if l.capital < 0 {
		// В симуляции капитал не уходит в минус: худший исход — потеря ставки
		l.capital = 0
	}

	if record.NetPnL < 0 {
		l.consecutiveLosses++
		l.lastLossTime = l.now()
		if l.consecutiveLosses >= l.limits.MaxConsecutiveLosses && l.state == domain.StateActive {
			l.pausedUntil = l.now().Add(time.Duration(l.limits.LossStreakPauseHours) * time.Hour)
			l.transitionLocked(domain.StatePaused, domain.ReasonLossStreak, float64(l.consecutiveLosses))
		}
	} else {
		l.consecutiveLosses = 0
	}

	l.realizedEdge = append(l.realizedEdge, record.RealizedEdge())
	if len(l.realizedEdge) > l.limits.RealizedEdgeWindow {
		l.realizedEdge = l.realizedEdge[len(l.realizedEdge)-l.limits.RealizedEdgeWindow:]
	}
	l.updateThrottleLocked()

	if pos.Group != "" {
		delete(l.groups[pos.Group], record.Ticker)
	}
	delete(l.positions, record.Ticker)

	l.logger.Info("position closed: %s net=$%.2f capital=$%.2f streak=%d",
		record.Ticker, record.NetPnL, l.capital, l.consecutiveLosses)
	return nil
}

// RecordError фиксирует ошибку внешнего слоя для детектора error burst
func (l *Ledger) RecordError(kind string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.recentErrors = append(l.recentErrors, l.now())
	if len(l.recentErrors) > errorWindowSize {
		l.recentErrors = l.recentErrors[len(l.recentErrors)-errorWindowSize:]
	}
	l.logger.Debug("error recorded: %s", kind)
}

// RecordSlippage фиксирует наблюдаемое проскальзывание
func (l *Ledger) RecordSlippage(bps float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recordSlippageLocked(bps)
}

func (l *Ledger) recordSlippageLocked(bps float64) {
	l.recentSlippage = append(l.recentSlippage, slippageSample{at: l.now(), bps: bps})
	if len(l.recentSlippage) > slippageWindowSize {
		l.recentSlippage = l.recentSlippage[len(l.recentSlippage)-slippageWindowSize:]
	}
	if bps > l.limits.MaxSlippageBps {
		l.logger.Warn("excessive slippage: %.1f bps (limit %.1f)", bps, l.limits.MaxSlippageBps)
	}
}

// RecordScanResult фиксирует, принес ли цикл сканирования исполнения
func (l *Ledger) RecordScanResult(hadFills bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.recentFills = append(l.recentFills, hadFills)
	if len(l.recentFills) > l.limits.MinFillsLookbackScans {
		l.recentFills = l.recentFills[len(l.recentFills)-l.limits.MinFillsLookbackScans:]
	}
}

// updateThrottleLocked включает режим троттлинга при отрицательном
// трейлинговом реализованном эдже; сайзер в этом режиме режет объем вдвое
func (l *Ledger) updateThrottleLocked() {
	if len(l.realizedEdge) < l.limits.RealizedEdgeMinSamples {
		return
	}
	var sum float64
	for _, e := range l.realizedEdge {
		sum += e
	}
	avg := sum / float64(len(l.realizedEdge))
	if avg < 0 && !l.throttled {
		l.throttled = true
		l.logger.Warn("⚠️ sizing throttled: trailing realized edge %.2f%%", avg*100)
	} else if avg >= 0 && l.throttled {
		l.throttled = false
		l.logger.Info("sizing throttle lifted: trailing realized edge %.2f%%", avg*100)
	}
}

// transitionLocked переводит состояние торговли и пишет событие аудита.
// Вызывается только под мьютексом.
func (l *Ledger) transitionLocked(to, reason string, metric float64) {
	from := l.state
	if from == to && l.stateReason == reason {
		return
	}
	l.state = to
	l.stateReason = reason

	switch to {
	case domain.StateHalted:
		l.logger.Error("🚨 KILL SWITCH: %s -> %s reason=%s metric=%.2f", from, to, reason, metric)
	case domain.StatePaused:
		l.logger.Warn("⚠️ trading paused: %s -> %s reason=%s metric=%.2f", from, to, reason, metric)
	default:
		l.logger.Info("✅ trading resumed: %s -> %s reason=%s", from, to, reason)
	}

	if l.eventSink != nil {
		l.eventSink(domain.RiskEvent{
			Timestamp:   l.now(),
			FromState:   from,
			ToState:     to,
			Reason:      reason,
			MetricValue: metric,
			Details:     domain.EventStateChange,
		})
	}
}

// resetDailyLocked лениво сбрасывает дневные счетчики при смене даты
func (l *Ledger) resetDailyLocked() {
	day := l.now().Truncate(24 * time.Hour)
	if day.After(l.dailyResetDay) {
		l.logger.Info("resetting daily limits")
		l.dailyPnL = 0
		l.dailyTrades = 0
		l.dailyResetDay = day
	}
}

func (l *Ledger) totalExposureLocked() float64 {
	var total float64
	for _, pos := range l.positions {
		total += pos.CostDollars()
	}
	return total
}

func (l *Ledger) groupExposureLocked(group string) float64 {
	tickers, ok := l.groups[group]
	if !ok {
		return 0
	}
	var total float64
	for ticker := range tickers {
		if pos, ok := l.positions[ticker]; ok {
			total += pos.CostDollars()
		}
	}
	return total
}

// TotalExposure возвращает суммарную стоимость открытых позиций
func (l *Ledger) TotalExposure() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalExposureLocked()
}

// GroupExposure возвращает экспозицию группы корреляции
func (l *Ledger) GroupExposure(group string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.groupExposureLocked(group)
}

// Capital возвращает текущий капитал
func (l *Ledger) Capital() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.capital
}

// State возвращает текущее состояние торговли и его причину
func (l *Ledger) State() (string, string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state, l.stateReason
}

// OpenPosition возвращает копию открытой позиции по тикеру
func (l *Ledger) OpenPosition(ticker string) (domain.Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, ok := l.positions[ticker]
	if !ok {
		return domain.Position{}, false
	}
	return *pos, true
}

// Status возвращает сводку для отчетов и ops-канала
func (l *Ledger) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	exposure := l.totalExposureLocked()
	st := Status{
		TradingState:      l.state,
		StateReason:       l.stateReason,
		Capital:           l.capital,
		TotalExposure:     exposure,
		ActivePositions:   len(l.positions),
		DailyPnL:          l.dailyPnL,
		DailyTrades:       l.dailyTrades,
		ConsecutiveLosses: l.consecutiveLosses,
		Throttled:         l.throttled,
	}
	if l.initialCapital > 0 {
		st.CapitalChangePct = (l.capital - l.initialCapital) / l.initialCapital * 100
	}
	if l.capital > 0 {
		st.ExposurePct = exposure / l.capital * 100
	}
	if len(l.realizedEdge) > 0 {
		var sum float64
		for _, e := range l.realizedEdge {
			sum += e
		}
		st.RealizedEdgeAvg = sum / float64(len(l.realizedEdge))
	}
	if len(l.recentSlippage) > 0 {
		var sum float64
		for _, s := range l.recentSlippage {
			sum += s.bps
		}
		st.RecentSlippageAvg = sum / float64(len(l.recentSlippage))
	}
	return st
}
