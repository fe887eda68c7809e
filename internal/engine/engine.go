package engine

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillm/kalshi-bot/internal/domain"
	"github.com/kirillm/kalshi-bot/internal/monitor"
	"github.com/kirillm/kalshi-bot/internal/risk"
	"github.com/kirillm/kalshi-bot/internal/sim"
	"github.com/kirillm/kalshi-bot/pkg/utils"
)

// MarketData — источник снапшотов и исходов.
// Snapshots возвращает текущее состояние наблюдаемых рынков,
// Resolutions — рынки, разрешившиеся с прошлого вызова.
type MarketData interface {
	Snapshots(ctx context.Context) ([]domain.MarketSnapshot, error)
	Resolutions(ctx context.Context) ([]domain.Resolution, error)
}

// Strategy — стратегия с точки зрения живого цикла
type Strategy interface {
	Name() string
	Evaluate(snapshot domain.MarketSnapshot) []domain.TradeSignal
}

// Storage — персистентность движка; сбои не останавливают торговлю
type Storage interface {
	SaveTradeRecord(record *domain.TradeRecord) error
	SaveRiskEvent(event *domain.RiskEvent) error
}

// Notifier — операционный канал алертов
type Notifier interface {
	SendMessage(text string)
}

// FormatTradeFunc форматирует закрытую сделку для алерта
type FormatTradeFunc func(domain.TradeRecord) string

// FormatEventFunc форматирует переход kill switch для алерта
type FormatEventFunc func(domain.RiskEvent) string

// Engine — торговый цикл: сканирование рынков, риск-контур,
// исполнение через симулятор в paper-режиме или только логирование
// решений в shadow-режиме.
type Engine struct {
	mode      string
	logger    *utils.Logger
	data      MarketData
	strategy  Strategy
	ledger    *risk.Ledger
	evaluator *risk.Evaluator
	simulator *sim.Simulator
	collector *monitor.Collector // может быть nil
	store     Storage            // может быть nil
	notifier  Notifier           // может быть nil
	group     risk.GroupFunc

	formatTrade FormatTradeFunc
	formatEvent FormatEventFunc

	limiter   *rate.Limiter
	interval  time.Duration
	stopChan  chan struct{}
	isRunning bool
}

// New создает движок. В paper-режиме simulator обязателен.
func New(
	mode string,
	interval time.Duration,
	scansPerSecond float64,
	data MarketData,
	strategy Strategy,
	ledger *risk.Ledger,
	evaluator *risk.Evaluator,
	simulator *sim.Simulator,
	collector *monitor.Collector,
	store Storage,
	notifier Notifier,
	logger *utils.Logger,
) (*Engine, error) {
	if mode != domain.ModeShadow && mode != domain.ModePaper {
		return nil, fmt.Errorf("unknown engine mode %q", mode)
	}
	if mode == domain.ModePaper && simulator == nil {
		return nil, fmt.Errorf("paper mode requires a simulator")
	}
	if logger == nil {
		logger = utils.Default()
	}

	e := &Engine{
		mode:        mode,
		logger:      logger.WithPrefix("engine"),
		data:        data,
		strategy:    strategy,
		ledger:      ledger,
		evaluator:   evaluator,
		simulator:   simulator,
		collector:   collector,
		store:       store,
		notifier:    notifier,
		group:       risk.DefaultGroup,
		limiter:     rate.NewLimiter(rate.Limit(scansPerSecond), 1),
		interval:    interval,
		stopChan:    make(chan struct{}),
		formatTrade: func(r domain.TradeRecord) string { return fmt.Sprintf("trade closed: %s $%.2f", r.Ticker, r.NetPnL) },
		formatEvent: func(ev domain.RiskEvent) string { return fmt.Sprintf("state: %s -> %s (%s)", ev.FromState, ev.ToState, ev.Reason) },
	}

	// Переходы kill switch уходят в аудит и операционный канал
	ledger.SetEventSink(e.handleRiskEvent)
	return e, nil
}

// SetFormatters заменяет форматирование алертов операционного канала
func (e *Engine) SetFormatters(trade FormatTradeFunc, event FormatEventFunc) {
	if trade != nil {
		e.formatTrade = trade
	}
	if event != nil {
		e.formatEvent = event
	}
}

// SetGroupFunc заменяет эвристику корреляционных групп
func (e *Engine) SetGroupFunc(fn risk.GroupFunc) {
	if fn != nil {
		e.group = fn
	}
}

// Start запускает торговый цикл
func (e *Engine) Start(ctx context.Context) error {
	if e.isRunning {
		return fmt.Errorf("engine already running")
	}
	e.isRunning = true
	e.logger.Info("🚀 engine started in %s mode, strategy %s, scan every %v", e.mode, e.strategy.Name(), e.interval)

	go e.run(ctx)
	return nil
}

// Stop останавливает торговый цикл
func (e *Engine) Stop() {
	if !e.isRunning {
		return
	}
	close(e.stopChan)
	e.isRunning = false
	e.logger.Info("engine stopped")
}

// IsRunning сообщает, работает ли цикл
func (e *Engine) IsRunning() bool {
	return e.isRunning
}

// Mode возвращает режим движка
func (e *Engine) Mode() string {
	return e.mode
}

func (e *Engine) run(ctx context.Context) {
	// Первый цикл сразу после старта
	if err := e.RunCycle(ctx); err != nil {
		e.logger.Error("initial scan cycle: %v", err)
	}

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := e.RunCycle(ctx); err != nil {
				e.logger.Error("scan cycle: %v", err)
			}
		case <-e.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// RunCycle выполняет один проход: сканирование, сигналы, исполнение,
// обработка исходов. Ошибка источника данных учитывается в леджере
// и не фатальна для цикла.
func (e *Engine) RunCycle(ctx context.Context) error {
	if err := e.limiter.Wait(ctx); err != nil {
		return err
	}

	snapshots, err := e.data.Snapshots(ctx)
	if err != nil {
		e.ledger.RecordError("market-data")
		return fmt.Errorf("fetch snapshots: %w", err)
	}

	for _, snapshot := range snapshots {
		e.scanMarket(snapshot)
	}

	if err := e.settleResolved(ctx); err != nil {
		return err
	}

	status := e.ledger.Status()
	monitor.SetPortfolio(status.Capital, status.TotalExposure, status.DailyPnL)
	return nil
}

// scanMarket прогоняет один снапшот через стратегию и риск-контур
func (e *Engine) scanMarket(snapshot domain.MarketSnapshot) {
	if err := snapshot.Validate(); err != nil {
		e.logger.Warn("skipping snapshot: %v", err)
		return
	}

	signals := e.strategy.Evaluate(snapshot)
	monitor.ObserveScan(len(signals))
	if len(signals) == 0 {
		return
	}

	canTrade, reason := e.evaluator.CanTrade()
	if !canTrade {
		e.logger.Debug("scan skipped: %s", reason)
		return
	}

	var requests []sim.OrderRequest
	for _, signal := range signals {
		signal.Group = e.group(signal.Ticker)

		if ok, why := e.evaluator.CheckSignal(signal, snapshot); !ok {
			e.logger.Debug("signal %s rejected: %s", signal.Ticker, why)
			monitor.ObserveOrder(false)
			continue
		}
		contracts, why := e.ledger.Size(signal)
		if contracts <= 0 {
			e.logger.Debug("signal %s sized to zero: %s", signal.Ticker, why)
			monitor.ObserveOrder(false)
			continue
		}
		monitor.ObserveOrder(true)

		if e.mode == domain.ModeShadow {
			e.logger.Info("shadow: would buy %d %s %s @ %d¢ (edge %.1f%%)",
				contracts, signal.Ticker, signal.Side, signal.PriceCents, signal.Edge*100)
			continue
		}
		requests = append(requests, sim.OrderRequest{Signal: signal, Contracts: contracts})
	}

	if e.mode != domain.ModePaper {
		return
	}

	fills := e.simulator.Step(snapshot, requests)
	for _, fill := range fills {
		monitor.ObserveFill(fill)
		if err := e.ledger.ApplyFill(fill, e.group(fill.Ticker)); err != nil {
			e.logger.Warn("ledger rejected fill %s: %v", fill.OrderID, err)
		}
	}
	if len(requests) > 0 {
		e.ledger.RecordScanResult(len(fills) > 0)
	}
}

// settleResolved закрывает позиции по разрешившимся рынкам
func (e *Engine) settleResolved(ctx context.Context) error {
	resolutions, err := e.data.Resolutions(ctx)
	if err != nil {
		e.ledger.RecordError("market-data")
		return fmt.Errorf("fetch resolutions: %w", err)
	}
	if e.mode != domain.ModePaper {
		return nil
	}

	for _, res := range resolutions {
		record, err := e.simulator.ResolveMarket(res.Ticker, res.Outcome, res.Time)
		if err != nil {
			continue // позиции не было
		}
		if err := e.ledger.ApplySettlement(*record); err != nil {
			e.logger.Warn("settle %s: %v", record.Ticker, err)
		}
		e.recordTrade(*record)
	}
	return nil
}

// recordTrade раскладывает закрытую сделку по потребителям.
// Персистентность best-effort: сбой хранилища логируется
// и учитывается как ошибка, но не блокирует цикл.
func (e *Engine) recordTrade(record domain.TradeRecord) {
	if e.collector != nil {
		if err := e.collector.RecordTrade(record); err != nil {
			e.logger.Error("metrics log: %v", err)
		}
	}
	if e.store != nil {
		if err := e.store.SaveTradeRecord(&record); err != nil {
			e.logger.Error("persist trade: %v", err)
			e.ledger.RecordError("storage")
		}
	}
	if e.notifier != nil {
		e.notifier.SendMessage(e.formatTrade(record))
	}
}

// handleRiskEvent обрабатывает переход состояния kill switch
func (e *Engine) handleRiskEvent(event domain.RiskEvent) {
	monitor.SetTradingState(event.ToState)
	if e.store != nil {
		if err := e.store.SaveRiskEvent(&event); err != nil {
			e.logger.Error("persist risk event: %v", err)
		}
	}
	if e.notifier != nil {
		e.notifier.SendMessage(e.formatEvent(event))
	}
}
