package backtest

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/kirillm/kalshi-bot/internal/domain"
	"github.com/kirillm/kalshi-bot/internal/risk"
	"github.com/kirillm/kalshi-bot/internal/sim"
	"github.com/kirillm/kalshi-bot/pkg/utils"
)

// Strategy — торговая стратегия с точки зрения бэктеста.
// Fit видит только обучающее окно, Evaluate только текущий снапшот:
// граница train/test гарантирует отсутствие утечки будущего.
type Strategy interface {
	Name() string
	Fit(train []domain.MarketEvent) error
	Evaluate(snapshot domain.MarketSnapshot) []domain.TradeSignal
}

// Controller прогоняет стратегию через симулятор с полным риск-контуром:
// каждый сигнал проходит kill switch, сайзер и леджер так же,
// как в живом движке.
type Controller struct {
	limits risk.Limits
	simCfg sim.Config
	group  risk.GroupFunc
	logger *utils.Logger
}

// NewController создает контроллер бэктеста
func NewController(limits risk.Limits, simCfg sim.Config, logger *utils.Logger) (*Controller, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	if err := simCfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = utils.Default()
	}
	return &Controller{
		limits: limits,
		simCfg: simCfg,
		group:  risk.DefaultGroup,
		logger: logger.WithPrefix("backtest"),
	}, nil
}

// SetGroupFunc заменяет эвристику корреляционных групп
func (c *Controller) SetGroupFunc(fn risk.GroupFunc) {
	if fn != nil {
		c.group = fn
	}
}

// replayClock подменяет реальное время временем ленты событий
type replayClock struct {
	at time.Time
}

func (c *replayClock) Now() time.Time {
	return c.at
}

// Run выполняет один train/test прогон: обучение строго до splitDate,
// оценка строго после. Событие с меткой ровно на границе попадает в тест.
func (c *Controller) Run(strategy Strategy, events []domain.MarketEvent, splitDate time.Time) (*Report, error) {
	ordered := sortedByTime(events)
	var train, test []domain.MarketEvent
	for _, ev := range ordered {
		if ev.Snapshot.Timestamp.Before(splitDate) {
			train = append(train, ev)
		} else {
			test = append(test, ev)
		}
	}

	fold, err := c.runFold(strategy, train, test)
	if err != nil {
		return nil, err
	}
	fold.Fold = 1
	fold.TestStart = test[0].Snapshot.Timestamp
	fold.TestEnd = test[len(test)-1].Snapshot.Timestamp
	c.logger.Info("📊 run complete: %d trades, return %.2f%%, sharpe %.2f",
		fold.Trades, fold.TotalReturnPct, fold.SharpeRatio)
	return buildReport(strategy.Name(), splitDate, []FoldMetrics{fold}), nil
}

// RunWalkForward катит окно по ленте: trainDays обучения, testDays теста,
// шаг равен тестовому окну. Окна без событий пропускаются.
func (c *Controller) RunWalkForward(strategy Strategy, events []domain.MarketEvent, trainDays, testDays int) (*Report, error) {
	if trainDays <= 0 || testDays <= 0 {
		return nil, fmt.Errorf("%w: train and test windows must be positive days", domain.ErrInvalidConfig)
	}
	ordered := sortedByTime(events)
	if len(ordered) == 0 {
		return nil, fmt.Errorf("%w: no events to backtest", domain.ErrEmptyDataset)
	}

	start := ordered[0].Snapshot.Timestamp
	end := ordered[len(ordered)-1].Snapshot.Timestamp
	trainWindow := time.Duration(trainDays) * 24 * time.Hour
	testWindow := time.Duration(testDays) * 24 * time.Hour

	var folds []FoldMetrics
	var firstSplit time.Time
	for foldStart := start; foldStart.Add(trainWindow).Before(end); foldStart = foldStart.Add(testWindow) {
		splitDate := foldStart.Add(trainWindow)
		testEnd := splitDate.Add(testWindow)

		train := eventsBetween(ordered, foldStart, splitDate)
		test := eventsBetween(ordered, splitDate, testEnd)
		if len(train) == 0 || len(test) == 0 {
			c.logger.Warn("fold at %s skipped: empty window", splitDate.Format("2006-01-02"))
			continue
		}
		if firstSplit.IsZero() {
			firstSplit = splitDate
		}

		fold, err := c.runFold(strategy, train, test)
		if err != nil {
			return nil, fmt.Errorf("fold at %s: %w", splitDate.Format("2006-01-02"), err)
		}
		fold.Fold = len(folds) + 1
		fold.TestStart = splitDate
		fold.TestEnd = testEnd
		folds = append(folds, fold)
		c.logger.Info("fold %d [%s..%s]: %d trades, return %.2f%%",
			fold.Fold, splitDate.Format("2006-01-02"), testEnd.Format("2006-01-02"),
			fold.Trades, fold.TotalReturnPct)
	}

	if len(folds) == 0 {
		return nil, fmt.Errorf("%w: dataset shorter than one train window", domain.ErrEmptyDataset)
	}
	report := buildReport(strategy.Name(), firstSplit, folds)
	c.logger.Info("📊 walk-forward complete: %d folds, %d trades, return %.2f%%, worst drawdown %.2f%%",
		len(folds), report.TotalTrades, report.TotalReturnPct, report.WorstDrawdownPct)
	return report, nil
}

// runFold обучает стратегию и проигрывает тестовое окно через
// свежие леджер и симулятор. Состояние между фолдами не переносится.
func (c *Controller) runFold(strategy Strategy, train, test []domain.MarketEvent) (FoldMetrics, error) {
	if len(train) == 0 {
		return FoldMetrics{}, fmt.Errorf("%w: empty train window", domain.ErrEmptyDataset)
	}
	if len(test) == 0 {
		return FoldMetrics{}, fmt.Errorf("%w: empty test window", domain.ErrEmptyDataset)
	}

	if err := strategy.Fit(train); err != nil {
		return FoldMetrics{}, fmt.Errorf("fit %s: %w", strategy.Name(), err)
	}

	ledger, err := risk.NewLedger(c.simCfg.InitialCapital, c.limits, c.logger)
	if err != nil {
		return FoldMetrics{}, err
	}
	clock := &replayClock{at: test[0].Snapshot.Timestamp}
	ledger.SetClock(clock.Now)
	evaluator := risk.NewEvaluator(ledger, c.logger)

	simulator, err := sim.NewSimulator(c.simCfg, c.logger)
	if err != nil {
		return FoldMetrics{}, err
	}

	for _, ev := range test {
		clock.at = ev.Snapshot.Timestamp

		var requests []sim.OrderRequest
		if ev.Snapshot.Validate() == nil {
			requests = c.collectRequests(strategy, evaluator, ledger, ev.Snapshot)
		}

		fills := simulator.Step(ev.Snapshot, requests)
		for _, fill := range fills {
			if err := ledger.ApplyFill(fill, c.group(fill.Ticker)); err != nil {
				c.logger.Warn("ledger rejected fill %s: %v", fill.OrderID, err)
			}
		}
		if len(requests) > 0 {
			ledger.RecordScanResult(len(fills) > 0)
		}

		if ev.Resolution != nil {
			record, err := simulator.ResolveMarket(ev.Resolution.Ticker, ev.Resolution.Outcome, ev.Resolution.Time)
			if err != nil {
				if !errors.Is(err, domain.ErrUnknownTicker) {
					c.logger.Warn("resolve %s: %v", ev.Resolution.Ticker, err)
				}
				continue
			}
			if err := ledger.ApplySettlement(*record); err != nil {
				c.logger.Warn("settle %s: %v", record.Ticker, err)
			}
		}
	}

	return computeFoldMetrics(simulator.Records(), simulator.EquityCurve(), c.simCfg.InitialCapital), nil
}

// collectRequests прогоняет сигналы стратегии через риск-контур
func (c *Controller) collectRequests(strategy Strategy, evaluator *risk.Evaluator, ledger *risk.Ledger, snapshot domain.MarketSnapshot) []sim.OrderRequest {
	ok, reason := evaluator.CanTrade()
	if !ok {
		c.logger.Debug("scan skipped: %s", reason)
		return nil
	}

	var requests []sim.OrderRequest
	for _, signal := range strategy.Evaluate(snapshot) {
		if signal.Group == "" {
			signal.Group = c.group(signal.Ticker)
		}
		if ok, reason := evaluator.CheckSignal(signal, snapshot); !ok {
			c.logger.Debug("signal %s rejected: %s", signal.Ticker, reason)
			continue
		}
		contracts, reason := ledger.Size(signal)
		if contracts <= 0 {
			c.logger.Debug("signal %s sized to zero: %s", signal.Ticker, reason)
			continue
		}
		requests = append(requests, sim.OrderRequest{Signal: signal, Contracts: contracts})
	}
	return requests
}

// sortedByTime возвращает копию событий, устойчиво упорядоченную по времени
func sortedByTime(events []domain.MarketEvent) []domain.MarketEvent {
	ordered := make([]domain.MarketEvent, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Snapshot.Timestamp.Before(ordered[j].Snapshot.Timestamp)
	})
	return ordered
}

// eventsBetween возвращает события в полуинтервале [from, to)
func eventsBetween(events []domain.MarketEvent, from, to time.Time) []domain.MarketEvent {
	lo := sort.Search(len(events), func(i int) bool {
		return !events[i].Snapshot.Timestamp.Before(from)
	})
	hi := sort.Search(len(events), func(i int) bool {
		return !events[i].Snapshot.Timestamp.Before(to)
	})
	return events[lo:hi]
}
