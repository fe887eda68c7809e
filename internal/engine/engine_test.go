package engine

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/kirillm/kalshi-bot/internal/domain"
	"github.com/kirillm/kalshi-bot/internal/risk"
	"github.com/kirillm/kalshi-bot/internal/sim"
	"github.com/kirillm/kalshi-bot/pkg/utils"
)

func quietLogger() *utils.Logger {
	return utils.NewLoggerWithWriter("error", io.Discard)
}

type stubData struct {
	snapshots   []domain.MarketSnapshot
	resolutions []domain.Resolution
}

func (s *stubData) Snapshots(ctx context.Context) ([]domain.MarketSnapshot, error) {
	return s.snapshots, nil
}

func (s *stubData) Resolutions(ctx context.Context) ([]domain.Resolution, error) {
	out := s.resolutions
	s.resolutions = nil
	return out, nil
}

type stubStrategy struct{}

func (stubStrategy) Name() string { return "stub" }

func (stubStrategy) Evaluate(snapshot domain.MarketSnapshot) []domain.TradeSignal {
	if snapshot.YesMid() < 90 {
		return nil
	}
	return []domain.TradeSignal{{
		Ticker:     snapshot.Ticker,
		Side:       domain.SideYes,
		Action:     domain.ActionBuy,
		Edge:       0.05,
		WinProb:    0.95,
		PriceCents: snapshot.YesAsk,
		Strategy:   "stub",
		CreatedAt:  snapshot.Timestamp,
	}}
}

type stubStore struct {
	trades []domain.TradeRecord
	events []domain.RiskEvent
}

func (s *stubStore) SaveTradeRecord(record *domain.TradeRecord) error {
	s.trades = append(s.trades, *record)
	return nil
}

func (s *stubStore) SaveRiskEvent(event *domain.RiskEvent) error {
	s.events = append(s.events, *event)
	return nil
}

type stubNotifier struct {
	messages []string
}

func (s *stubNotifier) SendMessage(text string) {
	s.messages = append(s.messages, text)
}

func favoriteSnapshot(ticker string, at time.Time) domain.MarketSnapshot {
	return domain.MarketSnapshot{
		Timestamp:  at,
		Ticker:     ticker,
		YesBid:     90,
		YesAsk:     91,
		NoBid:      9,
		NoAsk:      10,
		YesBidSize: 500,
		YesAskSize: 500,
		NoBidSize:  500,
		NoAskSize:  500,
	}
}

type engineFixture struct {
	engine   *Engine
	data     *stubData
	ledger   *risk.Ledger
	store    *stubStore
	notifier *stubNotifier
	clock    *testClock
}

type testClock struct {
	at time.Time
}

func (c *testClock) Now() time.Time { return c.at }

func newFixture(t *testing.T, mode string) *engineFixture {
	t.Helper()

	ledger, err := risk.NewLedger(10000, risk.DefaultLimits(), quietLogger())
	if err != nil {
		t.Fatalf("NewLedger() error = %v", err)
	}
	clock := &testClock{at: time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)}
	ledger.SetClock(clock.Now)
	evaluator := risk.NewEvaluator(ledger, quietLogger())

	var simulator *sim.Simulator
	if mode == domain.ModePaper {
		cfg := sim.DefaultConfig()
		cfg.LatencyTicks = 0
		simulator, err = sim.NewSimulator(cfg, quietLogger())
		if err != nil {
			t.Fatalf("NewSimulator() error = %v", err)
		}
	}

	data := &stubData{}
	store := &stubStore{}
	notifier := &stubNotifier{}

	engine, err := New(mode, time.Minute, 1000, data, stubStrategy{}, ledger, evaluator,
		simulator, nil, store, notifier, quietLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return &engineFixture{engine: engine, data: data, ledger: ledger, store: store, notifier: notifier, clock: clock}
}

func TestEngine_PaperCycle(t *testing.T) {
	f := newFixture(t, domain.ModePaper)
	ticker := "KXHIGHLAX-26AUG29-B85"
	ctx := context.Background()

	f.data.snapshots = []domain.MarketSnapshot{favoriteSnapshot(ticker, f.clock.at)}
	if err := f.engine.RunCycle(ctx); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}

	pos, ok := f.ledger.OpenPosition(ticker)
	if !ok {
		t.Fatal("no position opened after paper cycle")
	}
	if pos.Contracts <= 0 {
		t.Fatalf("position contracts = %d", pos.Contracts)
	}

	// Рынок разрешается в следующем цикле
	f.clock.at = f.clock.at.Add(2 * time.Hour)
	f.data.snapshots = nil
	f.data.resolutions = []domain.Resolution{{Ticker: ticker, Outcome: domain.OutcomeYes, Time: f.clock.at}}
	if err := f.engine.RunCycle(ctx); err != nil {
		t.Fatalf("RunCycle() settle error = %v", err)
	}

	if len(f.store.trades) != 1 {
		t.Fatalf("persisted trades = %d, want 1", len(f.store.trades))
	}
	if !f.store.trades[0].Win {
		t.Errorf("trade not recorded as win: %+v", f.store.trades[0])
	}
	if len(f.notifier.messages) == 0 {
		t.Error("no trade notification sent")
	}
	if status := f.ledger.Status(); status.DailyPnL <= 0 {
		t.Errorf("daily pnl = %v, want positive", status.DailyPnL)
	}
	if _, ok := f.ledger.OpenPosition(ticker); ok {
		t.Error("position still open after settlement")
	}
}

func TestEngine_ShadowModeDoesNotExecute(t *testing.T) {
	f := newFixture(t, domain.ModeShadow)
	ticker := "KXHIGHLAX-26AUG29-B85"

	f.data.snapshots = []domain.MarketSnapshot{favoriteSnapshot(ticker, f.clock.at)}
	if err := f.engine.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}

	if _, ok := f.ledger.OpenPosition(ticker); ok {
		t.Error("shadow mode opened a position")
	}
	if len(f.store.trades) != 0 {
		t.Errorf("shadow mode persisted %d trades", len(f.store.trades))
	}
}

func TestEngine_RiskEventReachesSinkAndStore(t *testing.T) {
	f := newFixture(t, domain.ModeShadow)

	// Дневной лимит пробит: следующий CanTrade остановит торговлю
	err := f.ledger.ApplyFill(domain.Fill{
		Ticker: "KXHIGHLAX-26AUG29-B85", Side: domain.SideYes, Action: domain.ActionBuy,
		Contracts: 1000, PriceCents: 60, Timestamp: f.clock.at,
	}, "weather_california")
	if err != nil {
		t.Fatalf("ApplyFill() error = %v", err)
	}
	record := domain.TradeRecord{
		Timestamp: f.clock.at, Ticker: "KXHIGHLAX-26AUG29-B85", Side: domain.SideYes,
		Contracts: 1000, EntryPrice: 60, GrossPnL: -600, NetPnL: -600,
	}
	if err := f.ledger.ApplySettlement(record); err != nil {
		t.Fatalf("ApplySettlement() error = %v", err)
	}

	evaluator := risk.NewEvaluator(f.ledger, quietLogger())
	if ok, reason := evaluator.CanTrade(); ok || reason != domain.ReasonDailyLossLimit {
		t.Fatalf("CanTrade() = %v %q, want halt on daily loss", ok, reason)
	}

	if len(f.store.events) == 0 {
		t.Fatal("risk event not persisted")
	}
	last := f.store.events[len(f.store.events)-1]
	if last.ToState != domain.StateHalted {
		t.Errorf("event to_state = %s, want halted", last.ToState)
	}
	found := false
	for _, msg := range f.notifier.messages {
		if strings.Contains(msg, domain.StateHalted) {
			found = true
		}
	}
	if !found {
		t.Error("no halt notification sent")
	}
}

func TestEngine_UnknownMode(t *testing.T) {
	if _, err := New("live", time.Minute, 1, &stubData{}, stubStrategy{}, nil, nil, nil, nil, nil, nil, quietLogger()); err == nil {
		t.Fatal("New() accepted unknown mode")
	}
}

func TestEngine_PaperModeRequiresSimulator(t *testing.T) {
	ledger, err := risk.NewLedger(1000, risk.DefaultLimits(), quietLogger())
	if err != nil {
		t.Fatalf("NewLedger() error = %v", err)
	}
	if _, err := New(domain.ModePaper, time.Minute, 1, &stubData{}, stubStrategy{}, ledger, nil, nil, nil, nil, nil, quietLogger()); err == nil {
		t.Fatal("New() accepted paper mode without simulator")
	}
}
