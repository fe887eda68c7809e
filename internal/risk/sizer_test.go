package risk

import (
	"testing"
	"time"

	"github.com/kirillm/kalshi-bot/internal/domain"
)

func testLedger(t *testing.T, capital float64, mutate func(*Limits)) *Ledger {
	t.Helper()
	limits := DefaultLimits()
	if mutate != nil {
		mutate(&limits)
	}
	ledger, err := NewLedger(capital, limits, nil)
	if err != nil {
		t.Fatalf("NewLedger() error = %v", err)
	}
	return ledger
}

func testSignal(mutate func(*domain.TradeSignal)) domain.TradeSignal {
	s := domain.TradeSignal{
		Ticker:     "WEATHER-LAX-2025-08-01",
		Side:       domain.SideYes,
		Action:     domain.ActionBuy,
		Edge:       0.10,
		WinProb:    0.55,
		PriceCents: 50,
		Strategy:   domain.StrategyFLB,
	}
	if mutate != nil {
		mutate(&s)
	}
	return s
}

func TestLedger_Size_FractionalKelly(t *testing.T) {
	// capital=$1000, kelly=0.25, edge=0.10, p=0.55, price=50¢:
	// odds=1, kelly=0.10, fraction=0.025 -> $25 -> 50 contracts
	ledger := testLedger(t, 1000, nil)

	contracts, reason := ledger.Size(testSignal(nil))
	if reason != SizeOK {
		t.Fatalf("Size() reason = %v, want %v", reason, SizeOK)
	}
	if contracts != 50 {
		t.Errorf("Size() contracts = %v, want 50", contracts)
	}
	// Нотионал не превышает лимит одной позиции ($50)
	if cost := float64(contracts) * 0.50; cost > 50.0 {
		t.Errorf("Size() notional = %v, exceeds single position cap 50", cost)
	}
}

func TestLedger_Size_SinglePositionCapBinds(t *testing.T) {
	// Полный Келли дал бы $100 (f=0.10), лимит одной позиции режет до $50
	ledger := testLedger(t, 1000, func(l *Limits) {
		l.KellyFraction = 1.0
	})

	contracts, reason := ledger.Size(testSignal(nil))
	if reason != SizeOK {
		t.Fatalf("Size() reason = %v, want %v", reason, SizeOK)
	}
	if contracts != 100 {
		t.Errorf("Size() contracts = %v, want 100 ($50 notional at 50¢)", contracts)
	}
}

func TestLedger_Size_KellyFractionMonotonic(t *testing.T) {
	fractions := []float64{1.0, 0.5, 0.25, 0.1, 0.05}
	prev := -1

	for _, kf := range fractions {
		ledger := testLedger(t, 1000, func(l *Limits) {
			l.KellyFraction = kf
			l.MinKellyBet = 0
		})
		contracts, _ := ledger.Size(testSignal(nil))
		if prev >= 0 && contracts > prev {
			t.Errorf("Size() with kelly_fraction=%v returned %v contracts, more than %v at larger fraction", kf, contracts, prev)
		}
		prev = contracts
	}
}

func TestLedger_Size_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*domain.TradeSignal)
		wantReason string
	}{
		{"zero edge", func(s *domain.TradeSignal) { s.Edge = 0 }, domain.ReasonEdgeTooSmall},
		{"negative edge", func(s *domain.TradeSignal) { s.Edge = -0.05 }, domain.ReasonEdgeTooSmall},
		{"edge below minimum", func(s *domain.TradeSignal) { s.Edge = 0.01 }, domain.ReasonEdgeTooSmall},
		{"zero price", func(s *domain.TradeSignal) { s.PriceCents = 0 }, domain.ReasonInvalidPrice},
		{"price at 100", func(s *domain.TradeSignal) { s.PriceCents = 100 }, domain.ReasonInvalidPrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := testLedger(t, 1000, nil)
			contracts, reason := ledger.Size(testSignal(tt.mutate))
			if contracts != 0 {
				t.Errorf("Size() contracts = %v, want 0", contracts)
			}
			if reason != tt.wantReason {
				t.Errorf("Size() reason = %v, want %v", reason, tt.wantReason)
			}
		})
	}
}

func TestLedger_Size_WinProbClamped(t *testing.T) {
	// Вероятность около единицы не должна взрывать размер:
	// клэмп до 0.98, затем max_kelly_bet и лимит позиции
	ledger := testLedger(t, 1000, nil)

	contracts, reason := ledger.Size(testSignal(func(s *domain.TradeSignal) {
		s.WinProb = 0.999
	}))
	if reason != SizeOK {
		t.Fatalf("Size() reason = %v, want %v", reason, SizeOK)
	}
	if cost := float64(contracts) * 0.50; cost > 50.0 {
		t.Errorf("Size() notional = %v, exceeds single position cap 50", cost)
	}
}

func TestLedger_Size_GroupCap(t *testing.T) {
	ledger := testLedger(t, 1000, func(l *Limits) {
		l.KellyFraction = 1.0
	})
	ledger.SetClock(fixedClock(t))

	// Заполняем группу до лимита 15% ($150): три позиции по $50
	for i, ticker := range []string{"WEATHER-LAX-A", "WEATHER-SFO-B", "WEATHER-SAN-C"} {
		err := ledger.ApplyFill(domain.Fill{
			OrderID:    "o1",
			Ticker:     ticker,
			Side:       domain.SideYes,
			Action:     domain.ActionBuy,
			Contracts:  100,
			PriceCents: 50,
			Timestamp:  time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Minute),
		}, "weather_california")
		if err != nil {
			t.Fatalf("ApplyFill() error = %v", err)
		}
	}

	contracts, reason := ledger.Size(testSignal(func(s *domain.TradeSignal) {
		s.Ticker = "WEATHER-LAX-D"
		s.Group = "weather_california"
	}))
	if contracts != 0 {
		t.Errorf("Size() contracts = %v, want 0", contracts)
	}
	if reason != domain.ReasonGroupCap {
		t.Errorf("Size() reason = %v, want %v", reason, domain.ReasonGroupCap)
	}

	// Без тега группы проверка группы пропускается, но общий лимит ($200) режет до $50
	contracts, reason = ledger.Size(testSignal(func(s *domain.TradeSignal) {
		s.Ticker = "PRES-2028"
	}))
	if reason != SizeOK {
		t.Fatalf("Size() reason = %v, want %v", reason, SizeOK)
	}
	if contracts != 100 {
		t.Errorf("Size() contracts = %v, want 100 (remaining $50 total room)", contracts)
	}
}

func TestLedger_Size_TotalExposureCap(t *testing.T) {
	ledger := testLedger(t, 1000, func(l *Limits) {
		l.KellyFraction = 1.0
		l.MaxCorrelatedGroupPct = 0.20
	})
	ledger.SetClock(fixedClock(t))

	// Четыре позиции по $50 занимают весь лимит 20% ($200)
	for i := 0; i < 4; i++ {
		err := ledger.ApplyFill(domain.Fill{
			Ticker:     testSignal(nil).Ticker + string(rune('A'+i)),
			Side:       domain.SideYes,
			Action:     domain.ActionBuy,
			Contracts:  100,
			PriceCents: 50,
			Timestamp:  time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC),
		}, "")
		if err != nil {
			t.Fatalf("ApplyFill() error = %v", err)
		}
	}

	contracts, reason := ledger.Size(testSignal(nil))
	if contracts != 0 {
		t.Errorf("Size() contracts = %v, want 0", contracts)
	}
	if reason != domain.ReasonTotalExposure {
		t.Errorf("Size() reason = %v, want %v", reason, domain.ReasonTotalExposure)
	}
}

func TestLedger_Size_NeverExceedsCaps(t *testing.T) {
	ledger := testLedger(t, 1000, func(l *Limits) {
		l.KellyFraction = 1.0
	})
	ledger.SetClock(fixedClock(t))

	tickers := []string{"A-1", "B-2", "C-3", "D-4", "E-5", "F-6", "G-7", "H-8"}
	for _, ticker := range tickers {
		signal := testSignal(func(s *domain.TradeSignal) { s.Ticker = ticker })
		contracts, reason := ledger.Size(signal)
		if contracts == 0 {
			if reason == SizeOK {
				t.Fatalf("Size() returned 0 contracts with reason %v", reason)
			}
			continue
		}

		cost := float64(signal.PriceCents) / 100.0 * float64(contracts)
		capital := ledger.Capital()
		if ledger.TotalExposure()+cost > capital*ledger.Limits().MaxTotalExposurePct+1e-9 {
			t.Fatalf("Size() approved %v contracts breaching total exposure cap", contracts)
		}
		if cost > capital*ledger.Limits().MaxSinglePositionPct+1e-9 {
			t.Fatalf("Size() approved notional %v breaching single position cap", cost)
		}

		err := ledger.ApplyFill(domain.Fill{
			Ticker:     ticker,
			Side:       signal.Side,
			Action:     signal.Action,
			Contracts:  contracts,
			PriceCents: float64(signal.PriceCents),
			Timestamp:  time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC),
		}, "")
		if err != nil {
			t.Fatalf("ApplyFill() error = %v", err)
		}
	}
}

func TestLedger_Size_WhileHalted(t *testing.T) {
	ledger := testLedger(t, 1000, nil)
	evaluator := NewEvaluator(ledger, nil)
	evaluator.ManualHalt()

	contracts, reason := ledger.Size(testSignal(nil))
	if contracts != 0 {
		t.Errorf("Size() contracts = %v, want 0 in halted state", contracts)
	}
	if reason != domain.ReasonTradingHalted {
		t.Errorf("Size() reason = %v, want %v", reason, domain.ReasonTradingHalted)
	}
}

func TestLedger_Size_ThrottledHalvesSize(t *testing.T) {
	active := testLedger(t, 1000, nil)
	throttled := testLedger(t, 1000, nil)
	throttled.mu.Lock()
	throttled.throttled = true
	throttled.mu.Unlock()

	full, _ := active.Size(testSignal(nil))
	half, _ := throttled.Size(testSignal(nil))
	if half != full/2 {
		t.Errorf("Size() throttled = %v, want %v (half of %v)", half, full/2, full)
	}
}
