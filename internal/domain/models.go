package domain

import (
	"fmt"
	"time"
)

// TradeSignal представляет кандидата на сделку от стратегии
type TradeSignal struct {
	Ticker     string
	Side       string // "yes" or "no"
	Action     string // "buy" or "sell"
	Edge       float64
	WinProb    float64
	PriceCents int
	Group      string // correlation group, may be empty
	Strategy   string
	CreatedAt  time.Time
}

// MarketSnapshot представляет состояние книги заявок на момент тика
type MarketSnapshot struct {
	Timestamp  time.Time
	Ticker     string
	YesBid     int // cents
	YesAsk     int
	NoBid      int
	NoAsk      int
	YesBidSize int
	YesAskSize int
	NoBidSize  int
	NoAskSize  int
}

// YesMid возвращает среднюю цену YES в центах
func (m MarketSnapshot) YesMid() float64 {
	return float64(m.YesBid+m.YesAsk) / 2.0
}

// ImpliedProb возвращает вероятность, заложенную в цену YES
func (m MarketSnapshot) ImpliedProb() float64 {
	return m.YesMid() / 100.0
}

// YesSpreadBps возвращает спред YES в базисных пунктах
func (m MarketSnapshot) YesSpreadBps() float64 {
	mid := m.YesMid()
	if mid <= 0 {
		return 0
	}
	return float64(m.YesAsk-m.YesBid) / mid * 10000.0
}

// Age возвращает возраст снапшота относительно now
func (m MarketSnapshot) Age(now time.Time) time.Duration {
	return now.Sub(m.Timestamp)
}

// Validate проверяет снапшот на корректность данных.
// Ошибки этого класса логируются, тик пропускается.
func (m MarketSnapshot) Validate() error {
	if m.Ticker == "" {
		return fmt.Errorf("%w: empty ticker", ErrInvalidSnapshot)
	}
	if m.Timestamp.IsZero() {
		return fmt.Errorf("%w: zero timestamp for %s", ErrInvalidSnapshot, m.Ticker)
	}
	if m.YesBid < 0 || m.YesAsk > 100 || m.NoBid < 0 || m.NoAsk > 100 {
		return fmt.Errorf("%w: price out of range for %s", ErrInvalidSnapshot, m.Ticker)
	}
	if m.YesBid > m.YesAsk || m.NoBid > m.NoAsk {
		return fmt.Errorf("%w: crossed book for %s", ErrInvalidSnapshot, m.Ticker)
	}
	return nil
}

// Position представляет открытую позицию, принадлежащую риск-леджеру
type Position struct {
	Ticker     string
	Side       string
	Group      string
	Strategy   string
	Contracts  int
	EntryPrice float64 // volume-weighted, cents
	EntryTime  time.Time
	Closed     bool
}

// CostDollars возвращает стоимость позиции в долларах
func (p Position) CostDollars() float64 {
	return p.EntryPrice / 100.0 * float64(p.Contracts)
}

// Fill представляет частичное или полное исполнение ордера
type Fill struct {
	OrderID     string
	Ticker      string
	Side        string
	Action      string
	Contracts   int
	PriceCents  float64
	Tick        int
	SlippageBps float64
	LatencyMs   float64
	Timestamp   time.Time
}

// TradeRecord представляет закрытую сделку.
// Колоночная схема — контракт для CSV-лога и таблицы trade_records,
// порядок и имена колонок менять нельзя.
type TradeRecord struct {
	ID                 int64     `db:"id"`
	Timestamp          time.Time `db:"timestamp"` // settlement time
	Ticker             string    `db:"ticker"`
	Side               string    `db:"side"`
	Action             string    `db:"action"`
	Contracts          int       `db:"contracts"`
	EntryPrice         float64   `db:"entry_price"` // cents
	ExitPrice          float64   `db:"exit_price"`  // cents
	GrossPnL           float64   `db:"gross_pnl"`
	NetPnL             float64   `db:"net_pnl"`
	Fee                float64   `db:"fee"`
	SlippageBps        float64   `db:"slippage_bps"`
	HoldingPeriodHours float64   `db:"holding_period_hours"`
	Win                bool      `db:"win"`
	MarketFamily       string    `db:"market_family"`
	Strategy           string    `db:"strategy"`
}

// RealizedEdge возвращает фактический доход на контракт в долях цены входа
func (t TradeRecord) RealizedEdge() float64 {
	cost := t.EntryPrice / 100.0 * float64(t.Contracts)
	if cost <= 0 {
		return 0
	}
	return t.NetPnL / cost
}

// RiskEvent представляет переход состояния kill switch для аудита
type RiskEvent struct {
	ID          int64     `db:"id"`
	Timestamp   time.Time `db:"timestamp"`
	FromState   string    `db:"from_state"`
	ToState     string    `db:"to_state"`
	Reason      string    `db:"reason"`
	MetricValue float64   `db:"metric_value"`
	Details     string    `db:"details"`
}

// BacktestRun представляет итог одного прогона бэктеста
type BacktestRun struct {
	ID             int64     `db:"id"`
	StartedAt      time.Time `db:"started_at"`
	Strategy       string    `db:"strategy"`
	SplitDate      time.Time `db:"split_date"`
	Folds          int       `db:"folds"`
	TotalTrades    int       `db:"total_trades"`
	TotalReturnPct float64   `db:"total_return_pct"`
	WinRate        float64   `db:"win_rate"`
	SharpeRatio    float64   `db:"sharpe_ratio"`
	MaxDrawdownPct float64   `db:"max_drawdown_pct"`
	MetricsJSON    string    `db:"metrics_json"`
}

// Resolution представляет исход рынка
type Resolution struct {
	Ticker  string
	Outcome string // "yes" or "no"
	Time    time.Time
}

// MarketEvent представляет один элемент исторического потока:
// снапшот книги и, если рынок разрешился на этом событии, его исход
type MarketEvent struct {
	Snapshot   MarketSnapshot
	Resolution *Resolution
}

// Candle представляет OHLC-бар исторической серии (цены в центах)
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}
