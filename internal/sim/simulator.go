package sim

import (
	"fmt"
	"time"

	"github.com/kirillm/kalshi-bot/internal/domain"
	"github.com/kirillm/kalshi-bot/pkg/utils"
)

// Config задает параметры симуляции исполнения
type Config struct {
	InitialCapital float64
	LatencyTicks   int // задержка между подачей заявки и первым видимым снапшотом
	ExpiryTicks    int // тиков без полного исполнения до отмены остатка
	Seed           int64
	Fees           FeeSchedule
	Slippage       SlippageModel
}

// DefaultConfig возвращает конфигурацию симулятора по умолчанию
func DefaultConfig() Config {
	return Config{
		InitialCapital: 10000.0,
		LatencyTicks:   1,
		ExpiryTicks:    5,
		Seed:           42,
		Fees:           DefaultFeeSchedule(),
		Slippage:       DefaultSlippageModel(),
	}
}

// Validate проверяет конфигурацию симулятора при создании
func (c Config) Validate() error {
	if c.InitialCapital <= 0 {
		return fmt.Errorf("%w: initial capital must be positive, got %v", domain.ErrInvalidConfig, c.InitialCapital)
	}
	if c.LatencyTicks < 0 {
		return fmt.Errorf("%w: latency ticks must not be negative, got %d", domain.ErrInvalidConfig, c.LatencyTicks)
	}
	if c.ExpiryTicks <= 0 {
		return fmt.Errorf("%w: expiry ticks must be positive, got %d", domain.ErrInvalidConfig, c.ExpiryTicks)
	}
	if c.Fees.ProfitFeeRate < 0 || c.Fees.ProfitFeeRate >= 1 {
		return fmt.Errorf("%w: profit fee rate must be in [0,1), got %v", domain.ErrInvalidConfig, c.Fees.ProfitFeeRate)
	}
	if c.Slippage.BaseSlippageBps < 0 || c.Slippage.SizeImpactFactor < 0 {
		return fmt.Errorf("%w: slippage parameters must not be negative", domain.ErrInvalidConfig)
	}
	return nil
}

// OrderRequest — заявка, подаваемая вместе с тиком
type OrderRequest struct {
	Signal    domain.TradeSignal
	Contracts int
}

// EquityPoint — точка кривой капитала
type EquityPoint struct {
	Time   time.Time
	Equity float64
}

type position struct {
	ticker          string
	side            string
	group           string
	strategy        string
	contracts       int
	entryPriceCents float64
	entryTime       time.Time
	slippageBps     float64 // volume-weighted
}

// Simulator — событийный симулятор исполнения. Однопоточный и
// детерминированный: одинаковый упорядоченный вход при одном сиде
// дает побитово одинаковую последовательность трейд-рекордов.
type Simulator struct {
	cfg     Config
	logger  *utils.Logger
	latency *LatencyModel

	capital  float64
	tick     int
	orderSeq int

	queue     []*Order
	completed []*Order
	positions map[string]*position

	records   []domain.TradeRecord
	equity    []EquityPoint
	totalFees float64
}

// NewSimulator создает симулятор с валидированной конфигурацией
func NewSimulator(cfg Config, logger *utils.Logger) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = utils.Default()
	}
	return &Simulator{
		cfg:       cfg,
		logger:    logger.WithPrefix("sim"),
		latency:   NewLatencyModel(cfg.Seed),
		capital:   cfg.InitialCapital,
		positions: make(map[string]*position),
	}, nil
}

// Step обрабатывает один тик: подает новые заявки, исполняет очередь
// против снапшота и возвращает исполнения этого тика.
// Поврежденный снапшот логируется и пропускается, тик не фатален.
func (s *Simulator) Step(snapshot domain.MarketSnapshot, requests []OrderRequest) []domain.Fill {
	s.tick++

	if err := snapshot.Validate(); err != nil {
		s.logger.Warn("skipping tick %d: %v", s.tick, err)
		s.expireStale()
		s.compactQueue()
		return nil
	}

	for _, req := range requests {
		s.submit(req)
	}

	var fills []domain.Fill
	for _, order := range s.queue {
		if order.Done() || order.Ticker != snapshot.Ticker || s.tick < order.VisibleTick {
			continue
		}
		if fill, ok := s.fillAgainst(order, snapshot); ok {
			fills = append(fills, fill)
		}
	}

	s.expireStale()
	s.compactQueue()
	return fills
}

// submit ставит заявку в очередь. Нехватка капитала — отказ с причиной,
// не ошибка вызова.
func (s *Simulator) submit(req OrderRequest) *Order {
	s.orderSeq++
	order := &Order{
		ID:              fmt.Sprintf("%s-%d", req.Signal.Ticker, s.orderSeq),
		Ticker:          req.Signal.Ticker,
		Side:            req.Signal.Side,
		Action:          req.Signal.Action,
		Contracts:       req.Contracts,
		Group:           req.Signal.Group,
		Strategy:        req.Signal.Strategy,
		SubmittedTick:   s.tick,
		VisibleTick:     s.tick + s.cfg.LatencyTicks,
		State:           domain.OrderStateNew,
		SubmitLatencyMs: s.latency.SubmitLatency(),
	}

	if req.Contracts <= 0 {
		order.State = domain.OrderStateRejected
		order.RejectReason = "non-positive contract count"
		s.completed = append(s.completed, order)
		return order
	}

	if order.Action == domain.ActionBuy {
		estimate := float64(req.Signal.PriceCents) / 100.0 * float64(req.Contracts)
		if estimate > s.capital {
			order.State = domain.OrderStateRejected
			order.RejectReason = "insufficient capital"
			s.logger.Warn("order rejected: need $%.2f, have $%.2f (%s)", estimate, s.capital, order.Ticker)
			s.completed = append(s.completed, order)
			return order
		}
	}

	order.State = domain.OrderStateWorking
	s.queue = append(s.queue, order)
	return order
}

// fillAgainst исполняет заявку против книги до доступной глубины.
// Нулевая глубина — не ошибка: заявка остается в очереди до истечения.
func (s *Simulator) fillAgainst(order *Order, snapshot domain.MarketSnapshot) (domain.Fill, bool) {
	quotePrice, quoteSize := Quote(snapshot, order.Side, order.Action)
	if quotePrice <= 0 || quoteSize <= 0 {
		return domain.Fill{}, false
	}

	qty := min(order.Remaining(), quoteSize)
	price, slippageBps := s.cfg.Slippage.FillPrice(quotePrice, quoteSize, qty, order.Action)

	if order.Action == domain.ActionBuy {
		// Доступный капитал может ограничить частичное исполнение сильнее книги
		cost := price / 100.0 * float64(qty)
		if cost > s.capital {
			qty = int(s.capital / (price / 100.0))
			if qty <= 0 {
				order.State = domain.OrderStateRejected
				order.RejectReason = "insufficient capital"
				return domain.Fill{}, false
			}
			cost = price / 100.0 * float64(qty)
		}
		s.capital -= cost
	} else {
		s.capital += price / 100.0 * float64(qty)
	}

	if order.FilledContracts == 0 {
		order.FillLatencyMs = s.latency.FillLatency()
	}
	order.applyFill(qty, price)

	fill := domain.Fill{
		OrderID:     order.ID,
		Ticker:      order.Ticker,
		Side:        order.Side,
		Action:      order.Action,
		Contracts:   qty,
		PriceCents:  price,
		Tick:        s.tick,
		SlippageBps: slippageBps,
		LatencyMs:   order.SubmitLatencyMs + order.FillLatencyMs,
		Timestamp:   snapshot.Timestamp,
	}

	s.applyToPosition(order, fill)
	s.logger.Debug("fill: %s %s %d@%.1f¢ tick=%d state=%s",
		order.Ticker, order.Action, qty, price, s.tick, order.State)
	return fill, true
}

// applyToPosition обновляет позицию симулятора по исполнению
func (s *Simulator) applyToPosition(order *Order, fill domain.Fill) {
	if order.Action == domain.ActionBuy {
		pos, ok := s.positions[order.Ticker]
		if !ok {
			s.positions[order.Ticker] = &position{
				ticker:          order.Ticker,
				side:            order.Side,
				group:           order.Group,
				strategy:        order.Strategy,
				contracts:       fill.Contracts,
				entryPriceCents: fill.PriceCents,
				entryTime:       fill.Timestamp,
				slippageBps:     fill.SlippageBps,
			}
			return
		}
		total := pos.contracts + fill.Contracts
		pos.entryPriceCents = (pos.entryPriceCents*float64(pos.contracts) + fill.PriceCents*float64(fill.Contracts)) / float64(total)
		pos.slippageBps = (pos.slippageBps*float64(pos.contracts) + fill.SlippageBps*float64(fill.Contracts)) / float64(total)
		pos.contracts = total
		return
	}

	// Продажа сокращает позицию и сразу фиксирует результат проданной части
	pos, ok := s.positions[order.Ticker]
	if !ok {
		s.logger.Warn("sell fill without open position: %s", order.Ticker)
		return
	}
	qty := min(pos.contracts, fill.Contracts)
	gross := (fill.PriceCents - pos.entryPriceCents) / 100.0 * float64(qty)
	fee := s.cfg.Fees.Fee(gross)
	s.capital -= fee
	s.emitRecord(pos, qty, fill.PriceCents, gross, fee, domain.ActionSell, fill.Timestamp)

	pos.contracts -= qty
	if pos.contracts <= 0 {
		delete(s.positions, order.Ticker)
	}
}

// ResolveMarket закрывает позицию по исходу рынка и возвращает трейд-рекорд.
// Выигравшая сторона получает $1 за контракт за вычетом комиссии с прибыли;
// проигравшая теряет стоимость входа, комиссии нет.
func (s *Simulator) ResolveMarket(ticker, outcome string, at time.Time) (*domain.TradeRecord, error) {
	pos, ok := s.positions[ticker]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownTicker, ticker)
	}

	won := pos.side == outcome
	var gross, fee, exitPrice float64
	if won {
		gross = (100 - pos.entryPriceCents) / 100.0 * float64(pos.contracts)
		fee = s.cfg.Fees.Fee(gross)
		exitPrice = 100
		s.capital += float64(pos.contracts) - fee
	} else {
		gross = -pos.entryPriceCents / 100.0 * float64(pos.contracts)
		exitPrice = 0
	}

	record := s.emitRecord(pos, pos.contracts, exitPrice, gross, fee, domain.ActionBuy, at)
	delete(s.positions, ticker)
	return record, nil
}

// emitRecord создает неизменяемый трейд-рекорд и точку кривой капитала
func (s *Simulator) emitRecord(pos *position, contracts int, exitPrice, gross, fee float64, action string, at time.Time) *domain.TradeRecord {
	record := domain.TradeRecord{
		Timestamp:          at,
		Ticker:             pos.ticker,
		Side:               pos.side,
		Action:             action,
		Contracts:          contracts,
		EntryPrice:         pos.entryPriceCents,
		ExitPrice:          exitPrice,
		GrossPnL:           gross,
		NetPnL:             gross - fee,
		Fee:                fee,
		SlippageBps:        pos.slippageBps,
		HoldingPeriodHours: at.Sub(pos.entryTime).Hours(),
		Win:                gross-fee > 0,
		MarketFamily:       pos.group,
		Strategy:           pos.strategy,
	}
	s.totalFees += fee
	s.records = append(s.records, record)
	s.equity = append(s.equity, EquityPoint{Time: at, Equity: s.capital})

	s.logger.Debug("trade resolved: %s gross=$%.2f fee=$%.2f net=$%.2f", pos.ticker, gross, fee, record.NetPnL)
	return &s.records[len(s.records)-1]
}

// expireStale отменяет остатки заявок, превысивших срок ожидания
func (s *Simulator) expireStale() {
	for _, order := range s.queue {
		if order.Done() {
			continue
		}
		if order.State != domain.OrderStateNew && s.tick-order.VisibleTick >= s.cfg.ExpiryTicks {
			order.State = domain.OrderStateExpired
			s.logger.Debug("order expired: %s filled %d/%d", order.ID, order.FilledContracts, order.Contracts)
		}
	}
}

// compactQueue переносит завершенные заявки из очереди в архив
func (s *Simulator) compactQueue() {
	active := s.queue[:0]
	for _, order := range s.queue {
		if order.Done() {
			s.completed = append(s.completed, order)
		} else {
			active = append(active, order)
		}
	}
	s.queue = active
}

// Capital возвращает свободный капитал симуляции
func (s *Simulator) Capital() float64 {
	return s.capital
}

// Records возвращает накопленные трейд-рекорды в порядке закрытия
func (s *Simulator) Records() []domain.TradeRecord {
	return s.records
}

// EquityCurve возвращает кривую капитала по закрытым сделкам
func (s *Simulator) EquityCurve() []EquityPoint {
	return s.equity
}

// TotalFees возвращает сумму уплаченных комиссий
func (s *Simulator) TotalFees() float64 {
	return s.totalFees
}

// OpenPositions возвращает число открытых позиций
func (s *Simulator) OpenPositions() int {
	return len(s.positions)
}

// CompletedOrders возвращает завершенные заявки для диагностики
func (s *Simulator) CompletedOrders() []*Order {
	return s.completed
}
