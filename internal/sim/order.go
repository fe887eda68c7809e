package sim

import (
	"github.com/kirillm/kalshi-bot/internal/domain"
)

// Order представляет заявку в очереди симулятора.
// Жизненный цикл: new -> working -> partial -> filled | expired | canceled | rejected.
type Order struct {
	ID        string
	Ticker    string
	Side      string
	Action    string
	Contracts int
	Group     string
	Strategy  string

	// SubmittedTick — тик подачи; VisibleTick — первый тик, на котором
	// заявка видит книгу (моделирует задержку, исключает lookahead)
	SubmittedTick int
	VisibleTick   int

	State             string
	FilledContracts   int
	AvgFillPriceCents float64
	RejectReason      string

	SubmitLatencyMs float64
	FillLatencyMs   float64
}

// Remaining возвращает неисполненный остаток заявки
func (o *Order) Remaining() int {
	return o.Contracts - o.FilledContracts
}

// Done сообщает, завершен ли жизненный цикл заявки
func (o *Order) Done() bool {
	switch o.State {
	case domain.OrderStateFilled, domain.OrderStateExpired, domain.OrderStateCanceled, domain.OrderStateRejected:
		return true
	}
	return false
}

// applyFill учитывает частичное исполнение и пересчитывает среднюю цену
func (o *Order) applyFill(contracts int, priceCents float64) {
	total := o.FilledContracts + contracts
	o.AvgFillPriceCents = (o.AvgFillPriceCents*float64(o.FilledContracts) + priceCents*float64(contracts)) / float64(total)
	o.FilledContracts = total

	if o.Remaining() == 0 {
		o.State = domain.OrderStateFilled
	} else {
		o.State = domain.OrderStatePartial
	}
}
