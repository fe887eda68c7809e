package sim

import (
	"github.com/kirillm/kalshi-bot/internal/domain"
)

// SlippageModel моделирует реалистичную цену исполнения:
// чем крупнее заявка относительно видимой глубины книги,
// тем хуже цена. Чистая функция, состояния нет.
type SlippageModel struct {
	BaseSlippageBps  float64
	SizeImpactFactor float64
}

// DefaultSlippageModel возвращает модель с базой 5 bps и импактом 0.1
func DefaultSlippageModel() SlippageModel {
	return SlippageModel{BaseSlippageBps: 5.0, SizeImpactFactor: 0.1}
}

// Quote возвращает цену и размер нужной стороны книги для заявки
func Quote(snapshot domain.MarketSnapshot, side, action string) (priceCents float64, size int) {
	buy := action == domain.ActionBuy
	if side == domain.SideYes {
		if buy {
			return float64(snapshot.YesAsk), snapshot.YesAskSize
		}
		return float64(snapshot.YesBid), snapshot.YesBidSize
	}
	if buy {
		return float64(snapshot.NoAsk), snapshot.NoAskSize
	}
	return float64(snapshot.NoBid), snapshot.NoBidSize
}

// FillPrice возвращает цену исполнения с учетом проскальзывания
// и само проскальзывание в bps. Покупатель получает цену хуже вверх,
// продавец — вниз; итог зажат в валидный диапазон [1,99] центов.
func (m SlippageModel) FillPrice(quotePriceCents float64, quoteSize, contracts int, action string) (float64, float64) {
	sizeRatio := 0.5
	if quoteSize > 0 {
		base := quoteSize
		if base < 100 {
			base = 100
		}
		sizeRatio = float64(contracts) / float64(base)
	}
	slippageBps := m.BaseSlippageBps + sizeRatio*m.SizeImpactFactor*10000

	var price float64
	if action == domain.ActionBuy {
		price = quotePriceCents * (1 + slippageBps/10000)
	} else {
		price = quotePriceCents * (1 - slippageBps/10000)
	}

	if price < 1 {
		price = 1
	}
	if price > 99 {
		price = 99
	}
	return price, slippageBps
}
