package strategy

import (
	"github.com/kirillm/kalshi-bot/internal/domain"
	"github.com/kirillm/kalshi-bot/pkg/utils"
)

// minFitSamples — минимум разрешившихся рынков в бакете,
// чтобы заменить априорный сдвиг эмпирическим
const minFitSamples = 30

// maxBias ограничивает выученный сдвиг вероятности
const maxBias = 0.05

// FLBConfig задает пороги сборщика favorite-longshot bias
type FLBConfig struct {
	FavoriteThreshold float64 // implied prob, от которой рынок считается фаворитом
	LongshotThreshold float64 // implied prob, до которой рынок считается аутсайдером
	FavoriteBias      float64 // априорная недооценка фаворитов
	LongshotBias      float64 // априорная переоценка аутсайдеров
	MinEdge           float64 // минимальное преимущество для сигнала
	MaxSpreadBps      float64
	MinBookSize       int
}

// DefaultFLBConfig возвращает пороги сборщика по умолчанию
func DefaultFLBConfig() FLBConfig {
	return FLBConfig{
		FavoriteThreshold: 0.90,
		LongshotThreshold: 0.10,
		FavoriteBias:      0.03,
		LongshotBias:      0.03,
		MinEdge:           0.02,
		MaxSpreadBps:      200.0,
		MinBookSize:       10,
	}
}

// FLBHarvester собирает favorite-longshot bias: рынок систематически
// недооценивает фаворитов и переоценивает аутсайдеров, поэтому
// стратегия покупает YES у фаворитов и NO у аутсайдеров.
// Fit калибрует сдвиги на обучающем окне, Evaluate не хранит
// состояния между снапшотами.
type FLBHarvester struct {
	cfg    FLBConfig
	logger *utils.Logger

	favoriteBias float64
	longshotBias float64
}

// NewFLBHarvester создает сборщик с априорными сдвигами из конфигурации
func NewFLBHarvester(cfg FLBConfig, logger *utils.Logger) *FLBHarvester {
	if logger == nil {
		logger = utils.Default()
	}
	return &FLBHarvester{
		cfg:          cfg,
		logger:       logger.WithPrefix("flb"),
		favoriteBias: cfg.FavoriteBias,
		longshotBias: cfg.LongshotBias,
	}
}

// Name возвращает тег стратегии для трейд-рекордов
func (h *FLBHarvester) Name() string {
	return domain.StrategyFLB
}

// Fit калибрует сдвиги вероятности по разрешившимся рынкам окна.
// Для каждого тикера берется последний снапшот перед исходом.
// Бакеты с недостатком наблюдений остаются на априорных сдвигах.
func (h *FLBHarvester) Fit(train []domain.MarketEvent) error {
	lastImplied := make(map[string]float64)

	var favImpliedSum, favWins float64
	var favN int
	var longImpliedSum, longWins float64
	var longN int

	for _, ev := range train {
		if ev.Snapshot.Validate() == nil {
			lastImplied[ev.Snapshot.Ticker] = ev.Snapshot.ImpliedProb()
		}
		if ev.Resolution == nil {
			continue
		}
		implied, ok := lastImplied[ev.Resolution.Ticker]
		if !ok {
			continue
		}
		delete(lastImplied, ev.Resolution.Ticker)

		switch {
		case implied >= h.cfg.FavoriteThreshold:
			favN++
			favImpliedSum += implied
			if ev.Resolution.Outcome == domain.OutcomeYes {
				favWins++
			}
		case implied <= h.cfg.LongshotThreshold:
			longN++
			longImpliedSum += 1 - implied
			if ev.Resolution.Outcome == domain.OutcomeNo {
				longWins++
			}
		}
	}

	h.favoriteBias = h.cfg.FavoriteBias
	h.longshotBias = h.cfg.LongshotBias
	if favN >= minFitSamples {
		h.favoriteBias = clampBias(favWins/float64(favN) - favImpliedSum/float64(favN))
	}
	if longN >= minFitSamples {
		h.longshotBias = clampBias(longWins/float64(longN) - longImpliedSum/float64(longN))
	}

	h.logger.Info("fitted on %d favorites (bias %+.3f) and %d longshots (bias %+.3f)",
		favN, h.favoriteBias, longN, h.longshotBias)
	return nil
}

// Evaluate возвращает сигналы по снапшоту. Фаворит покупается
// со стороны YES, аутсайдер со стороны NO; середина диапазона
// стратегию не интересует.
func (h *FLBHarvester) Evaluate(snapshot domain.MarketSnapshot) []domain.TradeSignal {
	if snapshot.Validate() != nil {
		return nil
	}
	if snapshot.YesSpreadBps() > h.cfg.MaxSpreadBps {
		return nil
	}

	implied := snapshot.ImpliedProb()
	var signals []domain.TradeSignal

	if implied >= h.cfg.FavoriteThreshold && snapshot.YesAskSize >= h.cfg.MinBookSize {
		winProb := clampProb(implied + h.favoriteBias)
		edge := winProb - float64(snapshot.YesAsk)/100.0
		if edge >= h.cfg.MinEdge {
			signals = append(signals, domain.TradeSignal{
				Ticker:     snapshot.Ticker,
				Side:       domain.SideYes,
				Action:     domain.ActionBuy,
				Edge:       edge,
				WinProb:    winProb,
				PriceCents: snapshot.YesAsk,
				Strategy:   domain.StrategyFLB,
				CreatedAt:  snapshot.Timestamp,
			})
		}
	}

	if implied <= h.cfg.LongshotThreshold && snapshot.NoAskSize >= h.cfg.MinBookSize {
		winProb := clampProb(1 - implied + h.longshotBias)
		edge := winProb - float64(snapshot.NoAsk)/100.0
		if edge >= h.cfg.MinEdge {
			signals = append(signals, domain.TradeSignal{
				Ticker:     snapshot.Ticker,
				Side:       domain.SideNo,
				Action:     domain.ActionBuy,
				Edge:       edge,
				WinProb:    winProb,
				PriceCents: snapshot.NoAsk,
				Strategy:   domain.StrategyFLB,
				CreatedAt:  snapshot.Timestamp,
			})
		}
	}

	return signals
}

func clampBias(bias float64) float64 {
	if bias > maxBias {
		return maxBias
	}
	if bias < -maxBias {
		return -maxBias
	}
	return bias
}

func clampProb(p float64) float64 {
	if p > 0.98 {
		return 0.98
	}
	if p < 0.02 {
		return 0.02
	}
	return p
}
