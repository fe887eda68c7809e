package backtest

import (
	"encoding/json"
	"math"
	"time"

	"github.com/kirillm/kalshi-bot/internal/domain"
	"github.com/kirillm/kalshi-bot/internal/sim"
)

// tradingDaysPerYear используется для аннуализации коэффициента Шарпа
const tradingDaysPerYear = 252

// FoldMetrics — метрики одного фолда walk-forward прогона.
// Фолд без сделок валиден: метрики нулевые, фолд остается в отчете,
// но исключается из усредненных коэффициентов.
type FoldMetrics struct {
	Fold            int       `json:"fold"`
	TestStart       time.Time `json:"test_start"`
	TestEnd         time.Time `json:"test_end"`
	Trades          int       `json:"trades"`
	Wins            int       `json:"wins"`
	WinRate         float64   `json:"win_rate"`
	TotalReturnPct  float64   `json:"total_return_pct"`
	AvgRealizedEdge float64   `json:"avg_realized_edge"`
	AvgSlippageBps  float64   `json:"avg_slippage_bps"`
	TotalFees       float64   `json:"total_fees"`
	SharpeRatio     float64   `json:"sharpe_ratio"`
	MaxDrawdownPct  float64   `json:"max_drawdown_pct"`
	FinalCapital    float64   `json:"final_capital"`
}

// Report — сводный результат бэктеста по всем фолдам
type Report struct {
	Strategy         string
	StartedAt        time.Time
	SplitDate        time.Time
	Folds            []FoldMetrics
	TotalTrades      int
	WinRate          float64
	TotalReturnPct   float64 // compounded across folds
	AvgSharpe        float64
	WorstDrawdownPct float64
	TotalFees        float64
}

// computeFoldMetrics считает метрики фолда по закрытым сделкам и кривой капитала
func computeFoldMetrics(records []domain.TradeRecord, equity []sim.EquityPoint, initialCapital float64) FoldMetrics {
	m := FoldMetrics{FinalCapital: initialCapital}
	if len(records) == 0 {
		return m
	}

	m.Trades = len(records)
	var edgeSum, slippageSum float64
	for _, r := range records {
		if r.Win {
			m.Wins++
		}
		edgeSum += r.RealizedEdge()
		slippageSum += r.SlippageBps
		m.TotalFees += r.Fee
	}
	m.WinRate = float64(m.Wins) / float64(m.Trades)
	m.AvgRealizedEdge = edgeSum / float64(m.Trades)
	m.AvgSlippageBps = slippageSum / float64(m.Trades)

	m.FinalCapital = equity[len(equity)-1].Equity
	m.TotalReturnPct = (m.FinalCapital - initialCapital) / initialCapital * 100

	m.SharpeRatio = sharpe(equitySeries(equity, initialCapital))
	m.MaxDrawdownPct = maxDrawdown(equitySeries(equity, initialCapital))
	return m
}

// equitySeries строит серию капитала начиная со стартового значения
func equitySeries(equity []sim.EquityPoint, initialCapital float64) []float64 {
	series := make([]float64, 0, len(equity)+1)
	series = append(series, initialCapital)
	for _, p := range equity {
		series = append(series, p.Equity)
	}
	return series
}

// sharpe возвращает аннуализированный коэффициент Шарпа по серии капитала.
// Нулевая дисперсия дает ноль, а не деление на ноль.
func sharpe(series []float64) float64 {
	if len(series) < 3 {
		return 0
	}
	returns := make([]float64, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		if series[i-1] <= 0 {
			continue
		}
		returns = append(returns, (series[i]-series[i-1])/series[i-1])
	}
	if len(returns) < 2 {
		return 0
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)
	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(tradingDaysPerYear)
}

// maxDrawdown возвращает максимальную просадку серии капитала в процентах
func maxDrawdown(series []float64) float64 {
	var peak, worst float64
	for _, v := range series {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd := (peak - v) / peak * 100
			if dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

// buildReport агрегирует фолды в сводный отчет.
// Доходность компаундируется, коэффициенты усредняются только
// по фолдам с хотя бы одной сделкой.
func buildReport(strategyName string, splitDate time.Time, folds []FoldMetrics) *Report {
	report := &Report{
		Strategy:  strategyName,
		StartedAt: time.Now(),
		SplitDate: splitDate,
		Folds:     folds,
	}

	compounded := 1.0
	var sharpeSum float64
	var tradedFolds int
	for _, f := range folds {
		report.TotalTrades += f.Trades
		report.TotalFees += f.TotalFees
		compounded *= 1 + f.TotalReturnPct/100
		if f.MaxDrawdownPct > report.WorstDrawdownPct {
			report.WorstDrawdownPct = f.MaxDrawdownPct
		}
		if f.Trades > 0 {
			tradedFolds++
			sharpeSum += f.SharpeRatio
			report.WinRate += float64(f.Wins)
		}
	}
	report.TotalReturnPct = (compounded - 1) * 100
	if report.TotalTrades > 0 {
		report.WinRate /= float64(report.TotalTrades)
	}
	if tradedFolds > 0 {
		report.AvgSharpe = sharpeSum / float64(tradedFolds)
	}
	return report
}

// ToRun конвертирует отчет в запись для таблицы backtest_runs
func (r *Report) ToRun() domain.BacktestRun {
	metricsJSON, err := json.Marshal(r.Folds)
	if err != nil {
		metricsJSON = []byte("[]")
	}
	return domain.BacktestRun{
		StartedAt:      r.StartedAt,
		Strategy:       r.Strategy,
		SplitDate:      r.SplitDate,
		Folds:          len(r.Folds),
		TotalTrades:    r.TotalTrades,
		TotalReturnPct: r.TotalReturnPct,
		WinRate:        r.WinRate,
		SharpeRatio:    r.AvgSharpe,
		MaxDrawdownPct: r.WorstDrawdownPct,
		MetricsJSON:    string(metricsJSON),
	}
}
