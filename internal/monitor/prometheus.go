package monitor

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillm/kalshi-bot/internal/domain"
)

var (
	metricScansTotal      = prometheus.NewCounter(prometheus.CounterOpts{Name: "bot_scans_total", Help: "Market scans performed"})
	metricSignalsTotal    = prometheus.NewCounter(prometheus.CounterOpts{Name: "bot_signals_total", Help: "Trade signals produced by strategies"})
	metricOrdersSubmitted = prometheus.NewCounter(prometheus.CounterOpts{Name: "bot_orders_submitted_total", Help: "Orders handed to the execution layer"})
	metricOrdersRejected  = prometheus.NewCounter(prometheus.CounterOpts{Name: "bot_orders_rejected_total", Help: "Signals rejected by the risk layer"})
	metricFillsTotal      = prometheus.NewCounter(prometheus.CounterOpts{Name: "bot_fills_total", Help: "Order fills, partial fills included"})
	metricTradesSettled   = prometheus.NewCounter(prometheus.CounterOpts{Name: "bot_trades_settled_total", Help: "Trades closed by market resolution"})
	metricFeesPaid        = prometheus.NewCounter(prometheus.CounterOpts{Name: "bot_fees_paid_dollars_total", Help: "Exchange fees paid on winning trades"})
	metricCapital         = prometheus.NewGauge(prometheus.GaugeOpts{Name: "bot_capital_dollars", Help: "Free capital"})
	metricExposure        = prometheus.NewGauge(prometheus.GaugeOpts{Name: "bot_total_exposure_dollars", Help: "Cost of all open positions"})
	metricDailyPnl        = prometheus.NewGauge(prometheus.GaugeOpts{Name: "bot_daily_pnl_dollars", Help: "Realized profit and loss since daily reset"})
	metricTradingState    = prometheus.NewGauge(prometheus.GaugeOpts{Name: "bot_trading_state", Help: "0=active, 1=paused, 2=halted"})
	metricLastSlippage    = prometheus.NewGauge(prometheus.GaugeOpts{Name: "bot_last_slippage_bps", Help: "Slippage of the most recent fill"})
)

func init() {
	prometheus.MustRegister(
		metricScansTotal, metricSignalsTotal, metricOrdersSubmitted,
		metricOrdersRejected, metricFillsTotal, metricTradesSettled,
		metricFeesPaid, metricCapital, metricExposure, metricDailyPnl,
		metricTradingState, metricLastSlippage,
	)
	metricTradingState.Set(0)
}

// ObserveScan учитывает один проход сканера с числом найденных сигналов
func ObserveScan(signals int) {
	metricScansTotal.Inc()
	metricSignalsTotal.Add(float64(signals))
}

// ObserveOrder учитывает исход прохождения сигнала через риск-контур
func ObserveOrder(accepted bool) {
	if accepted {
		metricOrdersSubmitted.Inc()
	} else {
		metricOrdersRejected.Inc()
	}
}

// ObserveFill учитывает исполнение
func ObserveFill(fill domain.Fill) {
	metricFillsTotal.Inc()
	metricLastSlippage.Set(fill.SlippageBps)
}

// ObserveTrade учитывает закрытую сделку
func ObserveTrade(record domain.TradeRecord) {
	metricTradesSettled.Inc()
	metricFeesPaid.Add(record.Fee)
}

// SetPortfolio обновляет гейджи капитала
func SetPortfolio(capital, exposure, dailyPnL float64) {
	metricCapital.Set(capital)
	metricExposure.Set(exposure)
	metricDailyPnl.Set(dailyPnL)
}

// SetTradingState обновляет гейдж состояния kill switch
func SetTradingState(state string) {
	switch state {
	case domain.StatePaused:
		metricTradingState.Set(1)
	case domain.StateHalted:
		metricTradingState.Set(2)
	default:
		metricTradingState.Set(0)
	}
}
