package domain

// Contract sides
const (
	SideYes = "yes"
	SideNo  = "no"
)

// Order actions
const (
	ActionBuy  = "buy"
	ActionSell = "sell"
)

// Trading states
const (
	StateActive = "active"
	StatePaused = "paused"
	StateHalted = "halted"
)

// Kill switch reasons (global state transitions)
const (
	ReasonDailyLossLimit    = "daily-loss-limit"
	ReasonLossStreak        = "loss-streak"
	ReasonExcessiveSlippage = "excessive-slippage"
	ReasonErrorBurst        = "error-burst"
	ReasonNoFills           = "no-fills"
	ReasonTradeCap          = "trade-cap"
	ReasonManualHalt        = "manual-halt"
	ReasonManualPause       = "manual-pause"
)

// Per-trade rejection reasons (no state transition)
const (
	ReasonStaleBook         = "stale-book"
	ReasonCorrelationBreach = "correlation-breach"
	ReasonWideSpread        = "wide-spread"
	ReasonTradingPaused     = "trading-paused"
	ReasonTradingHalted     = "trading-halted"
)

// Sizing rejection reasons
const (
	ReasonEdgeTooSmall     = "edge-too-small"
	ReasonInvalidPrice     = "invalid-price"
	ReasonGroupCap         = "group-cap-exceeded"
	ReasonTotalExposure    = "total-exposure-exceeded"
	ReasonPositionCap      = "position-cap-exceeded"
	ReasonBelowMinContract = "below-min-contract"
)

// Order lifecycle states
const (
	OrderStateNew      = "new"
	OrderStateWorking  = "working"
	OrderStatePartial  = "partial"
	OrderStateFilled   = "filled"
	OrderStateCanceled = "canceled"
	OrderStateExpired  = "expired"
	OrderStateRejected = "rejected"
)

// Market outcomes
const (
	OutcomeYes = "yes"
	OutcomeNo  = "no"
)

// Strategy tags
const (
	StrategyFLB    = "flb_harvester"
	StrategyManual = "manual"
)

// Engine modes
const (
	ModeShadow = "shadow" // решения логируются, ордера не отправляются
	ModePaper  = "paper"  // исполнение через симулятор
)

// Risk event detail keys
const (
	EventStateChange = "state_change"
	EventManualResume = "manual_resume"
)
