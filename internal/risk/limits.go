package risk

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kirillm/kalshi-bot/internal/domain"
)

// Limits содержит конфигурацию риск-лимитов.
// Неизменяема после загрузки, валидируется при создании.
type Limits struct {
	ProfileName string `yaml:"-"`

	// Лимиты капитала (доли от текущего капитала)
	MaxTotalExposurePct   float64 `yaml:"max_total_exposure_pct"`
	MaxSinglePositionPct  float64 `yaml:"max_single_position_pct"`
	MaxCorrelatedGroupPct float64 `yaml:"max_correlated_group_pct"`

	// Параметры Келли
	KellyFraction float64 `yaml:"kelly_fraction"`
	MinKellyBet   float64 `yaml:"min_kelly_bet"`
	MaxKellyBet   float64 `yaml:"max_kelly_bet"`

	// Дневные лимиты
	MaxDailyLossDollars float64 `yaml:"max_daily_loss_dollars"`
	MaxDailyLossPct     float64 `yaml:"max_daily_loss_pct"`
	MaxDailyTrades      int     `yaml:"max_daily_trades"`

	// Серии убытков
	MaxConsecutiveLosses int `yaml:"max_consecutive_losses"`
	LossStreakPauseHours int `yaml:"loss_streak_pause_hours"`

	// Качество исполнения
	MaxSlippageBps float64 `yaml:"max_slippage_bps"`
	MaxSpreadBps   float64 `yaml:"max_spread_bps"`
	MinEdgeToTrade float64 `yaml:"min_edge_to_trade"`

	// Здоровье системы
	MaxErrorRatePerHour   int `yaml:"max_error_rate_per_hour"`
	MaxStaleBookSeconds   int `yaml:"max_stale_book_seconds"`
	MinFillsPerScan       int `yaml:"min_fills_per_scan"`
	MinFillsLookbackScans int `yaml:"min_fills_lookback_scans"`

	// Окно реализованного эджа для троттлинга
	RealizedEdgeWindow     int `yaml:"realized_edge_window"`
	RealizedEdgeMinSamples int `yaml:"realized_edge_min_samples"`
}

// DefaultLimits возвращает консервативный профиль по умолчанию
func DefaultLimits() Limits {
	return Limits{
		ProfileName:            "conservative",
		MaxTotalExposurePct:    0.20,
		MaxSinglePositionPct:   0.05,
		MaxCorrelatedGroupPct:  0.15,
		KellyFraction:          0.25,
		MinKellyBet:            0.01,
		MaxKellyBet:            0.10,
		MaxDailyLossDollars:    500.0,
		MaxDailyLossPct:        0.05,
		MaxDailyTrades:         50,
		MaxConsecutiveLosses:   5,
		LossStreakPauseHours:   4,
		MaxSlippageBps:         50.0,
		MaxSpreadBps:           200.0,
		MinEdgeToTrade:         0.03,
		MaxErrorRatePerHour:    10,
		MaxStaleBookSeconds:    30,
		MinFillsPerScan:        1,
		MinFillsLookbackScans:  20,
		RealizedEdgeWindow:     50,
		RealizedEdgeMinSamples: 20,
	}
}

// LoadLimits загружает профиль риск-лимитов из YAML файла.
// Имя профиля берется из RISK_PROFILE (по умолчанию conservative).
func LoadLimits(path string) (Limits, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Limits{}, fmt.Errorf("failed to read risk profiles: %w", err)
	}

	var config struct {
		RiskProfiles map[string]Limits `yaml:"risk_profiles"`
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Limits{}, fmt.Errorf("failed to parse risk profiles: %w", err)
	}

	profileName := os.Getenv("RISK_PROFILE")
	if profileName == "" {
		profileName = "conservative"
	}

	limits, ok := config.RiskProfiles[profileName]
	if !ok {
		return Limits{}, fmt.Errorf("%w: risk profile %q not found in %s", domain.ErrInvalidLimits, profileName, path)
	}
	limits.ProfileName = profileName

	if err := limits.Validate(); err != nil {
		return Limits{}, err
	}
	return limits, nil
}

// Validate проверяет согласованность лимитов.
// Ошибки конфигурации фатальны: молчаливая некорректная настройка рискует капиталом.
func (l Limits) Validate() error {
	if l.KellyFraction <= 0 || l.KellyFraction > 1 {
		return fmt.Errorf("%w: kelly_fraction must be in (0,1], got %v", domain.ErrInvalidLimits, l.KellyFraction)
	}
	if l.MinKellyBet < 0 || l.MaxKellyBet <= 0 || l.MinKellyBet > l.MaxKellyBet {
		return fmt.Errorf("%w: min_kelly_bet %v / max_kelly_bet %v inconsistent", domain.ErrInvalidLimits, l.MinKellyBet, l.MaxKellyBet)
	}
	if l.MaxSinglePositionPct <= 0 || l.MaxSinglePositionPct > 1 {
		return fmt.Errorf("%w: max_single_position_pct must be in (0,1], got %v", domain.ErrInvalidLimits, l.MaxSinglePositionPct)
	}
	if l.MaxCorrelatedGroupPct <= 0 || l.MaxCorrelatedGroupPct > 1 {
		return fmt.Errorf("%w: max_correlated_group_pct must be in (0,1], got %v", domain.ErrInvalidLimits, l.MaxCorrelatedGroupPct)
	}
	if l.MaxTotalExposurePct <= 0 || l.MaxTotalExposurePct > 1 {
		return fmt.Errorf("%w: max_total_exposure_pct must be in (0,1], got %v", domain.ErrInvalidLimits, l.MaxTotalExposurePct)
	}
	if l.MaxSinglePositionPct > l.MaxTotalExposurePct {
		return fmt.Errorf("%w: single position cap %v exceeds total exposure cap %v", domain.ErrInvalidLimits, l.MaxSinglePositionPct, l.MaxTotalExposurePct)
	}
	if l.MaxCorrelatedGroupPct > l.MaxTotalExposurePct {
		return fmt.Errorf("%w: group cap %v exceeds total exposure cap %v", domain.ErrInvalidLimits, l.MaxCorrelatedGroupPct, l.MaxTotalExposurePct)
	}
	if l.MaxDailyLossDollars <= 0 {
		return fmt.Errorf("%w: max_daily_loss_dollars must be positive, got %v", domain.ErrInvalidLimits, l.MaxDailyLossDollars)
	}
	if l.MaxDailyLossPct <= 0 || l.MaxDailyLossPct > 1 {
		return fmt.Errorf("%w: max_daily_loss_pct must be in (0,1], got %v", domain.ErrInvalidLimits, l.MaxDailyLossPct)
	}
	if l.MaxDailyTrades <= 0 {
		return fmt.Errorf("%w: max_daily_trades must be positive, got %d", domain.ErrInvalidLimits, l.MaxDailyTrades)
	}
	if l.MaxConsecutiveLosses <= 0 {
		return fmt.Errorf("%w: max_consecutive_losses must be positive, got %d", domain.ErrInvalidLimits, l.MaxConsecutiveLosses)
	}
	if l.LossStreakPauseHours <= 0 {
		return fmt.Errorf("%w: loss_streak_pause_hours must be positive, got %d", domain.ErrInvalidLimits, l.LossStreakPauseHours)
	}
	if l.MinEdgeToTrade < 0 {
		return fmt.Errorf("%w: min_edge_to_trade must not be negative, got %v", domain.ErrInvalidLimits, l.MinEdgeToTrade)
	}
	if l.MaxSlippageBps <= 0 || l.MaxSpreadBps <= 0 {
		return fmt.Errorf("%w: slippage/spread thresholds must be positive", domain.ErrInvalidLimits)
	}
	if l.MaxStaleBookSeconds <= 0 {
		return fmt.Errorf("%w: max_stale_book_seconds must be positive, got %d", domain.ErrInvalidLimits, l.MaxStaleBookSeconds)
	}
	if l.MinFillsLookbackScans <= 0 || l.MinFillsPerScan < 0 {
		return fmt.Errorf("%w: fill lookback configuration inconsistent", domain.ErrInvalidLimits)
	}
	if l.RealizedEdgeWindow <= 0 || l.RealizedEdgeMinSamples <= 0 || l.RealizedEdgeMinSamples > l.RealizedEdgeWindow {
		return fmt.Errorf("%w: realized edge window %d / min samples %d inconsistent", domain.ErrInvalidLimits, l.RealizedEdgeWindow, l.RealizedEdgeMinSamples)
	}
	return nil
}
