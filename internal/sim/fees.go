package sim

// FeeSchedule описывает комиссионную модель биржи предсказаний.
// Ключевое правило: комиссия берется только с прибыли выигравших
// контрактов, проигравшие не платят ничего.
type FeeSchedule struct {
	ProfitFeeRate float64 // доля прибыли
	MinFee        float64 // минимальная комиссия, 0 = нет
	MaxFee        float64 // максимальная комиссия, 0 = нет
}

// DefaultFeeSchedule возвращает стандартную ставку 7% от прибыли
func DefaultFeeSchedule() FeeSchedule {
	return FeeSchedule{ProfitFeeRate: 0.07}
}

// Fee возвращает комиссию для валовой прибыли в долларах.
// Для нулевой или отрицательной прибыли комиссия всегда нулевая.
func (f FeeSchedule) Fee(grossProfit float64) float64 {
	if grossProfit <= 0 {
		return 0
	}
	fee := grossProfit * f.ProfitFeeRate
	if f.MinFee > 0 && fee < f.MinFee {
		fee = f.MinFee
	}
	if f.MaxFee > 0 && fee > f.MaxFee {
		fee = f.MaxFee
	}
	return fee
}
