package sim

import "math/rand"

// LatencyModel моделирует задержку отправки и подтверждения ордера.
// Источник случайности детерминирован сидом: одинаковый вход
// дает побитово одинаковую последовательность задержек.
type LatencyModel struct {
	SubmitMeanMs float64
	SubmitStdMs  float64
	FillMeanMs   float64
	FillStdMs    float64
	ClockSkewMs  float64

	rng *rand.Rand
}

// NewLatencyModel создает модель задержек с сидированным генератором
func NewLatencyModel(seed int64) *LatencyModel {
	return &LatencyModel{
		SubmitMeanMs: 50.0,
		SubmitStdMs:  20.0,
		FillMeanMs:   30.0,
		FillStdMs:    15.0,
		ClockSkewMs:  100.0,
		rng:          rand.New(rand.NewSource(seed)),
	}
}

// SubmitLatency возвращает задержку отправки ордера в миллисекундах
func (m *LatencyModel) SubmitLatency() float64 {
	v := m.SubmitMeanMs + m.SubmitStdMs*m.rng.NormFloat64()
	if v < 0 {
		return 0
	}
	return v
}

// FillLatency возвращает задержку подтверждения исполнения в миллисекундах
func (m *LatencyModel) FillLatency() float64 {
	v := m.FillMeanMs + m.FillStdMs*m.rng.NormFloat64()
	if v < 0 {
		return 0
	}
	return v
}
