package domain

// TradeRecordRepository определяет интерфейс для работы с закрытыми сделками
type TradeRecordRepository interface {
	Save(record *TradeRecord) error
	GetRecent(limit int) ([]TradeRecord, error)
	GetByStrategy(strategy string, limit int) ([]TradeRecord, error)
}

// RiskEventRepository определяет интерфейс для аудита переходов kill switch
type RiskEventRepository interface {
	Save(event *RiskEvent) error
	GetRecent(limit int) ([]RiskEvent, error)
}

// BacktestRunRepository определяет интерфейс для результатов бэктестов
type BacktestRunRepository interface {
	Save(run *BacktestRun) error
	GetRecent(limit int) ([]BacktestRun, error)
}
