package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/kirillm/kalshi-bot/internal/domain"
	"github.com/kirillm/kalshi-bot/internal/storage/repository"
)

// PostgresStorage является фасадом для работы с PostgreSQL через репозитории
type PostgresStorage struct {
	db       *sql.DB
	trades   *repository.TradeRecordRepository
	events   *repository.RiskEventRepository
	backtest *repository.BacktestRunRepository
}

func NewPostgresStorage(host string, port int, user, password, dbname, sslmode string, maxOpenConns, maxIdleConns int, connMaxLifetime time.Duration) (*PostgresStorage, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Настройка connection pool из конфигурации
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	storage := &PostgresStorage{
		db:       db,
		trades:   repository.NewTradeRecordRepository(db),
		events:   repository.NewRiskEventRepository(db),
		backtest: repository.NewBacktestRunRepository(db),
	}

	// Запускаем миграции
	if err := storage.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return storage, nil
}

func (s *PostgresStorage) migrate() error {
	migrations := []string{
		// Закрытые сделки: схема колонок совпадает с CSV-логом монитора
		`CREATE TABLE IF NOT EXISTS trade_records (
			id SERIAL PRIMARY KEY,
			timestamp TIMESTAMP NOT NULL,
			ticker VARCHAR(60) NOT NULL,
			side VARCHAR(5) NOT NULL,
			action VARCHAR(10) NOT NULL,
			contracts INTEGER NOT NULL,
			entry_price DECIMAL(10, 4) NOT NULL,
			exit_price DECIMAL(10, 4) NOT NULL,
			gross_pnl DECIMAL(20, 8) NOT NULL,
			net_pnl DECIMAL(20, 8) NOT NULL,
			fee DECIMAL(20, 8) NOT NULL DEFAULT 0,
			slippage_bps DECIMAL(10, 2) NOT NULL DEFAULT 0,
			holding_period_hours DECIMAL(12, 4) NOT NULL DEFAULT 0,
			win BOOLEAN NOT NULL,
			market_family VARCHAR(40) NOT NULL DEFAULT '',
			strategy VARCHAR(30) NOT NULL DEFAULT ''
		)`,
		// Аудит переходов kill switch
		`CREATE TABLE IF NOT EXISTS risk_events (
			id SERIAL PRIMARY KEY,
			timestamp TIMESTAMP NOT NULL,
			from_state VARCHAR(10) NOT NULL,
			to_state VARCHAR(10) NOT NULL,
			reason VARCHAR(40) NOT NULL,
			metric_value DECIMAL(20, 8) NOT NULL DEFAULT 0,
			details TEXT NOT NULL DEFAULT ''
		)`,
		// Итоги бэктестов
		`CREATE TABLE IF NOT EXISTS backtest_runs (
			id SERIAL PRIMARY KEY,
			started_at TIMESTAMP NOT NULL,
			strategy VARCHAR(30) NOT NULL,
			split_date TIMESTAMP NOT NULL,
			folds INTEGER NOT NULL,
			total_trades INTEGER NOT NULL,
			total_return_pct DECIMAL(12, 4) NOT NULL,
			win_rate DECIMAL(8, 6) NOT NULL,
			sharpe_ratio DECIMAL(12, 4) NOT NULL,
			max_drawdown_pct DECIMAL(12, 4) NOT NULL,
			metrics_json TEXT NOT NULL DEFAULT '[]'
		)`,
		// Индексы
		`CREATE INDEX IF NOT EXISTS idx_trade_records_timestamp ON trade_records(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_trade_records_strategy ON trade_records(strategy)`,
		`CREATE INDEX IF NOT EXISTS idx_trade_records_family ON trade_records(market_family)`,
		`CREATE INDEX IF NOT EXISTS idx_risk_events_timestamp ON risk_events(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_backtest_runs_started_at ON backtest_runs(started_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// ==================== TRADE RECORDS ====================

func (s *PostgresStorage) SaveTradeRecord(record *domain.TradeRecord) error {
	return s.trades.Save(record)
}

func (s *PostgresStorage) GetRecentTradeRecords(limit int) ([]domain.TradeRecord, error) {
	return s.trades.GetRecent(limit)
}

func (s *PostgresStorage) GetTradeRecordsByStrategy(strategy string, limit int) ([]domain.TradeRecord, error) {
	return s.trades.GetByStrategy(strategy, limit)
}

// ==================== RISK EVENTS ====================

func (s *PostgresStorage) SaveRiskEvent(event *domain.RiskEvent) error {
	return s.events.Save(event)
}

func (s *PostgresStorage) GetRecentRiskEvents(limit int) ([]domain.RiskEvent, error) {
	return s.events.GetRecent(limit)
}

// ==================== BACKTEST RUNS ====================

func (s *PostgresStorage) SaveBacktestRun(run *domain.BacktestRun) error {
	return s.backtest.Save(run)
}

func (s *PostgresStorage) GetRecentBacktestRuns(limit int) ([]domain.BacktestRun, error) {
	return s.backtest.GetRecent(limit)
}

// ==================== ACCESSORS ====================

// TradeRecords возвращает репозиторий сделок
func (s *PostgresStorage) TradeRecords() domain.TradeRecordRepository {
	return s.trades
}

// RiskEvents возвращает репозиторий риск-событий
func (s *PostgresStorage) RiskEvents() domain.RiskEventRepository {
	return s.events
}

// BacktestRuns возвращает репозиторий бэктестов
func (s *PostgresStorage) BacktestRuns() domain.BacktestRunRepository {
	return s.backtest
}

// Close закрывает соединение с базой данных
func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

// DB возвращает указатель на *sql.DB
func (s *PostgresStorage) DB() *sql.DB {
	return s.db
}
