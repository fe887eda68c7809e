package repository

import (
	"database/sql"

	"github.com/kirillm/kalshi-bot/internal/domain"
)

// TradeRecordRepository реализует работу с закрытыми сделками
type TradeRecordRepository struct {
	db *sql.DB
}

// NewTradeRecordRepository создает новый репозиторий закрытых сделок
func NewTradeRecordRepository(db *sql.DB) *TradeRecordRepository {
	return &TradeRecordRepository{db: db}
}

// Save сохраняет закрытую сделку
func (r *TradeRecordRepository) Save(record *domain.TradeRecord) error {
	query := `
		INSERT INTO trade_records (timestamp, ticker, side, action, contracts,
			entry_price, exit_price, gross_pnl, net_pnl, fee,
			slippage_bps, holding_period_hours, win, market_family, strategy)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id
	`
	return r.db.QueryRow(
		query,
		record.Timestamp,
		record.Ticker,
		record.Side,
		record.Action,
		record.Contracts,
		record.EntryPrice,
		record.ExitPrice,
		record.GrossPnL,
		record.NetPnL,
		record.Fee,
		record.SlippageBps,
		record.HoldingPeriodHours,
		record.Win,
		record.MarketFamily,
		record.Strategy,
	).Scan(&record.ID)
}

// GetRecent получает последние N закрытых сделок
func (r *TradeRecordRepository) GetRecent(limit int) ([]domain.TradeRecord, error) {
	query := `
		SELECT id, timestamp, ticker, side, action, contracts,
		       entry_price, exit_price, gross_pnl, net_pnl, fee,
		       slippage_bps, holding_period_hours, win, market_family, strategy
		FROM trade_records
		ORDER BY timestamp DESC
		LIMIT $1
	`
	return r.queryRecords(query, limit)
}

// GetByStrategy получает последние N сделок стратегии
func (r *TradeRecordRepository) GetByStrategy(strategy string, limit int) ([]domain.TradeRecord, error) {
	query := `
		SELECT id, timestamp, ticker, side, action, contracts,
		       entry_price, exit_price, gross_pnl, net_pnl, fee,
		       slippage_bps, holding_period_hours, win, market_family, strategy
		FROM trade_records
		WHERE strategy = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`
	return r.queryRecords(query, strategy, limit)
}

// queryRecords выполняет запрос и возвращает список сделок
func (r *TradeRecordRepository) queryRecords(query string, args ...interface{}) ([]domain.TradeRecord, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.TradeRecord
	for rows.Next() {
		var record domain.TradeRecord
		err := rows.Scan(
			&record.ID,
			&record.Timestamp,
			&record.Ticker,
			&record.Side,
			&record.Action,
			&record.Contracts,
			&record.EntryPrice,
			&record.ExitPrice,
			&record.GrossPnL,
			&record.NetPnL,
			&record.Fee,
			&record.SlippageBps,
			&record.HoldingPeriodHours,
			&record.Win,
			&record.MarketFamily,
			&record.Strategy,
		)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
