package repository

import (
	"database/sql"

	"github.com/kirillm/kalshi-bot/internal/domain"
)

// BacktestRunRepository реализует работу с результатами бэктестов
type BacktestRunRepository struct {
	db *sql.DB
}

// NewBacktestRunRepository создает новый репозиторий бэктестов
func NewBacktestRunRepository(db *sql.DB) *BacktestRunRepository {
	return &BacktestRunRepository{db: db}
}

// Save сохраняет итог прогона
func (r *BacktestRunRepository) Save(run *domain.BacktestRun) error {
	query := `
		INSERT INTO backtest_runs (started_at, strategy, split_date, folds,
			total_trades, total_return_pct, win_rate, sharpe_ratio,
			max_drawdown_pct, metrics_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	return r.db.QueryRow(
		query,
		run.StartedAt,
		run.Strategy,
		run.SplitDate,
		run.Folds,
		run.TotalTrades,
		run.TotalReturnPct,
		run.WinRate,
		run.SharpeRatio,
		run.MaxDrawdownPct,
		run.MetricsJSON,
	).Scan(&run.ID)
}

// GetRecent получает последние N прогонов
func (r *BacktestRunRepository) GetRecent(limit int) ([]domain.BacktestRun, error) {
	query := `
		SELECT id, started_at, strategy, split_date, folds,
		       total_trades, total_return_pct, win_rate, sharpe_ratio,
		       max_drawdown_pct, metrics_json
		FROM backtest_runs
		ORDER BY started_at DESC
		LIMIT $1
	`
	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.BacktestRun
	for rows.Next() {
		var run domain.BacktestRun
		err := rows.Scan(
			&run.ID,
			&run.StartedAt,
			&run.Strategy,
			&run.SplitDate,
			&run.Folds,
			&run.TotalTrades,
			&run.TotalReturnPct,
			&run.WinRate,
			&run.SharpeRatio,
			&run.MaxDrawdownPct,
			&run.MetricsJSON,
		)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
