package repository

import (
	"database/sql"

	"github.com/kirillm/kalshi-bot/internal/domain"
)

// RiskEventRepository реализует аудит переходов kill switch
type RiskEventRepository struct {
	db *sql.DB
}

// NewRiskEventRepository создает новый репозиторий риск-событий
func NewRiskEventRepository(db *sql.DB) *RiskEventRepository {
	return &RiskEventRepository{db: db}
}

// Save сохраняет переход состояния
func (r *RiskEventRepository) Save(event *domain.RiskEvent) error {
	query := `
		INSERT INTO risk_events (timestamp, from_state, to_state, reason, metric_value, details)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	return r.db.QueryRow(
		query,
		event.Timestamp,
		event.FromState,
		event.ToState,
		event.Reason,
		event.MetricValue,
		event.Details,
	).Scan(&event.ID)
}

// GetRecent получает последние N переходов состояния
func (r *RiskEventRepository) GetRecent(limit int) ([]domain.RiskEvent, error) {
	query := `
		SELECT id, timestamp, from_state, to_state, reason, metric_value, details
		FROM risk_events
		ORDER BY timestamp DESC
		LIMIT $1
	`
	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.RiskEvent
	for rows.Next() {
		var event domain.RiskEvent
		err := rows.Scan(
			&event.ID,
			&event.Timestamp,
			&event.FromState,
			&event.ToState,
			&event.Reason,
			&event.MetricValue,
			&event.Details,
		)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
