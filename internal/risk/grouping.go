package risk

import "strings"

// GroupFunc сопоставляет тикеру группу корреляции.
// Эвристика подменяема: стратегия может передать собственную функцию.
type GroupFunc func(ticker string) string

// DefaultGroup группирует рынки по категории и локации из тикера.
// Пример: "WEATHER-LAX-2025-01-15" -> "weather_california".
// Эвристика приблизительная, для точной группировки нужен
// исторический корреляционный анализ.
func DefaultGroup(ticker string) string {
	if !strings.Contains(ticker, "-") {
		return ""
	}
	parts := strings.Split(ticker, "-")
	if len(parts) < 2 {
		return ""
	}

	category := strings.ToLower(parts[0])
	location := strings.ToLower(parts[1])

	if category == "weather" {
		switch location {
		case "lax", "sfo", "san":
			return "weather_california"
		case "nyc", "jfk", "lga":
			return "weather_newyork"
		default:
			return "weather_" + location
		}
	}

	return category + "_general"
}
