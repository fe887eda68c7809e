package risk

import "testing"

func TestDefaultGroup(t *testing.T) {
	tests := []struct {
		name   string
		ticker string
		want   string
	}{
		{"lax is california", "WEATHER-LAX-2025-08-01", "weather_california"},
		{"sfo is california", "WEATHER-SFO-HIGH", "weather_california"},
		{"jfk is new york", "WEATHER-JFK-2025-08-01", "weather_newyork"},
		{"nyc is new york", "WEATHER-NYC-RAIN", "weather_newyork"},
		{"other city keeps location", "WEATHER-CHI-2025-08-01", "weather_chi"},
		{"non-weather category", "PRES-2028-DEM", "pres_general"},
		{"no separator", "SOMETICKER", ""},
		{"empty ticker", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultGroup(tt.ticker); got != tt.want {
				t.Errorf("DefaultGroup(%q) = %v, want %v", tt.ticker, got, tt.want)
			}
		})
	}
}
