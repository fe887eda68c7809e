package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/kirillm/kalshi-bot/internal/domain"
)

// Config содержит все настройки приложения
type Config struct {
	Telegram TelegramConfig
	Database DatabaseConfig
	Trading  TradingConfig
	Sim      SimConfig
	API      APIConfig
	LogLevel string
}

type TelegramConfig struct {
	BotToken string
	ChatID   int64
}

type DatabaseConfig struct {
	Enabled         bool
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type TradingConfig struct {
	Mode            string // shadow или paper
	InitialCapital  float64
	ScanInterval    time.Duration
	RiskProfilePath string
	MetricsDir      string
	ScansPerSecond  float64 // темп обращений к источнику данных
}

type SimConfig struct {
	Seed         int64
	LatencyTicks int
	ExpiryTicks  int
}

type APIConfig struct {
	Enabled bool
	Port    int
}

// Load загружает конфигурацию из .env файла
func Load() (*Config, error) {
	// Загружаем .env файл (если есть)
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found, using environment variables")
	}

	chatID, err := strconv.ParseInt(getEnv("TELEGRAM_CHAT_ID", "0"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
	}

	dbEnabled, err := strconv.ParseBool(getEnv("DB_ENABLED", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_ENABLED: %w", err)
	}

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	maxOpenConns, err := strconv.Atoi(getEnv("DB_MAX_OPEN_CONNS", "25"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_OPEN_CONNS: %w", err)
	}

	maxIdleConns, err := strconv.Atoi(getEnv("DB_MAX_IDLE_CONNS", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_IDLE_CONNS: %w", err)
	}

	connMaxLifetime, err := time.ParseDuration(getEnv("DB_CONN_MAX_LIFETIME", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_CONN_MAX_LIFETIME: %w", err)
	}

	initialCapital, err := strconv.ParseFloat(getEnv("INITIAL_CAPITAL", "10000"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid INITIAL_CAPITAL: %w", err)
	}

	scanInterval, err := time.ParseDuration(getEnv("SCAN_INTERVAL", "1m"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCAN_INTERVAL: %w", err)
	}

	scansPerSecond, err := strconv.ParseFloat(getEnv("SCANS_PER_SECOND", "2"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid SCANS_PER_SECOND: %w", err)
	}

	simSeed, err := strconv.ParseInt(getEnv("SIM_SEED", "42"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid SIM_SEED: %w", err)
	}

	latencyTicks, err := strconv.Atoi(getEnv("SIM_LATENCY_TICKS", "1"))
	if err != nil {
		return nil, fmt.Errorf("invalid SIM_LATENCY_TICKS: %w", err)
	}

	expiryTicks, err := strconv.Atoi(getEnv("SIM_EXPIRY_TICKS", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid SIM_EXPIRY_TICKS: %w", err)
	}

	apiEnabled, err := strconv.ParseBool(getEnv("API_ENABLED", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid API_ENABLED: %w", err)
	}

	apiPort, err := strconv.Atoi(getEnv("API_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid API_PORT: %w", err)
	}

	config := &Config{
		Telegram: TelegramConfig{
			BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			ChatID:   chatID,
		},
		Database: DatabaseConfig{
			Enabled:         dbEnabled,
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            dbPort,
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			DBName:          getEnv("DB_NAME", "kalshi_bot"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    maxOpenConns,
			MaxIdleConns:    maxIdleConns,
			ConnMaxLifetime: connMaxLifetime,
		},
		Trading: TradingConfig{
			Mode:            getEnv("TRADING_MODE", domain.ModeShadow),
			InitialCapital:  initialCapital,
			ScanInterval:    scanInterval,
			RiskProfilePath: getEnv("RISK_PROFILES_PATH", "risk_profiles.yaml"),
			MetricsDir:      getEnv("METRICS_DIR", "metrics"),
			ScansPerSecond:  scansPerSecond,
		},
		Sim: SimConfig{
			Seed:         simSeed,
			LatencyTicks: latencyTicks,
			ExpiryTicks:  expiryTicks,
		},
		API: APIConfig{
			Enabled: apiEnabled,
			Port:    apiPort,
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate проверяет обязательные поля конфигурации
func (c *Config) Validate() error {
	if c.Trading.Mode != domain.ModeShadow && c.Trading.Mode != domain.ModePaper {
		return fmt.Errorf("TRADING_MODE must be %q or %q, got %q", domain.ModeShadow, domain.ModePaper, c.Trading.Mode)
	}
	if c.Trading.InitialCapital <= 0 {
		return fmt.Errorf("INITIAL_CAPITAL must be positive")
	}
	if c.Trading.ScanInterval <= 0 {
		return fmt.Errorf("SCAN_INTERVAL must be positive")
	}
	if c.Trading.ScansPerSecond <= 0 {
		return fmt.Errorf("SCANS_PER_SECOND must be positive")
	}
	if c.Database.Enabled && c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required when DB_ENABLED=true")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
