package monitor

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/kirillm/kalshi-bot/internal/domain"
	"github.com/kirillm/kalshi-bot/pkg/utils"
)

// tradesLogFile — CSV-лог сделок. Схема колонок стабильна,
// внешние скрипты анализа читают ее по именам.
const tradesLogFile = "trades_log.csv"

var csvHeader = []string{
	"timestamp", "ticker", "side", "action", "contracts",
	"entry_price", "exit_price", "gross_pnl", "net_pnl", "fee",
	"slippage_bps", "holding_period_hours", "win", "market_family", "strategy",
}

// Price buckets for calibration analysis
const (
	bucketLongshotExtreme = "longshot_extreme"
	bucketLongshot        = "longshot"
	bucketMid             = "mid"
	bucketFavorite        = "favorite"
	bucketFavoriteExtreme = "favorite_extreme"
)

// BucketStats — агрегат по срезу сделок
type BucketStats struct {
	Trades      int
	Wins        int
	GrossPnL    float64
	NetPnL      float64
	Fees        float64
	SlippageSum float64
}

// WinRate возвращает долю выигранных сделок среза
func (b BucketStats) WinRate() float64 {
	if b.Trades == 0 {
		return 0
	}
	return float64(b.Wins) / float64(b.Trades)
}

// AvgSlippageBps возвращает среднее проскальзывание среза
func (b BucketStats) AvgSlippageBps() float64 {
	if b.Trades == 0 {
		return 0
	}
	return b.SlippageSum / float64(b.Trades)
}

// Summary — сводка накопленной статистики
type Summary struct {
	Total      BucketStats
	ByBucket   map[string]BucketStats
	ByStrategy map[string]BucketStats
	ByFamily   map[string]BucketStats
}

// Health — оценка качества недавних сделок с алертами
type Health struct {
	RecentTrades   int
	RecentWinRate  float64
	RecentNetPnL   float64
	AvgSlippageBps float64
	Alerts         []string
}

// healthThresholds задает границы алертов по скользящему окну
type healthThresholds struct {
	window         int
	minTrades      int
	minWinRate     float64
	maxSlippageBps float64
}

// Collector пишет закрытые сделки в CSV и ведет агрегаты
// по ценовым бакетам, стратегиям и семействам рынков.
// Потокобезопасен.
type Collector struct {
	mu     sync.Mutex
	logger *utils.Logger

	file   *os.File
	writer *csv.Writer

	total      BucketStats
	byBucket   map[string]*BucketStats
	byStrategy map[string]*BucketStats
	byFamily   map[string]*BucketStats
	recent     []domain.TradeRecord

	health healthThresholds
}

// NewCollector открывает CSV-лог в dir, дописывая существующий файл.
// Заголовок пишется только в новый файл.
func NewCollector(dir string, logger *utils.Logger) (*Collector, error) {
	if logger == nil {
		logger = utils.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create metrics dir: %w", err)
	}

	path := filepath.Join(dir, tradesLogFile)
	info, statErr := os.Stat(path)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open trades log: %w", err)
	}

	c := &Collector{
		logger:     logger.WithPrefix("monitor"),
		file:       file,
		writer:     csv.NewWriter(file),
		byBucket:   make(map[string]*BucketStats),
		byStrategy: make(map[string]*BucketStats),
		byFamily:   make(map[string]*BucketStats),
		health: healthThresholds{
			window:         50,
			minTrades:      20,
			minWinRate:     0.40,
			maxSlippageBps: 50.0,
		},
	}

	if statErr != nil || info.Size() == 0 {
		if err := c.writer.Write(csvHeader); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write trades log header: %w", err)
		}
		c.writer.Flush()
	}
	return c, nil
}

// RecordTrade дописывает сделку в CSV и обновляет агрегаты
func (c *Collector) RecordTrade(record domain.TradeRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	row := []string{
		record.Timestamp.UTC().Format(time.RFC3339),
		record.Ticker,
		record.Side,
		record.Action,
		strconv.Itoa(record.Contracts),
		strconv.FormatFloat(record.EntryPrice, 'f', 2, 64),
		strconv.FormatFloat(record.ExitPrice, 'f', 2, 64),
		strconv.FormatFloat(record.GrossPnL, 'f', 4, 64),
		strconv.FormatFloat(record.NetPnL, 'f', 4, 64),
		strconv.FormatFloat(record.Fee, 'f', 4, 64),
		strconv.FormatFloat(record.SlippageBps, 'f', 1, 64),
		strconv.FormatFloat(record.HoldingPeriodHours, 'f', 2, 64),
		strconv.FormatBool(record.Win),
		record.MarketFamily,
		record.Strategy,
	}
	if err := c.writer.Write(row); err != nil {
		return fmt.Errorf("failed to append trade record: %w", err)
	}
	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		return fmt.Errorf("failed to flush trades log: %w", err)
	}

	c.apply(&c.total, record)
	c.apply(c.bucketFor(c.byBucket, priceBucket(record.EntryPrice)), record)
	c.apply(c.bucketFor(c.byStrategy, record.Strategy), record)
	c.apply(c.bucketFor(c.byFamily, record.MarketFamily), record)

	c.recent = append(c.recent, record)
	if len(c.recent) > c.health.window {
		c.recent = c.recent[len(c.recent)-c.health.window:]
	}

	ObserveTrade(record)
	return nil
}

func (c *Collector) apply(stats *BucketStats, record domain.TradeRecord) {
	stats.Trades++
	if record.Win {
		stats.Wins++
	}
	stats.GrossPnL += record.GrossPnL
	stats.NetPnL += record.NetPnL
	stats.Fees += record.Fee
	stats.SlippageSum += record.SlippageBps
}

func (c *Collector) bucketFor(m map[string]*BucketStats, key string) *BucketStats {
	if key == "" {
		key = "unknown"
	}
	stats, ok := m[key]
	if !ok {
		stats = &BucketStats{}
		m[key] = stats
	}
	return stats
}

// priceBucket относит цену входа к калибровочному бакету
func priceBucket(entryPriceCents float64) string {
	switch {
	case entryPriceCents < 5:
		return bucketLongshotExtreme
	case entryPriceCents < 20:
		return bucketLongshot
	case entryPriceCents < 80:
		return bucketMid
	case entryPriceCents < 95:
		return bucketFavorite
	default:
		return bucketFavoriteExtreme
	}
}

// Summary возвращает копию накопленных агрегатов
func (c *Collector) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	copyMap := func(m map[string]*BucketStats) map[string]BucketStats {
		out := make(map[string]BucketStats, len(m))
		for k, v := range m {
			out[k] = *v
		}
		return out
	}
	return Summary{
		Total:      c.total,
		ByBucket:   copyMap(c.byBucket),
		ByStrategy: copyMap(c.byStrategy),
		ByFamily:   copyMap(c.byFamily),
	}
}

// Health оценивает скользящее окно последних сделок.
// Алерты информационные, торговлю останавливает только kill switch.
func (c *Collector) Health() Health {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := Health{RecentTrades: len(c.recent)}
	if len(c.recent) == 0 {
		return h
	}

	var wins int
	var slippageSum float64
	for _, r := range c.recent {
		if r.Win {
			wins++
		}
		h.RecentNetPnL += r.NetPnL
		slippageSum += r.SlippageBps
	}
	h.RecentWinRate = float64(wins) / float64(len(c.recent))
	h.AvgSlippageBps = slippageSum / float64(len(c.recent))

	if len(c.recent) >= c.health.minTrades {
		if h.RecentWinRate < c.health.minWinRate {
			h.Alerts = append(h.Alerts, fmt.Sprintf("win rate %.0f%% below %.0f%%", h.RecentWinRate*100, c.health.minWinRate*100))
		}
		if h.RecentNetPnL < 0 {
			h.Alerts = append(h.Alerts, fmt.Sprintf("recent net pnl $%.2f is negative", h.RecentNetPnL))
		}
		if h.AvgSlippageBps > c.health.maxSlippageBps {
			h.Alerts = append(h.Alerts, fmt.Sprintf("avg slippage %.0f bps above %.0f", h.AvgSlippageBps, c.health.maxSlippageBps))
		}
	}
	return h
}

// Close сбрасывает буфер и закрывает CSV-лог
func (c *Collector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		c.file.Close()
		return err
	}
	return c.file.Close()
}
