package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillm/kalshi-bot/internal/domain"
	"github.com/kirillm/kalshi-bot/internal/monitor"
	"github.com/kirillm/kalshi-bot/internal/risk"
	"github.com/kirillm/kalshi-bot/pkg/utils"
)

// TradeStore читает закрытые сделки для отчетных эндпоинтов
type TradeStore interface {
	GetRecentTradeRecords(limit int) ([]domain.TradeRecord, error)
}

type Server struct {
	logger    *utils.Logger
	ledger    *risk.Ledger
	collector *monitor.Collector // может быть nil
	store     TradeStore         // может быть nil
	port      int
}

type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func NewServer(
	logger *utils.Logger,
	ledger *risk.Ledger,
	collector *monitor.Collector,
	store TradeStore,
	port int,
) *Server {
	return &Server{
		logger:    logger,
		ledger:    ledger,
		collector: collector,
		store:     store,
		port:      port,
	}
}

func (s *Server) Start() error {
	mux := http.NewServeMux()

	// Register routes
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/risk", s.handleRisk)
	mux.HandleFunc("/trades", s.handleTrades)
	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("Starting HTTP server on %s", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// handleHealth - health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	}

	if s.collector != nil {
		report := s.collector.Health()
		health["recent_trades"] = report.RecentTrades
		health["recent_win_rate"] = report.RecentWinRate
		health["recent_net_pnl"] = report.RecentNetPnL
		health["avg_slippage_bps"] = report.AvgSlippageBps
		health["alerts"] = report.Alerts
		if len(report.Alerts) > 0 {
			health["status"] = "degraded"
		}
	}

	s.sendSuccess(w, health)
}

// handleStatus - get trading status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := s.ledger.Status()

	s.sendSuccess(w, map[string]interface{}{
		"trading_state":      status.TradingState,
		"state_reason":       status.StateReason,
		"capital":            status.Capital,
		"capital_change_pct": status.CapitalChangePct,
		"total_exposure":     status.TotalExposure,
		"exposure_pct":       status.ExposurePct,
		"active_positions":   status.ActivePositions,
		"daily_pnl":          status.DailyPnL,
		"daily_trades":       status.DailyTrades,
		"throttled":          status.Throttled,
		"timestamp":          time.Now().Unix(),
	})
}

// handleRisk - get active risk limits
func (s *Server) handleRisk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.sendSuccess(w, map[string]interface{}{
		"limits":    s.ledger.Limits(),
		"timestamp": time.Now().Unix(),
	})
}

// handleTrades - get recent closed trades
func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.store == nil {
		s.sendError(w, "Trade storage not available", http.StatusServiceUnavailable)
		return
	}

	limit := getQueryParamInt(r, "limit", 50)
	if limit <= 0 || limit > 500 {
		s.sendError(w, "Limit must be between 1 and 500", http.StatusBadRequest)
		return
	}

	trades, err := s.store.GetRecentTradeRecords(limit)
	if err != nil {
		s.sendError(w, fmt.Sprintf("Failed to get trades: %v", err), http.StatusInternalServerError)
		return
	}

	s.sendSuccess(w, map[string]interface{}{
		"trades":    trades,
		"count":     len(trades),
		"timestamp": time.Now().Unix(),
	})
}

// Helper methods
func (s *Server) sendSuccess(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(Response{
		Success: true,
		Data:    data,
	})
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(Response{
		Success: false,
		Error:   message,
	})
}

// Helper function to parse int query parameter
func getQueryParamInt(r *http.Request, key string, defaultValue int) int {
	if value := r.URL.Query().Get(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
