package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// AuthManager управляет правами доступа и rate limiting.
// Управляющие команды (/halt, /resume) требуют прав администратора.
type AuthManager struct {
	adminIDs     map[int64]bool
	rateLimiters map[int64]*RateLimiter
	mu           sync.RWMutex
}

// RateLimiter ограничивает частоту команд от пользователя
type RateLimiter struct {
	lastRequest  time.Time
	requestCount int
	mu           sync.Mutex
}

// NewAuthManager создает менеджер авторизации из списка ID через запятую
func NewAuthManager(adminIDsStr string) *AuthManager {
	am := &AuthManager{
		adminIDs:     make(map[int64]bool),
		rateLimiters: make(map[int64]*RateLimiter),
	}

	if adminIDsStr != "" {
		for _, idStr := range strings.Split(adminIDsStr, ",") {
			idStr = strings.TrimSpace(idStr)
			if id, err := strconv.ParseInt(idStr, 10, 64); err == nil {
				am.adminIDs[id] = true
			}
		}
	}

	return am
}

// IsAdmin проверяет, является ли пользователь администратором.
// Пустой список админов разрешает всем: бот и так отвечает
// только в своем операционном чате.
func (am *AuthManager) IsAdmin(userID int64) bool {
	am.mu.RLock()
	defer am.mu.RUnlock()

	if len(am.adminIDs) == 0 {
		return true
	}
	return am.adminIDs[userID]
}

// RequireAdmin возвращает ошибку, если пользователь не администратор
func (am *AuthManager) RequireAdmin(userID int64) error {
	if !am.IsAdmin(userID) {
		return fmt.Errorf("access denied: admin permission required")
	}
	return nil
}

// CheckRateLimit проверяет rate limit для пользователя
func (am *AuthManager) CheckRateLimit(userID int64, maxRequestsPerSecond int) error {
	am.mu.Lock()
	limiter, exists := am.rateLimiters[userID]
	if !exists {
		limiter = &RateLimiter{}
		am.rateLimiters[userID] = limiter
	}
	am.mu.Unlock()

	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	now := time.Now()

	// Если прошла секунда, сбрасываем счетчик
	if now.Sub(limiter.lastRequest) >= time.Second {
		limiter.requestCount = 0
		limiter.lastRequest = now
	}

	limiter.requestCount++
	if limiter.requestCount > maxRequestsPerSecond {
		waitTime := time.Second - now.Sub(limiter.lastRequest)
		return fmt.Errorf("rate limit exceeded, please wait %v", waitTime.Round(time.Millisecond))
	}

	return nil
}

// CleanupRateLimiters очищает неактивные rate limiters (вызывать периодически)
func (am *AuthManager) CleanupRateLimiters() {
	am.mu.Lock()
	defer am.mu.Unlock()

	now := time.Now()
	for userID, limiter := range am.rateLimiters {
		limiter.mu.Lock()
		if now.Sub(limiter.lastRequest) > 5*time.Minute {
			delete(am.rateLimiters, userID)
		}
		limiter.mu.Unlock()
	}
}
