package telegram

import (
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kirillm/kalshi-bot/internal/monitor"
	"github.com/kirillm/kalshi-bot/internal/risk"
	"github.com/kirillm/kalshi-bot/pkg/utils"
)

// commandRateLimit — максимум команд в секунду на пользователя
const commandRateLimit = 2

// Bot — операционный канал: статус и управление kill switch.
// Торговых команд нет, бот только наблюдает и снимает/ставит стопы.
type Bot struct {
	api       *tgbotapi.BotAPI
	chatID    int64
	logger    *utils.Logger
	auth      *AuthManager
	ledger    *risk.Ledger
	evaluator *risk.Evaluator
	collector *monitor.Collector // может быть nil в shadow-режиме
}

func NewBot(token string, chatID int64, logger *utils.Logger, auth *AuthManager, ledger *risk.Ledger, evaluator *risk.Evaluator, collector *monitor.Collector) (*Bot, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	logger.Info("Telegram bot authorized: @%s", bot.Self.UserName)

	return &Bot{
		api:       bot,
		chatID:    chatID,
		logger:    logger.WithPrefix("telegram"),
		auth:      auth,
		ledger:    ledger,
		evaluator: evaluator,
		collector: collector,
	}, nil
}

// Start запускает обработку сообщений
func (b *Bot) Start() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	b.SendMessage("🤖 Kalshi trading bot started!\nUse /help to see available commands.")

	for update := range updates {
		if update.Message == nil {
			continue
		}

		// Принимаем команды только из операционного чата
		if update.Message.Chat.ID != b.chatID {
			b.logger.Warn("Unauthorized access attempt from chat ID: %d", update.Message.Chat.ID)
			continue
		}

		b.handleMessage(update.Message)
	}
}

// handleMessage обрабатывает входящее сообщение
func (b *Bot) handleMessage(message *tgbotapi.Message) {
	if !message.IsCommand() {
		return
	}

	userID := message.From.ID
	if err := b.auth.CheckRateLimit(userID, commandRateLimit); err != nil {
		b.logger.Warn("rate limited user %d: %v", userID, err)
		return
	}

	b.logger.Info("command from %d: %s", userID, message.Text)
	b.handleCommand(message)
}

// handleCommand диспетчеризует команды операционного канала
func (b *Bot) handleCommand(message *tgbotapi.Message) {
	switch message.Command() {
	case "status":
		b.SendMessage(FormatStatus(b.ledger.Status()))
	case "risk":
		b.SendMessage(FormatLimits(b.ledger.Limits()))
	case "health":
		if b.collector == nil {
			b.SendMessage("Health monitor is not attached.")
			return
		}
		b.SendMessage(FormatHealth(b.collector.Health()))
	case "resume":
		if err := b.auth.RequireAdmin(message.From.ID); err != nil {
			b.SendMessage("⛔ " + err.Error())
			return
		}
		b.evaluator.ManualResume()
		b.SendMessage("✅ Trading resumed manually.")
	case "pause":
		if err := b.auth.RequireAdmin(message.From.ID); err != nil {
			b.SendMessage("⛔ " + err.Error())
			return
		}
		cooldown := time.Hour
		if args := message.CommandArguments(); args != "" {
			parsed, err := time.ParseDuration(args)
			if err != nil || parsed <= 0 {
				b.SendMessage("Usage: /pause [duration], e.g. /pause 2h")
				return
			}
			cooldown = parsed
		}
		b.evaluator.ManualPause(cooldown)
		b.SendMessage(fmt.Sprintf("⚠️ Trading paused for %v. Use /resume to lift early.", cooldown))
	case "halt":
		if err := b.auth.RequireAdmin(message.From.ID); err != nil {
			b.SendMessage("⛔ " + err.Error())
			return
		}
		b.evaluator.ManualHalt()
		b.SendMessage("🚨 Trading halted manually. Use /resume to restart.")
	case "help":
		b.SendMessage(helpText())
	default:
		b.SendMessage("Unknown command. Use /help to see available commands.")
	}
}

func helpText() string {
	return `Available commands:
/status - capital, exposure, daily pnl, trading state
/risk - active risk limit profile
/health - recent trade quality and alerts
/resume - lift halt or pause (admin)
/pause [duration] - pause trading, default 1h (admin)
/halt - stop trading immediately (admin)
/help - this message`
}

// SendMessage отправляет сообщение в операционный чат
func (b *Bot) SendMessage(text string) {
	msg := tgbotapi.NewMessage(b.chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("failed to send telegram message: %v", err)
	}
}

// NotifyRiskEvent шлет алерт о переходе состояния kill switch
func (b *Bot) NotifyRiskEvent(event string) {
	b.SendMessage(event)
}

// SendDailySummary шлет дневную сводку: леджер плюс качество исполнения
func (b *Bot) SendDailySummary() {
	text := "📊 Daily summary\n\n" + FormatStatus(b.ledger.Status())
	if b.collector != nil {
		text += "\n\n" + FormatHealth(b.collector.Health())
	}
	b.SendMessage(text)
}
