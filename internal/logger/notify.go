package logger

import (
	"fmt"

	"github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Sender: часть BotAPI, нужная для уведомлений.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier отправляет критические уведомления администраторам в Telegram.
type Notifier struct {
	bot      Sender
	adminIDs []int64
	log      *zap.Logger
}

func NewNotifier(bot Sender, adminIDs []int64, log *zap.Logger) *Notifier {
	return &Notifier{bot: bot, adminIDs: adminIDs, log: log}
}

// NotifyAdmin отправляет сообщение с пометкой [ALERT] всем админам
func (n *Notifier) NotifyAdmin(msg string) {
	if n == nil || n.bot == nil {
		return
	}
	for _, id := range n.adminIDs {
		if _, err := n.bot.Send(tgbotapi.NewMessage(id, "[ALERT] "+msg)); err != nil {
			n.log.Warn("admin notification failed", zap.Int64("admin_id", id), zap.Error(err))
		}
	}
}

// NotifyOnPanic ловит панику, логирует и уведомляет.
// Вызывать только через defer.
func (n *Notifier) NotifyOnPanic(context string) {
	if r := recover(); r != nil {
		if n != nil && n.log != nil {
			n.log.Error("panic recovered", zap.String("context", context), zap.Any("panic", r))
		}
		n.NotifyAdmin("Panic in " + context + ": " + toString(r))
	}
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case error:
		return t.Error()
	default:
		return fmt.Sprintf("panic: %v", t)
	}
}
