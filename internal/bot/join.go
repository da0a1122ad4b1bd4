package bot

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"Access-Telegram-bot/internal/services"
)

// handleJoinRequest одобряет заявку владельца оплаченной привязки.
// Остальные заявки остаются без ответа, админы разберут их вручную.
func (b *Bot) handleJoinRequest(ctx context.Context, req *tgbotapi.ChatJoinRequest) {
	decision, err := b.access.ConfirmJoin(ctx, services.JoinRequest{
		UserID:    req.From.ID,
		ChatID:    req.Chat.ID,
		ChatTitle: req.Chat.Title,
	})
	switch {
	case errors.Is(err, services.ErrTransport):
		b.notifier.NotifyAdmin(fmt.Sprintf("Не удалось одобрить заявку %d в чат %d: %v", req.From.ID, req.Chat.ID, err))
	case err != nil:
		b.log.Error("join request not processed", zap.Int64("telegram_id", req.From.ID), zap.Error(err))
	case !decision.Approved:
		b.log.Debug("join request left pending", zap.Int64("telegram_id", req.From.ID), zap.String("reason", decision.Reason))
	}
}
