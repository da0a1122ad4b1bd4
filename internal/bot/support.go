package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"Access-Telegram-bot/internal/admin"
	"Access-Telegram-bot/internal/dialog"
)

func (b *Bot) startSupport(ctx context.Context, chatID, userID int64) []dialog.Reply {
	if b.limiter.IsLimited(userID, "support") {
		return []dialog.Reply{dialog.Text(chatID, textTooFast, MainKeyboard())}
	}
	if err := b.dialogs.Transition(ctx, strconv.FormatInt(userID, 10), dialog.AwaitingSupportMessage, nil); err != nil {
		b.log.Error("support dialog not started", zap.Error(err))
		return []dialog.Reply{dialog.Text(chatID, userMessage(err), MainKeyboard())}
	}
	lines := []string{
		"Опишите проблему одним сообщением — я передам администратору.",
		"Если хотите проверить оплату, нажмите «Проверить оплату».",
	}
	if b.supportContact != "" {
		lines = append(lines, "Можно написать напрямую: "+b.supportContact)
	}
	return []dialog.Reply{dialog.Text(chatID, strings.Join(lines, "\n"), SupportKeyboard())}
}

// supportMessage пересылает обращение всем админам с кнопкой "Ответить"
func (b *Bot) supportMessage(ctx context.Context, msg *tgbotapi.Message) []dialog.Reply {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)
	switch text {
	case "":
		return []dialog.Reply{dialog.Text(chatID, "Пожалуйста, напишите сообщение текстом.", SupportKeyboard())}
	case ButtonCancel:
		b.reset(ctx, msg.From.ID)
		return []dialog.Reply{dialog.Text(chatID, textCancelled, MainKeyboard())}
	case ButtonCheckPayment:
		b.reset(ctx, msg.From.ID)
		return []dialog.Reply{dialog.Text(chatID, textAskIdentifier, MainKeyboard())}
	}

	userID := strconv.FormatInt(msg.From.ID, 10)
	label := fmt.Sprintf("%s (id %s)", fullName(msg.From), userID)
	if msg.From.UserName != "" {
		label = fmt.Sprintf("%s (@%s, id %s)", fullName(msg.From), msg.From.UserName, userID)
	}
	forward := "Новый запрос в поддержку:\n" + label + "\nСообщение: " + text

	replies := make([]dialog.Reply, 0, len(b.admin.AdminIDs())+1)
	for _, id := range b.admin.AdminIDs() {
		replies = append(replies, dialog.Text(id, forward, supportReplyKeyboard(userID)))
	}
	b.reset(ctx, msg.From.ID)
	b.log.Info("support request forwarded", zap.String("telegram_id", userID), zap.Int("admins", len(b.admin.AdminIDs())))
	return append(replies, dialog.Text(chatID, textSupportThanks, MainKeyboard()))
}

// supportReply отправляет ответ админа пользователю и сообщает админу результат.
func (b *Bot) supportReply(ctx context.Context, msg *tgbotapi.Message, sess dialog.Session) []dialog.Reply {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)
	switch text {
	case "":
		return []dialog.Reply{dialog.Text(chatID, "Пожалуйста, напишите ответ текстом.", admin.ReplyKeyboard())}
	case admin.ButtonCancel, admin.ButtonMenu:
		b.reset(ctx, msg.From.ID)
		return []dialog.Reply{dialog.Text(chatID, textCancelled, admin.MenuKeyboard())}
	}
	defer b.reset(ctx, msg.From.ID)

	target, err := strconv.ParseInt(sess.Get(dialog.KeyReplyUserID), 10, 64)
	if err != nil {
		return []dialog.Reply{dialog.Text(chatID, "Не вижу получателя, начни заново.", admin.MenuKeyboard())}
	}
	if _, err := b.api.Send(tgbotapi.NewMessage(target, "Ответ поддержки:\n"+text)); err != nil {
		b.log.Warn("support reply not delivered", zap.Int64("telegram_id", target), zap.Error(err))
		return []dialog.Reply{dialog.Text(chatID, "Не удалось отправить ответ пользователю.", admin.MenuKeyboard())}
	}
	return []dialog.Reply{dialog.Text(chatID, "Ответ отправлен пользователю.", admin.MenuKeyboard())}
}
