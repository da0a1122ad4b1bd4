package bot

import (
	"context"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"Access-Telegram-bot/internal/admin"
	"Access-Telegram-bot/internal/dialog"
	"Access-Telegram-bot/internal/services"
)

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil || !msg.Chat.IsPrivate() {
		return
	}
	sess, err := b.dialogs.Load(ctx, strconv.FormatInt(msg.From.ID, 10))
	if err != nil {
		b.log.Error("dialog state unavailable", zap.Int64("telegram_id", msg.From.ID), zap.Error(err))
		b.notifier.NotifyAdmin("Не удалось прочитать состояние диалога: " + err.Error())
		return
	}
	b.Deliver(b.route(ctx, msg, sess))
}

// route: /start, затем поддержка, затем админка, затем проверка оплаты
func (b *Bot) route(ctx context.Context, msg *tgbotapi.Message, sess dialog.Session) []dialog.Reply {
	chatID, userID := msg.Chat.ID, msg.From.ID
	text := strings.TrimSpace(msg.Text)

	if cmd, _, ok := dialog.ParseCommand(text); ok && cmd == "start" {
		b.reset(ctx, userID)
		return []dialog.Reply{dialog.Text(chatID, textWelcome, MainKeyboard())}
	}

	// Команда прерывает диалог поддержки и обрабатывается как обычно
	if strings.HasPrefix(text, "/") &&
		(sess.State == dialog.AwaitingSupportReply || sess.State == dialog.AwaitingSupportMessage) {
		b.reset(ctx, userID)
		sess = dialog.Session{TelegramID: sess.TelegramID, State: dialog.Idle, Data: map[string]string{}}
	}

	switch sess.State {
	case dialog.AwaitingSupportReply:
		if b.admin.IsAdmin(userID) {
			return b.supportReply(ctx, msg, sess)
		}
	case dialog.AwaitingSupportMessage:
		return b.supportMessage(ctx, msg)
	}

	if replies, handled := b.admin.HandleMessage(ctx, msg, sess); handled {
		return replies
	}
	if sess.State != dialog.Idle {
		// незавершённый диалог, который здесь не продолжить
		b.reset(ctx, userID)
	}

	switch {
	case text == ButtonCheckPayment:
		return []dialog.Reply{dialog.Text(chatID, textAskIdentifier, MainKeyboard())}
	case text == ButtonSupport:
		return b.startSupport(ctx, chatID, userID)
	case text == "":
		return []dialog.Reply{dialog.Text(chatID, textEmptyInput, MainKeyboard())}
	case strings.HasPrefix(text, "/"):
		return []dialog.Reply{dialog.Text(chatID, textUnknown, MainKeyboard())}
	case admin.IsMenuButton(text):
		return nil
	}
	return b.claim(ctx, msg, text)
}

func (b *Bot) claim(ctx context.Context, msg *tgbotapi.Message, text string) []dialog.Reply {
	chatID := msg.Chat.ID
	if b.limiter.IsLimited(msg.From.ID, "claim") {
		return []dialog.Reply{dialog.Text(chatID, textTooFast, MainKeyboard())}
	}
	res, err := b.access.Claim(ctx, identity(msg.From), text)
	if err != nil {
		return []dialog.Reply{dialog.Text(chatID, userMessage(err), MainKeyboard())}
	}
	if res.Group == nil {
		return []dialog.Reply{dialog.Text(chatID, textNoGroup, MainKeyboard())}
	}
	return []dialog.Reply{dialog.Text(chatID, paymentFoundText(res.Group.GroupName), JoinKeyboard(res.Group.InviteLink))}
}

func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if q.From == nil {
		return
	}
	if !strings.HasPrefix(q.Data, supportReplyPrefix) {
		b.answerCallback(q.ID, "")
		return
	}
	if !b.admin.IsAdmin(q.From.ID) {
		b.answerCallback(q.ID, "")
		return
	}
	target := strings.TrimPrefix(q.Data, supportReplyPrefix)
	if _, err := strconv.ParseUint(target, 10, 64); err != nil {
		b.answerCallback(q.ID, "Некорректный запрос")
		return
	}
	chatID := q.From.ID
	if q.Message != nil && q.Message.Chat != nil {
		chatID = q.Message.Chat.ID
	}
	err := b.dialogs.Transition(ctx, strconv.FormatInt(q.From.ID, 10), dialog.AwaitingSupportReply,
		map[string]string{dialog.KeyReplyUserID: target})
	if err != nil {
		b.log.Error("support reply not started", zap.Error(err))
		b.answerCallback(q.ID, "Ошибка, попробуйте ещё раз")
		return
	}
	b.Deliver([]dialog.Reply{dialog.Text(chatID, "Введите ответ для пользователя.", admin.ReplyKeyboard())})
	b.answerCallback(q.ID, "")
}

func (b *Bot) reset(ctx context.Context, userID int64) {
	if err := b.dialogs.Reset(ctx, strconv.FormatInt(userID, 10)); err != nil {
		b.log.Warn("dialog reset failed", zap.Int64("telegram_id", userID), zap.Error(err))
	}
}

func identity(u *tgbotapi.User) services.Identity {
	return services.Identity{
		TelegramID: u.ID,
		Username:   u.UserName,
		FullName:   fullName(u),
	}
}

func fullName(u *tgbotapi.User) string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
