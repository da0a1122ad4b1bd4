package bot

import (
	"context"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"Access-Telegram-bot/internal/admin"
	"Access-Telegram-bot/internal/dialog"
	"Access-Telegram-bot/internal/logger"
	"Access-Telegram-bot/internal/services"
)

// API: часть tgbotapi.BotAPI, которой пользуется бот
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Params struct {
	API            API
	Access         *services.AccessService
	Admin          *admin.Handler
	Dialogs        *dialog.Store
	Notifier       *logger.Notifier
	SupportContact string
	Log            *zap.Logger
}

type Bot struct {
	api            API
	access         *services.AccessService
	admin          *admin.Handler
	dialogs        *dialog.Store
	notifier       *logger.Notifier
	limiter        *RateLimiter
	supportContact string
	log            *zap.Logger
}

func New(p Params) *Bot {
	if p.Log == nil {
		p.Log = zap.NewNop()
	}
	return &Bot{
		api:            p.API,
		access:         p.Access,
		admin:          p.Admin,
		dialogs:        p.Dialogs,
		notifier:       p.Notifier,
		limiter:        NewRateLimiter(p.Admin.IsAdmin),
		supportContact: p.SupportContact,
		log:            p.Log,
	}
}

// UpdateConfig: long polling c подпиской на заявки на вступление
func UpdateConfig() tgbotapi.UpdateConfig {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	u.AllowedUpdates = []string{
		tgbotapi.UpdateTypeMessage,
		tgbotapi.UpdateTypeCallbackQuery,
		"chat_join_request",
	}
	return u
}

// Start обрабатывает апдейты, пока не закроется канал или не отменится ctx.
func (b *Bot) Start(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer b.notifier.NotifyOnPanic("update " + strconv.Itoa(update.UpdateID))

	switch {
	case update.ChatJoinRequest != nil:
		b.handleJoinRequest(ctx, update.ChatJoinRequest)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

// Deliver отправляет ответы обработчиков. Ошибки отправки только логируются.
func (b *Bot) Deliver(replies []dialog.Reply) {
	for _, r := range replies {
		if _, err := b.api.Send(chattable(r)); err != nil {
			b.log.Warn("send failed", zap.Int64("chat_id", r.ChatID), zap.Error(err))
		}
	}
}

func chattable(r dialog.Reply) tgbotapi.Chattable {
	if r.Document != nil {
		doc := tgbotapi.NewDocument(r.ChatID, tgbotapi.FileBytes{Name: r.Document.Name, Bytes: r.Document.Bytes})
		doc.Caption = r.Text
		if r.Markup != nil {
			doc.ReplyMarkup = r.Markup
		}
		return doc
	}
	msg := tgbotapi.NewMessage(r.ChatID, r.Text)
	if r.Markup != nil {
		msg.ReplyMarkup = r.Markup
	}
	return msg
}

func (b *Bot) answerCallback(id, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(id, text)); err != nil {
		b.log.Debug("callback answer failed", zap.Error(err))
	}
}
