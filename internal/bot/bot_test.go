package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"Access-Telegram-bot/internal/admin"
	"Access-Telegram-bot/internal/db"
	"Access-Telegram-bot/internal/db/dbtest"
	"Access-Telegram-bot/internal/dialog"
	"Access-Telegram-bot/internal/services"
)

const adminID = int64(1)

// fakeAPI записывает всё, что бот отправил в Telegram
type fakeAPI struct {
	sent      []tgbotapi.Chattable
	requests  []tgbotapi.Chattable
	failSend  map[int64]bool
	failCalls error
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m, ok := c.(tgbotapi.MessageConfig); ok && f.failSend[m.ChatID] {
		return tgbotapi.Message{}, errors.New("Forbidden: bot was blocked by the user")
	}
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requests = append(f.requests, c)
	if _, ok := c.(tgbotapi.CallbackConfig); !ok && f.failCalls != nil {
		return nil, f.failCalls
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) messages() []tgbotapi.MessageConfig {
	var out []tgbotapi.MessageConfig
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeAPI) last(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	msgs := f.messages()
	require.NotEmpty(t, msgs)
	return msgs[len(msgs)-1]
}

func (f *fakeAPI) reset() {
	f.sent, f.requests = nil, nil
}

type env struct {
	bot     *Bot
	api     *fakeAPI
	conn    *gorm.DB
	dialogs *dialog.Store
}

func newEnv(t *testing.T) *env {
	t.Helper()
	conn := dbtest.New(t)
	api := &fakeAPI{failSend: map[int64]bool{}}
	access := services.NewAccessService(services.Params{
		DB:         conn,
		Log:        zap.NewNop(),
		Membership: NewTelegramMembership(api),
	})
	dialogs := dialog.NewStore(conn)
	adm := admin.NewHandler(admin.Params{
		Access:   access,
		Exporter: services.NewExporter(conn),
		Dialogs:  dialogs,
		Reports:  admin.NewReporter(conn),
		AdminIDs: []int64{adminID},
		Log:      zap.NewNop(),
	})
	b := New(Params{
		API:            api,
		Access:         access,
		Admin:          adm,
		Dialogs:        dialogs,
		SupportContact: "@support",
		Log:            zap.NewNop(),
	})
	return &env{bot: b, api: api, conn: conn, dialogs: dialogs}
}

func (e *env) text(from int64, text string) {
	e.bot.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: from, FirstName: "Ivan", LastName: "Petrov", UserName: "ivan"},
		Chat: &tgbotapi.Chat{ID: from, Type: "private"},
		Text: text,
	}})
}

func (e *env) join(userID, chatID int64) {
	e.bot.HandleUpdate(context.Background(), tgbotapi.Update{ChatJoinRequest: &tgbotapi.ChatJoinRequest{
		Chat: tgbotapi.Chat{ID: chatID, Type: "supergroup", Title: "Марафон"},
		From: tgbotapi.User{ID: userID},
	}})
}

func (e *env) seedPaid(t *testing.T, orderID, email string) {
	t.Helper()
	require.NoError(t, db.CreatePayment(e.conn, &db.Payment{
		OrderID: orderID, Email: email, Status: db.StatusPaid, CreatedAt: time.Now().UTC(),
	}))
}

func (e *env) seedGroup(t *testing.T) {
	t.Helper()
	_, err := db.CreateGroup(e.conn, "https://t.me/+invite", "Марафон")
	require.NoError(t, err)
}

func TestStartShowsMainKeyboard(t *testing.T) {
	e := newEnv(t)
	e.text(100, "/start")
	msg := e.api.last(t)
	assert.Equal(t, textWelcome, msg.Text)
	assert.IsType(t, tgbotapi.ReplyKeyboardMarkup{}, msg.ReplyMarkup)
}

func TestClaimSendsJoinButton(t *testing.T) {
	e := newEnv(t)
	e.seedPaid(t, "A1", "a@b.com")
	e.seedGroup(t)

	e.text(100, "a@b.com")
	msg := e.api.last(t)
	assert.Equal(t, paymentFoundText("Марафон"), msg.Text)
	kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.NotNil(t, kb.InlineKeyboard[0][0].URL)
	assert.Equal(t, "https://t.me/+invite", *kb.InlineKeyboard[0][0].URL)

	user, err := db.FindUserByTelegramID(e.conn, "100")
	require.NoError(t, err)
	assert.Equal(t, "ivan", user.Username)
	assert.Equal(t, "Ivan Petrov", user.FullName)
}

func TestClaimMessages(t *testing.T) {
	e := newEnv(t)
	e.seedPaid(t, "A1", "a@b.com")

	e.text(100, "a@b.com")
	assert.Equal(t, textNoGroup, e.api.last(t).Text)

	e.text(200, "a@b.com")
	assert.Equal(t, userMessage(services.ErrBoundToAnotherUser), e.api.last(t).Text)

	e.text(300, "missing@b.com")
	assert.Equal(t, userMessage(services.ErrPaymentNotFound), e.api.last(t).Text)
}

func TestClaimIsRateLimited(t *testing.T) {
	e := newEnv(t)
	e.text(100, "x@b.com")
	e.text(100, "y@b.com")
	assert.Equal(t, textTooFast, e.api.last(t).Text)
}

func TestJoinRequestApprovedAfterClaim(t *testing.T) {
	e := newEnv(t)
	e.seedPaid(t, "A1", "a@b.com")
	e.seedGroup(t)
	e.text(100, "a@b.com")
	e.api.reset()

	e.join(100, -1001)
	require.Len(t, e.api.requests, 1)
	approve, ok := e.api.requests[0].(tgbotapi.ApproveChatJoinRequestConfig)
	require.True(t, ok)
	assert.Equal(t, int64(-1001), approve.ChatID)
	assert.Equal(t, int64(100), approve.UserID)

	e.join(555, -1001)
	assert.Len(t, e.api.requests, 1, "unknown users stay pending")
}

func TestJoinTransportFailureLeavesNoAudit(t *testing.T) {
	e := newEnv(t)
	e.seedPaid(t, "A1", "a@b.com")
	e.text(100, "a@b.com")
	e.api.failCalls = errors.New("Bad Request: USER_ALREADY_PARTICIPANT")

	e.join(100, -1001)
	n, err := db.CountAccessLogs(e.conn)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSupportRelay(t *testing.T) {
	e := newEnv(t)

	e.text(100, ButtonSupport)
	assert.Contains(t, e.api.last(t).Text, "@support")

	e.text(100, "Не приходит ссылка")
	msgs := e.api.messages()
	require.GreaterOrEqual(t, len(msgs), 2)
	forwarded := msgs[len(msgs)-2]
	assert.Equal(t, adminID, forwarded.ChatID)
	assert.Contains(t, forwarded.Text, "Ivan Petrov (@ivan, id 100)")
	assert.Contains(t, forwarded.Text, "Не приходит ссылка")
	kb, ok := forwarded.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.NotNil(t, kb.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "support_reply:100", *kb.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, textSupportThanks, e.api.last(t).Text)

	e.bot.HandleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb1",
		From:    &tgbotapi.User{ID: adminID},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: adminID, Type: "private"}},
		Data:    "support_reply:100",
	}})
	assert.Equal(t, "Введите ответ для пользователя.", e.api.last(t).Text)

	e.text(adminID, "Ссылка отправлена повторно")
	msgs = e.api.messages()
	toUser := msgs[len(msgs)-2]
	assert.Equal(t, int64(100), toUser.ChatID)
	assert.Equal(t, "Ответ поддержки:\nСсылка отправлена повторно", toUser.Text)
	assert.Equal(t, "Ответ отправлен пользователю.", e.api.last(t).Text)

	sess, err := e.dialogs.Load(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, dialog.Idle, sess.State)
}

func TestSupportReplyDeliveryFailure(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.dialogs.Transition(context.Background(), "1", dialog.AwaitingSupportReply,
		map[string]string{dialog.KeyReplyUserID: "100"}))
	e.api.failSend[100] = true

	e.text(adminID, "ответ")
	assert.Equal(t, "Не удалось отправить ответ пользователю.", e.api.last(t).Text)
}

func TestCommandDuringSupportReplyIsNotRelayed(t *testing.T) {
	e := newEnv(t)
	for _, cmd := range []string{"/admin", "/cancel"} {
		require.NoError(t, e.dialogs.Transition(context.Background(), "1", dialog.AwaitingSupportReply,
			map[string]string{dialog.KeyReplyUserID: "100"}))

		e.text(adminID, cmd)
		assert.Equal(t, "Админ-меню:", e.api.last(t).Text)
		for _, m := range e.api.messages() {
			assert.NotEqual(t, int64(100), m.ChatID, "command %s reached the user", cmd)
		}
		sess, err := e.dialogs.Load(context.Background(), "1")
		require.NoError(t, err)
		assert.Equal(t, dialog.Idle, sess.State)
	}
}

func TestCommandDuringSupportMessageIsNotForwarded(t *testing.T) {
	e := newEnv(t)
	e.text(100, ButtonSupport)
	e.api.reset()

	e.text(100, "/help")
	assert.Equal(t, textUnknown, e.api.last(t).Text)
	for _, m := range e.api.messages() {
		assert.NotEqual(t, adminID, m.ChatID)
	}
	sess, err := e.dialogs.Load(context.Background(), "100")
	require.NoError(t, err)
	assert.Equal(t, dialog.Idle, sess.State)
}

func TestSupportCallbackIgnoredForNonAdmin(t *testing.T) {
	e := newEnv(t)
	e.bot.HandleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb",
		From: &tgbotapi.User{ID: 777},
		Data: "support_reply:100",
	}})
	assert.Empty(t, e.api.messages())
	sess, err := e.dialogs.Load(context.Background(), "777")
	require.NoError(t, err)
	assert.Equal(t, dialog.Idle, sess.State)
}

func TestSupportCancel(t *testing.T) {
	e := newEnv(t)
	e.text(100, ButtonSupport)
	e.text(100, ButtonCancel)
	assert.Equal(t, textCancelled, e.api.last(t).Text)

	sess, err := e.dialogs.Load(context.Background(), "100")
	require.NoError(t, err)
	assert.Equal(t, dialog.Idle, sess.State)
}

func TestAdminMenuRoutedToAdminHandler(t *testing.T) {
	e := newEnv(t)
	e.text(adminID, "/admin")
	assert.Equal(t, "Админ-меню:", e.api.last(t).Text)

	e.text(200, "/admin")
	assert.Equal(t, textUnknown, e.api.last(t).Text)

	before := len(e.api.sent)
	e.text(200, admin.ButtonFind)
	assert.Len(t, e.api.sent, before, "menu buttons from users are ignored")
}

func TestAdminRemoveBansThroughBotAPI(t *testing.T) {
	e := newEnv(t)
	e.seedPaid(t, "A1", "a@b.com")
	e.seedGroup(t)
	e.text(100, "a@b.com")
	e.join(100, -1001)
	e.api.reset()

	e.text(adminID, admin.ButtonRemove)
	e.text(adminID, "A1")
	require.Len(t, e.api.requests, 1)
	ban, ok := e.api.requests[0].(tgbotapi.BanChatMemberConfig)
	require.True(t, ok)
	assert.Equal(t, int64(-1001), ban.ChatID)
	assert.Equal(t, int64(100), ban.UserID)

	e.text(adminID, admin.ButtonUnban)
	e.text(adminID, "A1")
	unban, ok := e.api.requests[1].(tgbotapi.UnbanChatMemberConfig)
	require.True(t, ok)
	assert.True(t, unban.OnlyIfBanned)
}

func TestExportDeliveredAsDocument(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, db.AppendAccessLog(e.conn, &db.AccessLog{
		TelegramID: "100", Action: db.ActionGranted, Timestamp: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
	}))

	e.text(adminID, "/export_logs 2025-01-01 2025-01-15")
	require.NotEmpty(t, e.api.sent)
	doc, ok := e.api.sent[len(e.api.sent)-1].(tgbotapi.DocumentConfig)
	require.True(t, ok)
	assert.Equal(t, "Логи с 2025-01-01 по 2025-01-15", doc.Caption)
	file, ok := doc.File.(tgbotapi.FileBytes)
	require.True(t, ok)
	assert.Equal(t, "access_logs_2025-01-01_2025-01-15.csv", file.Name)
}

func TestGroupMessagesIgnored(t *testing.T) {
	e := newEnv(t)
	e.bot.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: 100},
		Chat: &tgbotapi.Chat{ID: -1001, Type: "supergroup"},
		Text: "a@b.com",
	}})
	assert.Empty(t, e.api.sent)
}
