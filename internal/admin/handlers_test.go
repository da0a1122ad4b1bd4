package admin

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"Access-Telegram-bot/internal/db"
	"Access-Telegram-bot/internal/db/dbtest"
	"Access-Telegram-bot/internal/dialog"
	"Access-Telegram-bot/internal/services"
)

const adminID = int64(1)

type stubMembership struct {
	err   error
	calls []string
}

func (s *stubMembership) ApproveJoinRequest(context.Context, int64, int64) error {
	s.calls = append(s.calls, "approve")
	return s.err
}

func (s *stubMembership) RemoveMember(context.Context, int64, int64) error {
	s.calls = append(s.calls, "remove")
	return s.err
}

func (s *stubMembership) UnbanMember(context.Context, int64, int64) error {
	s.calls = append(s.calls, "unban")
	return s.err
}

type fixture struct {
	h       *Handler
	conn    *gorm.DB
	dialogs *dialog.Store
	members *stubMembership
	access  *services.AccessService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.New(t)
	members := &stubMembership{}
	access := services.NewAccessService(services.Params{DB: conn, Log: zap.NewNop(), Membership: members})
	dialogs := dialog.NewStore(conn)
	backups := NewBackuper(conn, "sqlite://test.sqlite3", t.TempDir(), zap.NewNop(), nil)
	h := NewHandler(Params{
		Access:   access,
		Exporter: services.NewExporter(conn),
		Dialogs:  dialogs,
		Backups:  backups,
		Reports:  NewReporter(conn),
		AdminIDs: []int64{adminID},
		Log:      zap.NewNop(),
	})
	return &fixture{h: h, conn: conn, dialogs: dialogs, members: members, access: access}
}

// send прогоняет сообщение так же, как бот: с текущей сессией из БД
func (f *fixture) send(t *testing.T, from int64, text string) ([]dialog.Reply, bool) {
	t.Helper()
	ctx := context.Background()
	sess, err := f.dialogs.Load(ctx, key(from))
	require.NoError(t, err)
	msg := &tgbotapi.Message{From: &tgbotapi.User{ID: from}, Chat: &tgbotapi.Chat{ID: from}, Text: text}
	return f.h.HandleMessage(ctx, msg, sess)
}

func (f *fixture) state(t *testing.T, id int64) dialog.State {
	t.Helper()
	sess, err := f.dialogs.Load(context.Background(), key(id))
	require.NoError(t, err)
	return sess.State
}

func lastText(t *testing.T, replies []dialog.Reply) string {
	t.Helper()
	require.NotEmpty(t, replies)
	return replies[len(replies)-1].Text
}

func seedClaimed(t *testing.T, f *fixture, chatID *int64) {
	t.Helper()
	require.NoError(t, db.CreatePayment(f.conn, &db.Payment{OrderID: "A1", Email: "a@b.com", Status: db.StatusPaid, CreatedAt: time.Now().UTC()}))
	group, err := db.CreateGroup(f.conn, "https://t.me/+x", "Марафон")
	require.NoError(t, err)
	if chatID != nil {
		require.NoError(t, db.SetGroupChatID(f.conn, group.ID, *chatID))
	}
	_, err = f.access.Claim(context.Background(), services.Identity{TelegramID: 100}, "a@b.com")
	require.NoError(t, err)
}

func TestNonAdminIsNotHandled(t *testing.T) {
	f := newFixture(t)
	replies, handled := f.send(t, 999, "/admin")
	assert.False(t, handled)
	assert.Nil(t, replies)
}

func TestPlainTextFromIdleAdminFallsThrough(t *testing.T) {
	f := newFixture(t)
	_, handled := f.send(t, adminID, "a@b.com")
	assert.False(t, handled)

	_, handled = f.send(t, adminID, "/start")
	assert.False(t, handled)
}

func TestMenuCommand(t *testing.T) {
	f := newFixture(t)
	replies, handled := f.send(t, adminID, "/admin")
	require.True(t, handled)
	assert.Equal(t, "Админ-меню:", lastText(t, replies))
	assert.IsType(t, tgbotapi.ReplyKeyboardMarkup{}, replies[0].Markup)

	replies, _ = f.send(t, adminID, "/admin_help")
	assert.Contains(t, lastText(t, replies), "/rebind_payment")
}

func TestSetGroupFlow(t *testing.T) {
	f := newFixture(t)

	replies, _ := f.send(t, adminID, ButtonSetGroup)
	assert.Contains(t, lastText(t, replies), "invite-link")
	assert.Equal(t, dialog.AwaitingGroupInvite, f.state(t, adminID))

	f.send(t, adminID, "https://t.me/+abc")
	assert.Equal(t, dialog.AwaitingGroupName, f.state(t, adminID))

	replies, _ = f.send(t, adminID, "Поток 3")
	assert.Equal(t, "Текущая группа установлена:\nПоток 3\nhttps://t.me/+abc", lastText(t, replies))
	assert.Equal(t, dialog.Idle, f.state(t, adminID))

	group, err := db.CurrentGroupRecord(f.conn)
	require.NoError(t, err)
	assert.Equal(t, "Поток 3", group.GroupName)
	assert.Nil(t, group.ChatID)
}

func TestSetGroupCommand(t *testing.T) {
	f := newFixture(t)
	replies, _ := f.send(t, adminID, "/set_group https://t.me/+abc Большой марафон")
	assert.Contains(t, lastText(t, replies), "Большой марафон")

	replies, _ = f.send(t, adminID, "/set_group https://t.me/+abc")
	assert.Equal(t, usageSetGroup, lastText(t, replies))
}

func TestCancelReturnsToIdle(t *testing.T) {
	f := newFixture(t)
	f.send(t, adminID, ButtonExport)
	assert.Equal(t, dialog.AwaitingExportStart, f.state(t, adminID))

	replies, _ := f.send(t, adminID, ButtonCancel)
	assert.Equal(t, "Админ-меню:", lastText(t, replies))
	assert.Equal(t, dialog.Idle, f.state(t, adminID))

	f.send(t, adminID, ButtonFind)
	f.send(t, adminID, "/cancel")
	assert.Equal(t, dialog.Idle, f.state(t, adminID))
}

func TestExportFlow(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, db.AppendAccessLog(f.conn, &db.AccessLog{
		TelegramID: "100", Email: "a@b.com", OrderID: "A1", GroupName: "Марафон", GroupID: "-1",
		Action: db.ActionGranted, Timestamp: time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC),
	}))

	f.send(t, adminID, ButtonExport)
	replies, _ := f.send(t, adminID, "15.01.2025")
	assert.Equal(t, "Неверный формат даты. Пример: 2025-01-15", lastText(t, replies))
	assert.Equal(t, dialog.AwaitingExportStart, f.state(t, adminID))

	f.send(t, adminID, "2025-01-01")
	f.send(t, adminID, "2025-01-15")
	assert.Equal(t, dialog.AwaitingExportGroup, f.state(t, adminID))

	replies, _ = f.send(t, adminID, "все")
	require.Len(t, replies, 1)
	doc := replies[0].Document
	require.NotNil(t, doc)
	assert.Equal(t, "Логи с 2025-01-01 по 2025-01-15", replies[0].Text)
	assert.True(t, strings.HasSuffix(doc.Name, ".csv"))
	assert.Contains(t, string(doc.Bytes), "a@b.com")
	assert.Equal(t, dialog.Idle, f.state(t, adminID))
}

func TestExportCommand(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, db.AppendAccessLog(f.conn, &db.AccessLog{
		TelegramID: "100", GroupName: "Поток 2", Action: db.ActionGranted,
		Timestamp: time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC),
	}))

	replies, _ := f.send(t, adminID, "/export_logs 2025-01-01 2025-01-15 Поток 2")
	require.NotNil(t, replies[0].Document)
	assert.Equal(t, "Логи с 2025-01-01 по 2025-01-15 (Поток 2)", replies[0].Text)

	replies, _ = f.send(t, adminID, "/export_logs 2025-02-01 2025-02-02")
	assert.Equal(t, "Записей за этот период нет.", lastText(t, replies))

	replies, _ = f.send(t, adminID, "/export_logs 2025-02-01 02.02.2025")
	assert.Equal(t, "Дата должна быть в формате YYYY-MM-DD.", lastText(t, replies))

	replies, _ = f.send(t, adminID, "/export_logs")
	assert.Equal(t, usageExport, lastText(t, replies))
}

func TestFindPaymentCard(t *testing.T) {
	f := newFixture(t)
	seedClaimed(t, f, nil)

	replies, _ := f.send(t, adminID, "/find_payment A1")
	text := lastText(t, replies)
	assert.Contains(t, text, "order_id: A1")
	assert.Contains(t, text, "used: true")
	assert.Contains(t, text, "telegram_id: 100")

	f.send(t, adminID, ButtonFind)
	replies, _ = f.send(t, adminID, "nobody@b.com")
	assert.Equal(t, "Оплата не найдена.", lastText(t, replies))
	assert.Equal(t, dialog.Idle, f.state(t, adminID))
}

func TestRebindFlow(t *testing.T) {
	f := newFixture(t)
	seedClaimed(t, f, nil)

	f.send(t, adminID, ButtonRebind)
	f.send(t, adminID, "A1")
	assert.Equal(t, dialog.AwaitingRebindTarget, f.state(t, adminID))

	replies, _ := f.send(t, adminID, "@someone")
	assert.Equal(t, "Telegram ID должен быть числом.", lastText(t, replies))
	assert.Equal(t, dialog.AwaitingRebindTarget, f.state(t, adminID))

	replies, _ = f.send(t, adminID, "200")
	assert.Equal(t, "Оплата A1 привязана к Telegram ID 200.", lastText(t, replies))

	owner, err := db.FindUserByTelegramID(f.conn, "200")
	require.NoError(t, err)
	require.NotNil(t, owner.PaymentID)
	prev, err := db.FindUserByTelegramID(f.conn, "100")
	require.NoError(t, err)
	assert.Nil(t, prev.PaymentID)
}

func TestRebindCommandValidation(t *testing.T) {
	f := newFixture(t)
	replies, _ := f.send(t, adminID, "/rebind_payment A1 abc")
	assert.Equal(t, usageRebind, lastText(t, replies))

	replies, _ = f.send(t, adminID, "/rebind_payment missing 200")
	assert.Equal(t, "Оплата не найдена.", lastText(t, replies))
}

func TestRemoveAndUnban(t *testing.T) {
	f := newFixture(t)
	chatID := int64(-1001)
	seedClaimed(t, f, &chatID)

	f.send(t, adminID, ButtonRemove)
	replies, _ := f.send(t, adminID, "a@b.com")
	assert.Equal(t, "Пользователь удалён из группы и заблокирован.", lastText(t, replies))

	f.send(t, adminID, ButtonUnban)
	replies, _ = f.send(t, adminID, "A1")
	assert.Contains(t, lastText(t, replies), "Пользователь разбанен.")
	assert.Equal(t, []string{"remove", "unban"}, f.members.calls)

	n, err := db.CountAccessLogs(f.conn)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestRemoveWithoutGroupAsksToSetIt(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, db.CreatePayment(f.conn, &db.Payment{OrderID: "A1", Email: "a@b.com", Status: db.StatusPaid, CreatedAt: time.Now().UTC()}))
	_, err := f.access.Claim(context.Background(), services.Identity{TelegramID: 100}, "a@b.com")
	require.NoError(t, err)

	f.send(t, adminID, ButtonRemove)
	replies, _ := f.send(t, adminID, "a@b.com")
	assert.Contains(t, lastText(t, replies), "Группа не настроена")
	assert.Empty(t, f.members.calls)
	assert.Equal(t, dialog.Idle, f.state(t, adminID))
}

func TestRemoveFailures(t *testing.T) {
	f := newFixture(t)
	seedClaimed(t, f, nil)

	f.send(t, adminID, ButtonRemove)
	replies, _ := f.send(t, adminID, "a@b.com")
	assert.Contains(t, lastText(t, replies), "Не вижу chat_id группы")
	assert.Equal(t, dialog.Idle, f.state(t, adminID))

	_, err := f.access.SetGroup(context.Background(), "https://t.me/+y", "Марафон")
	require.NoError(t, err)
	group, err := db.CurrentGroupRecord(f.conn)
	require.NoError(t, err)
	require.NoError(t, db.SetGroupChatID(f.conn, group.ID, -1001))

	f.members.err = errors.New("not enough rights")
	f.send(t, adminID, ButtonRemove)
	replies, _ = f.send(t, adminID, "a@b.com")
	assert.Equal(t, "Не удалось удалить пользователя. Проверь права бота.", lastText(t, replies))

	f.send(t, adminID, ButtonUnban)
	replies, _ = f.send(t, adminID, "a@b.com")
	assert.Equal(t, "Не удалось разбанить пользователя. Проверь права бота.", lastText(t, replies))

	n, err := db.CountAccessLogs(f.conn)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAddTestPayment(t *testing.T) {
	f := newFixture(t)
	replies, _ := f.send(t, adminID, "/add_test_payment T1 t@b.com +79000000000")
	assert.Equal(t, "Тестовая оплата добавлена: T1 / t@b.com", lastText(t, replies))

	replies, _ = f.send(t, adminID, "/add_test_payment T1 t@b.com")
	assert.Equal(t, "Оплата с таким order_id уже есть.", lastText(t, replies))

	replies, _ = f.send(t, adminID, "/add_test_payment T2")
	assert.Equal(t, usageAddTest, lastText(t, replies))
}

func TestReport(t *testing.T) {
	f := newFixture(t)
	seedClaimed(t, f, nil)

	replies, _ := f.send(t, adminID, "/report")
	text := lastText(t, replies)
	assert.Contains(t, text, "Группа: Марафон")
	assert.Contains(t, text, "Новых оплат: 1")

	daily := f.h.DailyReport(context.Background())
	require.Len(t, daily, 1)
	assert.Equal(t, adminID, daily[0].ChatID)
}
