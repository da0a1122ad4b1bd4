package admin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"Access-Telegram-bot/internal/dialog"
	"Access-Telegram-bot/internal/logger"
	"Access-Telegram-bot/internal/services"
)

const helpText = `Доступные команды администратора:
/admin — открыть меню кнопок
/find_payment <email, телефон или order_id> — найти оплату и связки
/export_logs <YYYY-MM-DD> <YYYY-MM-DD> [название группы] — CSV выгрузка
/rebind_payment <email|телефон|order_id> <telegram_id> — перепривязать оплату
/set_group <invite_link> <название группы> — сменить актуальную группу
/add_test_payment <order_id> <email> [телефон] — тестовая оплата
/report — сводка за последние сутки
/backup — резервная копия БД
В меню есть кнопки «Удалить участника» и «Разбанить участника»`

const (
	usageFind     = "Формат: /find_payment <email, телефон или order_id>"
	usageExport   = "Формат: /export_logs <YYYY-MM-DD> <YYYY-MM-DD> [название группы]"
	usageRebind   = "Формат: /rebind_payment <email|телефон|order_id> <telegram_id>"
	usageSetGroup = "Формат: /set_group <invite_link> <название группы одной строкой>"
	usageAddTest  = "Формат: /add_test_payment <order_id> <email> [телефон]"
)

type Params struct {
	Access   *services.AccessService
	Exporter *services.Exporter
	Dialogs  *dialog.Store
	Backups  *Backuper
	Reports  *Reporter
	AdminIDs []int64
	Log      *zap.Logger
}

// Handler обрабатывает команды и кнопки администратора.
type Handler struct {
	access   *services.AccessService
	exporter *services.Exporter
	dialogs  *dialog.Store
	backups  *Backuper
	reports  *Reporter
	adminIDs []int64
	log      *zap.Logger
}

func NewHandler(p Params) *Handler {
	if p.Log == nil {
		p.Log = zap.NewNop()
	}
	return &Handler{
		access:   p.Access,
		exporter: p.Exporter,
		dialogs:  p.Dialogs,
		backups:  p.Backups,
		reports:  p.Reports,
		adminIDs: p.AdminIDs,
		log:      p.Log,
	}
}

func (h *Handler) IsAdmin(userID int64) bool {
	for _, id := range h.adminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (h *Handler) AdminIDs() []int64 {
	return h.adminIDs
}

// HandleMessage возвращает handled == false, если сообщение не относится к админке
// (или отправитель не админ): тогда его обрабатывает пользовательская часть.
func (h *Handler) HandleMessage(ctx context.Context, msg *tgbotapi.Message, sess dialog.Session) ([]dialog.Reply, bool) {
	if msg == nil || msg.From == nil || !h.IsAdmin(msg.From.ID) {
		return nil, false
	}
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	if cmd, args, ok := dialog.ParseCommand(text); ok {
		replies, known := h.command(ctx, msg.From.ID, chatID, cmd, args, sess)
		if known {
			logger.LogAdminAction(h.log, msg.From.ID, cmd, args)
		}
		return replies, known
	}
	if IsMenuButton(text) {
		return h.button(ctx, msg.From.ID, chatID, text), true
	}
	return h.step(ctx, msg.From.ID, chatID, text, sess)
}

func (h *Handler) command(ctx context.Context, adminID, chatID int64, cmd, args string, sess dialog.Session) ([]dialog.Reply, bool) {
	switch cmd {
	case "admin":
		return h.menu(chatID, "Админ-меню:"), true
	case "admin_help":
		return []dialog.Reply{dialog.Text(chatID, helpText, MenuKeyboard())}, true
	case "cancel":
		h.reset(ctx, adminID)
		return h.menu(chatID, "Админ-меню:"), true
	case "find_payment":
		if args == "" {
			return h.menu(chatID, usageFind), true
		}
		return h.findPayment(ctx, chatID, args), true
	case "export_logs":
		return h.exportCommand(ctx, chatID, args), true
	case "rebind_payment":
		fields := strings.Fields(args)
		if len(fields) != 2 {
			return h.menu(chatID, usageRebind), true
		}
		if _, err := strconv.ParseUint(fields[1], 10, 64); err != nil {
			return h.menu(chatID, usageRebind), true
		}
		return h.rebind(ctx, chatID, fields[0], fields[1]), true
	case "set_group":
		link, name, _ := strings.Cut(args, " ")
		name = strings.TrimSpace(name)
		if link == "" || name == "" {
			return h.menu(chatID, usageSetGroup), true
		}
		return h.setGroup(ctx, chatID, link, name), true
	case "add_test_payment":
		return h.addTestPayment(ctx, chatID, args), true
	case "report":
		return h.report(ctx, chatID), true
	case "backup":
		return h.backup(ctx, chatID), true
	}
	return nil, false
}

func (h *Handler) button(ctx context.Context, adminID, chatID int64, text string) []dialog.Reply {
	var (
		next   dialog.State
		prompt string
	)
	switch text {
	case ButtonMenu, ButtonCancel:
		h.reset(ctx, adminID)
		return h.menu(chatID, "Админ-меню:")
	case ButtonSetGroup:
		next, prompt = dialog.AwaitingGroupInvite, "Пришли invite-link для группы (t.me/...)."
	case ButtonExport:
		next, prompt = dialog.AwaitingExportStart, "Дата начала в формате YYYY-MM-DD."
	case ButtonFind:
		next, prompt = dialog.AwaitingFindQuery, "Введи email, телефон или order_id."
	case ButtonRebind:
		next, prompt = dialog.AwaitingRebindQuery, "Введи email, телефон или order_id для перепривязки."
	case ButtonRemove:
		next, prompt = dialog.AwaitingRemoveQuery, "Введи email, телефон или order_id участника для удаления из группы."
	case ButtonUnban:
		next, prompt = dialog.AwaitingUnbanQuery, "Введи email, телефон или order_id участника для разбана."
	}
	if err := h.dialogs.Transition(ctx, key(adminID), next, nil); err != nil {
		return h.failure(chatID, "dialog transition", err)
	}
	return []dialog.Reply{dialog.Text(chatID, prompt, CancelKeyboard())}
}

// step продолжает начатый через меню диалог
func (h *Handler) step(ctx context.Context, adminID, chatID int64, text string, sess dialog.Session) ([]dialog.Reply, bool) {
	switch sess.State {
	case dialog.AwaitingGroupInvite:
		return h.advance(ctx, adminID, chatID, dialog.AwaitingGroupName,
			map[string]string{dialog.KeyInviteLink: text}, "Теперь пришли название группы."), true

	case dialog.AwaitingGroupName:
		link := sess.Get(dialog.KeyInviteLink)
		h.reset(ctx, adminID)
		if link == "" {
			return h.menu(chatID, "Не вижу invite-link, начни заново."), true
		}
		return h.setGroup(ctx, chatID, link, text), true

	case dialog.AwaitingExportStart:
		if !validDate(text) {
			return []dialog.Reply{dialog.Text(chatID, "Неверный формат даты. Пример: 2025-01-15", CancelKeyboard())}, true
		}
		return h.advance(ctx, adminID, chatID, dialog.AwaitingExportEnd,
			map[string]string{dialog.KeyExportStart: text}, "Дата окончания в формате YYYY-MM-DD."), true

	case dialog.AwaitingExportEnd:
		if !validDate(text) {
			return []dialog.Reply{dialog.Text(chatID, "Неверный формат даты. Пример: 2025-01-31", CancelKeyboard())}, true
		}
		return h.advance(ctx, adminID, chatID, dialog.AwaitingExportGroup,
			map[string]string{dialog.KeyExportEnd: text}, "Название группы (или '-' если все)."), true

	case dialog.AwaitingExportGroup:
		start, end := sess.Get(dialog.KeyExportStart), sess.Get(dialog.KeyExportEnd)
		h.reset(ctx, adminID)
		if start == "" || end == "" {
			return h.menu(chatID, "Не вижу даты, начни заново."), true
		}
		return h.export(ctx, chatID, start, end, services.GroupFilter(text)), true

	case dialog.AwaitingFindQuery:
		h.reset(ctx, adminID)
		return h.findPayment(ctx, chatID, text), true

	case dialog.AwaitingRebindQuery:
		return h.advance(ctx, adminID, chatID, dialog.AwaitingRebindTarget,
			map[string]string{dialog.KeyRebindQuery: text}, "Введи Telegram ID пользователя."), true

	case dialog.AwaitingRebindTarget:
		if _, err := strconv.ParseUint(text, 10, 64); err != nil {
			return []dialog.Reply{dialog.Text(chatID, "Telegram ID должен быть числом.", CancelKeyboard())}, true
		}
		query := sess.Get(dialog.KeyRebindQuery)
		h.reset(ctx, adminID)
		if query == "" {
			return h.menu(chatID, "Не вижу оплату, начни заново."), true
		}
		return h.rebind(ctx, chatID, query, text), true

	case dialog.AwaitingRemoveQuery:
		h.reset(ctx, adminID)
		return h.revoke(ctx, adminID, chatID, text), true

	case dialog.AwaitingUnbanQuery:
		h.reset(ctx, adminID)
		return h.restore(ctx, adminID, chatID, text), true
	}
	return nil, false
}

func (h *Handler) advance(ctx context.Context, adminID, chatID int64, next dialog.State, data map[string]string, prompt string) []dialog.Reply {
	if err := h.dialogs.Transition(ctx, key(adminID), next, data); err != nil {
		h.reset(ctx, adminID)
		return h.failure(chatID, "dialog transition", err)
	}
	return []dialog.Reply{dialog.Text(chatID, prompt, CancelKeyboard())}
}

func (h *Handler) reset(ctx context.Context, adminID int64) {
	if err := h.dialogs.Reset(ctx, key(adminID)); err != nil {
		h.log.Warn("dialog reset failed", zap.Int64("admin_id", adminID), zap.Error(err))
	}
}

func (h *Handler) menu(chatID int64, text string) []dialog.Reply {
	return []dialog.Reply{dialog.Text(chatID, text, MenuKeyboard())}
}

func (h *Handler) failure(chatID int64, op string, err error) []dialog.Reply {
	h.log.Error("admin operation failed", zap.String("op", op), zap.Error(err))
	return h.menu(chatID, "Что-то пошло не так, попробуйте ещё раз.")
}

func (h *Handler) findPayment(ctx context.Context, chatID int64, query string) []dialog.Reply {
	info, err := h.access.FindPayment(ctx, query)
	if err != nil {
		return h.menu(chatID, h.errorText(err, "find payment"))
	}
	return h.menu(chatID, formatPaymentInfo(info))
}

func formatPaymentInfo(info *services.PaymentInfo) string {
	p := info.Payment
	lines := []string{
		"Найденная оплата:",
		"order_id: " + p.OrderID,
		"email: " + orDash(p.Email),
		"phone: " + orDash(p.Phone),
		"status: " + p.Status,
		"used: " + strconv.FormatBool(p.Used),
		"created_at: " + p.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		"",
	}
	if u := info.User; u != nil {
		lines = append(lines,
			"Связанный пользователь:",
			"telegram_id: "+u.TelegramID,
			"username: "+orDash(u.Username),
			"full_name: "+orDash(u.FullName))
	} else {
		lines = append(lines, "Связанный пользователь: отсутствует")
	}
	if len(info.Logs) > 0 {
		lines = append(lines, "", "Последние логи доступа:")
		for _, l := range info.Logs {
			lines = append(lines, fmt.Sprintf("%s | %s | %s | %s",
				l.Timestamp.UTC().Format("2006-01-02 15:04:05"), l.Action, l.GroupName, l.Comment))
		}
	}
	return strings.Join(lines, "\n")
}

func (h *Handler) exportCommand(ctx context.Context, chatID int64, args string) []dialog.Reply {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return h.menu(chatID, usageExport)
	}
	group := ""
	if len(fields) > 2 {
		group = services.GroupFilter(strings.Join(fields[2:], " "))
	}
	return h.export(ctx, chatID, fields[0], fields[1], group)
}

func (h *Handler) export(ctx context.Context, chatID int64, startRaw, endRaw, group string) []dialog.Reply {
	from, to, err := services.ParseExportRange(startRaw, endRaw)
	if err != nil {
		return h.menu(chatID, "Дата должна быть в формате YYYY-MM-DD.")
	}
	data, n, err := h.exporter.Export(ctx, from, to, group)
	if err != nil {
		return h.failure(chatID, "export", err)
	}
	if n == 0 {
		return h.menu(chatID, "Записей за этот период нет.")
	}
	caption := fmt.Sprintf("Логи с %s по %s", startRaw, endRaw)
	if group != "" {
		caption += " (" + group + ")"
	}
	h.log.Info("access logs exported", zap.Int("rows", n), zap.String("group", group))
	return []dialog.Reply{{
		ChatID:   chatID,
		Text:     caption,
		Markup:   MenuKeyboard(),
		Document: &dialog.Document{Name: fmt.Sprintf("access_logs_%s_%s.csv", startRaw, endRaw), Bytes: data},
	}}
}

func (h *Handler) rebind(ctx context.Context, chatID int64, query, telegramID string) []dialog.Reply {
	pay, err := h.access.Rebind(ctx, query, telegramID)
	if err != nil {
		return h.menu(chatID, h.errorText(err, "rebind"))
	}
	return h.menu(chatID, fmt.Sprintf("Оплата %s привязана к Telegram ID %s.", pay.OrderID, telegramID))
}

func (h *Handler) revoke(ctx context.Context, adminID, chatID int64, query string) []dialog.Reply {
	if _, err := h.access.Revoke(ctx, adminID, query); err != nil {
		if errors.Is(err, services.ErrTransport) {
			return h.menu(chatID, "Не удалось удалить пользователя. Проверь права бота.")
		}
		return h.menu(chatID, h.errorText(err, "revoke"))
	}
	return h.menu(chatID, "Пользователь удалён из группы и заблокирован.")
}

func (h *Handler) restore(ctx context.Context, adminID, chatID int64, query string) []dialog.Reply {
	if _, err := h.access.Restore(ctx, adminID, query); err != nil {
		if errors.Is(err, services.ErrTransport) {
			return h.menu(chatID, "Не удалось разбанить пользователя. Проверь права бота.")
		}
		return h.menu(chatID, h.errorText(err, "restore"))
	}
	return h.menu(chatID, "Пользователь разбанен. Теперь он может снова подать заявку на вступление в группу.")
}

func (h *Handler) setGroup(ctx context.Context, chatID int64, link, name string) []dialog.Reply {
	if _, err := h.access.SetGroup(ctx, link, name); err != nil {
		return h.failure(chatID, "set group", err)
	}
	return h.menu(chatID, fmt.Sprintf("Текущая группа установлена:\n%s\n%s", name, link))
}

func (h *Handler) addTestPayment(ctx context.Context, chatID int64, args string) []dialog.Reply {
	fields := strings.Fields(args)
	if len(fields) != 2 && len(fields) != 3 {
		return h.menu(chatID, usageAddTest)
	}
	phone := ""
	if len(fields) == 3 {
		phone = fields[2]
	}
	pay, err := h.access.AddTestPayment(ctx, fields[0], fields[1], phone)
	if err != nil {
		return h.menu(chatID, h.errorText(err, "add test payment"))
	}
	return h.menu(chatID, fmt.Sprintf("Тестовая оплата добавлена: %s / %s", pay.OrderID, pay.Email))
}

func (h *Handler) report(ctx context.Context, chatID int64) []dialog.Reply {
	text, err := h.reports.Build(ctx)
	if err != nil {
		return h.failure(chatID, "report", err)
	}
	return h.menu(chatID, text)
}

func (h *Handler) backup(ctx context.Context, chatID int64) []dialog.Reply {
	if h.backups == nil {
		return h.menu(chatID, "Резервное копирование не настроено.")
	}
	filename, err := h.backups.Backup(ctx, "backup")
	if err != nil {
		h.log.Error("manual backup failed", zap.Error(err))
		return h.menu(chatID, "Ошибка резервного копирования: "+err.Error())
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return h.failure(chatID, "read backup", err)
	}
	return []dialog.Reply{{
		ChatID:   chatID,
		Text:     "Резервная копия БД успешно создана",
		Markup:   MenuKeyboard(),
		Document: &dialog.Document{Name: filepath.Base(filename), Bytes: data},
	}}
}

// errorText переводит ошибки операций в сообщения для админа
func (h *Handler) errorText(err error, op string) string {
	switch {
	case errors.Is(err, services.ErrPaymentNotFound):
		return "Оплата не найдена."
	case errors.Is(err, services.ErrUserNotBound):
		return "Пользователь не привязан к этой оплате."
	case errors.Is(err, services.ErrSelfRevoke):
		return "Нельзя удалить самого себя."
	case errors.Is(err, services.ErrGroupNotConfigured):
		return "Группа не настроена. Сначала установите группу через /set_group или кнопку «Установить группу»."
	case errors.Is(err, services.ErrGroupChatUnknown):
		return "Не вижу chat_id группы. Отправьте тестовую заявку на вступление, чтобы бот сохранил chat_id."
	case errors.Is(err, services.ErrInvalidTelegramID):
		return "Telegram ID должен быть числом."
	case errors.Is(err, services.ErrDuplicateOrder):
		return "Оплата с таким order_id уже есть."
	}
	h.log.Error("admin operation failed", zap.String("op", op), zap.Error(err))
	return "Что-то пошло не так, попробуйте ещё раз."
}

func validDate(s string) bool {
	_, err := time.Parse(services.DateLayout, s)
	return err == nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func key(id int64) string {
	return strconv.FormatInt(id, 10)
}
