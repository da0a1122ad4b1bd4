package admin

import tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

const (
	ButtonMenu     = "Админ-меню"
	ButtonSetGroup = "Установить группу"
	ButtonExport   = "Выгрузить логи"
	ButtonFind     = "Найти оплату"
	ButtonRebind   = "Перепривязать оплату"
	ButtonRemove   = "Удалить участника"
	ButtonUnban    = "Разбанить участника"
	ButtonCancel   = "Отмена"
)

// IsMenuButton: текст кнопки админ-меню, а не ввод пользователя
func IsMenuButton(text string) bool {
	switch text {
	case ButtonMenu, ButtonSetGroup, ButtonExport, ButtonFind, ButtonRebind, ButtonRemove, ButtonUnban, ButtonCancel:
		return true
	}
	return false
}

func MenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(ButtonSetGroup)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(ButtonFind)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(ButtonExport)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(ButtonRebind)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(ButtonRemove)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(ButtonUnban)),
	)
	kb.InputFieldPlaceholder = "Выберите действие"
	return kb
}

func CancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(ButtonCancel)),
	)
	kb.InputFieldPlaceholder = "Можно отменить"
	return kb
}

// ReplyKeyboard: клавиатура админа при ответе в поддержку
func ReplyKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(ButtonCancel)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(ButtonMenu)),
	)
	kb.InputFieldPlaceholder = "Введите ответ пользователю"
	return kb
}
