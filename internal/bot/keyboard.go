package bot

import tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

const (
	ButtonCheckPayment = "Проверить оплату"
	ButtonSupport      = "Поддержка"
	ButtonCancel       = "Отмена"
	ButtonReply        = "Ответить"
	ButtonJoin         = "Вступить в группу 🔐"

	supportReplyPrefix = "support_reply:"
)

func MainKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(ButtonCheckPayment)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(ButtonSupport)),
	)
	kb.InputFieldPlaceholder = "Введите email или телефон для проверки оплаты"
	return kb
}

func SupportKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(ButtonCancel)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(ButtonCheckPayment)),
	)
	kb.InputFieldPlaceholder = "Опишите проблему"
	return kb
}

// JoinKeyboard: кнопка-ссылка на invite-link группы
func JoinKeyboard(inviteLink string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL(ButtonJoin, inviteLink)),
	)
}

func supportReplyKeyboard(userID string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(ButtonReply, supportReplyPrefix+userID)),
	)
}
