package bot

import (
	"errors"
	"fmt"

	"Access-Telegram-bot/internal/services"
)

const (
	textWelcome = "Привет! Я бот марафона.\n\n" +
		"Я буду выдавать доступ в закрытую группу после оплаты.\n" +
		"Нажми кнопку ниже и отправь свой email или телефон для проверки оплаты."
	textAskIdentifier = "Введите email или телефон, который вы указали при оплате."
	textEmptyInput    = "Отправь, пожалуйста, email, телефон или номер заказа."
	textUnknown       = "Неизвестная команда. Нажми /start, чтобы начать заново."
	textTooFast       = "Пожалуйста, не так быстро! Подождите пару секунд..."
	textNoGroup       = "Оплата подтверждена, но пока не настроена группа для выдачи доступа.\n" +
		"Свяжись с администратором марафона."
	textSupportThanks = "Спасибо! Сообщение отправлено администратору."
	textCancelled     = "Ок, отменено."
)

func paymentFoundText(groupName string) string {
	return fmt.Sprintf("Оплата найдена ✅\n\nГруппа: %s\nНажми кнопку ниже и отправь заявку на вступление 👇", groupName)
}

// userMessage переводит ошибку проверки оплаты в ответ пользователю
func userMessage(err error) string {
	switch {
	case errors.Is(err, services.ErrPaymentNotFound):
		return "Я не нашёл оплаченный заказ по этим данным.\n" +
			"Проверь, пожалуйста, правильно ли ты ввёл адрес, или напиши в поддержку."
	case errors.Is(err, services.ErrPaymentAlreadyUsed):
		return "Эта оплата уже использована для доступа.\n" +
			"Если вы оплатили новый поток, пожалуйста, укажите новый email/телефон или напишите в поддержку."
	case errors.Is(err, services.ErrBoundToAnotherUser):
		return "Эта оплата уже использована с другим Telegram-аккаунтом.\n" +
			"Если это ошибка, напиши, пожалуйста, в поддержку."
	default:
		return "Не получилось проверить оплату, попробуйте чуть позже."
	}
}
