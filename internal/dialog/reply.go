package dialog

// Reply: ответ обработчика, который транспорт превращает в сообщение Telegram.
type Reply struct {
	ChatID int64
	Text   string
	// Markup: клавиатура tgbotapi (reply или inline), nil если без клавиатуры
	Markup interface{}
	// Document: файл-вложение; Text становится подписью
	Document *Document
}

type Document struct {
	Name  string
	Bytes []byte
}

func Text(chatID int64, text string, markup interface{}) Reply {
	return Reply{ChatID: chatID, Text: text, Markup: markup}
}
